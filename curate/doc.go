// Package curate builds silver tables from bronze GTFS-RT datasets.
//
// The pipeline joins vehicle positions with the route information carried
// only by trip updates, repairs gaps, and reduces the 20-second position
// stream to one observed passage per vehicle, trip and stop:
//
//  1. deduplicate observations on (snapshot_ts, vehicle_id)
//  2. left-join trip-update route info onto vehicle positions
//  3. impute a missing route when the previous and next known routes of
//     the same vehicle agree; drop rows still missing one
//  4. extract the numeric route id from the route display name
//  5. resolve the nearest stop for each unique coordinate pair using a
//     planar distance approximation against the static stop registry
//  6. segment the stream into trips when the stop sequence restarts
//  7. keep the nearest approach per (vehicle, trip, stop sequence)
//
// The result feeds the observed-timetable pivot and is written to silver.
package curate
