// Package static handles GTFS static (schedule) snapshots.
//
// A snapshot is the agency's GTFS zip captured on a given day and stored
// under raw_static, versioned by capture date. The package parses the
// tables needed downstream (stops, stop_times) into an in-memory index
// and derives per-route/per-stop headway statistics from the timetable.
package static
