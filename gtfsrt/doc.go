// Package gtfsrt handles fetching and decoding GTFS-Realtime protobuf feeds.
//
// It supports two feed types ingested into the lake:
//   - Trip Updates: real-time arrival/departure predictions
//   - Vehicle Positions: current vehicle locations
//
// Fetched payloads are archived verbatim; DecodeTripUpdates and
// DecodeVehiclePositions flatten a FeedMessage into bronze table rows.
package gtfsrt
