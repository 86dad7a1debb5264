// Package convert turns raw GTFS-RT archives into bronze Parquet datasets.
//
// Input is a sealed tar/tar.gz of snapshot payloads (protobuf or protojson).
// Each entry is decoded into flat rows and the rows are written to Parquet
// partitioned by agency, feed type and feed-local date. Decode failures of
// individual entries are counted and skipped, never fatal for the archive.
//
// Conversion is idempotent per input archive: output files are written to a
// temp file and renamed into place, and re-running on unchanged input
// produces row-identical partitions. Input archives are never modified.
package convert
