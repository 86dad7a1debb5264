// Package ingest polls GTFS-RT endpoints on a fixed interval, spools the
// raw protobuf payloads into the lake and periodically seals the spool
// into immutable tar archives.
package ingest
