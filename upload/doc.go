// Package upload publishes curated Parquet files to Google Cloud Storage.
//
// The uploader scans a local directory and uploads the first Parquet file
// it finds under a fixed, overwritten object name, so downstream readers
// always see a stable "latest" path. A directory without any Parquet file
// is an error so callers can fail the run.
package upload
