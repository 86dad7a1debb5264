// Package lake defines the on-disk data lake layout and the raw archive
// format.
//
// The lake is rooted at a single directory and follows the raw -> bronze ->
// silver maturity tiers:
//
//	<root>/raw/spool/<agency>/        pending snapshot files
//	<root>/raw/tar/                   sealed, immutable tar.gz archives
//	<root>/raw_static/<agency>/       GTFS static zip snapshots by capture date
//	<root>/bronze/<agency>/<feed>/    Parquet datasets partitioned by date
//	<root>/silver/<agency>/           curated tables
//
// Raw archives are write-once: sealing never overwrites an existing archive
// and readers never modify archive contents.
package lake
