package gtfsrt

import "time"

// VehiclePositionRow is one flattened VehiclePosition observation in the
// bronze tier. Parquet schema is derived from the struct tags.
type VehiclePositionRow struct {
	SnapshotTS          time.Time `parquet:"snapshot_ts,timestamp(millisecond)"`
	Agency              string    `parquet:"agency"`
	EntityID            string    `parquet:"entity_id"`
	VehicleID           string    `parquet:"vehicle_id"`
	TripID              string    `parquet:"trip_id"`
	RouteID             string    `parquet:"route_id"`
	Lat                 float64   `parquet:"lat"`
	Lon                 float64   `parquet:"lon"`
	Bearing             float64   `parquet:"bearing"`
	Speed               float64   `parquet:"speed"`
	CurrentStopSequence int32     `parquet:"current_stop_sequence"`
	CurrentStatus       string    `parquet:"current_status"`
	VehicleTimestamp    int64     `parquet:"vp_timestamp"`
	DateStr             string    `parquet:"date_str"`
}

// TripUpdateRow is one flattened TripUpdate observation in the bronze tier.
type TripUpdateRow struct {
	SnapshotTS    time.Time `parquet:"snapshot_ts,timestamp(millisecond)"`
	Agency        string    `parquet:"agency"`
	EntityID      string    `parquet:"entity_id"`
	TripID        string    `parquet:"trip_id"`
	RouteID       string    `parquet:"route_id"`
	VehicleID     string    `parquet:"vehicle_id"`
	StartDate     string    `parquet:"start_date"`
	StartTime     string    `parquet:"start_time"`
	Delay         int32     `parquet:"delay"`
	FeedTimestamp int64     `parquet:"tu_timestamp"`
	DateStr       string    `parquet:"date_str"`
}
