package config

// GTFSConfig contains GTFS static feed configuration
type GTFSConfig struct {
	StaticURL string `yaml:"staticURL" validate:"omitempty,url"`
	AgencyID  string `yaml:"agency_id" validate:"omitempty"`
}

// GTFSRTConfig contains GTFS-Realtime feed configuration
type GTFSRTConfig struct {
	TripUpdatesURL      string `yaml:"tripUpdatesURL" validate:"omitempty,url"`
	VehiclePositionsURL string `yaml:"vehiclePositionsURL" validate:"omitempty,url"`
	ServiceAlertsURL    string `yaml:"serviceAlertsURL" validate:"omitempty,url"`
	PollIntervalMS      int    `yaml:"pollIntervalMS" validate:"gte=0"`
	TimeoutMS           int    `yaml:"timeoutMS" validate:"gte=0"`
}

// LakeConfig describes the on-disk data lake root and archive cadence.
type LakeConfig struct {
	Root               string `yaml:"root"`
	ArchiveWindowHours int    `yaml:"archiveWindowHours" validate:"gte=0"`
}

// CurateConfig contains trip_id parsing rules for silver curation.
// Defaults match feeds where trip_id embeds the service day prefix and a
// route designator suffix.
type CurateConfig struct {
	ServiceDayPattern   string  `yaml:"serviceDayPattern"`
	RoutePattern        string  `yaml:"routePattern"`
	RouteNumberPattern  string  `yaml:"routeNumberPattern"`
	MaxStopDistanceM    float64 `yaml:"maxStopDistanceM"`
	TripSequenceJumpMax int     `yaml:"tripSequenceJumpMax"`
}

// UploadConfig contains cloud upload settings. Bucket and prefix are
// normally supplied through GCS_BUCKET / GCS_PREFIX_LATEST.
type UploadConfig struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	TimeoutMS int    `yaml:"timeoutMS" validate:"gte=0"`
}

// Feed represents a single GTFS feed configuration
type Feed struct {
	Name   string       `yaml:"name" validate:"required"`
	GTFS   GTFSConfig   `yaml:"gtfs"`
	GTFSRT GTFSRTConfig `yaml:"gtfsrt"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Lake        LakeConfig   `yaml:"lake"`
	GTFS        GTFSConfig   `yaml:"gtfs"`
	GTFSRT      GTFSRTConfig `yaml:"gtfsrt"`
	Curate      CurateConfig `yaml:"curate"`
	Upload      UploadConfig `yaml:"upload"`
	Feeds       []Feed       `yaml:"feeds"`
	NATSURL     string       `yaml:"natsURL"`
	MetricsAddr string       `yaml:"metricsAddr"`
}
