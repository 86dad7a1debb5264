package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file leaves a field unset.
const (
	DefaultPollIntervalMS     = 20000
	DefaultFetchTimeoutMS     = 10000
	DefaultUploadTimeoutMS    = 2 * 60 * 60 * 1000
	DefaultArchiveWindowHours = 24
	DefaultLakeRoot           = "data"
)

// LoadAppConfig loads and validates the application configuration.
// Environment variables (optionally sourced from a .env file) override
// the lake root and cloud upload settings.
func LoadAppConfig(path string) (AppConfig, error) {
	_ = godotenv.Load()

	var cfg AppConfig
	paths := []string{path}
	if path == "" {
		paths = []string{"config.yml", "config.yaml"}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	v := validator.New()
	for _, f := range cfg.Feeds {
		if err := v.Struct(f); err != nil {
			return cfg, err
		}
	}
	if err := v.Struct(cfg.GTFSRT); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("LAKE_ROOT"); v != "" {
		cfg.Lake.Root = v
	}
	if v := os.Getenv("GCS_BUCKET"); v != "" {
		cfg.Upload.Bucket = v
	}
	if v := os.Getenv("GCS_PREFIX_LATEST"); v != "" {
		cfg.Upload.Prefix = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Lake.Root == "" {
		cfg.Lake.Root = DefaultLakeRoot
	}
	if cfg.Lake.ArchiveWindowHours == 0 {
		cfg.Lake.ArchiveWindowHours = DefaultArchiveWindowHours
	}
	if cfg.GTFSRT.PollIntervalMS == 0 {
		cfg.GTFSRT.PollIntervalMS = DefaultPollIntervalMS
	}
	if cfg.GTFSRT.TimeoutMS == 0 {
		cfg.GTFSRT.TimeoutMS = DefaultFetchTimeoutMS
	}
	if cfg.Upload.TimeoutMS == 0 {
		cfg.Upload.TimeoutMS = DefaultUploadTimeoutMS
	}
	if cfg.Curate.ServiceDayPattern == "" {
		cfg.Curate.ServiceDayPattern = `^([^_%]+)`
	}
	if cfg.Curate.RoutePattern == "" {
		cfg.Curate.RoutePattern = `系統(.*)$`
	}
	if cfg.Curate.RouteNumberPattern == "" {
		cfg.Curate.RouteNumberPattern = `\(([-\d]+)\)`
	}
	if cfg.Curate.MaxStopDistanceM == 0 {
		cfg.Curate.MaxStopDistanceM = 50
	}
	if cfg.Curate.TripSequenceJumpMax == 0 {
		cfg.Curate.TripSequenceJumpMax = 5
	}
	for i := range cfg.Feeds {
		f := &cfg.Feeds[i]
		if f.GTFSRT.PollIntervalMS == 0 {
			f.GTFSRT.PollIntervalMS = cfg.GTFSRT.PollIntervalMS
		}
		if f.GTFSRT.TimeoutMS == 0 {
			f.GTFSRT.TimeoutMS = cfg.GTFSRT.TimeoutMS
		}
	}
}

// SelectFeed chooses a feed by name; fallback to first; if none, a feed
// built from the top-level GTFS/GTFSRT sections.
func SelectFeed(cfg AppConfig, name string) Feed {
	if name != "" {
		for _, f := range cfg.Feeds {
			if f.Name == name {
				return f
			}
		}
	}
	if len(cfg.Feeds) > 0 {
		return cfg.Feeds[0]
	}
	return Feed{Name: cfg.GTFS.AgencyID, GTFS: cfg.GTFS, GTFSRT: cfg.GTFSRT}
}
