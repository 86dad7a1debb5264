package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
lake:
  root: /tmp/lake
feeds:
  - name: metro
    gtfs:
      staticURL: "https://example.com/gtfs.zip"
    gtfsrt:
      tripUpdatesURL: "https://example.com/tu.pb"
      vehiclePositionsURL: "https://example.com/vp.pb"
  - name: lightrail
    gtfs: {}
    gtfsrt:
      vehiclePositionsURL: "https://example.com/lr_vp.pb"
      pollIntervalMS: 5000
`

func TestLoadAppConfig(t *testing.T) {
	cfg, err := LoadAppConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Lake.Root != "/tmp/lake" {
		t.Errorf("lake root: expected /tmp/lake, got %s", cfg.Lake.Root)
	}
	if len(cfg.Feeds) != 2 {
		t.Fatalf("expected 2 feeds, got %d", len(cfg.Feeds))
	}
	if cfg.Feeds[0].GTFSRT.PollIntervalMS != DefaultPollIntervalMS {
		t.Errorf("expected default poll interval, got %d", cfg.Feeds[0].GTFSRT.PollIntervalMS)
	}
	if cfg.Feeds[1].GTFSRT.PollIntervalMS != 5000 {
		t.Errorf("feed override lost: got %d", cfg.Feeds[1].GTFSRT.PollIntervalMS)
	}
	if cfg.Upload.TimeoutMS != DefaultUploadTimeoutMS {
		t.Errorf("expected default upload timeout, got %d", cfg.Upload.TimeoutMS)
	}
	if cfg.Lake.ArchiveWindowHours != DefaultArchiveWindowHours {
		t.Errorf("expected default archive window, got %d", cfg.Lake.ArchiveWindowHours)
	}
	if cfg.Curate.MaxStopDistanceM != 50 {
		t.Errorf("expected default stop distance, got %f", cfg.Curate.MaxStopDistanceM)
	}
}

func TestLoadAppConfigMissingFile(t *testing.T) {
	if _, err := LoadAppConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadAppConfigInvalidFeed(t *testing.T) {
	bad := `
feeds:
  - name: metro
    gtfs: {}
    gtfsrt:
      tripUpdatesURL: "not a url"
`
	if _, err := LoadAppConfig(writeConfig(t, bad)); err == nil {
		t.Error("expected validation error for malformed url")
	}
}

func TestLoadAppConfigEnvOverrides(t *testing.T) {
	t.Setenv("LAKE_ROOT", "/env/lake")
	t.Setenv("GCS_BUCKET", "env-bucket")
	t.Setenv("GCS_PREFIX_LATEST", "curated/latest")

	cfg, err := LoadAppConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Lake.Root != "/env/lake" {
		t.Errorf("env lake root not applied: %s", cfg.Lake.Root)
	}
	if cfg.Upload.Bucket != "env-bucket" {
		t.Errorf("env bucket not applied: %s", cfg.Upload.Bucket)
	}
	if cfg.Upload.Prefix != "curated/latest" {
		t.Errorf("env prefix not applied: %s", cfg.Upload.Prefix)
	}
}

func TestSelectFeed(t *testing.T) {
	cfg := AppConfig{
		GTFS: GTFSConfig{AgencyID: "top"},
		Feeds: []Feed{
			{Name: "metro", GTFS: GTFSConfig{AgencyID: "metro"}},
			{Name: "lightrail", GTFS: GTFSConfig{AgencyID: "lightrail"}},
		},
	}

	tests := []struct {
		name   string
		feed   string
		agency string
	}{
		{"by name", "lightrail", "lightrail"},
		{"unknown falls back to first", "ghost", "metro"},
		{"empty falls back to first", "", "metro"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := SelectFeed(cfg, tt.feed)
			if f.GTFS.AgencyID != tt.agency {
				t.Errorf("expected %s, got %s", tt.agency, f.GTFS.AgencyID)
			}
		})
	}

	f := SelectFeed(AppConfig{GTFS: GTFSConfig{AgencyID: "top"}}, "")
	if f.GTFS.AgencyID != "top" || f.Name != "top" {
		t.Errorf("expected top-level fallback, got %+v", f)
	}
}
