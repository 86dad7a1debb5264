package lake

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSnapshotName(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	got := SnapshotName("vehicle_positions", "metro", ts)
	want := "gtfs_rt_vehicle_positions_metro_20250314_092653.pb"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestParseSnapshotName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		feedType string
		agency   string
		hasTS    bool
		wantErr  bool
	}{
		{
			name:     "canonical pb",
			input:    "gtfs_rt_trip_updates_metro_20250314_092653.pb",
			feedType: "trip_updates",
			agency:   "metro",
			hasTS:    true,
		},
		{
			name:     "canonical json",
			input:    "gtfs_rt_vehicle_positions_metro_20250314_092653.json",
			feedType: "vehicle_positions",
			agency:   "metro",
			hasTS:    true,
		},
		{
			name:     "agency with underscores",
			input:    "gtfs_rt_service_alerts_city_bus_co_20250314_092653.pb",
			feedType: "service_alerts",
			agency:   "city_bus_co",
			hasTS:    true,
		},
		{
			name:     "legacy name without timestamp",
			input:    "trip_update_dump.bin",
			feedType: "trip_updates",
			hasTS:    false,
		},
		{
			name:     "legacy vehicle position name",
			input:    "old_vehicle_positions",
			feedType: "vehicle_positions",
			hasTS:    false,
		},
		{
			name:    "unrecognized",
			input:   "notes.txt",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseSnapshotName(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", info)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if info.FeedType != tt.feedType {
				t.Errorf("feed type: expected %s, got %s", tt.feedType, info.FeedType)
			}
			if info.Agency != tt.agency {
				t.Errorf("agency: expected %s, got %s", tt.agency, info.Agency)
			}
			if info.HasTS != tt.hasTS {
				t.Errorf("hasTS: expected %v, got %v", tt.hasTS, info.HasTS)
			}
		})
	}
}

func TestSnapshotNameRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	info, err := ParseSnapshotName(SnapshotName("trip_updates", "metro", ts))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.TS.Equal(ts) {
		t.Errorf("expected %v, got %v", ts, info.TS)
	}
}

func TestWriteSnapshotIsImmutable(t *testing.T) {
	dir := t.TempDir()
	name := "gtfs_rt_trip_updates_metro_20250314_092653.pb"

	path, err := WriteSnapshot(dir, name, []byte("payload"))
	if err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if _, err := WriteSnapshot(dir, name, []byte("other")); err == nil {
		t.Fatal("expected error on second write of same snapshot")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("snapshot content changed: %q", data)
	}

	// The failed attempt must not leave temp files behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the snapshot in the spool, found %d entries", len(entries))
	}
	if entries[0].Name() != filepath.Base(path) {
		t.Errorf("unexpected file %s", entries[0].Name())
	}
}
