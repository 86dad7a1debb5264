package curate

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildTimetable(t *testing.T) {
	rows := []ApproachRow{
		{SnapshotTS: at(0), VehicleID: "v1", TripCount: 1, StopSeq: 1, NearestStop: "First"},
		{SnapshotTS: at(300), VehicleID: "v1", TripCount: 1, StopSeq: 2, NearestStop: "Second"},
		{SnapshotTS: at(600), VehicleID: "v2", TripCount: 1, StopSeq: 1, NearestStop: "First"},
		{SnapshotTS: at(900), VehicleID: "v1", TripCount: 2, StopSeq: 1, NearestStop: "First"},
		{SnapshotTS: at(1200), VehicleID: "v1", TripCount: 2, StopSeq: -1, NearestStop: "Unknown"},
	}
	tt := BuildTimetable(rows)

	if len(tt.Stops) != 2 {
		t.Fatalf("unresolved sequences must be excluded, got %v", tt.Stops)
	}
	if tt.Stops[0].Seq != 1 || tt.Stops[0].Name != "First" {
		t.Errorf("unexpected first column %+v", tt.Stops[0])
	}

	if len(tt.Rows) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(tt.Rows))
	}
	// Sorted by vehicle then trip.
	if tt.Rows[0].VehicleID != "v1" || tt.Rows[0].TripCount != 1 {
		t.Errorf("unexpected first row %+v", tt.Rows[0])
	}
	if got := tt.Rows[0].Times[1]; got != "08:00:00" {
		t.Errorf("expected 08:00:00, got %q", got)
	}
	if got := tt.Rows[0].Times[2]; got != "08:05:00" {
		t.Errorf("expected 08:05:00, got %q", got)
	}
	if tt.Rows[1].TripCount != 2 {
		t.Errorf("expected v1 trip 2 second, got %+v", tt.Rows[1])
	}
	if got := tt.Rows[2].Times[2]; got != "" {
		t.Errorf("v2 never reached Second, got %q", got)
	}
}

func TestWriteCSV(t *testing.T) {
	rows := []ApproachRow{
		{SnapshotTS: at(0), VehicleID: "v1", TripCount: 1, StopSeq: 1, NearestStop: "First"},
		{SnapshotTS: at(300), VehicleID: "v1", TripCount: 1, StopSeq: 2, NearestStop: "Second"},
	}
	path := filepath.Join(t.TempDir(), "silver", "timetable.csv")
	if err := BuildTimetable(rows).WriteCSV(path); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rec, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rec) != 2 {
		t.Fatalf("expected header plus 1 row, got %d", len(rec))
	}
	wantHead := []string{"vehicle_id", "trip_count", "direction_id", "1_First", "2_Second"}
	for i, h := range wantHead {
		if rec[0][i] != h {
			t.Errorf("header %d: expected %s, got %s", i, h, rec[0][i])
		}
	}
	want := []string{"v1", "1", "0", "08:00:00", "08:05:00"}
	for i, v := range want {
		if rec[1][i] != v {
			t.Errorf("cell %d: expected %s, got %s", i, v, rec[1][i])
		}
	}
}
