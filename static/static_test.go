package static

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/gtfs-lake/lake"
)

// buildZip assembles a GTFS static zip from table name -> CSV content.
func buildZip(t *testing.T, tables map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range tables {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sampleTables() map[string]string {
	return map[string]string{
		"agency.txt": "agency_id,agency_name\n1,Metro\n",
		"routes.txt": "route_id,route_short_name\n10,Ten\n",
		"trips.txt": "trip_id,route_id,service_id\n" +
			"MON_系統10,10,wk\n" +
			"MON_系統10B,10,wk\n",
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
			"S1,First,25.0330,121.5654\n" +
			"S2,Second,25.0340,121.5664\n" +
			"S3,Third,25.0350,121.5674\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"MON_系統10,08:00:00,08:00:00,S1,1\n" +
			"MON_系統10,08:05:00,08:05:00,S2,2\n" +
			"MON_系統10,08:10:00,08:10:00,S3,3\n" +
			"MON_系統10B,08:10:00,08:10:00,S1,1\n" +
			"MON_系統10B,08:15:00,08:15:00,S2,2\n",
	}
}

func sampleIndex(t *testing.T) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gtfs.zip")
	if err := os.WriteFile(path, buildZip(t, sampleTables()), 0o644); err != nil {
		t.Fatal(err)
	}
	idx, err := NewIndexFromZip(path, IndexOptions{
		ServiceDayPattern: `^([^_%]+)`,
		RoutePattern:      `系統(.*)$`,
	})
	if err != nil {
		t.Fatalf("building index: %v", err)
	}
	return idx
}

func TestVerify(t *testing.T) {
	if err := Verify(buildZip(t, sampleTables())); err != nil {
		t.Errorf("valid zip rejected: %v", err)
	}

	missing := sampleTables()
	delete(missing, "stop_times.txt")
	if err := Verify(buildZip(t, missing)); err == nil {
		t.Error("expected error for missing stop_times.txt")
	}

	if err := Verify([]byte("not a zip")); err == nil {
		t.Error("expected error for non-zip payload")
	}
}

func TestStoreAndLatestSnapshot(t *testing.T) {
	l := lake.New(t.TempDir())
	zipBytes := buildZip(t, sampleTables())

	day1 := time.Date(2025, 3, 13, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	if _, err := Store(l, "metro", day1, zipBytes); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	p2, err := Store(l, "metro", day2, zipBytes)
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}

	latest, err := LatestSnapshot(l, "metro")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest != p2 {
		t.Errorf("expected %s, got %s", p2, latest)
	}

	if _, err := LatestSnapshot(l, "ghost"); err == nil {
		t.Error("expected error for agency without snapshots")
	}
}

func TestIndexRouteExtraction(t *testing.T) {
	idx := sampleIndex(t)

	routes := idx.Routes()
	if len(routes) != 2 || routes[0] != "10" || routes[1] != "10B" {
		t.Fatalf("expected routes [10 10B], got %v", routes)
	}

	name, ok := idx.StopNameAt("10", 2)
	if !ok || name != "Second" {
		t.Errorf("expected Second at (10, 2), got %q ok=%v", name, ok)
	}
	seq, ok := idx.StopSequenceAt("10", "Third")
	if !ok || seq != 3 {
		t.Errorf("expected 3 for (10, Third), got %d ok=%v", seq, ok)
	}
	if _, ok := idx.StopNameAt("99", 1); ok {
		t.Error("unknown route should not resolve")
	}
}

func TestIndexServiceDay(t *testing.T) {
	idx := sampleIndex(t)
	for _, st := range idx.StopTimes() {
		if st.ServiceDay != "MON" {
			t.Errorf("expected service day MON, got %q for trip %s", st.ServiceDay, st.TripID)
		}
	}
}

func TestIndexRouteFromTripsFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gtfs.zip")
	if err := os.WriteFile(path, buildZip(t, sampleTables()), 0o644); err != nil {
		t.Fatal(err)
	}
	idx, err := NewIndexFromZip(path, IndexOptions{})
	if err != nil {
		t.Fatal(err)
	}
	// Without a route pattern the route comes from trips.txt, so both
	// trips collapse onto route 10.
	routes := idx.Routes()
	if len(routes) != 1 || routes[0] != "10" {
		t.Errorf("expected routes [10], got %v", routes)
	}
}

func TestDepartureSeconds(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"08:00:00", 28800, false},
		{"00:00:30", 30, false},
		{"25:10:00", 90600, false}, // past-midnight service
		{"8:00", 0, true},
		{"ab:cd:ef", 0, true},
	}
	for _, tt := range tests {
		got, err := DepartureSeconds(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: expected %d, got %d", tt.input, tt.want, got)
		}
	}
}

func TestHeadwayStats(t *testing.T) {
	idx := sampleIndex(t)
	rows := idx.HeadwayStats()
	// Route 10 has single departures per stop, route 10B likewise; with
	// one trip each no (route, stop) pair reaches two departures.
	if len(rows) != 0 {
		t.Fatalf("expected no headway rows for single departures, got %d", len(rows))
	}

	tables := sampleTables()
	tables["stop_times.txt"] += "MON_系統10X,08:20:00,08:20:00,S1,1\n" +
		"MON_系統10X,08:50:00,08:50:00,S1,2\n"
	// Give S1 three departures on one route by reusing the extraction
	// suffix so 10X and 10 stay distinct.
	path := filepath.Join(t.TempDir(), "gtfs.zip")
	if err := os.WriteFile(path, buildZip(t, tables), 0o644); err != nil {
		t.Fatal(err)
	}
	idx2, err := NewIndexFromZip(path, IndexOptions{RoutePattern: `系統(.*)$`})
	if err != nil {
		t.Fatal(err)
	}
	rows = idx2.HeadwayStats()
	if len(rows) != 1 {
		t.Fatalf("expected 1 headway row, got %d", len(rows))
	}
	r := rows[0]
	if r.RouteID != "10X" || r.StopID != "S1" {
		t.Fatalf("unexpected row %+v", r)
	}
	if r.Samples != 1 || r.MeanHeadwayS != 1800 {
		t.Errorf("expected one 1800s headway, got %+v", r)
	}
}
