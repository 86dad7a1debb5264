package static

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/theoremus-urban-solutions/gtfs-lake/lake"
)

// requiredTables are the GTFS files a snapshot must carry to be stored.
var requiredTables = []string{"agency.txt", "routes.txt", "trips.txt", "stops.txt", "stop_times.txt"}

// Download fetches a GTFS static zip from url.
func Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// Verify checks that the zip payload opens and contains the required
// GTFS tables.
func Verify(zipBytes []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return fmt.Errorf("not a zip archive: %w", err)
	}
	present := map[string]bool{}
	for _, f := range zr.File {
		present[filepath.Base(f.Name)] = true
	}
	for _, t := range requiredTables {
		if !present[t] {
			return fmt.Errorf("snapshot missing required table %s", t)
		}
	}
	return nil
}

// Store writes a verified snapshot into the lake, versioned by capture
// date. Re-capturing the same day replaces the snapshot atomically.
func Store(l lake.Lake, agency string, captured time.Time, zipBytes []byte) (string, error) {
	if err := Verify(zipBytes); err != nil {
		return "", err
	}
	dir := l.StaticDir(agency)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := l.StaticSnapshotPath(agency, captured)
	tmp, err := os.CreateTemp(dir, ".static-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(zipBytes); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// LatestSnapshot returns the newest snapshot zip stored for an agency.
func LatestSnapshot(l lake.Lake, agency string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(l.StaticDir(agency), "gtfs_static_*.zip"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no static snapshots for agency %s under %s", agency, l.StaticDir(agency))
	}
	latest := matches[0]
	for _, m := range matches[1:] {
		if m > latest {
			latest = m
		}
	}
	return latest, nil
}
