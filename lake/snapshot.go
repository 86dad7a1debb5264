package lake

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const snapshotTimeLayout = "20060102_150405"

var snapshotNameRe = regexp.MustCompile(
	`^gtfs_rt_(trip_updates|vehicle_positions|service_alerts)_(?:(.+)_)?(\d{8}_\d{6})\.(pb|json)$`)

// SnapshotName builds the canonical snapshot file name:
// gtfs_rt_{feed_type}_{agency}_{YYYYMMDD_HHMMSS}.pb
func SnapshotName(feedType, agency string, ts time.Time) string {
	return fmt.Sprintf("gtfs_rt_%s_%s_%s.pb", feedType, agency, ts.UTC().Format(snapshotTimeLayout))
}

// SnapshotInfo is the metadata recoverable from a snapshot file name.
type SnapshotInfo struct {
	FeedType string
	Agency   string
	TS       time.Time
	HasTS    bool
}

// ParseSnapshotName extracts feed type, agency and timestamp from a snapshot
// file name. Non-canonical names are still classified by feed-type substring
// ("trip_update" / "vehicle_position") so legacy archive entries remain
// convertible; for those the timestamp must come from the feed header.
func ParseSnapshotName(name string) (SnapshotInfo, error) {
	base := filepath.Base(name)
	if m := snapshotNameRe.FindStringSubmatch(base); m != nil {
		ts, err := time.Parse(snapshotTimeLayout, m[3])
		if err == nil {
			return SnapshotInfo{FeedType: m[1], Agency: m[2], TS: ts.UTC(), HasTS: true}, nil
		}
	}
	switch {
	case strings.Contains(base, "trip_update"):
		return SnapshotInfo{FeedType: "trip_updates"}, nil
	case strings.Contains(base, "vehicle_position"):
		return SnapshotInfo{FeedType: "vehicle_positions"}, nil
	}
	return SnapshotInfo{}, fmt.Errorf("unrecognized snapshot name %q", base)
}

// WriteSnapshot atomically writes an immutable snapshot file into dir.
// An existing file with the same name is an error: snapshots are provenance
// and must never be rewritten.
func WriteSnapshot(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("snapshot %s already exists", path)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
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
