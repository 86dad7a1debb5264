package lake

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Lake resolves paths inside the data lake.
type Lake struct {
	Root string
}

// New returns a Lake rooted at dir.
func New(dir string) Lake {
	return Lake{Root: dir}
}

func (l Lake) RawSpoolDir(agency string) string {
	return filepath.Join(l.Root, "raw", "spool", agency)
}

func (l Lake) RawTarDir() string {
	return filepath.Join(l.Root, "raw", "tar")
}

// ArchivePath names a sealed archive for an agency and seal time.
func (l Lake) ArchivePath(agency string, sealed time.Time) string {
	return filepath.Join(l.RawTarDir(), fmt.Sprintf("%s_%s.tar.gz", agency, sealed.Format("20060102_150405")))
}

// NextArchivePath returns an unused archive path for the agency and seal
// time. When the base name is taken, a numeric part suffix keeps each
// seal on its own path so existing archives are never contested.
func (l Lake) NextArchivePath(agency string, sealed time.Time) string {
	path := l.ArchivePath(agency, sealed)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(l.RawTarDir(), fmt.Sprintf("%s_%s_%d.tar.gz", agency, sealed.Format("20060102_150405"), i))
	}
}

func (l Lake) StaticDir(agency string) string {
	return filepath.Join(l.Root, "raw_static", agency)
}

// StaticSnapshotPath names a GTFS static zip captured on the given day.
func (l Lake) StaticSnapshotPath(agency string, captured time.Time) string {
	return filepath.Join(l.StaticDir(agency), fmt.Sprintf("gtfs_static_%s.zip", captured.Format("20060102")))
}

func (l Lake) BronzeDir(agency, feedType string) string {
	return filepath.Join(l.Root, "bronze", agency, feedType)
}

// BronzePath names the bronze Parquet partition for one feed-local date.
func (l Lake) BronzePath(agency, feedType, dateStr string) string {
	return filepath.Join(l.BronzeDir(agency, feedType), dateStr+".parquet")
}

func (l Lake) SilverDir(agency string) string {
	return filepath.Join(l.Root, "silver", agency)
}

// EnsureDirs creates the tier directories an agency needs for ingestion.
func (l Lake) EnsureDirs(agency string) error {
	for _, d := range []string{
		l.RawSpoolDir(agency),
		l.RawTarDir(),
		l.StaticDir(agency),
	} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("ensure %s: %w", d, err)
		}
	}
	return nil
}
