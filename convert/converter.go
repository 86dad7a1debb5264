package convert

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/theoremus-urban-solutions/gtfs-lake/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfs-lake/lake"
)

const unknownAgency = "unknown"

// Options controls a conversion run.
type Options struct {
	// AgencyFilter restricts output to the named agencies; empty means all.
	AgencyFilter []string
	// DiscoverOnly reports detected agencies without writing Parquet.
	DiscoverOnly bool
}

func (o Options) allows(agency string) bool {
	if len(o.AgencyFilter) == 0 {
		return true
	}
	for _, a := range o.AgencyFilter {
		if strings.TrimSpace(a) == agency {
			return true
		}
	}
	return false
}

// ParseAgencyFilter splits a comma-separated agency list.
func ParseAgencyFilter(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

type partitionKey struct {
	agency string
	date   string
}

// Converter accumulates decoded rows and writes bronze partitions.
type Converter struct {
	lake lake.Lake
	opts Options

	tripUpdates      map[partitionKey][]gtfsrt.TripUpdateRow
	vehiclePositions map[partitionKey][]gtfsrt.VehiclePositionRow
	summary          Summary
}

// NewConverter creates a converter writing into the given lake.
func NewConverter(l lake.Lake, opts Options) *Converter {
	return &Converter{
		lake:             l,
		opts:             opts,
		tripUpdates:      map[partitionKey][]gtfsrt.TripUpdateRow{},
		vehiclePositions: map[partitionKey][]gtfsrt.VehiclePositionRow{},
		summary:          NewSummary(),
	}
}

// ConvertArchive decodes one raw archive and flushes its partitions.
func (c *Converter) ConvertArchive(tarPath string) error {
	if err := c.consumeArchive(tarPath); err != nil {
		return err
	}
	if c.opts.DiscoverOnly {
		return nil
	}
	return c.flush()
}

// ConvertDir converts every archive in dir. Rows accumulate across all
// archives and flush once at the end, so a partition fed by several
// archives keeps every row. Returns the run summary.
func (c *Converter) ConvertDir(dir string) (Summary, error) {
	archives, err := lake.ListArchives(dir)
	if err != nil {
		return c.summary, err
	}
	if len(archives) == 0 {
		return c.summary, fmt.Errorf("no raw archives found in %s", dir)
	}
	for _, a := range archives {
		log.Printf("converting %s", filepath.Base(a))
		if err := c.consumeArchive(a); err != nil {
			return c.summary, err
		}
	}
	if c.opts.DiscoverOnly {
		return c.summary, nil
	}
	if err := c.flush(); err != nil {
		return c.summary, err
	}
	return c.summary, nil
}

func (c *Converter) consumeArchive(tarPath string) error {
	err := lake.Walk(tarPath, func(name string, data []byte) error {
		c.consumeEntry(name, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", tarPath, err)
	}
	return nil
}

// Summary returns counters accumulated so far.
func (c *Converter) Summary() Summary { return c.summary }

func (c *Converter) consumeEntry(name string, data []byte) {
	c.summary.Entries++

	info, err := lake.ParseSnapshotName(name)
	if err != nil {
		c.summary.Skipped++
		return
	}
	fm, err := gtfsrt.ParseFeed(data)
	if err != nil {
		c.summary.Skipped++
		return
	}
	ts := info.TS
	if !info.HasTS {
		// Legacy entries carry no timestamp in the name; fall back to the
		// feed header.
		epoch := gtfsrt.HeaderTimestamp(fm)
		if epoch == 0 {
			c.summary.Skipped++
			return
		}
		ts = time.Unix(epoch, 0).UTC()
	}
	agency := info.Agency
	if agency == "" {
		agency = unknownAgency
	}
	c.summary.Detect(agency, info.FeedType)
	if !c.opts.allows(agency) {
		c.summary.Skipped++
		return
	}

	switch info.FeedType {
	case string(gtfsrt.FeedTripUpdates):
		rows := gtfsrt.DecodeTripUpdates(fm, agency, ts)
		if len(rows) == 0 {
			c.summary.Skipped++
			return
		}
		k := partitionKey{agency: agency, date: rows[0].DateStr}
		c.tripUpdates[k] = append(c.tripUpdates[k], rows...)
	case string(gtfsrt.FeedVehiclePositions):
		rows := gtfsrt.DecodeVehiclePositions(fm, agency, ts)
		if len(rows) == 0 {
			c.summary.Skipped++
			return
		}
		k := partitionKey{agency: agency, date: rows[0].DateStr}
		c.vehiclePositions[k] = append(c.vehiclePositions[k], rows...)
	default:
		c.summary.Skipped++
		return
	}
	c.summary.Processed++
}

// flush writes accumulated rows as bronze partitions and clears the buffers.
func (c *Converter) flush() error {
	for k, rows := range c.tripUpdates {
		sort.SliceStable(rows, func(i, j int) bool {
			if !rows[i].SnapshotTS.Equal(rows[j].SnapshotTS) {
				return rows[i].SnapshotTS.Before(rows[j].SnapshotTS)
			}
			return rows[i].EntityID < rows[j].EntityID
		})
		path := c.lake.BronzePath(k.agency, string(gtfsrt.FeedTripUpdates), k.date)
		if err := WriteParquet(path, rows); err != nil {
			return err
		}
		log.Printf("[%s] wrote %d trip_updates rows to %s", k.agency, len(rows), filepath.Base(path))
		c.summary.Written = append(c.summary.Written, path)
	}
	for k, rows := range c.vehiclePositions {
		sort.SliceStable(rows, func(i, j int) bool {
			if !rows[i].SnapshotTS.Equal(rows[j].SnapshotTS) {
				return rows[i].SnapshotTS.Before(rows[j].SnapshotTS)
			}
			return rows[i].EntityID < rows[j].EntityID
		})
		path := c.lake.BronzePath(k.agency, string(gtfsrt.FeedVehiclePositions), k.date)
		if err := WriteParquet(path, rows); err != nil {
			return err
		}
		log.Printf("[%s] wrote %d vehicle_positions rows to %s", k.agency, len(rows), filepath.Base(path))
		c.summary.Written = append(c.summary.Written, path)
	}
	sort.Strings(c.summary.Written)
	c.tripUpdates = map[partitionKey][]gtfsrt.TripUpdateRow{}
	c.vehiclePositions = map[partitionKey][]gtfsrt.VehiclePositionRow{}
	return nil
}

// WriteParquet writes rows as a snappy-compressed Parquet file, atomically
// replacing any previous file at path. Schema comes from the row struct tags.
func WriteParquet[T any](path string, rows []T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".parquet-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := parquet.NewGenericWriter[T](tmp, parquet.Compression(&parquet.Snappy))
	if _, err := w.Write(rows); err != nil {
		w.Close()
		tmp.Close()
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("close parquet %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadParquet loads all rows of a bronze/silver Parquet file.
func ReadParquet[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}
