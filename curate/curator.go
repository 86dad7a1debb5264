package curate

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/theoremus-urban-solutions/gtfs-lake/convert"
	"github.com/theoremus-urban-solutions/gtfs-lake/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfs-lake/lake"
	"github.com/theoremus-urban-solutions/gtfs-lake/static"
)

// Curator turns one day of bronze data for an agency into silver tables.
type Curator struct {
	lake lake.Lake
	idx  *static.Index
	opts Options
}

// NewCurator returns a curator over the lake using the static index for
// stop resolution. Zero option fields take their defaults.
func NewCurator(l lake.Lake, idx *static.Index, opts Options) *Curator {
	def := DefaultOptions()
	if opts.RouteNumberPattern == "" {
		opts.RouteNumberPattern = def.RouteNumberPattern
	}
	if opts.DirectionPattern == "" {
		opts.DirectionPattern = def.DirectionPattern
	}
	if opts.SeqJumpMax == 0 {
		opts.SeqJumpMax = def.SeqJumpMax
	}
	if opts.MaxStopDistanceM == 0 {
		opts.MaxStopDistanceM = def.MaxStopDistanceM
	}
	return &Curator{lake: l, idx: idx, opts: opts}
}

// Clean runs the full cleaning pipeline over in-memory bronze rows and
// returns one nearest-approach row per (vehicle, trip, stop sequence).
func (c *Curator) Clean(positions []gtfsrt.VehiclePositionRow, updates []gtfsrt.TripUpdateRow) ([]ApproachRow, error) {
	obs := JoinRouteInfo(DedupeVehiclePositions(positions), DedupeTripUpdates(updates))
	obs = DropMissingRoutes(ImputeRoutes(obs))
	obs, err := ExtractRouteIDs(obs, c.opts.RouteNumberPattern)
	if err != nil {
		return nil, err
	}
	rows := AttachNearestStops(obs, c.idx, c.opts)
	rows = SegmentTrips(rows, c.opts.SeqJumpMax)
	return NearestApproach(rows), nil
}

// CurateDate reads the bronze partitions of one agency and date, cleans
// them and writes the silver approach table plus the observed timetable.
func (c *Curator) CurateDate(agency, dateStr string) error {
	positions, err := convert.ReadParquet[gtfsrt.VehiclePositionRow](c.lake.BronzePath(agency, string(gtfsrt.FeedVehiclePositions), dateStr))
	if err != nil {
		return fmt.Errorf("reading vehicle positions: %w", err)
	}
	updates, err := convert.ReadParquet[gtfsrt.TripUpdateRow](c.lake.BronzePath(agency, string(gtfsrt.FeedTripUpdates), dateStr))
	if err != nil {
		// Positions alone are still curatable; route imputation has to
		// carry the whole load.
		log.Printf("[%s] no trip updates for %s: %v", agency, dateStr, err)
	}

	rows, err := c.Clean(positions, updates)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no curatable observations for %s on %s", agency, dateStr)
	}

	silverDir := c.lake.SilverDir(agency)
	approachPath := filepath.Join(silverDir, fmt.Sprintf("approaches_%s.parquet", dateStr))
	if err := convert.WriteParquet(approachPath, rows); err != nil {
		return fmt.Errorf("writing approaches: %w", err)
	}
	log.Printf("[%s] wrote %d approach rows to %s", agency, len(rows), approachPath)

	ttPath := filepath.Join(silverDir, fmt.Sprintf("timetable_%s.csv", dateStr))
	if err := BuildTimetable(rows).WriteCSV(ttPath); err != nil {
		return err
	}
	log.Printf("[%s] wrote observed timetable to %s", agency, ttPath)
	return nil
}

// WriteHeadways computes scheduled headway statistics from the static
// index and writes them as a silver Parquet table.
func (c *Curator) WriteHeadways(agency string) error {
	stats := c.idx.HeadwayStats()
	if len(stats) == 0 {
		return fmt.Errorf("no scheduled departures for %s", agency)
	}
	path := filepath.Join(c.lake.SilverDir(agency), "headways.parquet")
	if err := convert.WriteParquet(path, stats); err != nil {
		return fmt.Errorf("writing headways: %w", err)
	}
	log.Printf("[%s] wrote %d headway rows to %s", agency, len(stats), path)
	return nil
}
