package curate

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/theoremus-urban-solutions/gtfs-lake/gtfsrt"
)

// Observation is a vehicle position enriched with the route information
// that GTFS-RT only exposes on the trip-update feed.
type Observation struct {
	SnapshotTS time.Time
	VehicleID  string
	TripID     string
	Lat        float64
	Lon        float64
	StopSeq    int32
	RouteName  string
	RouteID    string
}

// Options control how observations are cleaned and segmented.
type Options struct {
	// RouteNumberPattern extracts the numeric route id from the route
	// display name; the first capture group is kept.
	RouteNumberPattern string
	// DirectionPattern extracts the direction digit from the route id.
	DirectionPattern string
	// SeqJumpMax is the largest forward stop-sequence jump still treated
	// as the same trip.
	SeqJumpMax int32
	// MaxStopDistanceM flags approaches further than this from their
	// nearest stop.
	MaxStopDistanceM float64
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		RouteNumberPattern: `\(([-\d]+)\)`,
		DirectionPattern:   `(\d)$`,
		SeqJumpMax:         5,
		MaxStopDistanceM:   50,
	}
}

type obsKey struct {
	ts      int64
	vehicle string
}

// DedupeVehiclePositions drops repeated (snapshot_ts, vehicle_id) rows,
// keeping the first occurrence, and returns the survivors ordered by
// vehicle then time.
func DedupeVehiclePositions(rows []gtfsrt.VehiclePositionRow) []gtfsrt.VehiclePositionRow {
	seen := make(map[obsKey]struct{}, len(rows))
	out := make([]gtfsrt.VehiclePositionRow, 0, len(rows))
	for _, r := range rows {
		k := obsKey{r.SnapshotTS.UnixMilli(), r.VehicleID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].VehicleID != out[j].VehicleID {
			return out[i].VehicleID < out[j].VehicleID
		}
		return out[i].SnapshotTS.Before(out[j].SnapshotTS)
	})
	return out
}

// DedupeTripUpdates drops repeated (snapshot_ts, vehicle_id) trip updates,
// keeping the first occurrence.
func DedupeTripUpdates(rows []gtfsrt.TripUpdateRow) []gtfsrt.TripUpdateRow {
	seen := make(map[obsKey]struct{}, len(rows))
	out := make([]gtfsrt.TripUpdateRow, 0, len(rows))
	for _, r := range rows {
		k := obsKey{r.SnapshotTS.UnixMilli(), r.VehicleID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// JoinRouteInfo left-joins trip-update route names onto vehicle positions
// on (snapshot_ts, vehicle_id). Positions without a matching update keep
// an empty route name for later imputation.
func JoinRouteInfo(positions []gtfsrt.VehiclePositionRow, updates []gtfsrt.TripUpdateRow) []Observation {
	routes := make(map[obsKey]gtfsrt.TripUpdateRow, len(updates))
	for _, u := range updates {
		k := obsKey{u.SnapshotTS.UnixMilli(), u.VehicleID}
		if _, ok := routes[k]; !ok {
			routes[k] = u
		}
	}
	out := make([]Observation, 0, len(positions))
	for _, p := range positions {
		obs := Observation{
			SnapshotTS: p.SnapshotTS,
			VehicleID:  p.VehicleID,
			TripID:     p.TripID,
			Lat:        p.Lat,
			Lon:        p.Lon,
			StopSeq:    p.CurrentStopSequence,
		}
		if u, ok := routes[obsKey{p.SnapshotTS.UnixMilli(), p.VehicleID}]; ok {
			obs.RouteName = u.RouteID
			if obs.TripID == "" {
				obs.TripID = u.TripID
			}
		}
		out = append(out, obs)
	}
	return out
}

// ImputeRoutes fills a missing route name when, within the same vehicle's
// time-ordered stream, the closest known route before and after the gap
// agree. Conflicting neighbours leave the row untouched.
func ImputeRoutes(obs []Observation) []Observation {
	byVehicle := make(map[string][]int)
	for i, o := range obs {
		byVehicle[o.VehicleID] = append(byVehicle[o.VehicleID], i)
	}
	for _, idxs := range byVehicle {
		sort.Slice(idxs, func(a, b int) bool {
			return obs[idxs[a]].SnapshotTS.Before(obs[idxs[b]].SnapshotTS)
		})
		forward := make([]string, len(idxs))
		last := ""
		for i, ix := range idxs {
			if obs[ix].RouteName != "" {
				last = obs[ix].RouteName
			}
			forward[i] = last
		}
		next := ""
		for i := len(idxs) - 1; i >= 0; i-- {
			ix := idxs[i]
			if obs[ix].RouteName != "" {
				next = obs[ix].RouteName
			}
			if obs[ix].RouteName == "" && forward[i] != "" && forward[i] == next {
				obs[ix].RouteName = forward[i]
			}
		}
	}
	return obs
}

// DropMissingRoutes removes observations that still have no route name
// after imputation.
func DropMissingRoutes(obs []Observation) []Observation {
	out := obs[:0]
	for _, o := range obs {
		if o.RouteName != "" {
			out = append(out, o)
		}
	}
	return out
}

// ExtractRouteIDs derives the numeric route id from each route display
// name using the configured pattern. Names without a match keep the full
// display name as the id.
func ExtractRouteIDs(obs []Observation, pattern string) ([]Observation, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling route number pattern: %w", err)
	}
	for i := range obs {
		if m := re.FindStringSubmatch(obs[i].RouteName); m != nil {
			obs[i].RouteID = m[1]
		} else {
			obs[i].RouteID = obs[i].RouteName
		}
	}
	return obs, nil
}

// DirectionID reports the direction digit encoded in the trailing
// character of a route id, or -1 when the id carries none.
func DirectionID(routeID string, re *regexp.Regexp) int32 {
	m := re.FindStringSubmatch(routeID)
	if m == nil {
		return -1
	}
	return int32(m[1][0] - '0')
}
