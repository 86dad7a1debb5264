package curate

import (
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/theoremus-urban-solutions/gtfs-lake/static"
)

// ApproachRow is one observed stop passage, the nearest recorded position
// of a vehicle to a stop within a single trip.
type ApproachRow struct {
	SnapshotTS  time.Time `parquet:"snapshot_ts,timestamp(millisecond)"`
	VehicleID   string    `parquet:"vehicle_id"`
	RouteID     string    `parquet:"route_id"`
	TripCount   int32     `parquet:"trip_count"`
	Lat         float64   `parquet:"lat"`
	Lon         float64   `parquet:"lon"`
	NearestStop string    `parquet:"nearest_stop"`
	StopSeq     int32     `parquet:"stop_sequence"`
	DistanceM   float64   `parquet:"distance_m"`
	DirectionID int32     `parquet:"direction_id"`
	Compensated bool      `parquet:"compensated"`
}

// metersPerDegLat and the longitude scale below give a planar distance
// approximation good to well under a metre at stop-to-vehicle ranges.
const metersPerDegLat = 111111.0

// PlanarDistanceM approximates the distance in metres between two
// coordinates, scaling longitude by the cosine of the mean latitude.
func PlanarDistanceM(lat1, lon1, lat2, lon2 float64) float64 {
	meanLat := (lat1 + lat2) / 2 * math.Pi / 180
	dy := (lat2 - lat1) * metersPerDegLat
	dx := (lon2 - lon1) * 111320 * math.Cos(meanLat)
	return math.Sqrt(dx*dx + dy*dy)
}

// NearestStop returns the stop closest to the coordinate and its distance.
// Candidates without coordinates are ignored.
func NearestStop(lat, lon float64, stops []static.StopPoint) (static.StopPoint, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, sp := range stops {
		if sp.Lat == 0 && sp.Lon == 0 {
			continue
		}
		d := PlanarDistanceM(lat, lon, sp.Lat, sp.Lon)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return static.StopPoint{}, 0, false
	}
	return stops[best], bestDist, true
}

type coordKey struct {
	lat, lon float64
}

// AttachNearestStops resolves the closest stop on the observation's route
// for every row, caching lookups per unique coordinate pair. Observations
// on routes unknown to the static index fall back to the full stop set.
func AttachNearestStops(obs []Observation, idx *static.Index, opts Options) []ApproachRow {
	dirRe := regexp.MustCompile(opts.DirectionPattern)
	byRoute := map[string][]static.StopPoint{}
	cache := map[string]map[coordKey]ApproachRow{}

	out := make([]ApproachRow, 0, len(obs))
	for _, o := range obs {
		stops, ok := byRoute[o.RouteID]
		if !ok {
			var names []string
			for _, st := range idx.StopTimes() {
				if st.RouteID == o.RouteID {
					names = append(names, st.StopName)
				}
			}
			stops = idx.Stops(names)
			if len(stops) == 0 {
				stops = idx.Stops(nil)
			}
			byRoute[o.RouteID] = stops
			cache[o.RouteID] = map[coordKey]ApproachRow{}
		}

		ck := coordKey{o.Lat, o.Lon}
		row, hit := cache[o.RouteID][ck]
		if !hit {
			sp, dist, found := NearestStop(o.Lat, o.Lon, stops)
			if !found {
				continue
			}
			row = ApproachRow{
				NearestStop: sp.Name,
				DistanceM:   dist,
			}
			if seq, ok := idx.StopSequenceAt(o.RouteID, sp.Name); ok {
				row.StopSeq = int32(seq)
			} else {
				row.StopSeq = -1
			}
			cache[o.RouteID][ck] = row
		}

		row.SnapshotTS = o.SnapshotTS
		row.VehicleID = o.VehicleID
		row.RouteID = o.RouteID
		row.Lat = o.Lat
		row.Lon = o.Lon
		row.DirectionID = DirectionID(o.RouteID, dirRe)
		row.Compensated = row.DistanceM > opts.MaxStopDistanceM
		out = append(out, row)
	}
	return out
}

// SegmentTrips numbers consecutive trips per vehicle. A new trip starts
// when the stop sequence decreases or jumps forward by more than the
// configured maximum.
func SegmentTrips(rows []ApproachRow, seqJumpMax int32) []ApproachRow {
	byVehicle := map[string][]int{}
	for i, r := range rows {
		byVehicle[r.VehicleID] = append(byVehicle[r.VehicleID], i)
	}
	for _, idxs := range byVehicle {
		sort.Slice(idxs, func(a, b int) bool {
			return rows[idxs[a]].SnapshotTS.Before(rows[idxs[b]].SnapshotTS)
		})
		trip := int32(1)
		prev := int32(-1)
		for _, ix := range idxs {
			seq := rows[ix].StopSeq
			if prev >= 0 && seq >= 0 && (seq < prev || seq-prev > seqJumpMax) {
				trip++
			}
			rows[ix].TripCount = trip
			if seq >= 0 {
				prev = seq
			}
		}
	}
	return rows
}

type approachKey struct {
	vehicle string
	trip    int32
	seq     int32
}

// NearestApproach keeps, per (vehicle, trip, stop sequence), the single
// observation that came closest to the stop, ordered by vehicle, trip and
// stop sequence.
func NearestApproach(rows []ApproachRow) []ApproachRow {
	best := map[approachKey]int{}
	for i, r := range rows {
		k := approachKey{r.VehicleID, r.TripCount, r.StopSeq}
		if j, ok := best[k]; !ok || r.DistanceM < rows[j].DistanceM {
			best[k] = i
		}
	}
	out := make([]ApproachRow, 0, len(best))
	for _, i := range best {
		out = append(out, rows[i])
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].VehicleID != out[b].VehicleID {
			return out[a].VehicleID < out[b].VehicleID
		}
		if out[a].TripCount != out[b].TripCount {
			return out[a].TripCount < out[b].TripCount
		}
		return out[a].StopSeq < out[b].StopSeq
	})
	return out
}
