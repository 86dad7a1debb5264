package static

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// HeadwayRow is the per-(route, stop) headway summary over one timetable.
type HeadwayRow struct {
	RouteID      string  `parquet:"route_id"`
	StopID       string  `parquet:"stop_id"`
	Samples      int64   `parquet:"samples"`
	MeanHeadwayS float64 `parquet:"mean_headway_s"`
	MedianS      float64 `parquet:"median_headway_s"`
	StdS         float64 `parquet:"std_headway_s"`
	CV           float64 `parquet:"cv_headway"`
	MinHeadwayS  float64 `parquet:"min_headway_s"`
	MaxHeadwayS  float64 `parquet:"max_headway_s"`
}

// DepartureSeconds converts a GTFS HH:MM:SS time (hours may exceed 24) to
// seconds since midnight.
func DepartureSeconds(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("bad time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("bad time %q", s)
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("bad time %q", s)
	}
	return h*3600 + m*60 + sec, nil
}

// HeadwayStats computes scheduled-headway statistics per (route, stop):
// departures at each stop are sorted and differenced, and the diffs
// summarized. Rows are sorted by route then stop.
func (x *Index) HeadwayStats() []HeadwayRow {
	type key struct{ route, stop string }
	departures := map[key][]int{}
	for _, st := range x.stopTimes {
		if st.RouteID == "" || st.DepartureTime == "" {
			continue
		}
		sec, err := DepartureSeconds(st.DepartureTime)
		if err != nil {
			continue
		}
		k := key{st.RouteID, st.StopID}
		departures[k] = append(departures[k], sec)
	}

	rows := make([]HeadwayRow, 0, len(departures))
	for k, secs := range departures {
		if len(secs) < 2 {
			continue
		}
		sort.Ints(secs)
		diffs := make([]float64, 0, len(secs)-1)
		for i := 1; i < len(secs); i++ {
			diffs = append(diffs, float64(secs[i]-secs[i-1]))
		}
		row := HeadwayRow{
			RouteID: k.route,
			StopID:  k.stop,
			Samples: int64(len(diffs)),
		}
		row.MeanHeadwayS = mean(diffs)
		row.MedianS = median(diffs)
		row.StdS = stddev(diffs, row.MeanHeadwayS)
		if row.MeanHeadwayS != 0 {
			row.CV = row.StdS / row.MeanHeadwayS
		}
		row.MinHeadwayS = diffs[0]
		row.MaxHeadwayS = diffs[0]
		for _, d := range diffs {
			if d < row.MinHeadwayS {
				row.MinHeadwayS = d
			}
			if d > row.MaxHeadwayS {
				row.MaxHeadwayS = d
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].RouteID != rows[j].RouteID {
			return rows[i].RouteID < rows[j].RouteID
		}
		return rows[i].StopID < rows[j].StopID
	})
	return rows
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := make([]float64, len(xs))
	copy(s, xs)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func stddev(xs []float64, mu float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, v := range xs {
		d := v - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
