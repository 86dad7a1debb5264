package static

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// IndexOptions controls how route and service-day identifiers are derived
// from trip_id. When RoutePattern is empty the route comes from trips.txt.
type IndexOptions struct {
	ServiceDayPattern string
	RoutePattern      string
}

// StopTime is one stop_times.txt row enriched with the stop name and the
// extracted route / service-day identifiers.
type StopTime struct {
	TripID        string
	StopID        string
	StopName      string
	StopHeadsign  string
	ArrivalTime   string
	DepartureTime string
	StopSequence  int
	ServiceDay    string
	RouteID       string
}

// StopPoint is a named stop with coordinates.
type StopPoint struct {
	StopID string
	Name   string
	Lat    float64
	Lon    float64
}

// Index stores the GTFS static tables needed for curation in memory.
type Index struct {
	stopNames   map[string]string
	stopPoints  []StopPoint
	stopTimes   []StopTime
	seqToStop   map[string]map[int]string
	stopToSeq   map[string]map[string]int
	tripToRoute map[string]string
}

// NewIndexFromZip parses stops.txt, trips.txt and stop_times.txt from a
// GTFS static snapshot zip.
func NewIndexFromZip(path string, opts IndexOptions) (*Index, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open static snapshot: %w", err)
	}
	defer zr.Close()

	idx := &Index{
		stopNames:   map[string]string{},
		seqToStop:   map[string]map[int]string{},
		stopToSeq:   map[string]map[string]int{},
		tripToRoute: map[string]string{},
	}

	var serviceDayRe, routeRe *regexp.Regexp
	if opts.ServiceDayPattern != "" {
		if serviceDayRe, err = regexp.Compile(opts.ServiceDayPattern); err != nil {
			return nil, fmt.Errorf("service day pattern: %w", err)
		}
	}
	if opts.RoutePattern != "" {
		if routeRe, err = regexp.Compile(opts.RoutePattern); err != nil {
			return nil, fmt.Errorf("route pattern: %w", err)
		}
	}

	// stops.txt and trips.txt first so stop_times rows can be enriched.
	for _, f := range zr.File {
		switch strings.ToLower(f.Name) {
		case "stops.txt":
			if err := idx.consumeStops(f); err != nil {
				return nil, err
			}
		case "trips.txt":
			if err := idx.consumeTrips(f); err != nil {
				return nil, err
			}
		}
	}
	for _, f := range zr.File {
		if strings.ToLower(f.Name) == "stop_times.txt" {
			if err := idx.consumeStopTimes(f, serviceDayRe, routeRe); err != nil {
				return nil, err
			}
		}
	}
	idx.buildRouteStopMaps()
	return idx, nil
}

func readCSV(f *zip.File) ([][]string, func(string) int, error) {
	r, err := f.Open()
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	rec, err := csvr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rec) == 0 {
		return nil, nil, nil
	}
	head := rec[0]
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				return i
			}
		}
		return -1
	}
	return rec, idx, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (x *Index) consumeStops(f *zip.File) error {
	rec, idx, err := readCSV(f)
	if err != nil || rec == nil {
		return err
	}
	sID := idx("stop_id")
	sN := idx("stop_name")
	sLat := idx("stop_lat")
	sLon := idx("stop_lon")
	for _, row := range rec[1:] {
		id := field(row, sID)
		if id == "" {
			continue
		}
		name := field(row, sN)
		x.stopNames[id] = name
		lat, _ := strconv.ParseFloat(field(row, sLat), 64)
		lon, _ := strconv.ParseFloat(field(row, sLon), 64)
		x.stopPoints = append(x.stopPoints, StopPoint{StopID: id, Name: name, Lat: lat, Lon: lon})
	}
	return nil
}

func (x *Index) consumeTrips(f *zip.File) error {
	rec, idx, err := readCSV(f)
	if err != nil || rec == nil {
		return err
	}
	tID := idx("trip_id")
	rID := idx("route_id")
	for _, row := range rec[1:] {
		if t := field(row, tID); t != "" {
			x.tripToRoute[t] = field(row, rID)
		}
	}
	return nil
}

func (x *Index) consumeStopTimes(f *zip.File, serviceDayRe, routeRe *regexp.Regexp) error {
	rec, idx, err := readCSV(f)
	if err != nil || rec == nil {
		return err
	}
	tID := idx("trip_id")
	sID := idx("stop_id")
	hs := idx("stop_headsign")
	arr := idx("arrival_time")
	dep := idx("departure_time")
	seq := idx("stop_sequence")
	for _, row := range rec[1:] {
		st := StopTime{
			TripID:        field(row, tID),
			StopID:        field(row, sID),
			StopHeadsign:  field(row, hs),
			ArrivalTime:   field(row, arr),
			DepartureTime: field(row, dep),
		}
		if st.TripID == "" || st.StopID == "" {
			continue
		}
		st.StopSequence, _ = strconv.Atoi(field(row, seq))
		st.StopName = x.stopNames[st.StopID]
		if serviceDayRe != nil {
			if m := serviceDayRe.FindStringSubmatch(st.TripID); len(m) > 1 {
				st.ServiceDay = m[1]
			}
		}
		if routeRe != nil {
			if m := routeRe.FindStringSubmatch(st.TripID); len(m) > 1 {
				st.RouteID = m[1]
			}
		} else {
			st.RouteID = x.tripToRoute[st.TripID]
		}
		x.stopTimes = append(x.stopTimes, st)
	}
	return nil
}

// buildRouteStopMaps derives the (route, stop_sequence) <-> stop_name
// mapping, keeping the first occurrence of each combination.
func (x *Index) buildRouteStopMaps() {
	for _, st := range x.stopTimes {
		if st.RouteID == "" {
			continue
		}
		if x.seqToStop[st.RouteID] == nil {
			x.seqToStop[st.RouteID] = map[int]string{}
			x.stopToSeq[st.RouteID] = map[string]int{}
		}
		if _, ok := x.seqToStop[st.RouteID][st.StopSequence]; !ok {
			x.seqToStop[st.RouteID][st.StopSequence] = st.StopName
		}
		if _, ok := x.stopToSeq[st.RouteID][st.StopName]; !ok {
			x.stopToSeq[st.RouteID][st.StopName] = st.StopSequence
		}
	}
}

// StopNameAt maps a route and stop sequence to the stop name, when known.
func (x *Index) StopNameAt(routeID string, stopSequence int) (string, bool) {
	m, ok := x.seqToStop[routeID]
	if !ok {
		return "", false
	}
	name, ok := m[stopSequence]
	return name, ok
}

// StopSequenceAt maps a route and stop name to the stop sequence, when known.
func (x *Index) StopSequenceAt(routeID, stopName string) (int, bool) {
	m, ok := x.stopToSeq[routeID]
	if !ok {
		return 0, false
	}
	seq, ok := m[stopName]
	return seq, ok
}

// Stops returns every stop with coordinates, optionally filtered by name.
func (x *Index) Stops(names []string) []StopPoint {
	if len(names) == 0 {
		out := make([]StopPoint, len(x.stopPoints))
		copy(out, x.stopPoints)
		return out
	}
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}
	var out []StopPoint
	for _, sp := range x.stopPoints {
		if want[sp.Name] {
			out = append(out, sp)
		}
	}
	return out
}

// StopTimes returns all parsed stop_times rows.
func (x *Index) StopTimes() []StopTime {
	return x.stopTimes
}

// Routes returns the route identifiers seen in stop_times, sorted.
func (x *Index) Routes() []string {
	out := make([]string, 0, len(x.seqToStop))
	for r := range x.seqToStop {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
