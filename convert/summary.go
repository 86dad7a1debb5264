package convert

import (
	"fmt"
	"sort"
	"strings"
)

// FeedCounts tallies processed snapshots per feed type for one agency.
type FeedCounts struct {
	TripUpdates      int
	VehiclePositions int
}

// Summary reports what a conversion run saw and produced.
type Summary struct {
	Entries   int
	Processed int
	Skipped   int
	ByAgency  map[string]FeedCounts
	Written   []string
}

func NewSummary() Summary {
	return Summary{ByAgency: map[string]FeedCounts{}}
}

// Detect records a snapshot sighting for an agency and feed type.
func (s *Summary) Detect(agency, feedType string) {
	fc := s.ByAgency[agency]
	switch feedType {
	case "trip_updates":
		fc.TripUpdates++
	case "vehicle_positions":
		fc.VehiclePositions++
	}
	s.ByAgency[agency] = fc
}

// Agencies returns the detected agency names, sorted.
func (s Summary) Agencies() []string {
	out := make([]string, 0, len(s.ByAgency))
	for a := range s.ByAgency {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// String renders the processing summary in a log-friendly block.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "entries=%d processed=%d skipped=%d\n", s.Entries, s.Processed, s.Skipped)
	for _, a := range s.Agencies() {
		fc := s.ByAgency[a]
		fmt.Fprintf(&b, "  %s: trip_updates=%d vehicle_positions=%d\n", a, fc.TripUpdates, fc.VehiclePositions)
	}
	return b.String()
}
