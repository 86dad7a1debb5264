package curate

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// StopCol is one timetable column, a stop in route order.
type StopCol struct {
	Seq  int32
	Name string
}

// TimetableRow is one observed run: a vehicle on one trip, with the time
// of its nearest approach at each stop it passed.
type TimetableRow struct {
	VehicleID   string
	TripCount   int32
	DirectionID int32
	Times       map[int32]string
}

// Timetable is the observed-timetable pivot: one row per (vehicle, trip,
// direction), one column per stop, cell = HH:MM:SS of the nearest
// approach.
type Timetable struct {
	Stops []StopCol
	Rows  []TimetableRow
}

type runKey struct {
	vehicle   string
	trip      int32
	direction int32
}

// BuildTimetable pivots nearest-approach rows into an observed timetable.
// Approaches without a resolved stop sequence are excluded.
func BuildTimetable(rows []ApproachRow) *Timetable {
	stops := map[int32]string{}
	runs := map[runKey]map[int32]string{}
	for _, r := range rows {
		if r.StopSeq < 0 {
			continue
		}
		if stops[r.StopSeq] == "" {
			stops[r.StopSeq] = r.NearestStop
		}
		k := runKey{r.VehicleID, r.TripCount, r.DirectionID}
		if runs[k] == nil {
			runs[k] = map[int32]string{}
		}
		if _, ok := runs[k][r.StopSeq]; !ok {
			runs[k][r.StopSeq] = r.SnapshotTS.Format("15:04:05")
		}
	}

	tt := &Timetable{}
	for seq, name := range stops {
		tt.Stops = append(tt.Stops, StopCol{Seq: seq, Name: name})
	}
	sort.Slice(tt.Stops, func(i, j int) bool { return tt.Stops[i].Seq < tt.Stops[j].Seq })
	for k, times := range runs {
		tt.Rows = append(tt.Rows, TimetableRow{
			VehicleID:   k.vehicle,
			TripCount:   k.trip,
			DirectionID: k.direction,
			Times:       times,
		})
	}
	sort.Slice(tt.Rows, func(i, j int) bool {
		if tt.Rows[i].VehicleID != tt.Rows[j].VehicleID {
			return tt.Rows[i].VehicleID < tt.Rows[j].VehicleID
		}
		return tt.Rows[i].TripCount < tt.Rows[j].TripCount
	})
	return tt
}

// WriteCSV writes the timetable with vehicle, trip and direction columns
// followed by one column per stop.
func (tt *Timetable) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating timetable dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating timetable: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	head := []string{"vehicle_id", "trip_count", "direction_id"}
	for _, s := range tt.Stops {
		head = append(head, fmt.Sprintf("%d_%s", s.Seq, s.Name))
	}
	if err := w.Write(head); err != nil {
		return err
	}
	for _, row := range tt.Rows {
		rec := []string{
			row.VehicleID,
			strconv.Itoa(int(row.TripCount)),
			strconv.Itoa(int(row.DirectionID)),
		}
		for _, s := range tt.Stops {
			rec = append(rec, row.Times[s.Seq])
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing timetable: %w", err)
	}
	return nil
}
