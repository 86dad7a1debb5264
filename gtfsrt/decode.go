package gtfsrt

import (
	"fmt"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const dateLayout = "20060102"

// ParseFeed decodes a raw GTFS-RT payload. The binary protobuf encoding is
// tried first; JSON-encoded snapshots (protojson) are accepted as a fallback
// so older archives remain readable.
func ParseFeed(b []byte) (*gtfsrtpb.FeedMessage, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(b, &fm); err == nil {
		return &fm, nil
	}
	opts := protojson.UnmarshalOptions{DiscardUnknown: true}
	if err := opts.Unmarshal(b, &fm); err != nil {
		return nil, fmt.Errorf("payload is neither protobuf nor protojson: %w", err)
	}
	return &fm, nil
}

// HeaderTimestamp returns the feed header timestamp, falling back to the
// first entity timestamp when the header carries none. Returns 0 if no
// timestamp is present at all.
func HeaderTimestamp(fm *gtfsrtpb.FeedMessage) int64 {
	if fm.Header != nil && fm.Header.Timestamp != nil {
		return int64(*fm.Header.Timestamp)
	}
	for _, e := range fm.Entity {
		if e.TripUpdate != nil && e.TripUpdate.Timestamp != nil {
			return int64(*e.TripUpdate.Timestamp)
		}
		if e.Vehicle != nil && e.Vehicle.Timestamp != nil {
			return int64(*e.Vehicle.Timestamp)
		}
	}
	return 0
}

// DecodeVehiclePositions flattens the VehiclePosition entities of a feed
// into bronze rows. snapshotTS keys the observation; agency labels the feed.
func DecodeVehiclePositions(fm *gtfsrtpb.FeedMessage, agency string, snapshotTS time.Time) []VehiclePositionRow {
	rows := make([]VehiclePositionRow, 0, len(fm.Entity))
	for _, e := range fm.Entity {
		v := e.Vehicle
		if v == nil {
			continue
		}
		row := VehiclePositionRow{
			SnapshotTS: snapshotTS,
			Agency:     agency,
			DateStr:    snapshotTS.Format(dateLayout),
		}
		if e.Id != nil {
			row.EntityID = *e.Id
		}
		if v.Vehicle != nil && v.Vehicle.Id != nil {
			row.VehicleID = *v.Vehicle.Id
		}
		if v.Trip != nil {
			if v.Trip.TripId != nil {
				row.TripID = *v.Trip.TripId
			}
			if v.Trip.RouteId != nil {
				row.RouteID = *v.Trip.RouteId
			}
		}
		if v.Position != nil {
			if v.Position.Latitude != nil {
				row.Lat = float64(*v.Position.Latitude)
			}
			if v.Position.Longitude != nil {
				row.Lon = float64(*v.Position.Longitude)
			}
			if v.Position.Bearing != nil {
				row.Bearing = float64(*v.Position.Bearing)
			}
			if v.Position.Speed != nil {
				row.Speed = float64(*v.Position.Speed)
			}
		}
		if v.CurrentStopSequence != nil {
			row.CurrentStopSequence = int32(*v.CurrentStopSequence)
		}
		if v.CurrentStatus != nil {
			row.CurrentStatus = v.CurrentStatus.String()
		}
		if v.Timestamp != nil {
			row.VehicleTimestamp = int64(*v.Timestamp)
		}
		rows = append(rows, row)
	}
	return rows
}

// DecodeTripUpdates flattens the TripUpdate entities of a feed into bronze
// rows, one per entity.
func DecodeTripUpdates(fm *gtfsrtpb.FeedMessage, agency string, snapshotTS time.Time) []TripUpdateRow {
	rows := make([]TripUpdateRow, 0, len(fm.Entity))
	for _, e := range fm.Entity {
		tu := e.TripUpdate
		if tu == nil {
			continue
		}
		row := TripUpdateRow{
			SnapshotTS: snapshotTS,
			Agency:     agency,
			DateStr:    snapshotTS.Format(dateLayout),
		}
		if e.Id != nil {
			row.EntityID = *e.Id
		}
		if tu.Trip != nil {
			if tu.Trip.TripId != nil {
				row.TripID = *tu.Trip.TripId
			}
			if tu.Trip.RouteId != nil {
				row.RouteID = *tu.Trip.RouteId
			}
			if tu.Trip.StartDate != nil {
				row.StartDate = *tu.Trip.StartDate
			}
			if tu.Trip.StartTime != nil {
				row.StartTime = *tu.Trip.StartTime
			}
		}
		if tu.Vehicle != nil && tu.Vehicle.Id != nil {
			row.VehicleID = *tu.Vehicle.Id
		}
		if tu.Delay != nil {
			row.Delay = *tu.Delay
		}
		if tu.Timestamp != nil {
			row.FeedTimestamp = int64(*tu.Timestamp)
		}
		rows = append(rows, row)
	}
	return rows
}
