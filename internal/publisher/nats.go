package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher announces freshly spooled snapshots so downstream
// consumers can react without polling the lake.
type NATSPublisher struct {
	nc      *nats.Conn
	metrics PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url string, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("gtfs-lake-ingest"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// SnapshotMessage describes one raw snapshot written to the spool.
type SnapshotMessage struct {
	Agency    string    `json:"agency"`
	FeedType  string    `json:"feedType"`
	Path      string    `json:"path"`
	Bytes     int       `json:"bytes"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishSnapshot publishes on gtfs.snapshots.<agency>.<feed_type>.
func (p *NATSPublisher) PublishSnapshot(msg SnapshotMessage) error {
	subject := fmt.Sprintf("gtfs.snapshots.%s.%s", subjectToken(msg.Agency), subjectToken(msg.FeedType))
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// ArchiveMessage describes one sealed raw archive.
type ArchiveMessage struct {
	Agency    string    `json:"agency"`
	Path      string    `json:"path"`
	Snapshots int       `json:"snapshots"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishArchive publishes on gtfs.archives.<agency>.
func (p *NATSPublisher) PublishArchive(msg ArchiveMessage) error {
	subject := fmt.Sprintf("gtfs.archives.%s", subjectToken(msg.Agency))
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
