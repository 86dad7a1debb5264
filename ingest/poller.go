package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/gtfs-lake/config"
	"github.com/theoremus-urban-solutions/gtfs-lake/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfs-lake/internal/metrics"
	"github.com/theoremus-urban-solutions/gtfs-lake/internal/publisher"
	"github.com/theoremus-urban-solutions/gtfs-lake/lake"
)

// SnapshotPublisher receives a notification for every spooled snapshot
// and every sealed archive.
type SnapshotPublisher interface {
	PublishSnapshot(msg publisher.SnapshotMessage) error
	PublishArchive(msg publisher.ArchiveMessage) error
}

// Poller fetches every configured feed on a fixed cadence and writes the
// raw payloads into the lake spool. Poll ticks never drift: a slow cycle
// only delays its own snapshots, never the schedule.
type Poller struct {
	lake      lake.Lake
	client    *gtfsrt.Client
	feed      config.Feed
	interval  time.Duration
	window    time.Duration
	collector *metrics.Collector
	pub       SnapshotPublisher

	windowStart time.Time
}

// NewPoller builds a poller for one agency feed. collector and pub may be
// nil.
func NewPoller(l lake.Lake, feed config.Feed, window time.Duration, collector *metrics.Collector, pub SnapshotPublisher) *Poller {
	interval := time.Duration(feed.GTFSRT.PollIntervalMS) * time.Millisecond
	timeout := time.Duration(feed.GTFSRT.TimeoutMS) * time.Millisecond
	return &Poller{
		lake:      l,
		client:    gtfsrt.NewClient(timeout),
		feed:      feed,
		interval:  interval,
		window:    window,
		collector: collector,
		pub:       pub,
	}
}

// Run polls until ctx is cancelled. The spool is sealed whenever the
// archive window rolls over and once more on shutdown, so raw payloads
// always end up in an immutable archive.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.lake.EnsureDirs(p.feed.Name); err != nil {
		return err
	}
	p.windowStart = lake.WindowStart(time.Now().UTC(), p.window)
	log.Printf("[%s] polling every %s, archive window %s", p.feed.Name, p.interval, p.window)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			if err := p.sealSpool(); err != nil {
				log.Printf("[%s] sealing on shutdown: %v", p.feed.Name, err)
			}
			return ctx.Err()
		case <-ticker.C:
			p.rollWindow()
			p.pollOnce(ctx)
		}
	}
}

// pollOnce fetches all configured endpoints of the feed concurrently and
// spools whatever arrives. Individual fetch failures are logged and
// counted, never fatal.
func (p *Poller) pollOnce(ctx context.Context) {
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for feedType, url := range map[gtfsrt.FeedType]string{
		gtfsrt.FeedTripUpdates:      p.feed.GTFSRT.TripUpdatesURL,
		gtfsrt.FeedVehiclePositions: p.feed.GTFSRT.VehiclePositionsURL,
		gtfsrt.FeedServiceAlerts:    p.feed.GTFSRT.ServiceAlertsURL,
	} {
		if url == "" {
			continue
		}
		feedType, url := feedType, url
		g.Go(func() error {
			p.fetchAndSpool(ctx, feedType, url)
			return nil
		})
	}
	g.Wait()
	if p.collector != nil {
		p.collector.PollDuration.Observe(time.Since(start).Seconds())
	}
}

func (p *Poller) fetchAndSpool(ctx context.Context, feedType gtfsrt.FeedType, url string) {
	body, err := p.client.Fetch(ctx, url)
	if err != nil {
		log.Printf("[%s] fetching %s: %v", p.feed.Name, feedType, err)
		if p.collector != nil {
			p.collector.FetchErrors.WithLabelValues(string(feedType)).Inc()
		}
		return
	}
	if len(body) == 0 {
		if p.collector != nil {
			p.collector.EmptyFetches.Inc()
		}
		return
	}

	ts := time.Now().UTC()
	name := lake.SnapshotName(string(feedType), p.feed.Name, ts)
	path, err := lake.WriteSnapshot(p.lake.RawSpoolDir(p.feed.Name), name, body)
	if err != nil {
		log.Printf("[%s] spooling %s: %v", p.feed.Name, name, err)
		return
	}
	if p.collector != nil {
		p.collector.SnapshotsWritten.WithLabelValues(string(feedType)).Inc()
		p.collector.BytesFetched.WithLabelValues(string(feedType)).Add(float64(len(body)))
		p.collector.MarkSnapshot(ts.Unix())
	}
	if p.pub != nil {
		if err := p.pub.PublishSnapshot(publisher.SnapshotMessage{
			Agency:    p.feed.Name,
			FeedType:  string(feedType),
			Path:      path,
			Bytes:     len(body),
			Timestamp: ts,
		}); err != nil {
			log.Printf("[%s] publishing snapshot notification: %v", p.feed.Name, err)
		}
	}
}

// rollWindow seals the spool when the current time has crossed into a new
// archive window. The window pointer advances regardless of seal outcome:
// a failed seal is retried on the next roll, not wedged on the old window.
func (p *Poller) rollWindow() {
	now := lake.WindowStart(time.Now().UTC(), p.window)
	if !now.After(p.windowStart) {
		return
	}
	prev := p.windowStart
	p.windowStart = now
	if err := p.sealSpool(); err != nil {
		log.Printf("[%s] sealing window %s: %v", p.feed.Name, prev.Format(time.RFC3339), err)
	}
}

func (p *Poller) sealSpool() error {
	tarPath := p.lake.NextArchivePath(p.feed.Name, time.Now().UTC())
	n, err := lake.Seal(p.lake.RawSpoolDir(p.feed.Name), tarPath)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	log.Printf("[%s] sealed %d snapshots into %s", p.feed.Name, n, tarPath)
	if p.collector != nil {
		p.collector.ArchivesSealed.Inc()
		p.collector.ArchivedSnapshots.Add(float64(n))
	}
	if p.pub != nil {
		if err := p.pub.PublishArchive(publisher.ArchiveMessage{
			Agency:    p.feed.Name,
			Path:      tarPath,
			Snapshots: n,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			log.Printf("[%s] publishing archive notification: %v", p.feed.Name, err)
		}
	}
	return nil
}

// RunAll polls every feed in cfg until ctx is cancelled. It returns once
// all pollers have stopped.
func RunAll(ctx context.Context, cfg *config.AppConfig, collector *metrics.Collector, pub SnapshotPublisher) error {
	if len(cfg.Feeds) == 0 {
		return fmt.Errorf("no feeds configured")
	}
	l := lake.New(cfg.Lake.Root)
	window := time.Duration(cfg.Lake.ArchiveWindowHours) * time.Hour
	g, ctx := errgroup.WithContext(ctx)
	for _, feed := range cfg.Feeds {
		feed := feed
		g.Go(func() error {
			err := NewPoller(l, feed, window, collector, pub).Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
