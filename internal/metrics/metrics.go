package metrics

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	SnapshotsWritten *prometheus.CounterVec // feed_type label
	FetchErrors      *prometheus.CounterVec // feed_type label
	BytesFetched     *prometheus.CounterVec // feed_type label
	EmptyFetches     prometheus.Counter

	ArchivesSealed    prometheus.Counter
	ArchivedSnapshots prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	PollDuration prometheus.Histogram

	PollInterval  prometheus.Gauge // seconds
	ArchiveWindow prometheus.Gauge // seconds

	lastSnapshotEpoch atomic.Int64
}

func NewCollector(pollInterval, archiveWindow time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		SnapshotsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_snapshots_written_total",
			Help: "Total raw snapshots written to the spool.",
		}, []string{"feed_type"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_fetch_errors_total",
			Help: "Total failed feed fetches.",
		}, []string{"feed_type"}),
		BytesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_bytes_fetched_total",
			Help: "Total payload bytes fetched from feeds.",
		}, []string{"feed_type"}),
		EmptyFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_empty_fetches_total",
			Help: "Total fetches that returned an empty body.",
		}),
		ArchivesSealed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_archives_sealed_total",
			Help: "Total raw archives sealed.",
		}),
		ArchivedSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_archived_snapshots_total",
			Help: "Total snapshots moved from spool into archives.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_nats_published_total",
			Help: "Total NATS snapshot notifications published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_poll_duration_seconds",
			Help:    "Duration of one fetch-and-spool cycle across all feeds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 15),
		}),
		PollInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_poll_interval_seconds",
			Help: "Configured poll interval in seconds.",
		}),
		ArchiveWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_archive_window_seconds",
			Help: "Configured archive window in seconds.",
		}),
	}

	reg.MustRegister(
		c.SnapshotsWritten, c.FetchErrors, c.BytesFetched, c.EmptyFetches,
		c.ArchivesSealed, c.ArchivedSnapshots,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.PollDuration,
		c.PollInterval, c.ArchiveWindow,
	)

	c.PollInterval.Set(pollInterval.Seconds())
	c.ArchiveWindow.Set(archiveWindow.Seconds())

	return c
}

func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

// MarkSnapshot records when the most recent snapshot was spooled, for the
// health endpoint.
func (c *Collector) MarkSnapshot(epoch int64) {
	c.lastSnapshotEpoch.Store(epoch)
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

type healthResponse struct {
	Status              string `json:"status"`
	LatestSnapshotEpoch int64  `json:"latest_snapshot_epoch"`
}

func (c *Collector) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := healthResponse{
		Status:              "ok",
		LatestSnapshotEpoch: c.lastSnapshotEpoch.Load(),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// Serve starts an HTTP server exposing /metrics and /health on the given
// address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	mux.HandleFunc("/health", c.handleHealth)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
