package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/gtfs-lake/config"
	"github.com/theoremus-urban-solutions/gtfs-lake/internal/publisher"
	"github.com/theoremus-urban-solutions/gtfs-lake/lake"
)

type capturePublisher struct {
	mu       sync.Mutex
	msgs     []publisher.SnapshotMessage
	archives []publisher.ArchiveMessage
}

func (p *capturePublisher) PublishSnapshot(msg publisher.SnapshotMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *capturePublisher) PublishArchive(msg publisher.ArchiveMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.archives = append(p.archives, msg)
	return nil
}

func testFeed(name, tuURL, vpURL string) config.Feed {
	return config.Feed{
		Name: name,
		GTFSRT: config.GTFSRTConfig{
			TripUpdatesURL:      tuURL,
			VehiclePositionsURL: vpURL,
			PollIntervalMS:      20000,
			TimeoutMS:           1000,
		},
	}
}

func TestPollOnceSpoolsAllFeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	l := lake.New(t.TempDir())
	pub := &capturePublisher{}
	p := NewPoller(l, testFeed("metro", srv.URL+"/tu", srv.URL+"/vp"), 24*time.Hour, nil, pub)
	if err := l.EnsureDirs("metro"); err != nil {
		t.Fatal(err)
	}

	p.pollOnce(context.Background())

	entries, err := os.ReadDir(l.RawSpoolDir("metro"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 spooled snapshots, got %d", len(entries))
	}
	for _, e := range entries {
		if _, err := lake.ParseSnapshotName(e.Name()); err != nil {
			t.Errorf("non-canonical spool name %s: %v", e.Name(), err)
		}
	}
	if len(pub.msgs) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(pub.msgs))
	}
}

func TestPollOnceSurvivesFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tu" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	l := lake.New(t.TempDir())
	p := NewPoller(l, testFeed("metro", srv.URL+"/tu", srv.URL+"/vp"), 24*time.Hour, nil, nil)
	if err := l.EnsureDirs("metro"); err != nil {
		t.Fatal(err)
	}

	p.pollOnce(context.Background())

	entries, err := os.ReadDir(l.RawSpoolDir("metro"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected the healthy feed to spool, got %d entries", len(entries))
	}
}

func TestPollOnceSkipsEmptyBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	l := lake.New(t.TempDir())
	p := NewPoller(l, testFeed("metro", srv.URL, ""), 24*time.Hour, nil, nil)
	if err := l.EnsureDirs("metro"); err != nil {
		t.Fatal(err)
	}

	p.pollOnce(context.Background())

	entries, err := os.ReadDir(l.RawSpoolDir("metro"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("empty bodies must not be spooled, got %d entries", len(entries))
	}
}

func TestSealAfterRestartInSameWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	l := lake.New(t.TempDir())
	window := 24 * time.Hour

	// First process: spool one snapshot and seal on shutdown.
	p1 := NewPoller(l, testFeed("metro", "", srv.URL), window, nil, nil)
	if err := l.EnsureDirs("metro"); err != nil {
		t.Fatal(err)
	}
	p1.windowStart = lake.WindowStart(time.Now().UTC(), window)
	p1.pollOnce(context.Background())
	if err := p1.sealSpool(); err != nil {
		t.Fatalf("first seal failed: %v", err)
	}

	// Restart inside the same archive window: the next seal must land on
	// its own archive instead of contesting the first one.
	p2 := NewPoller(l, testFeed("metro", "", srv.URL), window, nil, nil)
	p2.windowStart = p1.windowStart
	p2.pollOnce(context.Background())
	if err := p2.sealSpool(); err != nil {
		t.Fatalf("seal after restart failed: %v", err)
	}

	archives, err := lake.ListArchives(l.RawTarDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(archives) != 2 {
		t.Fatalf("expected 2 archives, got %v", archives)
	}
	entries, err := os.ReadDir(l.RawSpoolDir("metro"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("snapshots stranded in spool: %d", len(entries))
	}
}

func TestRollWindowAdvancesPastSealError(t *testing.T) {
	l := lake.New(t.TempDir())
	window := time.Hour
	p := NewPoller(l, testFeed("metro", "", ""), window, nil, nil)
	// Spool dir missing makes the seal fail; the window pointer must
	// still move on so later rolls are not stuck on the old window.
	p.windowStart = lake.WindowStart(time.Now().UTC().Add(-2*window), window)
	before := p.windowStart

	p.rollWindow()

	if !p.windowStart.After(before) {
		t.Errorf("window pointer did not advance: %v", p.windowStart)
	}
}

func TestRunSealsOnShutdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	l := lake.New(t.TempDir())
	pub := &capturePublisher{}
	p := NewPoller(l, testFeed("metro", "", srv.URL), 24*time.Hour, nil, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// Give the initial poll time to spool, then stop.
	time.Sleep(200 * time.Millisecond)
	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	archives, err := lake.ListArchives(l.RawTarDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(archives) != 1 {
		t.Fatalf("expected 1 sealed archive, got %v", archives)
	}
	var names []string
	err = lake.Walk(archives[0], func(name string, data []byte) error {
		names = append(names, name)
		if string(data) != "payload" {
			t.Errorf("archived payload mismatch: %q", data)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 {
		t.Errorf("expected 1 archived snapshot, got %v", names)
	}
	if len(pub.archives) != 1 || pub.archives[0].Snapshots != 1 {
		t.Errorf("expected one archive notification, got %+v", pub.archives)
	}
}
