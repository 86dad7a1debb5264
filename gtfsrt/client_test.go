package gtfsrt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchEmptyURL(t *testing.T) {
	c := NewClient(time.Second)
	b, err := c.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != nil {
		t.Errorf("expected nil body for empty url, got %d bytes", len(b))
	}
}

func TestFetchOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("feed-bytes"))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	b, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "feed-bytes" {
		t.Errorf("expected feed-bytes, got %q", b)
	}
}

func TestFetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestFetchContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(time.Second)
	if _, err := c.Fetch(ctx, srv.URL); err == nil {
		t.Error("expected error for cancelled context")
	}
}
