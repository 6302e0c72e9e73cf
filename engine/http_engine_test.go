package engine

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/phoneprice/config"
)

func newTestHTTPEngine(t *testing.T) *HTTPEngine {
	t.Helper()
	e, err := NewHTTPEngine("")
	if err != nil {
		t.Fatalf("NewHTTPEngine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestHTTPEngine_Fetch(t *testing.T) {
	var gotUA, gotExtra string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotExtra = r.Header.Get("X-Extra")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	e := newTestHTTPEngine(t)
	res, err := e.Fetch(context.Background(), &FetchRequest{
		URL:       srv.URL + "/search?text=x",
		UserAgent: "TestAgent/1.0",
		Headers:   map[string]string{"X-Extra": "1"},
		Timeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(res.HTML, "ok") {
		t.Errorf("HTML = %q", res.HTML)
	}
	if res.StatusCode != http.StatusOK || res.EngineName != "http" {
		t.Errorf("result = %+v", res)
	}
	if gotUA != "TestAgent/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotExtra != "1" {
		t.Errorf("X-Extra = %q", gotExtra)
	}
}

func TestHTTPEngine_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := newTestHTTPEngine(t)
	_, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL})

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", se.StatusCode)
	}
}

func TestHTTPEngine_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	e := newTestHTTPEngine(t)
	_, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL, Timeout: 50 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestHTTPEngine_BodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := []byte(strings.Repeat("a", 1<<20))
		for i := 0; i < 12; i++ {
			_, _ = w.Write(chunk)
		}
	}))
	defer srv.Close()

	e := newTestHTTPEngine(t)
	res, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.HTML) != maxBody {
		t.Errorf("len(HTML) = %d; want %d", len(res.HTML), maxBody)
	}
}

func TestNewHTTPEngine_RejectsUnsupportedProxy(t *testing.T) {
	if _, err := NewHTTPEngine("socks5://127.0.0.1:1080"); err == nil {
		t.Error("expected error for socks5 proxy")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		engine  string
		want    string
		wantErr bool
	}{
		{"", "http", false},
		{"http", "http", false},
		{"browser", "browser", false},
		{"carrier-pigeon", "", true},
	}
	for _, tt := range tests {
		e, err := New(config.FetchConfig{Engine: tt.engine}, config.BrowserConfig{})
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%q): expected error", tt.engine)
			}
			continue
		}
		if err != nil {
			t.Errorf("New(%q): %v", tt.engine, err)
			continue
		}
		if e.Name() != tt.want {
			t.Errorf("New(%q).Name() = %q; want %q", tt.engine, e.Name(), tt.want)
		}
		// The browser engine is lazy, so Close must not need Chromium.
		if err := e.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}
}

func TestBlockedSet(t *testing.T) {
	got := blockedSet([]string{"Image", "Font", "Bogus"})
	if len(got) != 2 {
		t.Errorf("len(blockedSet) = %d; want 2", len(got))
	}
}

func TestConnectBrowser_KillsOnFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	killed := false
	browser, err := connectBrowser("ws://"+addr, func() { killed = true })
	if err == nil {
		t.Fatalf("expected connect error, got browser %v", browser)
	}
	if !killed {
		t.Error("launched process must be killed when connect fails")
	}
}
