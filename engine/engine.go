package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/use-agent/phoneprice/config"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier ("http" or "browser").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)

	// Close releases any resources held by the engine.
	Close() error
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL       string
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	StatusCode int
	FinalURL   string
	EngineName string
}

// StatusError is returned when the remote answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// New returns the engine selected by fetchCfg.Engine.
func New(fetchCfg config.FetchConfig, browserCfg config.BrowserConfig) (Engine, error) {
	switch fetchCfg.Engine {
	case "", "http":
		return NewHTTPEngine(fetchCfg.Proxy)
	case "browser":
		return NewRodEngine(browserCfg, fetchCfg.Proxy), nil
	default:
		return nil, fmt.Errorf("engine: unknown engine %q (want http or browser)", fetchCfg.Engine)
	}
}
