package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/phoneprice/engine"
	"github.com/use-agent/phoneprice/market"
	"github.com/use-agent/phoneprice/models"
)

// Page is a fetched marketplace search page.
type Page struct {
	// URL is the search URL that was requested.
	URL string

	// FinalURL is where the request ended up after redirects.
	FinalURL string

	HTML       string
	StatusCode int
	Engine     string
}

// Fetcher retrieves the search page for a model name. It issues exactly one
// request per call; there are no retries.
type Fetcher struct {
	engine  engine.Engine
	profile *market.Profile
	timeout time.Duration
}

// NewFetcher creates a Fetcher. timeout bounds each request.
func NewFetcher(eng engine.Engine, profile *market.Profile, timeout time.Duration) *Fetcher {
	return &Fetcher{engine: eng, profile: profile, timeout: timeout}
}

// Fetch builds the search URL for model and retrieves it. Every failure is
// returned as a *models.Error with code FETCH_TIMEOUT or FETCH_FAILED and the
// requested URL attached.
func (f *Fetcher) Fetch(ctx context.Context, model string) (*Page, error) {
	searchURL := f.profile.SearchURLFor(model)

	start := time.Now()
	res, err := f.engine.Fetch(ctx, &engine.FetchRequest{
		URL:       searchURL,
		UserAgent: f.profile.UserAgent,
		Headers:   f.profile.Headers,
		Timeout:   f.timeout,
	})
	if err != nil {
		slog.Warn("fetch failed",
			"model", model,
			"url", searchURL,
			"engine", f.engine.Name(),
			"error", err,
		)
		return nil, categorizeError(err, searchURL, f.timeout)
	}

	slog.Debug("fetched search page",
		"model", model,
		"url", searchURL,
		"engine", res.EngineName,
		"status", res.StatusCode,
		"final_url", res.FinalURL,
		"bytes", len(res.HTML),
		"duration", time.Since(start),
	)

	return &Page{
		URL:        searchURL,
		FinalURL:   res.FinalURL,
		HTML:       res.HTML,
		StatusCode: res.StatusCode,
		Engine:     res.EngineName,
	}, nil
}

// categorizeError wraps raw engine errors into typed fetch errors.
func categorizeError(err error, url string, timeout time.Duration) *models.Error {
	var se *engine.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewFetchError(models.ErrCodeTimeout, url,
			fmt.Sprintf("request timed out after %s", timeout), err)
	case errors.Is(err, context.Canceled):
		return models.NewFetchError(models.ErrCodeFetchFailed, url, "request canceled", err)
	case errors.As(err, &se):
		return models.NewFetchError(models.ErrCodeFetchFailed, url,
			fmt.Sprintf("marketplace returned HTTP %d", se.StatusCode), nil)
	default:
		return models.NewFetchError(models.ErrCodeFetchFailed, url, "request failed", err)
	}
}
