// Package scraper turns a model name into parsed marketplace data:
// fetch the search page, extract the first result, aggregate prices.
package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/use-agent/phoneprice/aggregator"
	"github.com/use-agent/phoneprice/extractor"
	"github.com/use-agent/phoneprice/market"
	"github.com/use-agent/phoneprice/models"
)

// Pipeline runs Fetcher, Extractor and Aggregator for one model.
// It is safe for concurrent use.
type Pipeline struct {
	fetcher   *Fetcher
	extractor *extractor.Extractor
	source    string
}

// NewPipeline creates a Pipeline for the given marketplace profile.
func NewPipeline(fetcher *Fetcher, profile *market.Profile) (*Pipeline, error) {
	x, err := extractor.New(profile)
	if err != nil {
		return nil, err
	}
	return &Pipeline{fetcher: fetcher, extractor: x, source: profile.Source}, nil
}

// Parse fetches and parses the search page for model.
//
// Errors are *models.Error: FETCH_FAILED or FETCH_TIMEOUT when the page
// could not be retrieved, NOT_FOUND when it has no result block, and
// EXTRACTION_FAILED when the result block is malformed. A panic anywhere
// below is recovered and reported as EXTRACTION_FAILED.
func (p *Pipeline) Parse(ctx context.Context, model string) (data *models.ParsedPhoneData, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline panic recovered", "model", model, "panic", r)
			data = nil
			err = models.NewError(models.ErrCodeExtraction, "unexpected parser failure", fmt.Errorf("panic: %v", r))
		}
	}()

	page, err := p.fetcher.Fetch(ctx, model)
	if err != nil {
		return nil, err
	}

	data, err = p.extractor.Extract(page.HTML, page.URL)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, models.NewFetchError(models.ErrCodeNotFound, page.URL,
			fmt.Sprintf("no results found for %q", model), nil)
	}

	data.Model = model
	data.Source = p.source
	aggregator.Aggregate(data)
	return data, nil
}
