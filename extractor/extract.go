// Package extractor turns a marketplace search page into a ParsedPhoneData.
package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/phoneprice/market"
	"github.com/use-agent/phoneprice/models"
	"golang.org/x/net/html"
)

// Extractor reads the first result block of a search page.
// It is safe for concurrent use.
type Extractor struct {
	profile  *market.Profile
	matchers *market.Matchers
}

// New compiles the profile's selectors and returns an Extractor.
func New(profile *market.Profile) (*Extractor, error) {
	m, err := profile.Compile()
	if err != nil {
		return nil, err
	}
	return &Extractor{profile: profile, matchers: m}, nil
}

// Extract parses rawHTML fetched from pageURL.
//
// A nil result with a nil error means the page has no result block. Only a
// missing title inside the chosen block is an error; the other fields
// degrade to null or zero.
func (x *Extractor) Extract(rawHTML, pageURL string) (*models.ParsedPhoneData, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, models.NewFetchError(models.ErrCodeExtraction, pageURL, "parse html", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	items := doc.FindMatcher(x.matchers.Item)
	if items.Length() == 0 {
		return nil, nil
	}
	// First result in document order wins.
	item := items.First()

	titleEl := item.FindMatcher(x.matchers.Title).First()
	if titleEl.Length() == 0 {
		return nil, models.NewFetchError(models.ErrCodeExtraction, pageURL, "result block has no title element", nil)
	}

	var price *float64
	if el := item.FindMatcher(x.matchers.Price).First(); el.Length() > 0 {
		price = ParsePrice(el.Text(), x.profile.CurrencySymbol)
	}

	var rating *float64
	if el := item.FindMatcher(x.matchers.Rating).First(); el.Length() > 0 {
		rating = ParseDecimal(el.Text())
	}

	reviews := 0
	if el := item.FindMatcher(x.matchers.Reviews).First(); el.Length() > 0 {
		reviews = ParseCount(el.Text())
	}

	specs := make(map[string]any)
	item.FindMatcher(x.matchers.Spec).Each(func(_ int, s *goquery.Selection) {
		if name, value, ok := SplitSpec(s.Text()); ok {
			specs[name] = value
		}
	})

	return &models.ParsedPhoneData{
		Title: strings.TrimSpace(titleEl.Text()),
		Prices: []models.PriceObservation{{
			Price:    price,
			Currency: x.profile.Currency,
			Source:   x.profile.SiteName,
		}},
		Rating:       rating,
		ReviewsCount: reviews,
		Specs:        specs,
		URL:          pageURL,
	}, nil
}
