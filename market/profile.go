// Package market describes the marketplace the service scrapes: how its
// search URL is built, which identity header is sent, and which element
// markers delimit a search result.
package market

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// QueryPlaceholder is replaced by the encoded model name in SearchURL.
const QueryPlaceholder = "{query}"

const (
	defaultSearchURL = "https://market.yandex.ru/search?text={query}&cvredirect=2&hid=91491&srnum=2393&was_redir=1&rt=9&rs=eJwzYgpgBAABcwCG&suggest_text={query}"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Selectors are the CSS markers the extractor looks for.
type Selectors struct {
	Item    string `yaml:"item"`
	Title   string `yaml:"title"`
	Price   string `yaml:"price"`
	Rating  string `yaml:"rating"`
	Reviews string `yaml:"reviews"`
	Spec    string `yaml:"spec"`
}

// Profile is one marketplace target.
type Profile struct {
	// Source is the machine tag stored in ParsedPhoneData.source.
	Source string `yaml:"source"`

	// SiteName is the human name stored in each price observation.
	SiteName string `yaml:"site_name"`

	Currency       string `yaml:"currency"`
	CurrencySymbol string `yaml:"currency_symbol"`

	// SearchURL must contain {query} at least once.
	SearchURL string `yaml:"search_url"`
	UserAgent string `yaml:"user_agent"`

	// Headers are sent with every search request. Keys from a profile file
	// are added to the defaults.
	Headers map[string]string `yaml:"headers"`

	Selectors Selectors `yaml:"selectors"`
}

// Default returns the Yandex Market profile.
func Default() *Profile {
	return &Profile{
		Source:         "yandex_market",
		SiteName:       "Yandex Market",
		Currency:       "RUB",
		CurrencySymbol: "₽",
		SearchURL:      defaultSearchURL,
		UserAgent:      defaultUserAgent,
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
		},
		Selectors: Selectors{
			Item:    "[data-autotest-id='product-snippet']",
			Title:   "[data-autotest-id='snippet-title']",
			Price:   "[data-autotest-id='snippet-price']",
			Rating:  "[data-autotest-id='rating']",
			Reviews: "[data-autotest-id='reviews']",
			Spec:    "[data-autotest-id='snippet-spec']",
		},
	}
}

// Load returns the default profile overlaid with the YAML file at path.
// Fields absent from the file keep their defaults. An empty path returns
// the default profile.
func Load(path string) (*Profile, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("market: read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("market: parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the URL template and that every selector compiles.
func (p *Profile) Validate() error {
	if !strings.Contains(p.SearchURL, QueryPlaceholder) {
		return fmt.Errorf("market: search_url must contain %s", QueryPlaceholder)
	}
	if _, err := url.Parse(strings.ReplaceAll(p.SearchURL, QueryPlaceholder, "x")); err != nil {
		return fmt.Errorf("market: invalid search_url: %w", err)
	}
	_, err := p.Compile()
	return err
}

// SearchURLFor builds the search URL for a model name. The name is
// form-encoded, so spaces become '+'.
func (p *Profile) SearchURLFor(model string) string {
	return strings.ReplaceAll(p.SearchURL, QueryPlaceholder, url.QueryEscape(model))
}

// Matchers holds the compiled selectors.
type Matchers struct {
	Item    cascadia.Selector
	Title   cascadia.Selector
	Price   cascadia.Selector
	Rating  cascadia.Selector
	Reviews cascadia.Selector
	Spec    cascadia.Selector
}

// Compile compiles every selector of the profile.
func (p *Profile) Compile() (*Matchers, error) {
	var m Matchers
	for _, s := range []struct {
		name string
		src  string
		dst  *cascadia.Selector
	}{
		{"item", p.Selectors.Item, &m.Item},
		{"title", p.Selectors.Title, &m.Title},
		{"price", p.Selectors.Price, &m.Price},
		{"rating", p.Selectors.Rating, &m.Rating},
		{"reviews", p.Selectors.Reviews, &m.Reviews},
		{"spec", p.Selectors.Spec, &m.Spec},
	} {
		sel, err := cascadia.Compile(s.src)
		if err != nil {
			return nil, fmt.Errorf("market: selector %s %q: %w", s.name, s.src, err)
		}
		*s.dst = sel
	}
	return &m, nil
}
