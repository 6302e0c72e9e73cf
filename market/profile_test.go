package market

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSearchURLFor(t *testing.T) {
	p := Default()
	got := p.SearchURLFor("iPhone 13 Pro")

	if !strings.HasPrefix(got, "https://market.yandex.ru/search?text=iPhone+13+Pro&") {
		t.Errorf("unexpected search url prefix: %s", got)
	}
	if !strings.HasSuffix(got, "&suggest_text=iPhone+13+Pro") {
		t.Errorf("query not substituted into suggest_text: %s", got)
	}
	if strings.Contains(got, QueryPlaceholder) {
		t.Errorf("placeholder left in url: %s", got)
	}
}

func TestSearchURLFor_EscapesReservedCharacters(t *testing.T) {
	p := &Profile{SearchURL: "https://example.com/s?q={query}"}
	got := p.SearchURLFor("Galaxy S23+ & Co")
	want := "https://example.com/s?q=Galaxy+S23%2B+%26+Co"
	if got != want {
		t.Errorf("SearchURLFor = %q; want %q", got, want)
	}
}

func TestDefaultProfileValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default profile invalid: %v", err)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yml")
	content := `
site_name: Test Market
search_url: "https://shop.test/find?q={query}"
selectors:
  item: "div.result"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.SiteName != "Test Market" {
		t.Errorf("SiteName = %q", p.SiteName)
	}
	if p.Selectors.Item != "div.result" {
		t.Errorf("Item selector = %q", p.Selectors.Item)
	}
	if p.Selectors.Title != Default().Selectors.Title {
		t.Errorf("Title selector should keep default, got %q", p.Selectors.Title)
	}
	if p.Currency != "RUB" {
		t.Errorf("Currency should keep default, got %q", p.Currency)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing placeholder", `search_url: "https://shop.test/find"`},
		{"bad selector", "selectors:\n  price: \"[[[\"\n"},
		{"bad yaml", "selectors: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "profile.yml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if p.Source != "yandex_market" {
		t.Errorf("Source = %q", p.Source)
	}
}

func TestLoad_MergesHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yml")
	content := `
headers:
  X-Market-Region: "213"
  Accept-Language: "en-US"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Headers["X-Market-Region"] != "213" {
		t.Errorf("added header = %q", p.Headers["X-Market-Region"])
	}
	if p.Headers["Accept-Language"] != "en-US" {
		t.Errorf("overridden header = %q", p.Headers["Accept-Language"])
	}
	if !strings.HasPrefix(p.Headers["Accept"], "text/html") {
		t.Errorf("default Accept lost: %q", p.Headers["Accept"])
	}
}
