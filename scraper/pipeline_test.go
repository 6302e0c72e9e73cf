package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/phoneprice/aggregator"
	"github.com/use-agent/phoneprice/engine"
	"github.com/use-agent/phoneprice/market"
	"github.com/use-agent/phoneprice/models"
)

const resultPage = `<html><body>
<div data-autotest-id="product-snippet">
  <span data-autotest-id="snippet-title">Samsung Galaxy S23</span>
  <span data-autotest-id="snippet-price">74 990 ₽</span>
  <span data-autotest-id="rating">4,7</span>
  <span data-autotest-id="reviews">312 отзывов</span>
  <div data-autotest-id="snippet-spec">Диагональ: 6.1</div>
</div>
</body></html>`

// testProfile points the default profile at srv.
func testProfile(srv *httptest.Server) *market.Profile {
	p := market.Default()
	p.SearchURL = srv.URL + "/search?text={query}"
	return p
}

func newTestPipeline(t *testing.T, srv *httptest.Server, timeout time.Duration) *Pipeline {
	t.Helper()
	eng, err := engine.NewHTTPEngine("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	profile := testProfile(srv)
	p, err := NewPipeline(NewFetcher(eng, profile, timeout), profile)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPipeline_Parse(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("text")
		gotUA = r.UserAgent()
		_, _ = w.Write([]byte(resultPage))
	}))
	defer srv.Close()

	p := newTestPipeline(t, srv, 5*time.Second)
	data, err := p.Parse(context.Background(), "Galaxy S23")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if gotQuery != "Galaxy S23" {
		t.Errorf("query = %q", gotQuery)
	}
	if !strings.Contains(gotUA, "Chrome/91.0.4472.124") {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if data.Model != "Galaxy S23" || data.Source != "yandex_market" {
		t.Errorf("model/source = %q/%q", data.Model, data.Source)
	}
	if data.Title != "Samsung Galaxy S23" {
		t.Errorf("Title = %q", data.Title)
	}
	if data.Rating == nil || *data.Rating != 4.7 {
		t.Errorf("Rating = %v", data.Rating)
	}
	if data.ReviewsCount != 312 {
		t.Errorf("ReviewsCount = %d", data.ReviewsCount)
	}
	pr, ok := data.Specs[aggregator.PriceRangeKey].(models.PriceRange)
	if !ok {
		t.Fatalf("price_range missing: %v", data.Specs)
	}
	if pr != (models.PriceRange{Min: 74990, Max: 74990, Avg: 74990}) {
		t.Errorf("price_range = %+v", pr)
	}
	if !strings.HasPrefix(data.URL, srv.URL+"/search?text=Galaxy+S23") {
		t.Errorf("URL = %q", data.URL)
	}
}

func TestPipeline_SendsProfileHeaders(t *testing.T) {
	var gotLang, gotAccept, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.Header.Get("Accept-Language")
		gotAccept = r.Header.Get("Accept")
		gotCustom = r.Header.Get("X-Market-Region")
		_, _ = w.Write([]byte(resultPage))
	}))
	defer srv.Close()

	eng, err := engine.NewHTTPEngine("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	profile := testProfile(srv)
	profile.Headers["X-Market-Region"] = "213"
	p, err := NewPipeline(NewFetcher(eng, profile, 5*time.Second), profile)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Parse(context.Background(), "Galaxy S23"); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.HasPrefix(gotLang, "ru-RU") {
		t.Errorf("Accept-Language = %q", gotLang)
	}
	if !strings.HasPrefix(gotAccept, "text/html") {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotCustom != "213" {
		t.Errorf("X-Market-Region = %q", gotCustom)
	}
}

func TestFetcher_FinalURLFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/catalog?text="+r.URL.Query().Get("text"), http.StatusFound)
	})
	mux.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(resultPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	eng, err := engine.NewHTTPEngine("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	page, err := NewFetcher(eng, testProfile(srv), 5*time.Second).Fetch(context.Background(), "Pixel")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.URL != srv.URL+"/search?text=Pixel" {
		t.Errorf("URL = %q", page.URL)
	}
	if page.FinalURL != srv.URL+"/catalog?text=Pixel" {
		t.Errorf("FinalURL = %q", page.FinalURL)
	}
}

func TestPipeline_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		timeout  time.Duration
		wantCode string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			timeout:  5 * time.Second,
			wantCode: models.ErrCodeFetchFailed,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(2 * time.Second):
				case <-r.Context().Done():
				}
			},
			timeout:  50 * time.Millisecond,
			wantCode: models.ErrCodeTimeout,
		},
		{
			name: "no result block",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html><body>nothing</body></html>"))
			},
			timeout:  5 * time.Second,
			wantCode: models.ErrCodeNotFound,
		},
		{
			name: "block without title",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<div data-autotest-id="product-snippet">x</div>`))
			},
			timeout:  5 * time.Second,
			wantCode: models.ErrCodeExtraction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := newTestPipeline(t, srv, tt.timeout)
			data, err := p.Parse(context.Background(), "Pixel 8")
			if err == nil {
				t.Fatalf("expected error, got data %+v", data)
			}
			e := models.AsError(err)
			if e.Code != tt.wantCode {
				t.Errorf("code = %s; want %s (%v)", e.Code, tt.wantCode, err)
			}
			if !strings.HasPrefix(e.URL, srv.URL+"/search?text=Pixel+8") {
				t.Errorf("error URL = %q", e.URL)
			}
		})
	}
}

type panicEngine struct{}

func (panicEngine) Name() string { return "panic" }
func (panicEngine) Fetch(context.Context, *engine.FetchRequest) (*engine.FetchResult, error) {
	panic("boom")
}
func (panicEngine) Close() error { return nil }

func TestPipeline_RecoversPanic(t *testing.T) {
	profile := market.Default()
	p, err := NewPipeline(NewFetcher(panicEngine{}, profile, time.Second), profile)
	if err != nil {
		t.Fatal(err)
	}

	data, err := p.Parse(context.Background(), "anything")
	if data != nil {
		t.Errorf("expected nil data, got %+v", data)
	}
	if !models.HasCode(err, models.ErrCodeExtraction) {
		t.Errorf("expected EXTRACTION_FAILED, got %v", err)
	}
}
