package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/phoneprice/config"
	"github.com/ysmood/gson"
)

// RodEngine renders the search page in headless Chromium. The browser is
// launched on the first Fetch and reused until Close.
type RodEngine struct {
	cfg   config.BrowserConfig
	proxy string

	mu       sync.Mutex
	browser  *rod.Browser
	pagePool rod.Pool[rod.Page]
}

// NewRodEngine creates a RodEngine. No browser is started yet.
func NewRodEngine(cfg config.BrowserConfig, proxy string) *RodEngine {
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}
	return &RodEngine{cfg: cfg, proxy: proxy}
}

func (e *RodEngine) Name() string { return "browser" }

// ensureBrowser launches and connects Chromium once.
func (e *RodEngine) ensureBrowser() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser != nil {
		return e.browser, nil
	}

	l := launcher.New().
		Headless(e.cfg.Headless).
		NoSandbox(e.cfg.NoSandbox)
	if e.cfg.BrowserBin != "" {
		l = l.Bin(e.cfg.BrowserBin)
	}
	if e.proxy != "" {
		l = l.Proxy(e.proxy)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	browser, err := connectBrowser(controlURL, l.Kill)
	if err != nil {
		return nil, err
	}
	slog.Info("browser launched", "controlURL", controlURL, "maxPages", e.cfg.MaxPages)

	e.browser = browser
	e.pagePool = rod.NewPagePool(e.cfg.MaxPages)
	return browser, nil
}

// connectBrowser attaches to controlURL. kill is called when the connect
// fails so a launched Chromium process is not left running.
func connectBrowser(controlURL string, kill func()) (*rod.Browser, error) {
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		kill()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	return browser, nil
}

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	browser, err := e.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := e.pagePool.Get(func() (*rod.Page, error) {
		p, err := browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return nil, err
		}
		// Stealth patches apply to every later navigation of this tab.
		if _, err := p.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("browser: acquire page: %w", err)
	}
	// Blank the tab before returning it so the old DOM is released.
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		e.pagePool.Put(page)
	}()

	if req.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: req.UserAgent}); err != nil {
			return nil, fmt.Errorf("browser: set user agent: %w", err)
		}
	}
	if len(req.Headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(req.Headers)}).Call(page); err != nil {
			return nil, fmt.Errorf("browser: set extra headers: %w", err)
		}
	}

	router := setupHijack(page, e.cfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)
	if err := p.Navigate(req.URL); err != nil {
		return nil, fmt.Errorf("browser: navigate: %w", err)
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}

	statusCode := navigationStatus(p)
	if statusCode != 0 && (statusCode < 200 || statusCode > 299) {
		return nil, &StatusError{StatusCode: statusCode, URL: req.URL}
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("browser: read html: %w", err)
	}

	finalURL := req.URL
	if res, err := p.Eval(`() => window.location.href`); err == nil && res.Value.Str() != "" {
		finalURL = res.Value.Str()
	}

	return &FetchResult{
		HTML:       rawHTML,
		StatusCode: statusCode,
		FinalURL:   finalURL,
		EngineName: e.Name(),
	}, nil
}

// navigationStatus reads the main document's HTTP status from the
// Navigation Timing API. Returns 0 when the browser does not expose it.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// Close drains the page pool and kills the browser process.
func (e *RodEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser == nil {
		return nil
	}
	slog.Info("browser engine shutting down: draining page pool")
	e.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	err := e.browser.Close()
	e.browser = nil
	return err
}
