package browser

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/pricewatch/engine"
	"github.com/use-agent/pricewatch/models"
	"github.com/ysmood/gson"
)

// Render loads req.URL in a pooled tab and returns the rendered HTML. It
// matches engine.RenderFunc.
//
// Lifecycle:
//
//  1. Timeout guard   – hard deadline on the entire render
//  2. Acquire tab     – borrow a tab from the pool (waits at MaxSessions)
//  3. DEFER: cleanup  – about:blank + return to pool on every exit path
//  4. Stealth         – mask navigator.webdriver etc. before navigation
//  5. Headers         – browser-like Accept-Language and UA
//  6. Hijack          – block images/fonts/media and ad hosts
//  7. Navigate + wait – load event, then DOM stability, then settle delay
//  8. Extract         – page.HTML(), title, final URL, status
func (b *Browser) Render(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	browser, err := b.ensure()
	if err != nil {
		return nil, err
	}

	// ── 2. Acquire tab from pool ──────────────────────────────────────
	page, err := b.acquireTab(ctx, browser)
	if err != nil {
		return nil, err
	}
	b.activePages.Add(1)
	defer b.activePages.Add(-1)
	slog.Debug("tab acquired", "url", req.URL, "active", b.ActivePages(), "max", b.cfg.MaxSessions)

	// ── 3. Cleanup uses the page without the request context so it
	// still works after a timeout.
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pagePool.Put(page)
	}()

	// ── 4. Stealth injection ──────────────────────────────────────────
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}

	// ── 5. Headers ────────────────────────────────────────────────────
	headers := map[string]string{"Accept-Language": "en,ar;q=0.9"}
	for k, v := range req.Headers {
		headers[k] = v
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(page)
	_ = proto.NetworkSetUserAgentOverride{UserAgent: engine.ChromeUA, AcceptLanguage: "en,ar"}.Call(page)

	// ── 6. Hijack ─────────────────────────────────────────────────────
	router := setupHijack(page, b.cfg.BlockedResourceTypes, b.cfg.BlockAds)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	// ── 7. Navigate + wait ────────────────────────────────────────────
	if err := p.Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	if err := p.WaitLoad(); err != nil {
		slog.Debug("load event did not fire, proceeding with current DOM", "url", req.URL, "error", err)
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "url", req.URL, "error", err)
	}
	if b.settleDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, categorizeError(ctx.Err(), "render interrupted while settling")
		case <-time.After(b.settleDelay):
		}
	}

	// ── 8. Extract ────────────────────────────────────────────────────
	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" || finalURL == "about:blank" {
		finalURL = req.URL
	}
	statusCode := 0
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); err == nil {
		statusCode = res.Value.Int()
	}

	return &engine.FetchResult{
		HTML:       rawHTML,
		Title:      evalStringOrEmpty(p, `() => document.title`),
		StatusCode: statusCode,
		FinalURL:   finalURL,
	}, nil
}

// acquireTab takes a tab from the pool, opening it on first use. It gives up
// when ctx is done while every tab is busy.
func (b *Browser) acquireTab(ctx context.Context, browser *rod.Browser) (*rod.Page, error) {
	var page *rod.Page
	select {
	case <-ctx.Done():
		return nil, categorizeError(ctx.Err(), "no free tab before the render deadline")
	case page = <-b.pagePool:
	}
	if page != nil {
		return page, nil
	}
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		// Return the empty slot so the pool does not shrink.
		b.pagePool.Put(nil)
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to open a tab",
			err,
		)
	}
	return page, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
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

// categorizeError wraps raw rod errors into coded ScrapeErrors.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "render canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
