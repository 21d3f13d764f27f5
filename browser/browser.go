// Package browser owns the headless Chromium used for dynamic fetches: a
// lazily launched browser and a bounded pool of reusable tabs.
package browser

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
)

// Browser manages the browser lifecycle and the tab pool.
// It is safe for concurrent use; at most MaxSessions renders run at once.
type Browser struct {
	cfg         config.BrowserConfig
	settleDelay time.Duration

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	pagePool rod.Pool[rod.Page]
	closed   bool

	activePages atomic.Int32
}

// New creates a Browser. Chromium is not started until the first Render.
func New(cfg config.BrowserConfig, settleDelay time.Duration) *Browser {
	if cfg.MaxSessions < 1 {
		cfg.MaxSessions = 1
	}
	return &Browser{
		cfg:         cfg,
		settleDelay: settleDelay,
		pagePool:    rod.NewPagePool(cfg.MaxSessions),
	}
}

// Launched reports whether Chromium has been started.
func (b *Browser) Launched() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.browser != nil
}

// ActivePages returns the number of tabs currently rendering.
func (b *Browser) ActivePages() int {
	return int(b.activePages.Load())
}

// ensure launches and connects Chromium on first use.
func (b *Browser) ensure() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "browser already closed", nil)
	}
	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().
		Headless(b.cfg.Headless).
		NoSandbox(b.cfg.NoSandbox)

	if b.cfg.BrowserBin != "" {
		l = l.Bin(b.cfg.BrowserBin)
	}
	if b.cfg.DefaultProxy != "" {
		l = l.Proxy(b.cfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), "en-US,ar")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL, "maxSessions", b.cfg.MaxSessions)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	b.browser = browser
	b.launcher = l
	return browser, nil
}

// Close drains the tab pool and kills the browser process. It is safe to
// call more than once and when the browser was never launched.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	if b.browser == nil {
		return
	}

	slog.Info("browser shutting down: draining page pool")
	b.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	if err := b.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	b.browser = nil
	slog.Info("browser shutdown complete")
}
