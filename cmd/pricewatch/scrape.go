package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/use-agent/pricewatch/browser"
	"github.com/use-agent/pricewatch/cache"
	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/engine"
	"github.com/use-agent/pricewatch/extract"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/pipeline"
	"github.com/use-agent/pricewatch/report"
	"github.com/use-agent/pricewatch/store"
	"github.com/use-agent/pricewatch/webhook"
)

// pageCacheEntries bounds the per-run page cache.
const pageCacheEntries = 512

// afterRunTimeout bounds archiving and webhook delivery, which run even when
// the scrape itself was cancelled.
const afterRunTimeout = 45 * time.Second

// runScrape wires the fetch paths, the extractor and the report writer and
// runs every site. The returned summary carries the report path whenever
// the report was created.
func runScrape(ctx context.Context, cfg *config.Config, sites []models.SiteConfig) (models.RunSummary, error) {
	startedAt := time.Now()
	summary := models.RunSummary{StartedAt: startedAt.UTC(), Mode: cfg.Run.Mode.String()}

	selector, closeBrowser := newSelector(cfg)
	defer closeBrowser()

	w, err := report.Create(cfg.Output.Dir, startedAt)
	if err != nil {
		return summary, err
	}
	defer w.Close()
	summary.ReportPath = w.Path()
	summary.RunID = strings.TrimSuffix(filepath.Base(w.Path()), "_scrape.txt")

	opts := pipeline.Options{
		FirstN:      cfg.Run.FirstN,
		SiteWorkers: cfg.Run.SiteWorkers,
	}
	if cfg.Output.Snapshots {
		opts.Snapshots = report.NewSnapshotWriter(cfg.Output.Dir)
	}

	slog.Info("run started",
		"run_id", summary.RunID,
		"sites", len(sites),
		"mode", summary.Mode,
		"first_n", cfg.Run.FirstN,
		"site_workers", cfg.Run.SiteWorkers,
		"report", w.Path(),
	)

	res, runErr := pipeline.NewRunner(selector, extract.New(), w, opts).Run(ctx, sites)
	closeErr := w.Close()

	summary.FinishedAt = time.Now().UTC()
	summary.Sites = res.Sites
	summary.Cancelled = res.Cancelled

	slog.Info("run finished",
		"run_id", summary.RunID,
		"records", summary.TotalRecords(),
		"sites", len(summary.Sites),
		"cancelled", summary.Cancelled,
		"elapsed", summary.FinishedAt.Sub(summary.StartedAt),
	)

	if err := errors.Join(runErr, closeErr); err != nil {
		return summary, err
	}

	afterCtx, cancel := context.WithTimeout(context.Background(), afterRunTimeout)
	defer cancel()
	if cfg.Output.HistoryDB != "" {
		if err := archive(afterCtx, cfg.Output.HistoryDB, summary, res.Records); err != nil {
			slog.Error("archive failed", "dir", cfg.Output.HistoryDB, "error", err)
		}
	}
	if cfg.Webhook.URL != "" {
		event := &webhook.Event{
			Type:      webhook.EventRunCompleted,
			RunID:     summary.RunID,
			Timestamp: summary.FinishedAt.Unix(),
			Data:      summary,
		}
		_ = webhook.DeliverWithRetry(afterCtx, cfg.Webhook.URL, cfg.Webhook.Secret, event)
	}
	return summary, nil
}

// newSelector builds the static path and, unless the run is static-only,
// the lazily launched browser path. The returned func releases the browser.
func newSelector(cfg *config.Config) (*engine.Selector, func()) {
	policy := engine.RetryPolicy{
		MaxAttempts: cfg.Fetch.MaxAttempts,
		BaseDelay:   cfg.Fetch.BaseBackoff,
		MaxDelay:    cfg.Fetch.MaxBackoff,
	}
	limiter := engine.NewHostLimiter(cfg.Fetch.RequestsPerSecond, cfg.Fetch.Burst)

	opts := engine.SelectorOptions{
		Mode:   cfg.Run.Mode,
		Static: engine.NewFetcher(engine.NewHTTPEngine(cfg.Browser.DefaultProxy), policy, cfg.Fetch.HTTPTimeout, limiter),
		Policy: engine.NewEscalationPolicy(cfg.Escalation.MinTextLength),
		Cache:  cache.New(pageCacheEntries, 0),
	}
	if cfg.Run.DomainMemory {
		opts.Memory = engine.NewDomainMemory()
	}

	closeFn := func() {}
	if cfg.Run.Mode != models.ModeStatic {
		b := browser.New(cfg.Browser, cfg.Fetch.SettleDelay)
		opts.Dynamic = engine.NewFetcher(engine.NewRodEngine(b.Render), policy, cfg.Fetch.NavigationTimeout, limiter)
		closeFn = func() {
			if b.Launched() {
				slog.Info("closing browser")
			}
			b.Close()
		}
	}
	return engine.NewSelector(opts), closeFn
}

// archive stores the run in the SQLite history under dir.
func archive(ctx context.Context, dir string, summary models.RunSummary, recs []models.ProductRecord) error {
	h, err := store.Open(dir)
	if err != nil {
		return err
	}
	defer h.Close()
	if err := h.SaveRun(ctx, summary, recs); err != nil {
		return err
	}
	slog.Info("run archived", "db", h.Path(), "records", len(recs))
	return nil
}

