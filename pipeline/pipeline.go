// Package pipeline runs sites through fetch, discovery and extraction and
// commits their records to the report in site-list order.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/pricewatch/discover"
	"github.com/use-agent/pricewatch/extract"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/report"
	"golang.org/x/sync/errgroup"
)

// PageFetcher returns exactly one PageResult per URL and never fails;
// engine.Selector implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) models.PageResult
}

// Sink receives committed records; report.Writer implements it.
type Sink interface {
	Write(recs ...models.ProductRecord) error
	Flush() error
}

// Options tune a Runner.
type Options struct {
	// FirstN caps candidate links per site.
	FirstN int

	// SiteWorkers is the number of sites processed concurrently.
	SiteWorkers int

	// Snapshots is optional; when set, degraded pages are dumped as Markdown.
	Snapshots *report.SnapshotWriter
}

// Result is the outcome of a run.
type Result struct {
	Sites     []models.SiteSummary
	Records   []models.ProductRecord
	Cancelled bool
}

// Runner drives one run.
type Runner struct {
	fetcher   PageFetcher
	extractor *extract.Extractor
	sink      Sink
	opts      Options
}

// NewRunner creates a Runner.
func NewRunner(fetcher PageFetcher, extractor *extract.Extractor, sink Sink, opts Options) *Runner {
	if opts.FirstN < 1 {
		opts.FirstN = 1
	}
	if opts.SiteWorkers < 1 {
		opts.SiteWorkers = 1
	}
	return &Runner{fetcher: fetcher, extractor: extractor, sink: sink, opts: opts}
}

type siteOutput struct {
	summary models.SiteSummary
	records []models.ProductRecord
	started bool
}

// Run processes every site and commits each site's records as one block,
// in site-list order, flushing after each site. Site failures become Error
// records; only a failing sink makes Run return an error. When ctx is
// cancelled no new site or link is started and what was produced so far is
// committed. A fetch already in flight is not interrupted.
func (r *Runner) Run(ctx context.Context, sites []models.SiteConfig) (Result, error) {
	outputs := make([]siteOutput, len(sites))
	done := make([]chan struct{}, len(sites))
	for i := range done {
		done[i] = make(chan struct{})
	}

	var res Result
	commitDone := make(chan error, 1)
	go func() {
		var sinkErr error
		for i := range sites {
			<-done[i]
			out := outputs[i]
			if !out.started {
				continue
			}
			res.Sites = append(res.Sites, out.summary)
			res.Records = append(res.Records, out.records...)
			if sinkErr != nil {
				continue
			}
			if err := r.sink.Write(out.records...); err != nil {
				sinkErr = err
				continue
			}
			if err := r.sink.Flush(); err != nil {
				sinkErr = err
			}
		}
		commitDone <- sinkErr
	}()

	g := new(errgroup.Group)
	g.SetLimit(r.opts.SiteWorkers)
	for i, site := range sites {
		g.Go(func() error {
			defer close(done[i])
			if ctx.Err() != nil {
				return nil
			}
			outputs[i] = r.processSite(ctx, site)
			return nil
		})
	}
	_ = g.Wait()
	sinkErr := <-commitDone

	res.Cancelled = ctx.Err() != nil
	if sinkErr != nil {
		return res, errors.Join(errors.New("pipeline: commit records"), sinkErr)
	}
	return res, nil
}

// processSite fetches the listing, discovers candidates and extracts one
// record per attempted candidate.
func (r *Runner) processSite(ctx context.Context, site models.SiteConfig) siteOutput {
	start := time.Now()
	out := siteOutput{started: true, summary: models.SiteSummary{Site: site.Name()}}
	log := slog.With("site", site.Name())

	// Cancellation is checked between fetches; a started fetch runs to
	// completion or to its own timeouts.
	fetchCtx := context.WithoutCancel(ctx)

	listing := r.fetcher.Fetch(fetchCtx, site.BaseURL)
	if !listing.OK {
		log.Error("listing fetch failed", "url", site.BaseURL, "attempts", listing.Attempts, "error", listing.Err)
		rec := r.extractor.Extract(listing, site)
		out.add(rec, listing)
		out.summary.Candidates = 1
		return out
	}

	links := discover.Discover(listing, site, r.opts.FirstN)
	if len(links) == 0 {
		log.Warn("no product links found, extracting the listing page itself", "url", site.BaseURL)
		links = []models.CandidateLink{{URL: site.BaseURL, Index: 0}}
	}
	out.summary.Candidates = len(links)
	log.Info("candidates discovered", "count", len(links), "path", listing.Path, "escalated", listing.Escalated)

	for _, link := range links {
		if ctx.Err() != nil {
			log.Warn("run cancelled, skipping remaining links", "remaining", len(links)-link.Index)
			break
		}

		page := listing
		if link.URL != site.BaseURL {
			page = r.fetcher.Fetch(fetchCtx, link.URL)
		}
		rec := r.extractor.Extract(page, site)
		if rec.Status == models.StatusError {
			log.Warn("link failed", "url", link.URL, "path", page.Path, "attempts", page.Attempts, "error", page.Err)
		}
		out.add(rec, page)
		r.snapshot(site, link, rec, page)
	}

	log.Info("site finished",
		"candidates", out.summary.Candidates,
		"records", out.summary.Records,
		"errors", out.summary.Errors,
		"with_price", out.summary.WithPrice,
		"escalated", out.summary.Escalated,
		"elapsed", time.Since(start),
	)
	return out
}

func (o *siteOutput) add(rec models.ProductRecord, page models.PageResult) {
	o.records = append(o.records, rec)
	o.summary.Records++
	if rec.Status == models.StatusError {
		o.summary.Errors++
	}
	if rec.HasPrice() {
		o.summary.WithPrice++
	}
	if page.Escalated {
		o.summary.Escalated++
	}
}

func (r *Runner) snapshot(site models.SiteConfig, link models.CandidateLink, rec models.ProductRecord, page models.PageResult) {
	if r.opts.Snapshots == nil || !report.ShouldSnapshot(rec, page) {
		return
	}
	path, err := r.opts.Snapshots.Write(site.Name(), link.Index, page)
	if err != nil {
		slog.Warn("snapshot failed", "site", site.Name(), "url", link.URL, "error", err)
		return
	}
	slog.Debug("snapshot written", "site", site.Name(), "url", link.URL, "path", path)
}
