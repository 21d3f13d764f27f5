package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/pricewatch/cache"
	"github.com/use-agent/pricewatch/models"
)

// errNoDynamicPath is the failure for a dynamic fetch when no browser is
// configured.
var errNoDynamicPath = errors.New("dynamic fetch path not configured")

// SelectorOptions configures a Selector.
type SelectorOptions struct {
	Mode    models.FetchMode
	Static  *Fetcher
	Dynamic *Fetcher // ignored in static-only mode

	Policy EscalationPolicy

	// Memory is optional; nil disables per-host preference.
	Memory *DomainMemory

	// Cache is optional; nil disables page reuse within the run.
	Cache *cache.Cache
}

// Selector chooses the fetch path for every page of a run and always
// returns exactly one PageResult per requested URL.
//
//   - static-only: static path only; no dynamic path is ever used.
//   - always: dynamic path only.
//   - auto: static first; escalate to dynamic when the page looks
//     under-rendered or the static fetch fails. A failed escalation keeps
//     the static result.
type Selector struct {
	mode    models.FetchMode
	static  *Fetcher
	dynamic *Fetcher
	policy  EscalationPolicy
	memory  *DomainMemory
	cache   *cache.Cache
}

// NewSelector creates a Selector.
func NewSelector(opts SelectorOptions) *Selector {
	s := &Selector{
		mode:    opts.Mode,
		static:  opts.Static,
		dynamic: opts.Dynamic,
		policy:  opts.Policy,
		memory:  opts.Memory,
		cache:   opts.Cache,
	}
	if s.policy.MinTextLength <= 0 {
		s.policy = NewEscalationPolicy(0)
	}
	if s.mode == models.ModeStatic {
		s.dynamic = nil
	}
	return s
}

// Mode returns the run-wide fetch mode.
func (s *Selector) Mode() models.FetchMode { return s.mode }

// Fetch retrieves rawURL using the configured strategy.
func (s *Selector) Fetch(ctx context.Context, rawURL string) models.PageResult {
	key := cache.Key(rawURL, s.mode)
	if page, ok := s.cache.Get(key); ok {
		slog.Debug("page cache hit", "url", rawURL, "path", page.Path)
		return page
	}

	var page models.PageResult
	switch s.mode {
	case models.ModeStatic:
		page = s.static.Fetch(ctx, rawURL)
	case models.ModeDynamicAlways:
		page = s.fetchDynamic(ctx, rawURL)
	default:
		page = s.fetchAuto(ctx, rawURL)
	}

	s.cache.Set(key, page)
	return page
}

func (s *Selector) fetchDynamic(ctx context.Context, rawURL string) models.PageResult {
	if s.dynamic == nil {
		return models.PageResult{URL: rawURL, Path: models.PathDynamic, Err: errNoDynamicPath}
	}
	return s.dynamic.Fetch(ctx, rawURL)
}

func (s *Selector) fetchAuto(ctx context.Context, rawURL string) models.PageResult {
	host := models.HostOf(rawURL)

	if s.dynamic != nil && s.memory.Get(host) == models.PathDynamic {
		page := s.dynamic.Fetch(ctx, rawURL)
		if page.OK || ctx.Err() != nil {
			return page
		}
		slog.Info("remembered dynamic path failed, probing static", "url", rawURL, "error", page.Err)
		s.memory.Delete(host)
	}

	static := s.static.Fetch(ctx, rawURL)
	if s.dynamic == nil || ctx.Err() != nil {
		return static
	}

	if !static.OK {
		slog.Info("static fetch failed, falling back to dynamic", "url", rawURL, "error", static.Err)
		dyn := s.dynamic.Fetch(ctx, rawURL)
		dyn.Escalated = true
		dyn.Attempts += static.Attempts
		dyn.Elapsed += static.Elapsed
		return dyn
	}

	reason := s.policy.Check(static.HTML)
	if reason == "" {
		return static
	}

	slog.Info("static content looks under-rendered, trying dynamic", "url", rawURL, "reason", reason)
	dyn := s.dynamic.Fetch(ctx, rawURL)
	if !dyn.OK {
		slog.Warn("dynamic fetch failed, keeping static", "url", rawURL, "error", dyn.Err)
		return static
	}

	drift := Drift(static.HTML, dyn.HTML)
	slog.Info("escalated to dynamic",
		"url", rawURL, "reason", reason, "drift", drift,
		"static_elapsed", static.Elapsed, "dynamic_elapsed", dyn.Elapsed)
	if drift > DriftThreshold {
		s.memory.Set(host, models.PathDynamic)
	}

	dyn.Escalated = true
	dyn.Attempts += static.Attempts
	dyn.Elapsed += static.Elapsed
	return dyn
}
