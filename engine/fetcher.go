package engine

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/use-agent/pricewatch/models"
	"golang.org/x/time/rate"
)

// RetryPolicy bounds how often and how patiently a fetch is retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is 3 attempts with 500ms base backoff capped at 8s.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    8 * time.Second,
}

// Backoff returns the delay before attempt n+1, given n attempts so far.
// The delay doubles per attempt with up to 20% jitter and never exceeds MaxDelay.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.BaseDelay << (n - 1)
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d > 0 {
		d += time.Duration(rand.Int64N(int64(d)/5 + 1))
		if d > p.MaxDelay {
			d = p.MaxDelay
		}
	}
	return d
}

// HostLimiter hands out one rate.Limiter per host so requests to the same
// site are paced while different sites proceed independently.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewHostLimiter creates a HostLimiter. rps <= 0 disables pacing.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if h == nil || h.limit == rate.Inf {
		return nil
	}
	h.mu.Lock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.limit, h.burst)
		h.limiters[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}

// Fetcher wraps one Engine with timeout, retry and per-host pacing.
type Fetcher struct {
	engine  Engine
	policy  RetryPolicy
	timeout time.Duration
	limiter *HostLimiter
	sleep   func(context.Context, time.Duration) error
}

// NewFetcher creates a Fetcher. limiter may be shared between fetchers so
// the static and dynamic paths are paced together.
func NewFetcher(eng Engine, policy RetryPolicy, timeout time.Duration, limiter *HostLimiter) *Fetcher {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Fetcher{
		engine:  eng,
		policy:  policy,
		timeout: timeout,
		limiter: limiter,
		sleep:   sleepCtx,
	}
}

// Path returns the fetch path this fetcher implements.
func (f *Fetcher) Path() models.FetchPath {
	return models.FetchPath(f.engine.Name())
}

// Fetch retrieves rawURL. It never returns an error: on failure the
// PageResult has OK=false, empty HTML and the last attempt's error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) models.PageResult {
	start := time.Now()
	path := f.Path()
	host := models.HostOf(rawURL)
	res := models.PageResult{URL: rawURL, Path: path}

	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		if err := f.limiter.Wait(ctx, host); err != nil {
			res.Err = err
			break
		}

		attemptStart := time.Now()
		out, err := f.engine.Fetch(ctx, &FetchRequest{URL: rawURL, Timeout: f.timeout})
		res.Attempts = attempt
		elapsed := time.Since(attemptStart)

		if err == nil {
			slog.Info("fetch attempt",
				"url", rawURL, "path", path, "attempt", attempt,
				"outcome", "ok", "status", out.StatusCode, "elapsed", elapsed)
			res.OK = true
			res.HTML = out.HTML
			res.Title = out.Title
			res.FinalURL = out.FinalURL
			res.StatusCode = out.StatusCode
			res.Err = nil
			break
		}

		res.Err = err
		res.StatusCode = models.StatusOf(err)
		retry := models.IsTransient(err) && ctx.Err() == nil && attempt < f.policy.MaxAttempts
		outcome := "permanent"
		if models.IsTransient(err) {
			outcome = "transient"
		}
		slog.Warn("fetch attempt",
			"url", rawURL, "path", path, "attempt", attempt,
			"outcome", outcome, "status", res.StatusCode, "elapsed", elapsed, "error", err)
		if !retry {
			break
		}
		if err := f.sleep(ctx, f.policy.Backoff(attempt)); err != nil {
			break
		}
	}

	res.Elapsed = time.Since(start)
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
