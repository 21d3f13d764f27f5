package engine

import (
	"context"
	"errors"

	"github.com/use-agent/pricewatch/models"
)

// RenderFunc is the callback that renders a page in the headless browser.
// The CLI injects it so engine/ does not import browser/.
type RenderFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine is the dynamic fetch path. It delegates to the browser package
// through a RenderFunc and classifies the outcome for the retry policy.
type RodEngine struct {
	render RenderFunc
}

// NewRodEngine creates a RodEngine around render.
func NewRodEngine(render RenderFunc) *RodEngine {
	return &RodEngine{render: render}
}

func (e *RodEngine) Name() string { return string(models.PathDynamic) }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.render == nil {
		return nil, models.NewPermanentError(req.URL, 0,
			models.NewScrapeError(models.ErrCodeBrowserCrash, "render callback not configured", nil))
	}

	// Clone the request so we don't mutate the caller's copy.
	r := *req
	result, err := e.render(ctx, &r)
	if err != nil {
		return nil, classifyRenderError(req.URL, err)
	}
	if result.StatusCode == 0 {
		result.StatusCode = 200
	}
	switch {
	case result.StatusCode == 429 || result.StatusCode >= 500:
		return nil, models.NewTransientError(req.URL, result.StatusCode, nil)
	case result.StatusCode >= 400:
		return nil, models.NewPermanentError(req.URL, result.StatusCode, nil)
	}

	result.EngineName = e.Name()
	return result, nil
}

// classifyRenderError keeps an engine-provided classification and otherwise
// maps browser error codes: a crashed browser will not recover within the
// run, timeouts and navigation failures might.
func classifyRenderError(rawURL string, err error) error {
	var fe *models.FetchError
	if errors.As(err, &fe) {
		return err
	}
	var se *models.ScrapeError
	if errors.As(err, &se) && se.Code == models.ErrCodeBrowserCrash {
		return models.NewPermanentError(rawURL, 0, err)
	}
	return models.NewTransientError(rawURL, 0, err)
}
