package models

import (
	"fmt"
	"strings"
	"time"
)

// FetchMode is the run-wide fetch strategy.
type FetchMode int

const (
	// ModeAuto tries a static fetch first and escalates on thin content.
	ModeAuto FetchMode = iota
	// ModeStatic never renders pages in a browser.
	ModeStatic
	// ModeDynamicAlways renders every page in the headless browser.
	ModeDynamicAlways
)

func (m FetchMode) String() string {
	switch m {
	case ModeStatic:
		return "static-only"
	case ModeDynamicAlways:
		return "always"
	default:
		return "auto"
	}
}

// ParseFetchMode accepts the CLI spellings "auto", "always" and "static-only".
func ParseFetchMode(s string) (FetchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "always", "dynamic", "dynamic-always":
		return ModeDynamicAlways, nil
	case "static", "static-only":
		return ModeStatic, nil
	default:
		return ModeAuto, fmt.Errorf("unknown fetch mode %q (want auto, always or static-only)", s)
	}
}

// FetchPath records which path actually produced a page.
type FetchPath string

const (
	PathStatic  FetchPath = "static"
	PathDynamic FetchPath = "dynamic"
)

// PageResult is the outcome of fetching one URL. When OK is false, HTML is
// empty and Err holds the last attempt's error.
type PageResult struct {
	URL        string
	FinalURL   string
	HTML       string
	Title      string
	Path       FetchPath
	StatusCode int
	OK         bool
	Escalated  bool
	Attempts   int
	Elapsed    time.Duration
	Err        error
}

// BaseURL is the URL relative links on the page resolve against.
func (p PageResult) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// CandidateLink is a product-detail URL in discovery order.
type CandidateLink struct {
	URL   string
	Index int
}
