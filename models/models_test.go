package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseFetchMode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    FetchMode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"ALWAYS", ModeDynamicAlways, false},
		{"static-only", ModeStatic, false},
		{"static", ModeStatic, false},
		{"sometimes", ModeAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseFetchMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFetchMode(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFetchMode(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	for _, m := range []FetchMode{ModeAuto, ModeStatic, ModeDynamicAlways} {
		if back, err := ParseFetchMode(m.String()); err != nil || back != m {
			t.Errorf("mode %s does not survive its own spelling", m)
		}
	}
}

func TestFetchErrorClassification(t *testing.T) {
	t.Parallel()
	transient := fmt.Errorf("attempt 2: %w", NewTransientError("https://a.example", 503, nil))
	permanent := NewPermanentError("https://a.example", 404, nil)

	if !IsTransient(transient) || StatusOf(transient) != 503 {
		t.Errorf("wrapped transient error lost its class: %v", transient)
	}
	if IsTransient(permanent) || StatusOf(permanent) != 404 {
		t.Errorf("permanent error misclassified: %v", permanent)
	}
	if !IsTransient(errors.New("connection reset")) {
		t.Error("unclassified errors should be retried")
	}
	if IsTransient(nil) {
		t.Error("nil is not a failure")
	}
}

func TestScrapeErrorUnwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	err := NewScrapeError(ErrCodeTimeout, "navigation timed out", cause)
	if !errors.Is(err, cause) {
		t.Error("ScrapeError should unwrap to its cause")
	}
	if got := err.Error(); got != "SCRAPE_TIMEOUT: navigation timed out: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestHostOf(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"https://WWW.Shop.Example.com/p/1", "shop.example.com"},
		{"https://shop.example.com:8443/", "shop.example.com"},
		{"http://www2.example.com", "www2.example.com"},
		{"::not a url", ""},
	}
	for _, tt := range tests {
		if got := HostOf(tt.in); got != tt.want {
			t.Errorf("HostOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSiteConfigName(t *testing.T) {
	t.Parallel()
	if got := (SiteConfig{Host: "shop.example.com"}).Name(); got != "shop.example.com" {
		t.Errorf("Name = %q", got)
	}
	if got := (SiteConfig{}).Name(); got != "unknown" {
		t.Errorf("Name of empty config = %q, want unknown", got)
	}
}

func TestRunSummary_TotalRecords(t *testing.T) {
	t.Parallel()
	s := RunSummary{Sites: []SiteSummary{{Records: 3}, {Records: 0}, {Records: 4}}}
	if got := s.TotalRecords(); got != 7 {
		t.Errorf("TotalRecords = %d, want 7", got)
	}
}
