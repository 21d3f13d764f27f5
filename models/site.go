package models

import (
	"net/url"
	"strings"
)

// Selectors are optional per-site CSS selector hints.
type Selectors struct {
	Card         string `yaml:"card,omitempty"`
	Name         string `yaml:"name,omitempty"`
	Price        string `yaml:"price,omitempty"`
	Availability string `yaml:"availability,omitempty"`
}

// Empty reports whether no hint is configured.
func (s Selectors) Empty() bool {
	return s.Card == "" && s.Name == "" && s.Price == "" && s.Availability == ""
}

// SiteConfig describes one site of the run. It is immutable once loaded.
type SiteConfig struct {
	// Host is the site host without a leading "www.".
	Host string

	// BaseURL is the listing page the run starts from.
	BaseURL string

	// IncludePaths narrows discovered links to these path prefixes.
	IncludePaths []string

	// ExcludePaths replaces the global non-product denylist when set.
	ExcludePaths []string

	Selectors Selectors
}

// Name is the site label written to the report.
func (s SiteConfig) Name() string {
	if s.Host != "" {
		return s.Host
	}
	return "unknown"
}

// HostOf returns the lowercase host of rawURL without a leading "www.".
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return NormalizeHost(u.Hostname())
}

// NormalizeHost lowercases host and strips a leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}
