package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/pricewatch/models"
	"gopkg.in/yaml.v3"
)

// SiteHints is one entry of the hints file.
type SiteHints struct {
	Host         string           `yaml:"host,omitempty"`
	IncludePaths []string         `yaml:"include_paths,omitempty"`
	ExcludePaths []string         `yaml:"exclude_paths,omitempty"`
	Selectors    models.Selectors `yaml:"selectors,omitempty"`
}

// HintsFile is the optional YAML file of per-site hints.
//
//	defaults:
//	  exclude_paths: ["/cart"]
//	sites:
//	  - host: shop.example.com
//	    include_paths: ["/products/"]
//	    selectors: {card: ".product-card", price: ".price"}
type HintsFile struct {
	Defaults SiteHints   `yaml:"defaults,omitempty"`
	Sites    []SiteHints `yaml:"sites,omitempty"`

	byHost map[string]SiteHints
}

// LoadHintsFile reads the hints file at path. A missing file yields an empty
// HintsFile so runs without hints need no configuration.
func LoadHintsFile(path string) (*HintsFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewHintsFile(), nil
		}
		return nil, fmt.Errorf("config: read hints %s: %w", path, err)
	}
	return ParseHints(data)
}

// ParseHints decodes and validates hints YAML.
func ParseHints(data []byte) (*HintsFile, error) {
	hf := NewHintsFile()
	if err := yaml.Unmarshal(data, hf); err != nil {
		return nil, fmt.Errorf("config: parse hints: %w", err)
	}
	if err := validateSelectors(hf.Defaults.Selectors); err != nil {
		return nil, err
	}
	for _, s := range hf.Sites {
		host := models.NormalizeHost(s.Host)
		if host == "" {
			continue
		}
		if err := validateSelectors(s.Selectors); err != nil {
			return nil, fmt.Errorf("%w (site %s)", err, host)
		}
		s.Host = host
		hf.byHost[host] = s
	}
	return hf, nil
}

// NewHintsFile returns an empty hints file.
func NewHintsFile() *HintsFile {
	return &HintsFile{byHost: make(map[string]SiteHints)}
}

// SiteConfig builds the immutable SiteConfig for a listing URL, merging the
// host entry over the defaults.
func (hf *HintsFile) SiteConfig(baseURL string) models.SiteConfig {
	host := models.HostOf(baseURL)
	result := models.SiteConfig{
		Host:         host,
		BaseURL:      baseURL,
		IncludePaths: hf.Defaults.IncludePaths,
		ExcludePaths: hf.Defaults.ExcludePaths,
		Selectors:    hf.Defaults.Selectors,
	}

	site, ok := hf.byHost[host]
	if !ok {
		return result
	}
	if len(site.IncludePaths) > 0 {
		result.IncludePaths = site.IncludePaths
	}
	if site.ExcludePaths != nil {
		result.ExcludePaths = site.ExcludePaths
	}
	if site.Selectors.Card != "" {
		result.Selectors.Card = site.Selectors.Card
	}
	if site.Selectors.Name != "" {
		result.Selectors.Name = site.Selectors.Name
	}
	if site.Selectors.Price != "" {
		result.Selectors.Price = site.Selectors.Price
	}
	if site.Selectors.Availability != "" {
		result.Selectors.Availability = site.Selectors.Availability
	}
	return result
}

func validateSelectors(s models.Selectors) error {
	for field, sel := range map[string]string{
		"card":         s.Card,
		"name":         s.Name,
		"price":        s.Price,
		"availability": s.Availability,
	} {
		if sel == "" {
			continue
		}
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalidSelector, field, sel, err)
		}
	}
	return nil
}

// LoadSites reads the site list: one URL per line, blank lines and "#"
// comments ignored, order preserved. URLs without a scheme get https.
func LoadSites(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // operator-provided path
	if err != nil {
		return nil, fmt.Errorf("config: open sites %s: %w", path, err)
	}
	defer f.Close()

	var sites []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := normalizeSiteURL(line)
		if err != nil {
			return nil, fmt.Errorf("config: sites %s: %w", path, err)
		}
		sites = append(sites, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read sites %s: %w", path, err)
	}
	if len(sites) == 0 {
		return nil, ErrNoSites
	}
	return sites, nil
}

func normalizeSiteURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid site URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme in %q", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("site URL %q has no host", raw)
	}
	return u.String(), nil
}
