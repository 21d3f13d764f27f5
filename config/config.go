package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/use-agent/pricewatch/engine"
	"github.com/use-agent/pricewatch/models"
)

// AppName is used for XDG paths.
const AppName = "pricewatch"

// Defaults for run parameters.
const (
	DefaultFirstN         = 50
	DefaultSiteWorkers    = 1
	MaxSiteWorkers        = 8
	DefaultMaxSessions    = 2
	MaxSessions           = 4
	DefaultSitesFile      = "sites.txt"
	DefaultHintsFile      = "config.yaml"
	DefaultOutputDir      = "output"
	DefaultLogDir         = "logs"
	DefaultRequestsPerSec = 1.0
)

// Config holds all application configuration.
type Config struct {
	Run        RunConfig
	Browser    BrowserConfig
	Fetch      FetchConfig
	Escalation EscalationConfig
	Output     OutputConfig
	Webhook    WebhookConfig
	Log        LogConfig
}

// RunConfig controls which sites are scraped and how.
type RunConfig struct {
	SitesFile string
	HintsFile string

	// FirstN caps candidate links per site.
	FirstN int // default: 50

	Mode models.FetchMode // default: auto

	// SiteWorkers is the number of sites processed concurrently.
	SiteWorkers int // default: 1 (sequential)

	// RunTimeout bounds the whole run; zero means no limit.
	RunTimeout time.Duration

	// DomainMemory lets a host that needed rendering skip the static probe.
	DomainMemory bool // default: false
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxSessions is the tab pool capacity (max concurrent renders).
	MaxSessions int // default: 2

	// DefaultProxy is the proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds drops requests to known ad/tracking hosts.
	BlockAds bool // default: true
}

// FetchConfig controls timeouts, retries and pacing.
type FetchConfig struct {
	HTTPTimeout       time.Duration // default: 20s
	NavigationTimeout time.Duration // default: 30s

	// SettleDelay is the extra wait after the rendered DOM is stable.
	SettleDelay time.Duration // default: 1.2s

	MaxAttempts int           // default: 3
	BaseBackoff time.Duration // default: 500ms
	MaxBackoff  time.Duration // default: 8s

	// RequestsPerSecond paces requests per host.
	RequestsPerSecond float64 // default: 1
	Burst             int     // default: 1
}

// EscalationConfig holds the Auto-mode thin-content thresholds.
type EscalationConfig struct {
	MinTextLength int // default: engine.DefaultMinTextLength
}

// OutputConfig controls the report and its companions.
type OutputConfig struct {
	Dir       string
	Snapshots bool

	// HistoryDB is the directory of the SQLite run archive; empty disables it.
	HistoryDB string
}

// WebhookConfig controls the run-completed notification.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
	Dir    string // default: "logs"
}

// Load reads configuration from environment variables with sane defaults.
// Command-line flags are applied on top by the caller.
func Load() *Config {
	mode, err := models.ParseFetchMode(envOr("PRICEWATCH_DYNAMIC", "auto"))
	if err != nil {
		mode = models.ModeAuto
	}
	return &Config{
		Run: RunConfig{
			SitesFile:    envOr("PRICEWATCH_SITES", DefaultSitesFile),
			HintsFile:    envOr("PRICEWATCH_CONFIG", DefaultHintsFile),
			FirstN:       envIntOr("PRICEWATCH_FIRST_N", DefaultFirstN),
			Mode:         mode,
			SiteWorkers:  envIntOr("PRICEWATCH_SITE_WORKERS", DefaultSiteWorkers),
			RunTimeout:   envDurationOr("PRICEWATCH_RUN_TIMEOUT", 0),
			DomainMemory: envBoolOr("PRICEWATCH_DOMAIN_MEMORY", false),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("PRICEWATCH_HEADLESS", true),
			MaxSessions:  envIntOr("PRICEWATCH_MAX_SESSIONS", DefaultMaxSessions),
			DefaultProxy: os.Getenv("PRICEWATCH_PROXY"),
			NoSandbox:    envBoolOr("PRICEWATCH_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("PRICEWATCH_BROWSER_BIN"),
			BlockedResourceTypes: envSliceOr("PRICEWATCH_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockAds: envBoolOr("PRICEWATCH_BLOCK_ADS", true),
		},
		Fetch: FetchConfig{
			HTTPTimeout:       envDurationOr("PRICEWATCH_HTTP_TIMEOUT", 20*time.Second),
			NavigationTimeout: envDurationOr("PRICEWATCH_NAV_TIMEOUT", 30*time.Second),
			SettleDelay:       envDurationOr("PRICEWATCH_SETTLE_DELAY", 1200*time.Millisecond),
			MaxAttempts:       envIntOr("PRICEWATCH_MAX_ATTEMPTS", 3),
			BaseBackoff:       envDurationOr("PRICEWATCH_BASE_BACKOFF", 500*time.Millisecond),
			MaxBackoff:        envDurationOr("PRICEWATCH_MAX_BACKOFF", 8*time.Second),
			RequestsPerSecond: envFloatOr("PRICEWATCH_RATE_RPS", DefaultRequestsPerSec),
			Burst:             envIntOr("PRICEWATCH_RATE_BURST", 1),
		},
		Escalation: EscalationConfig{
			MinTextLength: envIntOr("PRICEWATCH_MIN_TEXT_LENGTH", engine.DefaultMinTextLength),
		},
		Output: OutputConfig{
			Dir:       envOr("PRICEWATCH_OUT_DIR", DefaultOutputDir),
			Snapshots: envBoolOr("PRICEWATCH_SNAPSHOTS", false),
			HistoryDB: os.Getenv("PRICEWATCH_HISTORY_DB"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("PRICEWATCH_WEBHOOK_URL"),
			Secret: os.Getenv("PRICEWATCH_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("PRICEWATCH_LOG_LEVEL", "info"),
			Format: envOr("PRICEWATCH_LOG_FORMAT", "text"),
			Dir:    envOr("PRICEWATCH_LOG_DIR", DefaultLogDir),
		},
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Run.SitesFile == "" {
		return ErrNoSitesFile
	}
	if c.Run.FirstN <= 0 {
		return ErrInvalidFirstN
	}
	if c.Run.SiteWorkers < 1 || c.Run.SiteWorkers > MaxSiteWorkers {
		return ErrInvalidSiteWorkers
	}
	if c.Run.RunTimeout < 0 {
		return ErrInvalidTimeout
	}
	if c.Fetch.HTTPTimeout <= 0 || c.Fetch.NavigationTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Fetch.MaxAttempts < 1 {
		return ErrInvalidAttempts
	}
	if c.Fetch.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	if c.Escalation.MinTextLength < 0 {
		return ErrInvalidMinTextLength
	}
	if c.Output.Dir == "" {
		return ErrNoOutputDir
	}
	return nil
}

// ClampSessions bounds the browser tab pool to 1..MaxSessions.
func (c *Config) ClampSessions() {
	if c.Browser.MaxSessions < 1 {
		c.Browser.MaxSessions = 1
	}
	if c.Browser.MaxSessions > MaxSessions {
		c.Browser.MaxSessions = MaxSessions
	}
}

// XDGDataDir returns the default directory for the run archive.
// On Linux: ~/.local/share/pricewatch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
