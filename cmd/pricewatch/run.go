package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape every site in the sites file into a new report",
		Long: `Run reads the sites file (one listing URL per line), discovers up to
--first-n product links per site and writes one record per link to
<out-dir>/<YYYYmmdd_HHMMSS>_scrape.txt.

Examples:
  # Static fetch with browser escalation for thin pages
  pricewatch run --sites sites.txt

  # Render every page in the headless browser
  pricewatch run --dynamic always --max-sessions 2

  # Never start a browser
  pricewatch run --static-only --first-n 10

  # Archive the run for price history
  pricewatch run --history-db

Hints file (config.yaml) example:
  defaults:
    exclude_paths: ["/cart"]
  sites:
    - host: shop.example.com
      include_paths: ["/products/"]
      selectors: {card: ".product-card", price: ".price"}`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	// Inputs
	cmd.Flags().StringP("sites", "s", config.DefaultSitesFile, "Sites file, one listing URL per line")
	cmd.Flags().StringP("config", "c", config.DefaultHintsFile, "Optional YAML file of per-site hints")

	// Fetch strategy
	cmd.Flags().IntP("first-n", "n", config.DefaultFirstN, "Maximum candidate links per site")
	cmd.Flags().String("dynamic", "auto", "Dynamic rendering mode: auto or always")
	cmd.Flags().Bool("static-only", false, "Never render pages in a headless browser")
	cmd.Flags().Int("site-workers", config.DefaultSiteWorkers, "Number of sites processed concurrently")
	cmd.Flags().Int("max-sessions", config.DefaultMaxSessions, "Maximum concurrent browser tabs (1-4)")
	cmd.Flags().Duration("run-timeout", 0, "Stop the run after this long and keep partial output (0 = no limit)")
	cmd.Flags().Bool("domain-memory", false, "Skip the static probe for hosts that needed rendering earlier in the run")

	// Outputs
	cmd.Flags().StringP("out-dir", "o", config.DefaultOutputDir, "Report directory")
	cmd.Flags().Bool("snapshots", false, "Dump pages without a parsed price as Markdown")
	cmd.Flags().String("history-db", "", "Archive the run in SQLite under this directory")
	cmd.Flags().Lookup("history-db").NoOptDefVal = config.XDGDataDir()
	cmd.Flags().String("webhook-url", "", "POST a run.completed event to this URL")
	cmd.Flags().String("webhook-secret", "", "HMAC-SHA256 secret for the webhook signature")
	cmd.Flags().String("log-dir", config.DefaultLogDir, "Directory of scrape.log (empty = stderr only)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if err := applyFlags(cmd, cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	cfg.ClampSessions()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	urls, err := config.LoadSites(cfg.Run.SitesFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	hints, err := config.LoadHintsFile(cfg.Run.HintsFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	sites := make([]models.SiteConfig, 0, len(urls))
	for _, u := range urls {
		sites = append(sites, hints.SiteConfig(u))
	}

	if getVerboseFlag(cmd) {
		cfg.Log.Level = "debug"
	}
	logFile, err := initLogger(cfg.Log)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Run.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Run.RunTimeout)
		defer cancel()
	}

	summary, err := runScrape(ctx, cfg, sites)
	if summary.ReportPath != "" {
		fmt.Fprintln(cmd.OutOrStdout(), summary.ReportPath)
	}
	if err != nil {
		return err
	}
	if summary.Cancelled {
		slog.Warn("run stopped early, report holds partial output", "reason", context.Cause(ctx))
	}
	return nil
}

// applyFlags overrides environment defaults with flags the user set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var errs []error
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			v, err := flags.GetString(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if flags.Changed(name) {
			v, err := flags.GetInt(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if flags.Changed(name) {
			v, err := flags.GetBool(name)
			errs = append(errs, err)
			*dst = v
		}
	}

	str("sites", &cfg.Run.SitesFile)
	str("config", &cfg.Run.HintsFile)
	num("first-n", &cfg.Run.FirstN)
	num("site-workers", &cfg.Run.SiteWorkers)
	num("max-sessions", &cfg.Browser.MaxSessions)
	boolean("domain-memory", &cfg.Run.DomainMemory)
	str("out-dir", &cfg.Output.Dir)
	boolean("snapshots", &cfg.Output.Snapshots)
	str("history-db", &cfg.Output.HistoryDB)
	str("webhook-url", &cfg.Webhook.URL)
	str("webhook-secret", &cfg.Webhook.Secret)
	str("log-dir", &cfg.Log.Dir)

	if flags.Changed("run-timeout") {
		d, err := flags.GetDuration("run-timeout")
		errs = append(errs, err)
		cfg.Run.RunTimeout = d
	}

	if flags.Changed("dynamic") {
		v, _ := flags.GetString("dynamic")
		mode, err := models.ParseFetchMode(v)
		if err != nil {
			errs = append(errs, err)
		} else if mode == models.ModeStatic {
			errs = append(errs, fmt.Errorf("--dynamic accepts auto or always; use --static-only"))
		} else {
			cfg.Run.Mode = mode
		}
	}
	if static, _ := flags.GetBool("static-only"); static {
		if flags.Changed("dynamic") && cfg.Run.Mode == models.ModeDynamicAlways {
			errs = append(errs, errors.New("--static-only and --dynamic always are mutually exclusive"))
		}
		cfg.Run.Mode = models.ModeStatic
	}
	return errors.Join(errs...)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, _ = cmd.Root().PersistentFlags().GetBool("verbose")
	}
	return verbose
}
