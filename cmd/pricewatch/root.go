package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pricewatch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricewatch",
		Short: "Heuristic product price and availability scraper",
		Long: `pricewatch visits e-commerce listing pages, discovers product links and
extracts name, price, currency and availability from each product page into a
pipe-delimited report.

Pages are fetched over plain HTTP first and escalated to a headless browser
when they look under-rendered (auto mode).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
