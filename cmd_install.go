package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/wozniakbe/minimal-x/internal/browser"
	"github.com/wozniakbe/minimal-x/internal/lifecycle"
)

var installReason string

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Run the first-install handler against a browser",
	Long: `Deliver an install event: on a fresh install the welcome page is opened
and open X/Twitter tabs are reloaded. The browser is reached through
BROWSER_CONTROL_URL, or launched headless when it is empty.

Examples:
  minimal-x install
  minimal-x install --reason update`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installReason, "reason", lifecycle.ReasonInstall, "install reason (install, update)")
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(os.Stderr, cfg.LogLevel, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if installReason != lifecycle.ReasonInstall {
		return lifecycle.OnInstalled(ctx, installReason, nil, lifecycle.InstallConfig{}, logger)
	}

	tabs, err := browser.ConnectRod(ctx, cfg.BrowserControlURL, logger)
	if err != nil {
		return err
	}
	if cfg.BrowserControlURL == "" {
		defer tabs.Close()
	}

	return lifecycle.OnInstalled(ctx, installReason, tabs, lifecycle.InstallConfig{
		WelcomeURL:   cfg.WelcomeURL,
		SitePatterns: cfg.SitePatterns,
	}, logger)
}
