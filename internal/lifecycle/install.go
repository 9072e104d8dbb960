package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wozniakbe/minimal-x/internal/browser"
)

// Install reasons reported by the platform.
const (
	ReasonInstall = "install"
	ReasonUpdate  = "update"
)

// Defaults for the first-install handler.
const DefaultWelcomeURL = "https://typefully.com/minimal-twitter/welcome"

var DefaultSitePatterns = []string{"*://twitter.com/*", "*://x.com/*"}

// InstallConfig says where to send a new user and which tabs to refresh.
type InstallConfig struct {
	WelcomeURL   string
	SitePatterns []string
}

// OnInstalled handles the platform install event. Only a fresh install opens
// the welcome page and reloads already-open site tabs so they pick up the
// content script; updates and reloads do nothing. Failures are logged and
// returned joined, after every step has been attempted.
func OnInstalled(ctx context.Context, reason string, tabs browser.Tabs, cfg InstallConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if reason != ReasonInstall {
		logger.Debug("ignoring install event", "reason", reason)
		return nil
	}

	var errs []error
	if cfg.WelcomeURL != "" {
		if err := tabs.Create(ctx, cfg.WelcomeURL); err != nil {
			logger.Warn("failed to open welcome page", "url", cfg.WelcomeURL, "error", err)
			errs = append(errs, err)
		}
	}

	if len(cfg.SitePatterns) == 0 {
		return errors.Join(errs...)
	}
	open, err := tabs.Query(ctx, cfg.SitePatterns)
	if err != nil {
		logger.Warn("failed to query tabs", "patterns", cfg.SitePatterns, "error", err)
		return errors.Join(append(errs, err)...)
	}
	seen := make(map[string]bool)
	for _, tab := range open {
		if seen[tab.ID] {
			continue
		}
		seen[tab.ID] = true
		if err := tabs.Reload(ctx, tab.ID); err != nil {
			logger.Warn("failed to reload tab", "tab", tab.ID, "url", tab.URL, "error", err)
			errs = append(errs, err)
			continue
		}
		logger.Info("reloaded tab", "tab", tab.ID, "url", tab.URL)
	}
	return errors.Join(errs...)
}
