package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodTabs drives a Chromium instance over the DevTools protocol.
type RodTabs struct {
	browser *rod.Browser
	logger  *slog.Logger
}

// ConnectRod attaches to the browser at controlURL, or launches a headless
// one when controlURL is empty.
func ConnectRod(ctx context.Context, controlURL string, logger *slog.Logger) (*RodTabs, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if controlURL == "" {
		u, err := launcher.New().Headless(true).Launch()
		if err != nil {
			return nil, fmt.Errorf("launching browser: %w", err)
		}
		controlURL = u
		logger.Info("launched headless browser", "control_url", controlURL)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	return &RodTabs{browser: b, logger: logger}, nil
}

// Create opens url in a new tab.
func (t *RodTabs) Create(ctx context.Context, url string) error {
	if _, err := t.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url}); err != nil {
		return fmt.Errorf("opening tab %s: %w", url, err)
	}
	return nil
}

// Query lists open tabs whose URL matches any of patterns.
func (t *RodTabs) Query(ctx context.Context, patterns []string) ([]Tab, error) {
	pages, err := t.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("listing tabs: %w", err)
	}

	var tabs []Tab
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			t.logger.Warn("skipping tab without target info", "error", err)
			continue
		}
		if MatchAny(patterns, info.URL) {
			tabs = append(tabs, Tab{ID: string(info.TargetID), URL: info.URL})
		}
	}
	return tabs, nil
}

// Reload reloads the tab with the given target id.
func (t *RodTabs) Reload(ctx context.Context, id string) error {
	page, err := t.browser.Context(ctx).PageFromTarget(proto.TargetTargetID(id))
	if err != nil {
		return fmt.Errorf("reloading tab %s: %w: %v", id, ErrTabNotFound, err)
	}
	if err := page.Reload(); err != nil {
		return fmt.Errorf("reloading tab %s: %w", id, err)
	}
	return nil
}

// Close shuts the browser down.
func (t *RodTabs) Close() error {
	return t.browser.Close()
}
