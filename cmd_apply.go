package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/wozniakbe/minimal-x/internal/dom"
	"github.com/wozniakbe/minimal-x/internal/prefs"
)

var (
	applyOut    string
	applySet    map[string]string
	applySettle time.Duration
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the preferences to a page once and print the result",
	Long: `Load the page from PAGE_SOURCE, run the page-load sequence against it and
write the modified HTML out.

Examples:
  minimal-x apply --out page.html
  minimal-x apply --set writer-mode=on --settle 4s`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVarP(&applyOut, "out", "o", "", "write the page here instead of stdout")
	applyCmd.Flags().StringToStringVar(&applySet, "set", nil, "save preferences before applying (key=value)")
	applyCmd.Flags().DurationVar(&applySettle, "settle", 0, "keep the page running this long before rendering")
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(os.Stderr, cfg.LogLevel, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if len(applySet) > 0 {
		partial := make(prefs.Set, len(applySet))
		for k, v := range applySet {
			partial[prefs.Key(k)] = prefs.Value(v)
		}
		if _, err := a.store.Set(ctx, partial); err != nil {
			return fmt.Errorf("saving preferences: %w", err)
		}
	}

	if err := a.start(ctx); err != nil {
		return fmt.Errorf("starting page: %w", err)
	}

	if applySettle > 0 {
		select {
		case <-time.After(applySettle):
		case <-ctx.Done():
		}
	}

	var out io.Writer = cmd.OutOrStdout()
	if applyOut != "" {
		f, err := os.Create(applyOut)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		out = f
	}

	var renderErr error
	if err := a.ctl.Do(context.Background(), func(doc *dom.Document) { renderErr = doc.Render(out) }); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	if renderErr != nil {
		return fmt.Errorf("rendering page: %w", renderErr)
	}
	return nil
}
