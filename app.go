package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wozniakbe/minimal-x/internal/dom"
	"github.com/wozniakbe/minimal-x/internal/lifecycle"
	"github.com/wozniakbe/minimal-x/internal/loop"
	"github.com/wozniakbe/minimal-x/internal/metrics"
	"github.com/wozniakbe/minimal-x/internal/prefs"
	"github.com/wozniakbe/minimal-x/internal/styles"
)

const (
	writeBurst    = 4
	reloadQuiet   = 200 * time.Millisecond
	blankPage     = `<!DOCTYPE html><html><head></head><body></body></html>`
	maxPageBytes  = 32 << 20
	fetchPageWait = 30 * time.Second
)

// app is one running page: its document, loop, preference store and
// lifecycle controller.
type app struct {
	cfg      Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    *prefs.Store
	loop     *loop.Loop
	ctl      *lifecycle.Controller

	stopLoop context.CancelFunc
	closers  []func() error
}

func newApp(ctx context.Context, cfg Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	backend, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	a.store = prefs.NewStore(backend,
		prefs.WithLogger(logger),
		prefs.WithMetrics(a.metrics),
		prefs.WithWriteLimit(cfg.WriteInterval, writeBurst),
	)

	if sq, ok := backend.(*prefs.SQLiteBackend); ok {
		fw, err := prefs.WatchFile(ctx, a.store, sq.Path(), reloadQuiet, logger)
		if err != nil {
			logger.Warn("not watching preference database for outside changes", "path", sq.Path(), "error", err)
		} else {
			a.closers = append(a.closers, fw.Close)
		}
	}

	client := &http.Client{}
	doc, err := loadPage(ctx, cfg.PageSource, client)
	if err != nil {
		a.close()
		return nil, err
	}

	a.loop = loop.New(logger)
	loopCtx, cancel := context.WithCancel(context.Background())
	a.stopLoop = cancel
	go a.loop.Run(loopCtx)

	a.ctl, err = lifecycle.New(lifecycle.Options{
		Loop:     a.loop,
		Document: doc,
		Store:    a.store,
		Loader: &styles.Loader{
			Environment: styles.Mode(cfg.Mode),
			Client:      client,
			MainURL:     cfg.MainCSSURL,
			BrandURL:    cfg.BrandCSSURL,
			Timeout:     cfg.FetchTimeout,
		},
		ResizeWait: cfg.ResizeDebounce,
		ColorDelay: cfg.ColorReextractDelay,
		Logger:     logger,
		Metrics:    a.metrics,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) openBackend(ctx context.Context) (prefs.Backend, error) {
	switch a.cfg.StorageBackend {
	case "memory":
		return prefs.NewMemoryBackend(), nil
	case "dynamodb":
		b, err := prefs.NewDynamoBackend(ctx, prefs.DynamoConfig{
			Region:    a.cfg.AWSRegion,
			Endpoint:  a.cfg.DynamoEndpoint,
			TableName: a.cfg.DynamoTableName,
			Profile:   a.cfg.ProfileID,
		})
		if err != nil {
			return nil, fmt.Errorf("creating DynamoDB store: %w", err)
		}
		a.closers = append(a.closers, b.Close)
		return b, nil
	default:
		b, err := prefs.OpenSQLite(ctx, a.cfg.SQLitePath, a.cfg.ProfileID)
		if err != nil {
			return nil, fmt.Errorf("creating SQLite store: %w", err)
		}
		a.closers = append(a.closers, b.Close)
		return b, nil
	}
}

func (a *app) start(ctx context.Context) error {
	return a.ctl.Start(ctx)
}

// close stops the page and releases the store, newest resource first.
func (a *app) close() {
	if a.ctl != nil {
		a.ctl.Stop()
	}
	if a.stopLoop != nil {
		a.stopLoop()
		<-a.loop.Done()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// loadPage parses the host page from a file or an http(s) URL. An empty
// source gives a blank document.
func loadPage(ctx context.Context, source string, client *http.Client) (*dom.Document, error) {
	switch {
	case source == "":
		return dom.ParseString(blankPage)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		ctx, cancel := context.WithTimeout(ctx, fetchPageWait)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("building page request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching page: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("fetching page %s: unexpected status %d", source, resp.StatusCode)
		}
		return dom.Parse(io.LimitReader(resp.Body, maxPageBytes))
	default:
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("opening page: %w", err)
		}
		defer f.Close()
		return dom.Parse(f)
	}
}
