// Package lifecycle sequences the engine on page load and handles the
// extension's install event.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wozniakbe/minimal-x/internal/dom"
	"github.com/wozniakbe/minimal-x/internal/features"
	"github.com/wozniakbe/minimal-x/internal/loop"
	"github.com/wozniakbe/minimal-x/internal/metrics"
	"github.com/wozniakbe/minimal-x/internal/prefs"
	"github.com/wozniakbe/minimal-x/internal/styles"
	"github.com/wozniakbe/minimal-x/internal/watch"
)

// DefaultColorDelay is how long after load theme colours are read again.
const DefaultColorDelay = 3 * time.Second

// Options holds a Controller's collaborators. Loop, Document, Store and
// Loader are required.
type Options struct {
	Loop     *loop.Loop
	Document *dom.Document
	Store    *prefs.Store
	Loader   *styles.Loader

	// Features defaults to features.DefaultRegistry().
	Features []features.Feature
	// Predicate defaults to watch.RelevantTo over the dynamic selectors.
	Predicate watch.Predicate

	ResizeWait time.Duration
	ColorDelay time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Controller runs the page-load sequence and keeps the page in line with the
// preferences afterwards.
type Controller struct {
	loop     *loop.Loop
	doc      *dom.Document
	store    *prefs.Store
	loader   styles.Loader
	registry *styles.Registry
	engine   *features.Engine
	watcher  *watch.Watcher
	logger   *slog.Logger

	resizeWait time.Duration
	colorDelay time.Duration

	// loop-owned
	current prefs.Set
	applied bool
	pending prefs.Set

	mu          sync.Mutex
	started     bool
	resize      *watch.ResizeListener
	colorTimer  *time.Timer
	unsubscribe func()
}

// New wires a controller. Nothing touches the page until Start.
func New(opts Options) (*Controller, error) {
	if opts.Loop == nil || opts.Document == nil || opts.Store == nil || opts.Loader == nil {
		return nil, fmt.Errorf("lifecycle: loop, document, store and loader are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Features
	if registry == nil {
		registry = features.DefaultRegistry()
	}

	c := &Controller{
		loop:       opts.Loop,
		doc:        opts.Document,
		store:      opts.Store,
		loader:     *opts.Loader,
		registry:   styles.NewRegistry(opts.Document, logger),
		engine:     features.NewEngine(opts.Document, registry, logger, opts.Metrics),
		logger:     logger,
		resizeWait: opts.ResizeWait,
		colorDelay: opts.ColorDelay,
	}
	if c.colorDelay <= 0 {
		c.colorDelay = DefaultColorDelay
	}
	if c.loader.Logger == nil {
		c.loader.Logger = logger
	}
	if c.loader.Metrics == nil {
		c.loader.Metrics = opts.Metrics
	}
	c.loader.Installer = &loopInstaller{loop: c.loop, registry: c.registry}

	predicate := opts.Predicate
	if predicate == nil {
		predicate = watch.RelevantTo(c.engine.TrackedSelectors())
	}
	c.watcher = watch.New(predicate, logger, opts.Metrics)
	c.watcher.OnChange(func() { c.engine.RunDynamic(c.current) })
	return c, nil
}

// Start installs stylesheets, reads the preferences, applies every feature
// and arms the watchers. The loop must already be running.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("lifecycle: already started")
	}
	c.started = true
	c.unsubscribe = c.store.Subscribe(func(changed prefs.Set) {
		c.loop.Post(func() { c.changed(changed) })
	})
	c.mu.Unlock()

	c.loader.LoadAll(ctx)

	set := c.store.GetAll(ctx)
	c.logger.Info("preferences loaded", "preferences", set)

	err := c.loop.Do(ctx, func() {
		c.current = set
		if len(c.pending) > 0 {
			c.logger.Debug("preferences changed during load", "changed", c.pending)
			c.current.Merge(c.pending)
			c.pending = nil
		}
		c.applied = true
		c.engine.ApplyStatic(c.current)
		c.engine.RunDynamic(c.current)
		c.watcher.Attach(c.doc)
		c.applyTheme()
	})
	if err != nil {
		return fmt.Errorf("applying features: %w", err)
	}
	c.loop.AddCheckpoint(c.doc.DeliverMutations)

	c.mu.Lock()
	c.resize = watch.NewResizeListener(c.resizeWait, func() {
		c.loop.Post(func() { c.engine.RunDynamic(c.current) })
	})
	c.colorTimer = c.loop.AfterFunc(c.colorDelay, c.applyTheme)
	c.mu.Unlock()
	return nil
}

// changed handles a store notification on the loop. Changes that arrive
// before the initial set is applied are held and merged over it.
func (c *Controller) changed(set prefs.Set) {
	if !c.applied {
		if c.pending == nil {
			c.pending = prefs.Set{}
		}
		c.pending.Merge(set)
		return
	}
	c.apply(set)
}

// apply merges a written set into the current preferences and re-runs every
// feature. Runs on the loop.
func (c *Controller) apply(changed prefs.Set) {
	if c.current == nil {
		c.current = prefs.Set{}
	}
	c.current.Merge(changed)
	c.logger.Debug("preferences changed", "changed", changed)
	c.engine.ApplyStatic(c.current)
	c.engine.RunDynamic(c.current)
}

// applyTheme copies the host page's colours into the theme stylesheet. Runs
// on the loop.
func (c *Controller) applyTheme() {
	rule := features.RootRule(features.ExtractThemeColors(c.doc))
	if rule == "" {
		return
	}
	if current, ok := c.registry.Text(styles.Theme); ok && current == rule {
		return
	}
	if err := c.registry.Install(context.Background(), styles.Theme, rule); err != nil {
		c.logger.Warn("failed to install theme colours", "error", err)
	}
}

// Resize reports a viewport resize.
func (c *Controller) Resize() {
	c.mu.Lock()
	r := c.resize
	c.mu.Unlock()
	if r != nil {
		r.Resize()
	}
}

// Preferences returns the set the page currently reflects.
func (c *Controller) Preferences(ctx context.Context) (prefs.Set, error) {
	var out prefs.Set
	err := c.loop.Do(ctx, func() { out = c.current.Clone() })
	return out, err
}

// Do runs fn on the loop with the page document.
func (c *Controller) Do(ctx context.Context, fn func(doc *dom.Document)) error {
	return c.loop.Do(ctx, func() { fn(c.doc) })
}

// Stylesheets lists the names of the installed stylesheets.
func (c *Controller) Stylesheets(ctx context.Context) ([]string, error) {
	var names []string
	err := c.loop.Do(ctx, func() { names = c.registry.Names() })
	return names, err
}

// Stop disarms the listeners. The page is left as it is.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.resize != nil {
		c.resize.Close()
		c.resize = nil
	}
	if c.colorTimer != nil {
		c.colorTimer.Stop()
		c.colorTimer = nil
	}
	c.mu.Unlock()
	c.loop.Post(c.watcher.Detach)
}

type loopInstaller struct {
	loop     *loop.Loop
	registry *styles.Registry
}

func (i *loopInstaller) Install(ctx context.Context, name, css string) error {
	var err error
	if doErr := i.loop.Do(ctx, func() { err = i.registry.Install(ctx, name, css) }); doErr != nil {
		return doErr
	}
	return err
}
