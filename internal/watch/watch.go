// Package watch decides when the page has changed enough for dynamic features
// to run again.
package watch

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/wozniakbe/minimal-x/internal/dom"
	"github.com/wozniakbe/minimal-x/internal/loop"
	"github.com/wozniakbe/minimal-x/internal/metrics"
)

// Predicate reports whether a batch may affect a tracked feature.
type Predicate func(doc *dom.Document, batch dom.MutationBatch) bool

// RelevantTo returns the default predicate for the given selectors.
//
// A batch is relevant when a childList record adds an element, not inserted by
// the engine, that matches one of the selectors or has a descendant that does.
// Everything else is skippable: attribute records, added text and comments,
// removals (features only act on elements that are present) and engine-owned
// nodes such as the engine's <style> elements.
func RelevantTo(selectors []string) Predicate {
	return func(doc *dom.Document, batch dom.MutationBatch) bool {
		for _, rec := range batch {
			if rec.Type != dom.ChildList {
				continue
			}
			for _, n := range rec.AddedNodes {
				if n.Type != html.ElementNode || dom.IsOwned(n) {
					continue
				}
				for _, sel := range selectors {
					ok, err := doc.Matches(n, sel)
					// an unusable selector cannot prove the batch irrelevant
					if err != nil || ok {
						return true
					}
				}
			}
		}
		return false
	}
}

// Watcher observes a document's child-list changes and calls its handlers
// for batches the predicate keeps.
type Watcher struct {
	relevant Predicate
	logger   *slog.Logger
	metrics  *metrics.Metrics

	doc      *dom.Document
	observer *dom.Observer
	handlers []func()
}

// New returns a watcher using relevant to filter batches.
func New(relevant Predicate, logger *slog.Logger, m *metrics.Metrics) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{relevant: relevant, logger: logger, metrics: m}
}

// OnChange registers handler for relevant batches.
func (w *Watcher) OnChange(handler func()) {
	w.handlers = append(w.handlers, handler)
}

// Attach starts observing the whole of doc.
func (w *Watcher) Attach(doc *dom.Document) {
	w.Detach()
	w.doc = doc
	w.observer = doc.Observe(doc.Root(), dom.ObserveOptions{ChildList: true, Subtree: true}, w.Handle)
}

// Detach stops observing.
func (w *Watcher) Detach() {
	if w.observer != nil {
		w.observer.Disconnect()
		w.observer = nil
	}
}

// Handle makes the skip/trigger decision for one batch.
func (w *Watcher) Handle(batch dom.MutationBatch) {
	if len(batch) == 0 || !w.relevant(w.doc, batch) {
		w.metrics.MutationBatch("skipped")
		return
	}
	w.metrics.MutationBatch("triggered")
	w.logger.Debug("relevant mutations, re-running dynamic features", "records", len(batch))
	for _, h := range w.handlers {
		h()
	}
}

// DefaultResizeWait is the quiescence window for resize events.
const DefaultResizeWait = 50 * time.Millisecond

// ResizeListener turns bursts of resize events into one trailing call.
type ResizeListener struct {
	mu       sync.Mutex
	debounce *loop.Debouncer
}

// NewResizeListener calls fn once resizes have stopped for wait.
func NewResizeListener(wait time.Duration, fn func()) *ResizeListener {
	if wait <= 0 {
		wait = DefaultResizeWait
	}
	return &ResizeListener{debounce: loop.NewDebouncer(wait, fn)}
}

// Resize records one resize event.
func (r *ResizeListener) Resize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debounce != nil {
		r.debounce.Trigger()
	}
}

// Close drops any pending call; later resizes are ignored.
func (r *ResizeListener) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debounce != nil {
		r.debounce.Stop()
		r.debounce = nil
	}
}
