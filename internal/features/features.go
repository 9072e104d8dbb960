// Package features applies the user's toggles to the page.
//
// Static features depend only on the preference set and are applied once per
// page load (and again when preferences change). Dynamic features target
// elements the host page re-renders, so they are re-run whenever the watched
// DOM changes. Every feature is idempotent.
package features

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/wozniakbe/minimal-x/internal/dom"
	"github.com/wozniakbe/minimal-x/internal/metrics"
	"github.com/wozniakbe/minimal-x/internal/prefs"
)

// Kind tells when a feature runs.
type Kind int

const (
	Static Kind = iota
	Dynamic
)

func (k Kind) String() string {
	if k == Dynamic {
		return "dynamic"
	}
	return "static"
}

// ApplyFunc changes matched elements according to value. It must leave the
// document in the same state when called twice with the same value.
type ApplyFunc func(doc *dom.Document, value prefs.Value, matched []*html.Node)

// Feature ties a preference to the elements it affects.
type Feature struct {
	Key      prefs.Key
	Kind     Kind
	Selector string
	Apply    ApplyFunc
}

// Selectors used by the default registry.
const (
	ViewCountSelector     = `a[href$="/analytics"]`
	PromotedPostSelector  = `[data-testid="placementTracking"]`
	ComposeButtonSelector = `[data-testid="SideNav_NewTweet_Button"]`
)

// DefaultRegistry returns the features the engine ships with.
func DefaultRegistry() []Feature {
	return []Feature{
		{Key: prefs.ViewCountVisibility, Kind: Dynamic, Selector: ViewCountSelector, Apply: ToggleHidden},
		{Key: prefs.PromotedPostsVisibility, Kind: Dynamic, Selector: PromotedPostSelector, Apply: ToggleHidden},
		{Key: prefs.WriterMode, Kind: Static, Selector: "body", Apply: BodyAttribute(prefs.WriterMode)},
		{Key: prefs.SidebarVisibility, Kind: Static, Selector: "body", Apply: BodyAttribute(prefs.SidebarVisibility)},
		{Key: prefs.NavigationLabels, Kind: Static, Selector: "body", Apply: BodyAttribute(prefs.NavigationLabels)},
	}
}

// Engine runs features against a document. It must be used from the page loop.
type Engine struct {
	doc      *dom.Document
	features []Feature
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewEngine returns an engine over doc with the given registry.
func NewEngine(doc *dom.Document, registry []Feature, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{doc: doc, features: registry, logger: logger, metrics: m}
}

// ApplyStatic runs every static feature once.
func (e *Engine) ApplyStatic(set prefs.Set) {
	e.run(Static, set)
}

// RunDynamic runs every dynamic feature against the current tree.
func (e *Engine) RunDynamic(set prefs.Set) {
	e.run(Dynamic, set)
}

func (e *Engine) run(kind Kind, set prefs.Set) {
	for _, f := range e.features {
		if f.Kind != kind {
			continue
		}
		matched, err := e.doc.QuerySelectorAll(f.Selector)
		if err != nil {
			e.logger.Error("invalid feature selector", "key", f.Key, "selector", f.Selector, "error", err)
			continue
		}
		if len(matched) == 0 {
			continue
		}
		f.Apply(e.doc, set[f.Key], matched)
	}
	e.metrics.FeatureRun(kind.String())
}

// TrackedSelectors lists the selectors of dynamic features.
func (e *Engine) TrackedSelectors() []string {
	var out []string
	for _, f := range e.features {
		if f.Kind == Dynamic {
			out = append(out, f.Selector)
		}
	}
	return out
}

// ToggleHidden hides each matched element's parent for "on", taking the
// element out of the accessibility tree and tab order, and restores it for
// "off". Other values are ignored.
func ToggleHidden(doc *dom.Document, value prefs.Value, matched []*html.Node) {
	for _, el := range matched {
		parent := el.Parent
		if parent == nil || parent.Type != html.ElementNode {
			continue
		}
		switch value {
		case prefs.On:
			doc.SetStyleProperty(parent, "display", "none")
			doc.SetAttribute(el, "aria-hidden", "true")
			doc.SetAttribute(el, "tabindex", "-1")
		case prefs.Off:
			doc.SetStyleProperty(parent, "display", "flex")
			doc.RemoveAttribute(el, "aria-hidden")
			doc.RemoveAttribute(el, "tabindex")
		}
	}
}

// BodyAttribute mirrors a preference into a data attribute on the matched
// elements, for stylesheets to key off.
func BodyAttribute(key prefs.Key) ApplyFunc {
	attr := "data-minimalx-" + string(key)
	return func(doc *dom.Document, value prefs.Value, matched []*html.Node) {
		for _, el := range matched {
			if value == "" {
				doc.RemoveAttribute(el, attr)
				continue
			}
			doc.SetAttribute(el, attr, string(value))
		}
	}
}
