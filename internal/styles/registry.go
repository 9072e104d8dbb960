// Package styles installs the engine's stylesheets into the page: bundled
// sheets first, then remote overrides when running in production.
package styles

import (
	"context"
	"log/slog"

	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"

	"github.com/wozniakbe/minimal-x/internal/dom"
)

// Sheet names.
const (
	Main     = "main"
	Brand    = "brand"
	External = "external"
	Theme    = "theme"
)

const idPrefix = "minimalx-style-"

// Installer puts a named stylesheet into the page.
type Installer interface {
	Install(ctx context.Context, name, css string) error
}

// Registry owns the <style> elements the engine adds to a document. It must
// be used from the page loop.
type Registry struct {
	doc    *dom.Document
	sheets map[string]*html.Node
	order  []string
	logger *slog.Logger
}

// NewRegistry returns a registry for doc.
func NewRegistry(doc *dom.Document, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{doc: doc, sheets: make(map[string]*html.Node), logger: logger}
}

// Install adds a <style> element named name to <head>, or replaces the text
// of the one already installed under that name.
func (r *Registry) Install(_ context.Context, name, css string) error {
	if sheet, err := parser.Parse(css); err != nil {
		r.logger.Warn("stylesheet did not parse cleanly, installing as is", "name", name, "error", err)
	} else {
		r.logger.Debug("installing stylesheet", "name", name, "rules", len(sheet.Rules))
	}

	if el, ok := r.sheets[name]; ok {
		r.doc.SetText(el, css)
		return nil
	}

	el := dom.CreateElement("style")
	el.Attr = append(el.Attr,
		html.Attribute{Key: "id", Val: idPrefix + name},
		html.Attribute{Key: dom.OwnedAttr, Val: ""},
	)
	el.AppendChild(&html.Node{Type: html.TextNode, Data: css})

	parent := r.doc.Head()
	if parent == nil {
		parent = r.doc.DocumentElement()
	}
	r.doc.AppendChild(parent, el)
	r.sheets[name] = el
	r.order = append(r.order, name)
	return nil
}

// Names lists installed sheets in installation order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Text returns the content of the named sheet.
func (r *Registry) Text(name string) (string, bool) {
	el, ok := r.sheets[name]
	if !ok {
		return "", false
	}
	return dom.Text(el), true
}
