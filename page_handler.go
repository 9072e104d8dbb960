package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/wozniakbe/minimal-x/internal/dom"
)

const maxFragmentBytes = 1 << 20

// Page is the part of the lifecycle controller the page handlers use.
type Page interface {
	Do(ctx context.Context, fn func(doc *dom.Document)) error
	Resize()
	Stylesheets(ctx context.Context) ([]string, error)
}

// PageHandler exposes the modified page.
type PageHandler struct {
	page   Page
	logger *slog.Logger
}

// NewPageHandler creates a handler over page.
func NewPageHandler(page Page, logger *slog.Logger) *PageHandler {
	return &PageHandler{page: page, logger: logger}
}

// Render writes the current document as HTML.
func (h *PageHandler) Render(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	var renderErr error
	if err := h.page.Do(r.Context(), func(doc *dom.Document) { renderErr = doc.Render(&buf) }); err != nil {
		h.logger.Error("page loop unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "page not running")
		return
	}
	if renderErr != nil {
		h.logger.Error("rendering page failed", "error", renderErr)
		writeError(w, http.StatusInternalServerError, "failed to render page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

var errNoParent = errors.New("no element matches selector")

// AppendNodes parses the request body as an HTML fragment and appends it to
// the first element matching ?selector= (default body), the way the host
// page renders new content.
func (h *PageHandler) AppendNodes(w http.ResponseWriter, r *http.Request) {
	selector := r.URL.Query().Get("selector")
	if selector == "" {
		selector = "body"
	}

	markup, err := io.ReadAll(io.LimitReader(r.Body, maxFragmentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var (
		added  int
		opErr  error
		status = http.StatusBadRequest
	)
	err = h.page.Do(r.Context(), func(doc *dom.Document) {
		parent, err := doc.QuerySelector(selector)
		if err != nil {
			opErr = err
			return
		}
		if parent == nil {
			opErr, status = errNoParent, http.StatusNotFound
			return
		}
		nodes, err := dom.ParseFragment(string(markup), parent)
		if err != nil {
			opErr = err
			return
		}
		for _, n := range nodes {
			doc.AppendChild(parent, n)
		}
		added = len(nodes)
	})
	if err != nil {
		h.logger.Error("page loop unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "page not running")
		return
	}
	if opErr != nil {
		writeError(w, status, opErr.Error())
		return
	}

	writeJSON(w, http.StatusCreated, NodesResponse{Added: added})
}

// Resize reports a viewport resize to the page.
func (h *PageHandler) Resize(w http.ResponseWriter, r *http.Request) {
	h.page.Resize()
	w.WriteHeader(http.StatusAccepted)
}

// Stylesheets lists the engine's stylesheets in installation order.
func (h *PageHandler) Stylesheets(w http.ResponseWriter, r *http.Request) {
	names, err := h.page.Stylesheets(r.Context())
	if err != nil {
		h.logger.Error("page loop unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "page not running")
		return
	}
	writeJSON(w, http.StatusOK, StylesheetsResponse{Stylesheets: names})
}
