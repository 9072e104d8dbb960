package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wozniakbe/minimal-x/internal/prefs"
)

// mockBackend implements prefs.Backend for testing.
type mockBackend struct {
	data    map[string]string
	err     error
	invalid bool
}

func newMockBackend() *mockBackend {
	return &mockBackend{data: make(map[string]string)}
}

func (m *mockBackend) Get(_ context.Context, keys []string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *mockBackend) Set(_ context.Context, kv map[string]string) error {
	if m.err != nil {
		return m.err
	}
	for k, v := range kv {
		m.data[k] = v
	}
	return nil
}

func (m *mockBackend) Remove(_ context.Context, keys []string) error {
	if m.err != nil {
		return m.err
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mockBackend) Valid() bool { return !m.invalid }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newTestHandler(backend *mockBackend) *PreferencesHandler {
	store := prefs.NewStore(backend, prefs.WithLogger(testLogger()))
	return NewPreferencesHandler(store, "profile1", testLogger())
}

// withClaims returns a request with JWT claims set in context.
func withClaims(r *http.Request, sub string) *http.Request {
	ctx := context.WithValue(r.Context(), claimsKey, Claims{Subject: sub})
	return r.WithContext(ctx)
}

func prefsMux(h *PreferencesHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/profiles/{profileId}/preferences", h.GetAll)
	mux.HandleFunc("GET /api/v1/profiles/{profileId}/preferences/{key}", h.GetOne)
	mux.HandleFunc("PUT /api/v1/profiles/{profileId}/preferences", h.ReplaceAll)
	mux.HandleFunc("PATCH /api/v1/profiles/{profileId}/preferences", h.PatchPrefs)
	mux.HandleFunc("DELETE /api/v1/profiles/{profileId}/preferences", h.DeleteAll)
	mux.HandleFunc("DELETE /api/v1/profiles/{profileId}/preferences/{key}", h.DeleteOne)
	return mux
}

func do(mux http.Handler, method, path, body, sub string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	req = withClaims(req, sub)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestGetAll_Defaults(t *testing.T) {
	mux := prefsMux(newTestHandler(newMockBackend()))

	w := do(mux, "GET", "/api/v1/profiles/profile1/preferences", "", "profile1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp PreferencesResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.ProfileID != "profile1" {
		t.Fatalf("expected profileId profile1, got %s", resp.ProfileID)
	}
	if len(resp.Preferences) != 5 {
		t.Fatalf("expected all 5 preferences, got %v", resp.Preferences)
	}
	if resp.Preferences["view-count-visibility"] != "on" || resp.Preferences["writer-mode"] != "off" {
		t.Fatalf("expected defaults, got %v", resp.Preferences)
	}
}

func TestReplaceAllAndGetAll(t *testing.T) {
	backend := newMockBackend()
	backend.data["sidebar-visibility"] = "on"
	mux := prefsMux(newTestHandler(backend))

	w := do(mux, "PUT", "/api/v1/profiles/profile1/preferences", `{"writer-mode":"on","view-count-visibility":"off"}`, "profile1")
	if w.Code != http.StatusOK {
		t.Fatalf("PUT: expected 200, got %d", w.Code)
	}

	w = do(mux, "GET", "/api/v1/profiles/profile1/preferences", "", "profile1")
	var resp PreferencesResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Preferences["writer-mode"] != "on" {
		t.Fatalf("expected writer-mode=on, got %s", resp.Preferences["writer-mode"])
	}
	if resp.Preferences["view-count-visibility"] != "off" {
		t.Fatalf("expected view-count-visibility=off, got %s", resp.Preferences["view-count-visibility"])
	}
	if resp.Preferences["sidebar-visibility"] != "off" {
		t.Fatalf("expected replace to restore sidebar-visibility default, got %s", resp.Preferences["sidebar-visibility"])
	}
}

func TestGetOne(t *testing.T) {
	backend := newMockBackend()
	backend.data["writer-mode"] = "on"
	mux := prefsMux(newTestHandler(backend))

	w := do(mux, "GET", "/api/v1/profiles/profile1/preferences/writer-mode", "", "profile1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp SinglePrefResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Key != "writer-mode" || resp.Value != "on" {
		t.Fatalf("expected writer-mode=on, got %s=%s", resp.Key, resp.Value)
	}
}

func TestGetOne_NotFound(t *testing.T) {
	mux := prefsMux(newTestHandler(newMockBackend()))

	w := do(mux, "GET", "/api/v1/profiles/profile1/preferences/theme", "", "profile1")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPatchPrefs(t *testing.T) {
	backend := newMockBackend()
	backend.data["writer-mode"] = "on"
	mux := prefsMux(newTestHandler(backend))

	w := do(mux, "PATCH", "/api/v1/profiles/profile1/preferences", `{"navigation-labels":"on"}`, "profile1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp PreferencesResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Preferences["writer-mode"] != "on" {
		t.Fatalf("expected writer-mode=on after patch, got %s", resp.Preferences["writer-mode"])
	}
	if resp.Preferences["navigation-labels"] != "on" {
		t.Fatalf("expected navigation-labels=on after patch, got %s", resp.Preferences["navigation-labels"])
	}
}

func TestPatchPrefs_Validation(t *testing.T) {
	backend := newMockBackend()
	mux := prefsMux(newTestHandler(backend))

	for _, body := range []string{`{}`, `{"theme":"dark"}`, `{"writer-mode":"maybe"}`} {
		w := do(mux, "PATCH", "/api/v1/profiles/profile1/preferences", body, "profile1")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, w.Code)
		}
	}
	if len(backend.data) != 0 {
		t.Fatalf("expected nothing stored, got %v", backend.data)
	}
}

func TestDeleteAll(t *testing.T) {
	backend := newMockBackend()
	backend.data["writer-mode"] = "on"
	mux := prefsMux(newTestHandler(backend))

	w := do(mux, "DELETE", "/api/v1/profiles/profile1/preferences", "", "profile1")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	if len(backend.data) != 0 {
		t.Fatalf("expected preferences to be reset, got %v", backend.data)
	}
}

func TestDeleteOne(t *testing.T) {
	backend := newMockBackend()
	backend.data["writer-mode"] = "on"
	backend.data["navigation-labels"] = "on"
	mux := prefsMux(newTestHandler(backend))

	w := do(mux, "DELETE", "/api/v1/profiles/profile1/preferences/writer-mode", "", "profile1")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	if _, exists := backend.data["writer-mode"]; exists {
		t.Fatal("expected writer-mode to be reset")
	}
	if backend.data["navigation-labels"] != "on" {
		t.Fatal("expected navigation-labels to still exist")
	}
}

func TestAuthorize_Forbidden(t *testing.T) {
	mux := prefsMux(newTestHandler(newMockBackend()))

	w := do(mux, "GET", "/api/v1/profiles/profile1/preferences", "", "other-profile")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAuthorize_OtherProfile(t *testing.T) {
	mux := prefsMux(newTestHandler(newMockBackend()))

	w := do(mux, "GET", "/api/v1/profiles/profile2/preferences", "", "profile2")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStoreError_ReadsFallBack(t *testing.T) {
	backend := newMockBackend()
	backend.err = fmt.Errorf("database unavailable")
	mux := prefsMux(newTestHandler(backend))

	w := do(mux, "GET", "/api/v1/profiles/profile1/preferences", "", "profile1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with defaults, got %d", w.Code)
	}
	var resp PreferencesResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Preferences["promoted-posts-visibility"] != "on" {
		t.Fatalf("expected default, got %v", resp.Preferences)
	}
}

func TestStoreError_Write(t *testing.T) {
	backend := newMockBackend()
	backend.err = fmt.Errorf("database unavailable")
	mux := prefsMux(newTestHandler(backend))

	w := do(mux, "PATCH", "/api/v1/profiles/profile1/preferences", `{"writer-mode":"on"}`, "profile1")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestStoreError_Invalidated(t *testing.T) {
	backend := newMockBackend()
	backend.invalid = true
	mux := prefsMux(newTestHandler(backend))

	w := do(mux, "PATCH", "/api/v1/profiles/profile1/preferences", `{"writer-mode":"on"}`, "profile1")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	w = do(mux, "DELETE", "/api/v1/profiles/profile1/preferences", "", "profile1")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestReplaceAll_InvalidJSON(t *testing.T) {
	mux := prefsMux(newTestHandler(newMockBackend()))

	w := do(mux, "PUT", "/api/v1/profiles/profile1/preferences", `not json`, "profile1")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSchema(t *testing.T) {
	h := newTestHandler(newMockBackend())
	w := httptest.NewRecorder()
	h.Schema(w, httptest.NewRequest("GET", "/api/v1/schema", nil))

	var resp SchemaResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Preferences) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(resp.Preferences))
	}
	first := resp.Preferences[0]
	if first.Key != "view-count-visibility" || first.Default != "on" || len(first.Allowed) != 2 {
		t.Fatalf("unexpected first entry %+v", first)
	}
}
