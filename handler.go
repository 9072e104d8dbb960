package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wozniakbe/minimal-x/internal/prefs"
)

// PreferencesHandler holds dependencies for preference CRUD handlers.
type PreferencesHandler struct {
	store   *prefs.Store
	profile string
	logger  *slog.Logger
}

// NewPreferencesHandler creates a handler serving profile from store.
func NewPreferencesHandler(store *prefs.Store, profile string, logger *slog.Logger) *PreferencesHandler {
	return &PreferencesHandler{store: store, profile: profile, logger: logger}
}

// authorize checks that the JWT subject matches the requested profileId and
// that this process serves that profile.
func (h *PreferencesHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	profileID := r.PathValue("profileId")
	if profileID == "" {
		writeError(w, http.StatusBadRequest, "missing profileId")
		return "", false
	}

	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return "", false
	}

	if claims.Subject != profileID {
		writeError(w, http.StatusForbidden, "access denied")
		return "", false
	}

	if profileID != h.profile {
		writeError(w, http.StatusNotFound, "profile not found")
		return "", false
	}

	return profileID, true
}

// key resolves the {key} path value against the schema.
func (h *PreferencesHandler) key(w http.ResponseWriter, r *http.Request) (prefs.Key, bool) {
	key := prefs.Key(r.PathValue("key"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing key")
		return "", false
	}
	if _, ok := h.store.Schema().Lookup(key); !ok {
		writeError(w, http.StatusNotFound, "preference not found")
		return "", false
	}
	return key, true
}

func (h *PreferencesHandler) decode(w http.ResponseWriter, r *http.Request) (prefs.Set, bool) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	set := make(prefs.Set, len(body))
	for k, v := range body {
		set[prefs.Key(k)] = prefs.Value(v)
	}
	return set, true
}

func (h *PreferencesHandler) respond(w http.ResponseWriter, r *http.Request, profileID string) {
	all := h.store.GetAll(r.Context())
	out := make(map[string]string, len(all))
	for k, v := range all {
		out[string(k)] = string(v)
	}
	writeJSON(w, http.StatusOK, PreferencesResponse{ProfileID: profileID, Preferences: out})
}

func (h *PreferencesHandler) storeError(w http.ResponseWriter, op string, err error, profileID string) {
	status := storeErrorStatus(err)
	if status == http.StatusBadRequest {
		writeError(w, status, err.Error())
		return
	}
	h.logger.Error(op+" failed", "error", err, "profileId", profileID)
	if status == http.StatusServiceUnavailable {
		writeError(w, status, "preference storage unavailable")
		return
	}
	writeError(w, status, "failed to save preferences")
}

// GetAll returns every preference, defaults included.
func (h *PreferencesHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	h.respond(w, r, profileID)
}

// GetOne returns a single preference by key.
func (h *PreferencesHandler) GetOne(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r); !ok {
		return
	}
	key, ok := h.key(w, r)
	if !ok {
		return
	}

	value := h.store.Get(r.Context(), key)
	writeJSON(w, http.StatusOK, SinglePrefResponse{Key: string(key), Value: string(value)})
}

// ReplaceAll replaces all preferences (PUT and POST). Keys missing from the
// body go back to their defaults.
func (h *PreferencesHandler) ReplaceAll(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	body, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.store.Schema().Validate(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	full := h.store.Schema().Defaults()
	full.Merge(body)

	if _, err := h.store.Set(r.Context(), full); err != nil {
		h.storeError(w, "store.Set", err, profileID)
		return
	}

	h.respond(w, r, profileID)
}

// PatchPrefs partially updates preferences (merge).
func (h *PreferencesHandler) PatchPrefs(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	body, ok := h.decode(w, r)
	if !ok {
		return
	}

	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty preferences")
		return
	}

	if _, err := h.store.Set(r.Context(), body); err != nil {
		h.storeError(w, "store.Set", err, profileID)
		return
	}

	h.respond(w, r, profileID)
}

// DeleteAll restores every preference to its default.
func (h *PreferencesHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if _, err := h.store.Reset(r.Context()); err != nil {
		h.storeError(w, "store.Reset", err, profileID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteOne restores a single preference to its default.
func (h *PreferencesHandler) DeleteOne(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	key, ok := h.key(w, r)
	if !ok {
		return
	}

	if _, err := h.store.Reset(r.Context(), key); err != nil {
		h.storeError(w, "store.Reset", err, profileID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Schema lists the known preferences.
func (h *PreferencesHandler) Schema(w http.ResponseWriter, r *http.Request) {
	schema := h.store.Schema()
	resp := SchemaResponse{Preferences: make([]SchemaEntry, 0, len(schema))}
	for _, d := range schema {
		allowed := make([]string, len(d.Allowed))
		for i, v := range d.Allowed {
			allowed[i] = string(v)
		}
		resp.Preferences = append(resp.Preferences, SchemaEntry{
			Key:         string(d.Key),
			Default:     string(d.Default),
			Allowed:     allowed,
			Description: d.Description,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
