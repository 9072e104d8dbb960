package main

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers all routes and wraps them with the middleware chain.
func NewRouter(prefsH *PreferencesHandler, pageH *PageHandler, gatherer prometheus.Gatherer, cfg Config, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	auth := JWTAuth(cfg.JWTSecret, cfg.JWTIssuer, cfg.DevBypassAuth)
	protect := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(fn))
	}

	// Unauthenticated
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("GET /api/v1/schema", prefsH.Schema)

	// Preferences CRUD
	protect("GET /api/v1/profiles/{profileId}/preferences", prefsH.GetAll)
	protect("GET /api/v1/profiles/{profileId}/preferences/{key}", prefsH.GetOne)
	protect("PUT /api/v1/profiles/{profileId}/preferences", prefsH.ReplaceAll)
	protect("POST /api/v1/profiles/{profileId}/preferences", prefsH.ReplaceAll)
	protect("PATCH /api/v1/profiles/{profileId}/preferences", prefsH.PatchPrefs)
	protect("DELETE /api/v1/profiles/{profileId}/preferences", prefsH.DeleteAll)
	protect("DELETE /api/v1/profiles/{profileId}/preferences/{key}", prefsH.DeleteOne)

	// Page
	if pageH != nil {
		protect("GET /api/v1/page", pageH.Render)
		protect("GET /api/v1/page/stylesheets", pageH.Stylesheets)
		protect("POST /api/v1/page/nodes", pageH.AppendNodes)
		protect("POST /api/v1/page/resize", pageH.Resize)
	}

	// Middleware chain: Recovery → CORS → RequestLogging → mux (JWTAuth per route)
	var handler http.Handler = mux
	handler = RequestLogging(logger)(handler)
	handler = CORS(cfg.CORSAllowOrigin)(handler)
	handler = Recovery(logger)(handler)

	return handler
}
