// Package server provides the HTTP server and routing.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/savid/streamflow/internal/catalog"
	"github.com/savid/streamflow/internal/playlist"
	"github.com/sirupsen/logrus"
)

// Routes sets up all HTTP routes.
type Routes struct {
	log      logrus.FieldLogger
	store    *playlist.Store
	handlers *catalog.Handlers
}

// NewRoutes creates a new routes instance.
func NewRoutes(
	log logrus.FieldLogger,
	store *playlist.Store,
	handlers *catalog.Handlers,
) *Routes {
	return &Routes{
		log:      log.WithField("component", "routes"),
		store:    store,
		handlers: handlers,
	}
}

// Handler returns the main HTTP handler with all routes.
func (r *Routes) Handler() http.Handler {
	router := mux.NewRouter()

	// JSON API
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/playlist", r.handlers.Playlist).Methods(http.MethodGet)
	api.HandleFunc("/playlist", r.handlers.Upload).Methods(http.MethodPost, http.MethodPut)
	api.HandleFunc("/reload", r.handlers.Reload).Methods(http.MethodPost)
	api.HandleFunc("/groups", r.handlers.Groups).Methods(http.MethodGet)
	api.HandleFunc("/channels", r.handlers.Channels).Methods(http.MethodGet)
	api.HandleFunc("/channels/{id}", r.handlers.Channel).Methods(http.MethodGet)
	api.Use(gzipMiddleware)

	// Playback
	router.HandleFunc("/tune/{id}", r.handlers.Tune).Methods(http.MethodGet)

	// M3U exports
	router.Handle("/playlist.m3u", gzipMiddleware(http.HandlerFunc(r.handlers.M3U))).Methods(http.MethodGet)
	router.Handle("/groups/{slug}.m3u", gzipMiddleware(http.HandlerFunc(r.handlers.GroupM3U))).Methods(http.MethodGet)

	// Health check and metrics
	router.HandleFunc("/health", r.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.Use(r.loggingMiddleware)

	return router
}

func (r *Routes) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := struct {
		Status   string `json:"status"`
		HasData  bool   `json:"hasData"`
		LastSync string `json:"lastSync"`
	}{
		Status:   "ok",
		HasData:  r.store.HasData(),
		LastSync: r.store.LastSync().UTC().Format("2006-01-02T15:04:05Z"),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(status); err != nil {
		r.log.WithError(err).Error("Failed to write health response")
	}
}
