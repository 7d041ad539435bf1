package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/savid/streamflow/internal/catalog"
	"github.com/savid/streamflow/internal/config"
	"github.com/savid/streamflow/internal/m3u"
	"github.com/savid/streamflow/internal/playlist"
	"github.com/sirupsen/logrus"
)

const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 30 * time.Second
	statusLogInterval = 5 * time.Minute
)

// Server provides the HTTP server with lifecycle management.
type Server struct {
	log       logrus.FieldLogger
	cfg       *config.Config
	pool      *ants.Pool
	store     *playlist.Store
	loader    *playlist.Loader
	refresher *playlist.Refresher
	server    *http.Server

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewServer creates a new server instance.
func NewServer(log logrus.FieldLogger, cfg *config.Config) (*Server, error) {
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	store := playlist.NewStore()
	loader := playlist.NewLoader(log, pool, playlist.LoaderOptions{
		Timeout:  cfg.FetchTimeout,
		CacheTTL: cfg.CacheTTL,
	})
	refresher := playlist.NewRefresher(log, loader, store, cfg.Name, cfg.PlaylistSources(), cfg.RefreshInterval)

	return &Server{
		log:       log.WithField("component", "server"),
		cfg:       cfg,
		pool:      pool,
		store:     store,
		loader:    loader,
		refresher: refresher,
	}, nil
}

// Handler returns the HTTP handler serving the playlist API.
func (s *Server) Handler() http.Handler {
	handlers := catalog.NewHandlers(s.log, s.store, s.refresher, s.loader, s.cfg.MaxUploadSize)

	return NewRoutes(s.log, s.store, handlers).Handler()
}

// Start loads the initial playlist and starts serving.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("server already running")
	}

	serverCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	// A failed initial load leaves the store empty; playlists can still be
	// uploaded or reloaded through the API.
	if len(s.cfg.PlaylistSources()) > 0 {
		s.log.Info("Loading initial playlist")

		if _, err := s.refresher.Reload(serverCtx); err != nil {
			s.log.WithError(err).Warn("Failed to load initial playlist")
		}
	} else {
		s.log.Info("No sources configured, waiting for an uploaded playlist")
	}

	if err := s.refresher.Start(serverCtx); err != nil {
		cancel()

		return fmt.Errorf("failed to start refresher: %w", err)
	}

	go s.startStatusLogger(serverCtx)

	s.server = &http.Server{
		Addr:         s.cfg.ListenAddr(),
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	go s.run(serverCtx)

	s.log.WithField("addr", s.cfg.ListenAddr()).Info("Server started")

	return nil
}

// Stop stops the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	if done != nil {
		<-done
	}

	if err := s.refresher.Stop(); err != nil {
		s.log.WithError(err).Warn("Failed to stop refresher")
	}

	s.pool.Release()

	s.log.Info("Server stopped")

	return nil
}

func (s *Server) run(ctx context.Context) {
	defer close(s.done)

	errCh := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down server")
	case err := <-errCh:
		if err != nil {
			s.log.WithError(err).Error("Server error")
		}

		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.log.WithError(err).Warn("Server shutdown error")
	}
}

// startStatusLogger periodically logs the loaded playlist.
func (s *Server) startStatusLogger(ctx context.Context) {
	ticker := time.NewTicker(statusLogInterval)
	defer ticker.Stop()

	s.logPlaylistStatus()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logPlaylistStatus()
		}
	}
}

func (s *Server) logPlaylistStatus() {
	p, ok := s.store.Get()
	if !ok {
		s.log.Warn("No playlist loaded")

		return
	}

	s.log.WithFields(logrus.Fields{
		"name":     p.Name,
		"channels": len(p.Channels),
		"groups":   len(p.Groups),
		"loadedAt": p.LoadedAt.Format(time.RFC3339),
	}).Info("Playlist status")

	counts := m3u.CountByGroup(p.Channels)
	groups := make([]string, 0, len(counts))

	for group := range counts {
		groups = append(groups, group)
	}

	sort.Strings(groups)

	for _, group := range groups {
		s.log.WithFields(logrus.Fields{
			"group":    group,
			"channels": counts[group],
			"export":   fmt.Sprintf("/groups/%s.m3u", catalog.Slugify(group)),
		}).Debug("Group")
	}
}
