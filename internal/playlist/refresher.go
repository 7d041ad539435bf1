package playlist

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Refresher periodically reloads the playlist sources into a store.
type Refresher struct {
	log      logrus.FieldLogger
	loader   *Loader
	store    *Store
	name     string
	sources  []string
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher creates a new playlist refresher.
func NewRefresher(
	log logrus.FieldLogger,
	loader *Loader,
	store *Store,
	name string,
	sources []string,
	interval time.Duration,
) *Refresher {
	return &Refresher{
		log:      log.WithField("component", "refresher"),
		loader:   loader,
		store:    store,
		name:     name,
		sources:  sources,
		interval: interval,
	}
}

// Reload loads the sources once and publishes the result. The store keeps
// its previous playlist when loading fails.
func (r *Refresher) Reload(ctx context.Context) (*Playlist, error) {
	p, err := r.loader.Load(ctx, r.name, r.sources)
	if err != nil {
		return nil, err
	}

	r.store.Set(p)

	return p, nil
}

// Start begins the refresh loop.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil || r.interval <= 0 || len(r.sources) == 0 {
		return nil
	}

	refreshCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(refreshCtx, r.done)

	r.log.WithField("interval", r.interval).Info("Playlist refresher started")

	return nil
}

// Stop stops the refresh loop.
func (r *Refresher) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	if done != nil {
		<-done
	}

	r.log.Info("Playlist refresher stopped")

	return nil
}

func (r *Refresher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	r.log.Info("Refreshing playlist")

	for _, source := range r.sources {
		r.loader.Invalidate(source)
	}

	p, err := r.Reload(ctx)
	if err != nil {
		r.log.WithError(err).Error("Failed to refresh playlist")

		return
	}

	r.log.WithField("channels", len(p.Channels)).Info("Playlist refreshed successfully")
}
