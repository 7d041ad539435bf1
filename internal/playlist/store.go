package playlist

import (
	"sync"
	"time"

	"github.com/savid/streamflow/internal/m3u"
)

// Store provides thread-safe access to the current playlist snapshot.
type Store struct {
	mu sync.RWMutex

	current  *Playlist
	lastSync time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Set replaces the current playlist.
func (s *Store) Set(p *Playlist) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = p
	s.lastSync = time.Now()
}

// Get returns the current playlist.
func (s *Store) Get() (*Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, false
	}

	return s.current, true
}

// Clear drops the current playlist.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
}

// LastSync returns the time the playlist was last replaced.
func (s *Store) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastSync
}

// HasData returns true if a playlist is loaded.
func (s *Store) HasData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current != nil
}

// Groups returns the sorted group labels of the current playlist.
func (s *Store) Groups() []string {
	p, ok := s.Get()
	if !ok {
		return []string{}
	}

	return p.Groups
}

// ChannelsByGroup returns channels matching a specific group.
// Empty group returns all channels.
func (s *Store) ChannelsByGroup(group string) ([]m3u.Channel, bool) {
	p, ok := s.Get()
	if !ok {
		return nil, false
	}

	return m3u.Filter(p.Channels, m3u.Query{Group: group}), true
}

// Channel returns a channel of the current playlist by id.
func (s *Store) Channel(id string) (m3u.Channel, bool) {
	p, ok := s.Get()
	if !ok {
		return m3u.Channel{}, false
	}

	return p.Channel(id)
}
