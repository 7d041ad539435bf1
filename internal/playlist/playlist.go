// Package playlist assembles parsed channels into playlist snapshots and
// manages loading, storing and refreshing them.
package playlist

import (
	"time"

	"github.com/savid/streamflow/internal/m3u"
)

// Playlist is an immutable snapshot of a parsed playlist.
type Playlist struct {
	Name     string        `json:"name"`
	Channels []m3u.Channel `json:"channels"`
	Groups   []string      `json:"groups"`
	LoadedAt time.Time     `json:"loadedAt"`

	index map[string]int
}

// New builds a playlist from parsed channels.
func New(name string, channels []m3u.Channel) *Playlist {
	if channels == nil {
		channels = []m3u.Channel{}
	}

	index := make(map[string]int, len(channels))
	for i, ch := range channels {
		index[ch.ID] = i
	}

	return &Playlist{
		Name:     name,
		Channels: channels,
		Groups:   m3u.ExtractGroups(channels),
		LoadedAt: time.Now(),
		index:    index,
	}
}

// Channel returns the channel with the given id.
func (p *Playlist) Channel(id string) (m3u.Channel, bool) {
	i, ok := p.index[id]
	if !ok {
		return m3u.Channel{}, false
	}

	return p.Channels[i], true
}
