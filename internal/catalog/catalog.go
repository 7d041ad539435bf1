// Package catalog provides HTTP handlers exposing the loaded playlist to
// players and other clients.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/mux"
	"github.com/grafana/regexp"
	"github.com/savid/streamflow/internal/m3u"
	"github.com/savid/streamflow/internal/playlist"
	"github.com/sirupsen/logrus"
)

var (
	nonSlugRe = regexp.MustCompile(`[^a-z0-9-]+`)
	hyphensRe = regexp.MustCompile(`-+`)
)

// Reloader reloads the configured playlist sources into the store.
type Reloader interface {
	Reload(ctx context.Context) (*playlist.Playlist, error)
}

// Parser turns uploaded playlist text into a playlist.
type Parser interface {
	Parse(name, content string) (*playlist.Playlist, error)
}

// Summary describes the loaded playlist without its channels.
type Summary struct {
	Name         string    `json:"name"`
	LoadedAt     time.Time `json:"loadedAt"`
	ChannelCount int       `json:"channelCount"`
	Groups       []string  `json:"groups"`
}

// Group is a group label with its slug and channel count.
type Group struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Channels int    `json:"channels"`
}

// ChannelPage is one page of a filtered channel list.
type ChannelPage struct {
	Total    int           `json:"total"`
	Offset   int           `json:"offset"`
	Limit    int           `json:"limit"`
	Channels []m3u.Channel `json:"channels"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handlers provides HTTP handlers over a playlist store.
type Handlers struct {
	log           logrus.FieldLogger
	store         *playlist.Store
	reloader      Reloader
	parser        Parser
	maxUploadSize int64
}

// NewHandlers creates a new catalog handlers instance.
func NewHandlers(
	log logrus.FieldLogger,
	store *playlist.Store,
	reloader Reloader,
	parser Parser,
	maxUploadSize int64,
) *Handlers {
	return &Handlers{
		log:           log.WithField("component", "catalog"),
		store:         store,
		reloader:      reloader,
		parser:        parser,
		maxUploadSize: maxUploadSize,
	}
}

// Slugify converts a group name to a URL-safe slug.
// Example: "US Sports" -> "us-sports".
func Slugify(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = nonSlugRe.ReplaceAllString(s, "")
	s = hyphensRe.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}

// GroupSlugs assigns every group a distinct, non-empty slug. Groups are
// visited in order, so a sorted group list always yields the same slugs.
// Labels without any slug characters get a hash based slug; a slug already
// taken gets a numeric suffix.
func GroupSlugs(groups []string) []string {
	slugs := make([]string, len(groups))
	taken := make(map[string]struct{}, len(groups))

	for i, group := range groups {
		base := Slugify(group)
		if base == "" {
			base = "group-" + strconv.FormatUint(xxhash.Sum64String(group)&0xffffffff, 16)
		}

		slug := base
		for n := 2; ; n++ {
			if _, ok := taken[slug]; !ok {
				break
			}

			slug = base + "-" + strconv.Itoa(n)
		}

		taken[slug] = struct{}{}
		slugs[i] = slug
	}

	return slugs
}

// Playlist serves the playlist summary at /api/playlist.
func (h *Handlers) Playlist(w http.ResponseWriter, _ *http.Request) {
	p, ok := h.store.Get()
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "no playlist loaded")

		return
	}

	h.writeJSON(w, http.StatusOK, Summary{
		Name:         p.Name,
		LoadedAt:     p.LoadedAt,
		ChannelCount: len(p.Channels),
		Groups:       p.Groups,
	})
}

// Upload parses a playlist posted as the request body and makes it current.
// The playlist name is taken from the "name" query parameter.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "playlist too large")

			return
		}

		h.writeError(w, http.StatusBadRequest, "failed to read playlist")

		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "Uploaded Playlist"
	}

	p, err := h.parser.Parse(name, string(body))
	if err != nil {
		h.log.WithError(err).Warn("Failed to parse uploaded playlist")
		h.writeError(w, http.StatusUnprocessableEntity, playlist.ErrInvalidPlaylist.Error())

		return
	}

	h.store.Set(p)

	h.log.WithFields(logrus.Fields{
		"name":     name,
		"channels": len(p.Channels),
	}).Info("Playlist uploaded")

	h.writeJSON(w, http.StatusCreated, Summary{
		Name:         p.Name,
		LoadedAt:     p.LoadedAt,
		ChannelCount: len(p.Channels),
		Groups:       p.Groups,
	})
}

// Reload reloads the configured sources at /api/reload.
func (h *Handlers) Reload(w http.ResponseWriter, r *http.Request) {
	p, err := h.reloader.Reload(r.Context())
	if err != nil {
		h.log.WithError(err).Warn("Playlist reload failed")

		if errors.Is(err, playlist.ErrNoSources) {
			h.writeError(w, http.StatusConflict, err.Error())

			return
		}

		h.writeError(w, http.StatusBadGateway, playlist.ErrInvalidPlaylist.Error())

		return
	}

	h.writeJSON(w, http.StatusOK, Summary{
		Name:         p.Name,
		LoadedAt:     p.LoadedAt,
		ChannelCount: len(p.Channels),
		Groups:       p.Groups,
	})
}

// Groups serves the group list at /api/groups.
func (h *Handlers) Groups(w http.ResponseWriter, _ *http.Request) {
	p, ok := h.store.Get()
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "no playlist loaded")

		return
	}

	counts := m3u.CountByGroup(p.Channels)
	slugs := GroupSlugs(p.Groups)
	groups := make([]Group, 0, len(p.Groups))

	for i, name := range p.Groups {
		groups = append(groups, Group{
			Name:     name,
			Slug:     slugs[i],
			Channels: counts[name],
		})
	}

	h.writeJSON(w, http.StatusOK, groups)
}

// Channels serves a filtered, paginated channel list at /api/channels.
// Query parameters: group, q, offset, limit.
func (h *Handlers) Channels(w http.ResponseWriter, r *http.Request) {
	p, ok := h.store.Get()
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "no playlist loaded")

		return
	}

	query := r.URL.Query()

	offset, err := intParam(query.Get("offset"), 0)
	if err != nil || offset < 0 {
		h.writeError(w, http.StatusBadRequest, "invalid offset")

		return
	}

	limit, err := intParam(query.Get("limit"), m3u.DefaultPageSize)
	if err != nil || limit < 1 {
		h.writeError(w, http.StatusBadRequest, "invalid limit")

		return
	}

	filtered := m3u.Filter(p.Channels, m3u.Query{
		Group:  query.Get("group"),
		Search: query.Get("q"),
	})

	h.writeJSON(w, http.StatusOK, ChannelPage{
		Total:    len(filtered),
		Offset:   offset,
		Limit:    limit,
		Channels: m3u.Page(filtered, offset, limit),
	})
}

// Channel serves a single channel at /api/channels/{id}.
func (h *Handlers) Channel(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.store.Channel(mux.Vars(r)["id"])
	if !ok {
		h.writeError(w, http.StatusNotFound, "channel not found")

		return
	}

	h.writeJSON(w, http.StatusOK, ch)
}

// Tune redirects to the stream URL of a channel at /tune/{id}.
func (h *Handlers) Tune(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ch, ok := h.store.Channel(id)
	if !ok {
		h.log.WithField("channel", id).Debug("Channel not found")
		h.writeError(w, http.StatusNotFound, "channel not found")

		return
	}

	h.log.WithFields(logrus.Fields{
		"channel": ch.ID,
		"name":    ch.Name,
		"group":   ch.Group,
	}).Debug("Tune redirect")

	http.Redirect(w, r, ch.URL, http.StatusTemporaryRedirect)
}

// M3U serves the whole playlist as extended M3U at /playlist.m3u.
func (h *Handlers) M3U(w http.ResponseWriter, _ *http.Request) {
	p, ok := h.store.Get()
	if !ok {
		http.Error(w, "No playlist available", http.StatusServiceUnavailable)

		return
	}

	h.writeM3U(w, p.Channels)
}

// GroupM3U serves one group as extended M3U at /groups/{slug}.m3u.
func (h *Handlers) GroupM3U(w http.ResponseWriter, r *http.Request) {
	p, ok := h.store.Get()
	if !ok {
		http.Error(w, "No playlist available", http.StatusServiceUnavailable)

		return
	}

	slug := mux.Vars(r)["slug"]

	for i, s := range GroupSlugs(p.Groups) {
		if s == slug {
			h.writeM3U(w, channelsInGroup(p.Channels, p.Groups[i]))

			return
		}
	}

	http.NotFound(w, r)
}

// channelsInGroup matches the label exactly, including "" and "All".
func channelsInGroup(channels []m3u.Channel, group string) []m3u.Channel {
	result := make([]m3u.Channel, 0)

	for _, ch := range channels {
		if ch.Group == group {
			result = append(result, ch)
		}
	}

	return result
}

func (h *Handlers) writeM3U(w http.ResponseWriter, channels []m3u.Channel) {
	w.Header().Set("Content-Type", "application/x-mpegurl")
	w.WriteHeader(http.StatusOK)

	if err := m3u.Write(w, channels); err != nil {
		h.log.WithError(err).Error("Failed to write M3U response")
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Error("Failed to encode JSON response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

func intParam(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}

	return strconv.Atoi(value)
}
