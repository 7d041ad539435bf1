package playlist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRefresher_Reload(t *testing.T) {
	path := writeFile(t, "news.m3u", newsPlaylist)
	store := NewStore()
	refresher := NewRefresher(newTestLogger(), newTestLoader(t, LoaderOptions{}), store, "News", []string{path}, time.Minute)

	p, err := refresher.Reload(context.Background())
	require.NoError(t, err)

	got, ok := store.Get()
	require.True(t, ok)
	require.Same(t, p, got)
	require.Equal(t, "News", got.Name)
}

func TestRefresher_ReloadFailureKeepsSnapshot(t *testing.T) {
	path := writeFile(t, "news.m3u", newsPlaylist)
	store := NewStore()
	refresher := NewRefresher(newTestLogger(), newTestLoader(t, LoaderOptions{}), store, "News", []string{path}, time.Minute)

	first, err := refresher.Reload(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	_, err = refresher.Reload(context.Background())
	require.Error(t, err)

	got, ok := store.Get()
	require.True(t, ok)
	require.Same(t, first, got)
}

func TestRefresher_StartStop(t *testing.T) {
	path := writeFile(t, "news.m3u", newsPlaylist)
	store := NewStore()
	refresher := NewRefresher(newTestLogger(), newTestLoader(t, LoaderOptions{}), store, "News", []string{path}, 10*time.Millisecond)

	require.NoError(t, refresher.Start(context.Background()))
	require.NoError(t, refresher.Start(context.Background()))

	require.Eventually(t, store.HasData, time.Second, 5*time.Millisecond)

	require.NoError(t, refresher.Stop())
	require.NoError(t, refresher.Stop())
}

func TestRefresher_PicksUpChanges(t *testing.T) {
	path := writeFile(t, "live.m3u", newsPlaylist)
	store := NewStore()
	refresher := NewRefresher(newTestLogger(), newTestLoader(t, LoaderOptions{}), store, "Live", []string{path}, 10*time.Millisecond)

	require.NoError(t, refresher.Start(context.Background()))
	defer func() { require.NoError(t, refresher.Stop()) }()

	require.Eventually(t, func() bool {
		return len(store.Groups()) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(moviesPlaylist), 0o600))

	require.Eventually(t, func() bool {
		groups := store.Groups()

		return len(groups) == 1 && groups[0] == "Movies"
	}, time.Second, 5*time.Millisecond)
}

func TestRefresher_DisabledWithoutInterval(t *testing.T) {
	refresher := NewRefresher(newTestLogger(), newTestLoader(t, LoaderOptions{}), NewStore(), "None",
		[]string{filepath.Join(t.TempDir(), "x.m3u")}, 0)

	require.NoError(t, refresher.Start(context.Background()))
	require.Nil(t, refresher.cancel)
	require.NoError(t, refresher.Stop())
}

func TestRefresher_BypassesCacheOnTick(t *testing.T) {
	path := writeFile(t, "live.m3u", newsPlaylist)
	store := NewStore()
	loader := newTestLoader(t, LoaderOptions{CacheTTL: time.Hour})
	refresher := NewRefresher(newTestLogger(), loader, store, "Live", []string{path}, 10*time.Millisecond)

	_, err := refresher.Reload(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(moviesPlaylist), 0o600))

	// Cached body is served to direct reloads.
	p, err := refresher.Reload(context.Background())
	require.NoError(t, err)
	require.Len(t, p.Groups, 2)

	require.NoError(t, refresher.Start(context.Background()))
	defer func() { require.NoError(t, refresher.Stop()) }()

	require.Eventually(t, func() bool {
		groups := store.Groups()

		return len(groups) == 1 && groups[0] == "Movies"
	}, time.Second, 5*time.Millisecond)
}
