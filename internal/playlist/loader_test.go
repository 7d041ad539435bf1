package playlist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/panjf2000/ants/v2"
	"github.com/savid/streamflow/internal/m3u"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	newsPlaylist = `#EXTM3U
#EXTINF:-1 tvg-logo="http://x/l.png" group-title="News",BBC
http://stream/bbc.m3u8
#EXTINF:-1,Random
#EXTINF:-1 group-title="Sports",ESPN
http://stream/espn
`
	moviesPlaylist = `#EXTM3U
#EXTINF:-1 group-title="Movies",HBO
http://stream/hbo`
)

func newTestLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logger
}

func newTestLoader(t *testing.T, opts LoaderOptions) *Loader {
	t.Helper()

	pool, err := ants.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	if opts.Parser == nil {
		opts.Parser = m3u.NewParser(m3u.WithIDFunc(m3u.NewSequence("ch-")))
	}

	return NewLoader(newTestLogger(), pool, opts)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func channelNames(p *Playlist) []string {
	names := make([]string, 0, len(p.Channels))

	for _, ch := range p.Channels {
		names = append(names, ch.Name)
	}

	return names
}

func TestLoad_File(t *testing.T) {
	loader := newTestLoader(t, LoaderOptions{})
	path := writeFile(t, "news.m3u", newsPlaylist)

	p, err := loader.Load(context.Background(), "news.m3u", []string{path})
	require.NoError(t, err)

	require.Equal(t, "news.m3u", p.Name)
	require.Equal(t, []string{"BBC", "ESPN"}, channelNames(p))
	require.Equal(t, []string{"News", "Sports"}, p.Groups)
}

func TestLoad_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))

		_, _ = io.WriteString(w, newsPlaylist)
	}))
	defer srv.Close()

	loader := newTestLoader(t, LoaderOptions{})

	p, err := loader.Load(context.Background(), "remote", []string{srv.URL})
	require.NoError(t, err)
	require.Equal(t, []string{"BBC", "ESPN"}, channelNames(p))
}

func TestLoad_HTTPGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")

		gz := gzip.NewWriter(w)
		_, _ = io.WriteString(gz, moviesPlaylist)
		_ = gz.Close()
	}))
	defer srv.Close()

	loader := newTestLoader(t, LoaderOptions{})

	p, err := loader.Load(context.Background(), "remote", []string{srv.URL})
	require.NoError(t, err)
	require.Equal(t, []string{"HBO"}, channelNames(p))
}

func TestLoad_ConcatenatesInSourceOrder(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(50 * time.Millisecond)

		_, _ = io.WriteString(w, newsPlaylist)
	}))
	defer slow.Close()

	path := writeFile(t, "movies.m3u", moviesPlaylist)
	loader := newTestLoader(t, LoaderOptions{})

	p, err := loader.Load(context.Background(), "Featured Channels", []string{slow.URL, path})
	require.NoError(t, err)
	require.Equal(t, []string{"BBC", "ESPN", "HBO"}, channelNames(p))
	require.Equal(t, []string{"Movies", "News", "Sports"}, p.Groups)
}

func TestLoad_SourceWithoutTrailingNewline(t *testing.T) {
	first := writeFile(t, "a.m3u", "#EXTINF:-1,A\nhttp://a")
	second := writeFile(t, "b.m3u", "#EXTINF:-1,B\nhttp://b")
	loader := newTestLoader(t, LoaderOptions{})

	p, err := loader.Load(context.Background(), "joined", []string{first, second})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, channelNames(p))
	require.Equal(t, "http://a", p.Channels[0].URL)
}

func TestLoad_StripsBOM(t *testing.T) {
	path := writeFile(t, "bom.m3u", "\xef\xbb\xbf#EXTINF:-1,Bom\nhttp://bom")
	loader := newTestLoader(t, LoaderOptions{})

	p, err := loader.Load(context.Background(), "bom", []string{path})
	require.NoError(t, err)
	require.Equal(t, []string{"Bom"}, channelNames(p))
}

func TestLoad_NoSources(t *testing.T) {
	loader := newTestLoader(t, LoaderOptions{})

	_, err := loader.Load(context.Background(), "none", nil)
	require.ErrorIs(t, err, ErrNoSources)
}

func TestLoad_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	path := writeFile(t, "movies.m3u", moviesPlaylist)
	loader := newTestLoader(t, LoaderOptions{})

	_, err := loader.Load(context.Background(), "broken", []string{path, srv.URL})
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	require.Contains(t, err.Error(), "404")
}

func TestLoad_MissingFile(t *testing.T) {
	loader := newTestLoader(t, LoaderOptions{})

	_, err := loader.Load(context.Background(), "missing", []string{filepath.Join(t.TempDir(), "missing.m3u")})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, newsPlaylist)
	}))
	defer srv.Close()

	loader := newTestLoader(t, LoaderOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx, "canceled", []string{srv.URL})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoad_Cache(t *testing.T) {
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)

		_, _ = io.WriteString(w, moviesPlaylist)
	}))
	defer srv.Close()

	loader := newTestLoader(t, LoaderOptions{CacheTTL: time.Minute})

	first, err := loader.Load(context.Background(), "cached", []string{srv.URL})
	require.NoError(t, err)

	second, err := loader.Load(context.Background(), "cached", []string{srv.URL})
	require.NoError(t, err)

	require.Equal(t, int32(1), hits.Load())
	require.NotEqual(t, first.Channels[0].ID, second.Channels[0].ID)

	loader.Invalidate(srv.URL)

	_, err = loader.Load(context.Background(), "cached", []string{srv.URL})
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load())
}

func TestLoad_NoCacheByDefault(t *testing.T) {
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)

		_, _ = io.WriteString(w, moviesPlaylist)
	}))
	defer srv.Close()

	loader := newTestLoader(t, LoaderOptions{})

	for i := 0; i < 3; i++ {
		_, err := loader.Load(context.Background(), "uncached", []string{srv.URL})
		require.NoError(t, err)
	}

	require.Equal(t, int32(3), hits.Load())
}

func TestLoad_ManySources(t *testing.T) {
	sources := make([]string, 0, 12)

	for i := 0; i < 12; i++ {
		sources = append(sources, writeFile(t, fmt.Sprintf("%d.m3u", i), fmt.Sprintf("#EXTINF:-1,Channel %d\nhttp://stream/%d", i, i)))
	}

	loader := newTestLoader(t, LoaderOptions{})

	p, err := loader.Load(context.Background(), "many", sources)
	require.NoError(t, err)
	require.Len(t, p.Channels, 12)

	for i, ch := range p.Channels {
		require.Equal(t, fmt.Sprintf("Channel %d", i), ch.Name)
	}
}

func TestParse_EmptyPlaylistIsValid(t *testing.T) {
	loader := newTestLoader(t, LoaderOptions{})

	p, err := loader.Parse("empty.m3u", "#EXTM3U\n")
	require.NoError(t, err)
	require.Empty(t, p.Channels)
	require.Empty(t, p.Groups)
}
