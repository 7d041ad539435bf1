package playlist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/maypok86/otter/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/savid/streamflow/internal/m3u"
	"github.com/savid/streamflow/internal/metrics"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout = 2 * time.Minute
	maxBodySize    = 200 * 1024 * 1024 // 200MB
	maxCachedItems = 64
)

var (
	// ErrNoSources is returned when Load is called without sources.
	ErrNoSources = errors.New("no playlist sources configured")
	// ErrUnexpectedStatus is returned when a source answers with a non-200 status.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrInvalidPlaylist is returned when playlist content could not be processed at all.
	ErrInvalidPlaylist = errors.New("invalid playlist")
)

var utf8BOM = []byte("\xef\xbb\xbf")

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// Parser used for every load. Defaults to a UUID generating parser.
	Parser *m3u.Parser
	// HTTPClient used for remote sources. Defaults to a client with Timeout.
	HTTPClient *http.Client
	// Timeout for a single remote source.
	Timeout time.Duration
	// CacheTTL keeps source bodies for this long. Zero disables caching.
	CacheTTL time.Duration
}

// Loader reads playlist sources and parses them into playlists.
type Loader struct {
	log        logrus.FieldLogger
	pool       *ants.Pool
	parser     *m3u.Parser
	httpClient *http.Client
	cache      *otter.Cache[string, []byte]
}

// NewLoader creates a loader that fetches sources on pool.
func NewLoader(log logrus.FieldLogger, pool *ants.Pool, opts LoaderOptions) *Loader {
	if opts.Parser == nil {
		opts.Parser = m3u.NewParser()
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	l := &Loader{
		log:        log.WithField("component", "loader"),
		pool:       pool,
		parser:     opts.Parser,
		httpClient: opts.HTTPClient,
	}

	if opts.CacheTTL > 0 {
		l.cache = otter.Must(&otter.Options[string, []byte]{
			MaximumSize:      maxCachedItems,
			ExpiryCalculator: otter.ExpiryWriting[string, []byte](opts.CacheTTL),
		})
	}

	return l
}

// Load reads all sources, joins them with newlines and parses the result
// into a playlist called name. Any failing source fails the whole load.
func (l *Loader) Load(ctx context.Context, name string, sources []string) (*Playlist, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	bodies := make([][]byte, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup

	for i, source := range sources {
		wg.Add(1)

		err := l.pool.Submit(func() {
			defer wg.Done()

			body, err := l.read(ctx, source)
			if err != nil {
				errs[i] = fmt.Errorf("source %s: %w", source, err)

				return
			}

			bodies[i] = body
		})
		if err != nil {
			wg.Done()

			errs[i] = fmt.Errorf("failed to schedule source %s: %w", source, err)
		}
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		metrics.ObserveLoadFailure()

		return nil, fmt.Errorf("failed to load playlist: %w", err)
	}

	var sb strings.Builder

	for i, body := range bodies {
		if i > 0 {
			sb.WriteByte('\n')
		}

		sb.Write(bytes.TrimPrefix(body, utf8BOM))
	}

	return l.Parse(name, sb.String())
}

// Parse turns raw playlist text into a playlist. It never fails for text
// input; ErrInvalidPlaylist is only returned if parsing panicked.
func (l *Loader) Parse(name, content string) (p *Playlist, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ObserveLoadFailure()
			l.log.WithField("panic", r).Error("Playlist parsing failed")

			p, err = nil, ErrInvalidPlaylist
		}
	}()

	channels, stats := l.parser.ParseWithStats(strings.TrimPrefix(content, string(utf8BOM)))
	p = New(name, channels)

	metrics.ObserveParse(stats)
	metrics.ObservePlaylist(len(p.Channels), len(p.Groups))

	l.log.WithFields(logrus.Fields{
		"name":      name,
		"channels":  stats.Channels,
		"groups":    len(p.Groups),
		"lines":     stats.Lines,
		"malformed": stats.MalformedInfo,
		"dropped":   stats.Dropped,
		"orphans":   stats.OrphanURLLines,
	}).Info("Playlist parsed")

	return p, nil
}

// Invalidate removes a cached source body.
func (l *Loader) Invalidate(source string) {
	if l.cache != nil {
		l.cache.Invalidate(source)
	}
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if l.cache != nil {
		if body, ok := l.cache.GetIfPresent(source); ok {
			metrics.SourceFetchDuration.WithLabelValues("cache").Observe(0)
			l.log.WithField("source", source).Debug("Using cached source")

			return body, nil
		}
	}

	start := time.Now()
	kind := "file"

	var (
		body []byte
		err  error
	)

	if isRemote(source) {
		kind = "http"
		body, err = l.fetch(ctx, source)
	} else {
		body, err = os.ReadFile(source)
	}

	if err != nil {
		return nil, err
	}

	metrics.SourceFetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if l.cache != nil {
		l.cache.Set(source, body)
	}

	return body, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Accept gzip encoding
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var reader io.Reader = resp.Body

	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gzReader, gzErr := gzip.NewReader(resp.Body)
		if gzErr != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", gzErr)
		}
		defer gzReader.Close()

		reader = gzReader
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"url":  url,
		"size": len(data),
	}).Debug("Fetched source")

	return data, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
