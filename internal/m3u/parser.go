// Package m3u provides parsing, querying and encoding for M3U playlist files.
package m3u

import (
	"strconv"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/google/uuid"
	"github.com/grafana/regexp"
)

const (
	// DefaultName is used when an #EXTINF line carries no display name.
	DefaultName = "Unknown Channel"
	// DefaultGroup is used when an #EXTINF line has no group-title attribute.
	DefaultGroup = "Uncategorized"

	infoPrefix = "#EXTINF:"
)

var (
	// #EXTINF:<duration>[ <attributes>],<name>
	// Quoted attribute values may contain commas; the name starts after the
	// first comma outside of quotes.
	infoLineRe = regexp.MustCompile(`^#EXTINF:(-?\d+)(?:\s+((?:[^",]|"[^"]*"|")*))?,(.*)$`)

	logoRe  = regexp.MustCompile(`tvg-logo="([^"]*)"`)
	groupRe = regexp.MustCompile(`group-title="([^"]*)"`)
	tvgIDRe = regexp.MustCompile(`tvg-id="([^"]*)"`)
)

// Channel represents a single playable entry of a playlist.
type Channel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Group string `json:"group"`
	Logo  string `json:"logo,omitempty"`
	TVGID string `json:"tvgId,omitempty"`
}

// IDFunc generates channel identifiers. It must return non-empty values.
type IDFunc func() string

// Option configures a Parser.
type Option func(*Parser)

// WithIDFunc sets the identifier generator used for new channels.
func WithIDFunc(fn IDFunc) Option {
	return func(p *Parser) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// NewSequence returns an IDFunc yielding prefix1, prefix2, ... It is safe for
// concurrent use.
func NewSequence(prefix string) IDFunc {
	var n atomic.Uint64

	return func() string {
		return prefix + strconv.FormatUint(n.Add(1), 10)
	}
}

// Stats describes what a single parse call saw.
type Stats struct {
	Lines          int // total lines scanned
	InfoLines      int // well-formed #EXTINF lines
	MalformedInfo  int // #EXTINF lines that did not match the expected shape
	Channels       int // channels emitted
	Dropped        int // #EXTINF entries never completed by a URL line
	OrphanURLLines int // URL lines with no pending #EXTINF entry
}

// Parser converts M3U text into channels.
// The zero value is not usable; use NewParser.
type Parser struct {
	newID IDFunc
}

// NewParser creates a parser. Without options it generates UUIDs.
func NewParser(opts ...Option) *Parser {
	p := &Parser{newID: uuid.NewString}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

var defaultParser = NewParser()

// Parse extracts channels from M3U content using random UUID identifiers.
func Parse(content string) []Channel {
	return defaultParser.Parse(content)
}

// Parse extracts channels from M3U content. Malformed entries are skipped.
func (p *Parser) Parse(content string) []Channel {
	channels, _ := p.ParseWithStats(content)

	return channels
}

// ParseWithStats extracts channels from M3U content and reports counters
// about skipped input.
func (p *Parser) ParseWithStats(content string) ([]Channel, Stats) {
	var (
		stats   Stats
		current Channel
		pending bool
	)

	channels := make([]Channel, 0, strings.Count(content, infoPrefix))

	for len(content) > 0 {
		var line string

		if i := strings.IndexByte(content, '\n'); i >= 0 {
			line, content = content[:i], content[i+1:]
		} else {
			line, content = content, ""
		}

		stats.Lines++

		line = strings.TrimFunc(line, isSpaceOrBOM)

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, infoPrefix):
			ch, ok := p.parseInfo(line)
			if !ok {
				stats.MalformedInfo++

				continue
			}

			stats.InfoLines++

			if pending {
				stats.Dropped++
			}

			current, pending = ch, true
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if !pending {
				stats.OrphanURLLines++

				continue
			}

			current.URL = line
			channels = append(channels, current)
			current, pending = Channel{}, false
		}
	}

	if pending {
		stats.Dropped++
	}

	stats.Channels = len(channels)

	return channels, stats
}

// parseInfo builds a pending channel from an #EXTINF line.
func (p *Parser) parseInfo(line string) (Channel, bool) {
	matches := infoLineRe.FindStringSubmatch(line)
	if matches == nil {
		return Channel{}, false
	}

	attrs := matches[2]

	ch := Channel{
		ID:    p.id(),
		Name:  strings.TrimSpace(matches[3]),
		Group: DefaultGroup,
	}

	if ch.Name == "" {
		ch.Name = DefaultName
	}

	if v, ok := extractAttribute(logoRe, attrs); ok {
		ch.Logo = v
	}

	if v, ok := extractAttribute(groupRe, attrs); ok {
		ch.Group = v
	}

	if v, ok := extractAttribute(tvgIDRe, attrs); ok {
		ch.TVGID = v
	}

	return ch, true
}

func (p *Parser) id() string {
	if id := p.newID(); id != "" {
		return id
	}

	return uuid.NewString()
}

// isSpaceOrBOM reports whether r is trimmed from line ends. Concatenated
// files may carry a byte order mark in front of any line.
func isSpaceOrBOM(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// extractAttribute returns the value of the first match of re in attrs.
func extractAttribute(re *regexp.Regexp, attrs string) (string, bool) {
	matches := re.FindStringSubmatch(attrs)
	if len(matches) > 1 {
		return matches[1], true
	}

	return "", false
}
