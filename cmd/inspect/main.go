// Package main provides a CLI tool for inspecting how playlists parse.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/savid/streamflow/internal/m3u"
	"github.com/savid/streamflow/internal/playlist"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	formatText = "text"
	formatJSON = "json"
)

var (
	sources  []string
	format   string
	group    string
	search   string
	logLevel string
	log      = logrus.New()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect M3U playlist parsing",
		Long: `A debugging tool that parses one or more playlists the same way the service
does and prints the resulting channels and groups.

Examples:
  # Using local files
  go run ./cmd/inspect --source testdata/channels.m3u

  # Combining URLs, filtered to one group
  go run ./cmd/inspect --source https://example.com/a.m3u --source https://example.com/b.m3u --group News

  # Machine-readable output
  go run ./cmd/inspect --source playlist.m3u --format json`,
		RunE: run,
	}

	rootCmd.Flags().StringArrayVar(&sources, "source", nil, "Path or URL to an M3U playlist (required, repeatable)")
	rootCmd.Flags().StringVar(&format, "format", formatText, "Output format (text, json)")
	rootCmd.Flags().StringVar(&group, "group", "", "Only show channels of this group")
	rootCmd.Flags().StringVar(&search, "search", "", "Only show channels whose name contains this text")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	if err := rootCmd.MarkFlagRequired("source"); err != nil {
		log.WithError(err).Fatal("Failed to mark source flag as required")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	if format != formatText && format != formatJSON {
		return fmt.Errorf("unknown format %q", format)
	}

	pool, err := ants.NewPool(len(sources))
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	loader := playlist.NewLoader(log, pool, playlist.LoaderOptions{
		Parser: m3u.NewParser(m3u.WithIDFunc(m3u.NewSequence(""))),
	})

	p, err := loader.Load(cmd.Context(), strings.Join(sources, ", "), sources)
	if err != nil {
		return err
	}

	channels := m3u.Filter(p.Channels, m3u.Query{Group: group, Search: search})

	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), p, channels)
	}

	return writeText(cmd.OutOrStdout(), p, channels)
}

func writeJSON(w io.Writer, p *playlist.Playlist, channels []m3u.Channel) error {
	out := struct {
		Name     string        `json:"name"`
		Groups   []string      `json:"groups"`
		Channels []m3u.Channel `json:"channels"`
	}{
		Name:     p.Name,
		Groups:   m3u.ExtractGroups(channels),
		Channels: channels,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(out)
}

func writeText(w io.Writer, p *playlist.Playlist, channels []m3u.Channel) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tNAME\tGROUP\tTVG-ID\tURL")

	for _, ch := range channels {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ch.ID, truncate(ch.Name, 40), truncate(ch.Group, 30), ch.TVGID, ch.URL)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
	fmt.Fprintf(w, "GROUPS (%d channels shown of %d)\n", len(channels), len(p.Channels))
	fmt.Fprintln(w, strings.Repeat("=", 80))

	counts := m3u.CountByGroup(channels)

	for _, g := range m3u.ExtractGroups(channels) {
		fmt.Fprintf(w, "  %-50s %6d\n", truncate(g, 50), counts[g])
	}

	return nil
}

func truncate(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}

	return string([]rune(s)[:maxLen-3]) + "..."
}
