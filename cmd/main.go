// Package main is the entry point for the streamflow playlist service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/savid/streamflow/internal/config"
	"github.com/savid/streamflow/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfg        = config.DefaultConfig()
	configFile string
	log        = logrus.New()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "streamflow",
		Short: "M3U playlist service",
		Long: `Loads M3U/M3U8 playlists from files or URLs, parses them into channels and
groups, and serves them over a JSON and M3U HTTP API.`,
		RunE: run,
	}

	rootCmd.Flags().StringVar(&configFile, "config", "", "Path to a YAML config file")

	// Playlist flags
	rootCmd.Flags().StringArrayVar(&cfg.Sources, "source", cfg.Sources, "Playlist file or URL (repeatable)")
	rootCmd.Flags().StringVar(&cfg.Name, "name", cfg.Name, "Playlist name")

	// Server flags
	rootCmd.Flags().StringVar(&cfg.BindAddr, "bind", cfg.BindAddr, "Bind address")
	rootCmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "Port number")
	rootCmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.Flags().Int64Var(&cfg.MaxUploadSize, "max-upload-size", cfg.MaxUploadSize, "Maximum uploaded playlist size in bytes")

	// Loading flags
	rootCmd.Flags().DurationVar(&cfg.RefreshInterval, "refresh", cfg.RefreshInterval, "Playlist refresh interval (0 disables)")
	rootCmd.Flags().DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "Timeout for fetching a single source")
	rootCmd.Flags().DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "Cache fetched sources for this long (0 disables)")
	rootCmd.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of concurrent source fetches")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := applyConfigFile(cmd); err != nil {
		return err
	}

	// Configure logger
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	if err := cfg.Validate(); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"name":    cfg.Name,
		"sources": len(cfg.PlaylistSources()),
		"refresh": cfg.RefreshInterval,
	}).Info("Starting streamflow")

	srv, err := server.NewServer(log, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		return err
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Received shutdown signal")

	return srv.Stop()
}

// applyConfigFile loads --config over the defaults. Flags given on the
// command line win over file values.
func applyConfigFile(cmd *cobra.Command) error {
	if configFile == "" {
		return nil
	}

	overrides := make(map[string]string)
	sources := append([]string(nil), cfg.Sources...)

	cmd.Flags().Visit(func(f *pflag.Flag) {
		overrides[f.Name] = f.Value.String()
	})

	if err := config.LoadFile(configFile, cfg); err != nil {
		return err
	}

	for name, value := range overrides {
		switch name {
		case "config":
			continue
		case "source":
			cfg.Sources = sources

			continue
		}

		if err := cmd.Flags().Set(name, value); err != nil {
			return fmt.Errorf("failed to apply --%s: %w", name, err)
		}
	}

	return nil
}
