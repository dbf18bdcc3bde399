package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"eventflow/internal/config"
	"eventflow/internal/ics"
	appLog "eventflow/internal/log"
	"eventflow/internal/model"
	"eventflow/internal/remote"
	"eventflow/internal/tracker"
)

const version = "0.1.0"

// app holds flag values shared by every subcommand.
type app struct {
	configPath string
	listen     string
	remoteURL  string
	localOnly  bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:          "eventflow",
		Short:        "Event tracker with best-effort upstream sync",
		Version:      version,
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Serve the API and UI
  eventflow serve --listen :8080

  # Upcoming events as a table
  eventflow list --filter upcoming

  # Write the store as an ICS calendar
  eventflow export -o events.ics
`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "Path to config file")
	cmd.PersistentFlags().StringVar(&a.remoteURL, "remote", "", "Upstream base URL (overrides config if set)")
	cmd.PersistentFlags().BoolVar(&a.localOnly, "local", false, "Ignore the upstream and work on the fallback dataset only")

	cmd.AddCommand(
		newServeCmd(a),
		newListCmd(a),
		newStatsCmd(a),
		newExportCmd(a),
		newCaptureCmd(a),
	)
	return cmd
}

func (a *app) loadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.listen != "" {
		cfg.Listen = a.listen
	}
	if a.remoteURL != "" {
		cfg.Remote.BaseURL = a.remoteURL
	}
	if a.localOnly {
		cfg.Remote.BaseURL = ""
	}
	if lvl, ok := appLog.ParseLevel(cfg.LogLevel); ok {
		appLog.SetLevel(lvl)
	}
	a.cfg = cfg
	return nil
}

// newTracker wires the upstream client and the fallback source from config.
func (a *app) newTracker() (*tracker.Tracker, error) {
	loc := a.cfg.Location()
	opts := tracker.Options{Location: loc}

	if a.cfg.Remote.BaseURL != "" {
		client, err := remote.NewClient(a.cfg.Remote.BaseURL)
		if err != nil {
			return nil, err
		}
		opts.Remote = client
	}
	if len(a.cfg.Fallback.ICS) > 0 {
		opts.Fallback = icsFallback(a.cfg, loc)
	}
	return tracker.New(opts), nil
}

// loadTracker builds a tracker and performs the initial load.
func (a *app) loadTracker(ctx context.Context) (*tracker.Tracker, error) {
	tr, err := a.newTracker()
	if err != nil {
		return nil, err
	}
	src := tr.Load(ctx)
	appLog.Debug("tracker loaded", "source", string(src), "count", tr.LastLoad().Count)
	return tr, nil
}

func icsFallback(cfg *config.Config, loc *time.Location) tracker.FallbackFunc {
	sources := make([]ics.Source, 0, len(cfg.Fallback.ICS))
	for _, c := range cfg.Fallback.ICS {
		id := c.ID
		if id == "" {
			if c.Name != "" {
				id = c.Name
			} else {
				id = c.URL
			}
		}
		sources = append(sources, ics.Source{ID: id, URL: c.URL})
	}
	fetcher := ics.NewFetcher(cfg.Fallback.CacheDir)
	window := ics.Window{
		BackfillDays: cfg.Fallback.BackfillDays,
		HorizonDays:  cfg.Fallback.HorizonDays,
	}

	return func(ctx context.Context) ([]model.Event, error) {
		return ics.LoadEvents(ctx, fetcher, sources, window, time.Now(), loc)
	}
}
