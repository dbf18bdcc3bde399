package main

import (
	"context"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appLog "eventflow/internal/log"
	"eventflow/internal/scheduler"
	"eventflow/internal/tracker"
	"eventflow/internal/web"
)

// drainTimeout bounds how long shutdown waits for in-flight upstream calls.
const drainTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and the web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&a.listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLog.Info("eventflow starting",
		"version", version,
		"listen", a.cfg.Listen,
		"timezone", a.cfg.Timezone,
		"remote", a.cfg.Remote.BaseURL,
		"ics_count", len(a.cfg.Fallback.ICS),
		"snapshot", a.cfg.Snapshot.Enabled,
	)

	tr, err := a.loadTracker(ctx)
	if err != nil {
		return err
	}

	var sched *scheduler.Scheduler
	if a.cfg.Snapshot.Enabled {
		sched, err = scheduler.New(a.cfg, tr, pageURL(a.cfg.Listen))
		if err != nil {
			return err
		}
		sched.Start(ctx)
	}

	runErr := web.NewServer(a.cfg, tr).Run(ctx)
	if runErr != nil {
		appLog.Error("HTTP server failed", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	drain(shutdownCtx, tr)

	appLog.Info("eventflow exiting")
	return runErr
}

// drain waits for background upstream calls, giving up when ctx is done.
func drain(ctx context.Context, tr *tracker.Tracker) {
	done := make(chan struct{})
	go func() {
		tr.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		appLog.Warn("pending upstream calls abandoned", ctx.Err(), "sync", tr.SyncStats().Attempted)
	}
}

// pageURL is the address a local browser uses to reach the page served on
// listen. Wildcard and empty hosts become the loopback address.
func pageURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/"
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}
