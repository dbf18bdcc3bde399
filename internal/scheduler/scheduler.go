package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"eventflow/internal/capture"
	"eventflow/internal/config"
	"eventflow/internal/ics"
	appLog "eventflow/internal/log"
	"eventflow/internal/model"
)

const (
	ICSFile     = "events.ics"
	PreviewFile = "preview.png"
)

// Source supplies the records to snapshot.
type Source interface {
	Snapshot() []model.Event
}

// CaptureFunc renders a page to PNG. capture.CapturePage in production.
type CaptureFunc func(ctx context.Context, opts capture.CaptureOptions) error

// Scheduler periodically writes the store as events.ics and, when enabled,
// captures the UI page to preview.png. Both land in the snapshot directory.
type Scheduler struct {
	cfg      config.SnapshotConfig
	auth     *config.BasicAuthConfig
	pageURL  string
	src      Source
	capture  CaptureFunc
	schedule cron.Schedule

	mu   sync.Mutex
	cron *cron.Cron
}

// New validates the cron expression and prepares a scheduler. pageURL is
// the address of the UI used for capture, e.g. "http://127.0.0.1:8080/".
func New(cfg *config.Config, src Source, pageURL string) (*Scheduler, error) {
	if src == nil {
		return nil, errors.New("scheduler: source is nil")
	}
	sched, err := cfg.Schedule()
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return &Scheduler{
		cfg:      cfg.Snapshot,
		auth:     cfg.BasicAuth,
		pageURL:  pageURL,
		src:      src,
		capture:  capture.CapturePage,
		schedule: sched,
	}, nil
}

// Start runs RunOnce on every cron tick until Stop. Ticks that arrive while
// a run is still in progress are skipped.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if err := s.RunOnce(ctx); err != nil {
			appLog.Error("snapshot run failed", err)
		}
	}))
	c.Start()
	s.cron = c

	appLog.Info("snapshot scheduler started", "cron", s.cfg.Cron, "dir", s.cfg.Dir,
		"capture", s.cfg.Capture, "next", s.schedule.Next(time.Now()).Format(time.RFC3339))
}

// Stop stops the cron loop and waits for a running job, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
		appLog.Info("snapshot scheduler stopped")
	case <-ctx.Done():
		appLog.Warn("snapshot scheduler stop timed out", ctx.Err())
	}
}

// RunOnce writes one snapshot. The ICS export always runs; a capture
// failure is reported but leaves the exported file in place.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("scheduler: snapshot dir: %w", err)
	}

	records := s.src.Snapshot()
	body := ics.Export(records, ics.ExportOptions{Name: "eventflow"})
	icsPath := filepath.Join(s.cfg.Dir, ICSFile)
	if err := writeFile(icsPath, []byte(body)); err != nil {
		return fmt.Errorf("scheduler: write %s: %w", icsPath, err)
	}
	appLog.Info("snapshot written", "path", icsPath, "events", len(records))

	if !s.cfg.Capture {
		return nil
	}

	opts := capture.CaptureOptions{
		URL:        s.pageURL,
		OutputPath: filepath.Join(s.cfg.Dir, PreviewFile),
		Width:      s.cfg.Width,
		Height:     s.cfg.Height,
	}
	if s.auth != nil {
		opts.Username, opts.Password = s.auth.Username, s.auth.Password
	}
	if err := s.capture(ctx, opts); err != nil {
		return fmt.Errorf("scheduler: capture: %w", err)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
