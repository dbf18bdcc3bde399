package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"eventflow/internal/capture"
	"eventflow/internal/config"
	"eventflow/internal/model"
)

type staticSource []model.Event

func (s staticSource) Snapshot() []model.Event { return model.Clone(s) }

type fakeCapture struct {
	mu    sync.Mutex
	calls []capture.CaptureOptions
	err   error
}

func (f *fakeCapture) run(_ context.Context, opts capture.CaptureOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	return f.err
}

func (f *fakeCapture) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func records() staticSource {
	return staticSource{
		{Title: "Release planning", Description: "Scope the next release", Date: model.NewDate(2025, time.September, 1)},
		{Title: "Retro", Description: "Sprint retrospective", Date: model.NewDate(2025, time.August, 29), IsCompleted: true},
	}
}

func newScheduler(t *testing.T, mutate func(*config.Config)) (*Scheduler, *fakeCapture) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Snapshot.Dir = filepath.Join(t.TempDir(), "snap")
	if mutate != nil {
		mutate(cfg)
	}
	s, err := New(cfg, records(), "http://127.0.0.1:8080/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fc := &fakeCapture{}
	s.capture = fc.run
	return s, fc
}

func TestRunOnceWritesICS(t *testing.T) {
	s, fc := newScheduler(t, nil)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(s.cfg.Dir, ICSFile))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Count(out, "BEGIN:VEVENT") != 2 || strings.Count(out, "STATUS:COMPLETED") != 1 {
		t.Errorf("unexpected export:\n%s", out)
	}
	if fc.count() != 0 {
		t.Error("capture ran while disabled")
	}
}

func TestRunOnceCapture(t *testing.T) {
	s, fc := newScheduler(t, func(c *config.Config) {
		c.Snapshot.Capture = true
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if fc.count() != 1 {
		t.Fatalf("capture calls = %d, want 1", fc.count())
	}
	opts := fc.calls[0]
	if opts.URL != "http://127.0.0.1:8080/" || opts.OutputPath != filepath.Join(s.cfg.Dir, PreviewFile) ||
		opts.Username != "admin" || opts.Width != 1280 || opts.Height != 960 {
		t.Errorf("capture options = %+v", opts)
	}

	fc.err = errors.New("chromium missing")
	err := s.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "chromium missing") {
		t.Errorf("RunOnce() err = %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(s.cfg.Dir, ICSFile)); statErr != nil {
		t.Error("ICS export missing after capture failure")
	}
}

func TestNewRejectsBadCron(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Snapshot.Cron = "61 * * * *"
	if _, err := New(cfg, records(), ""); err == nil {
		t.Error("expected error for invalid cron")
	}
	if _, err := New(config.DefaultConfig(), nil, ""); err == nil {
		t.Error("expected error for nil source")
	}
}

func TestStartStop(t *testing.T) {
	s, _ := newScheduler(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s.Start(ctx)
	s.Start(ctx)
	if s.cron == nil || len(s.cron.Entries()) != 1 {
		t.Fatal("scheduler not started with a single entry")
	}
	s.Stop(ctx)
	if s.cron != nil {
		t.Error("Stop did not clear the cron loop")
	}
	s.Stop(ctx)
}
