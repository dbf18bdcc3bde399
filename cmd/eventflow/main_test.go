package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"eventflow/internal/config"
	"eventflow/internal/view"
)

func init() {
	color.NoColor = true
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath, "--local"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	out, err := run(t, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Total", "5", "Completed", "2", "demo"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestListCommand(t *testing.T) {
	out, err := run(t, "list", "--filter", "completed")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Team Building Workshop") || !strings.Contains(out, "Quarterly Review") {
		t.Errorf("completed events missing:\n%s", out)
	}
	if strings.Contains(out, "Product Demo") {
		t.Errorf("pending event listed under completed filter:\n%s", out)
	}
	// Sorted by date: Aug 18 before Aug 22.
	if strings.Index(out, "Quarterly Review") > strings.Index(out, "Team Building Workshop") {
		t.Errorf("list not sorted by date:\n%s", out)
	}

	out, err = run(t, "list", "--search", "nothing matches this")
	if err != nil || !strings.Contains(out, "No events found") {
		t.Errorf("empty list: err=%v out=%s", err, out)
	}
}

func TestListCommandRejectsBadFlags(t *testing.T) {
	if _, err := run(t, "list", "--filter", "someday"); err == nil {
		t.Error("unknown filter: expected error")
	}
	if _, err := run(t, "list", "--from", "2025/08/01"); err == nil {
		t.Error("bad --from: expected error")
	}
}

func TestExportCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ics")
	if _, err := run(t, "export", "-o", path, "--name", "Team"); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "BEGIN:VEVENT"); n != 5 {
		t.Errorf("VEVENT count = %d, want 5", n)
	}
	if !strings.Contains(string(data), "X-WR-CALNAME:Team") {
		t.Error("calendar name missing")
	}

	out, err := run(t, "export")
	if err != nil || !strings.HasPrefix(out, "BEGIN:VCALENDAR") {
		t.Errorf("stdout export: err=%v prefix=%.20q", err, out)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	a := &app{
		configPath: filepath.Join(t.TempDir(), "config.yaml"),
		listen:     ":9999",
		remoteURL:  "http://upstream:5000",
	}
	if err := a.loadConfig(); err != nil {
		t.Fatal(err)
	}
	if a.cfg.Listen != ":9999" || a.cfg.Remote.BaseURL != "http://upstream:5000" {
		t.Errorf("overrides not applied: %+v", a.cfg)
	}

	a.localOnly = true
	if err := a.loadConfig(); err != nil {
		t.Fatal(err)
	}
	if a.cfg.Remote.BaseURL != "" {
		t.Error("--local should clear the upstream URL")
	}
}

func TestNewTrackerRejectsBadRemote(t *testing.T) {
	a := &app{cfg: config.DefaultConfig()}
	a.cfg.Remote.BaseURL = "ftp://nope"
	if _, err := a.newTracker(); err == nil {
		t.Error("expected error for non-http upstream")
	}
}

func TestPrintEventsColumns(t *testing.T) {
	var buf bytes.Buffer
	printEvents(&buf, []view.Item{{Position: 4, Status: view.StatusOverdue}})
	out := buf.String()
	for _, want := range []string{"#", "Date", "Status", "overdue", "4"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		listen, want string
	}{
		{":8080", "http://127.0.0.1:8080/"},
		{"0.0.0.0:80", "http://127.0.0.1:80/"},
		{"[::]:9000", "http://127.0.0.1:9000/"},
		{"localhost:8080", "http://localhost:8080/"},
		{"192.168.1.5:8080", "http://192.168.1.5:8080/"},
		{"[::1]:8080", "http://[::1]:8080/"},
		{"example.org", "http://example.org/"},
	}
	for _, tt := range tests {
		if got := pageURL(tt.listen); got != tt.want {
			t.Errorf("pageURL(%q) = %q, want %q", tt.listen, got, tt.want)
		}
	}
}
