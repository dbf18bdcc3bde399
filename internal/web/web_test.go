package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"eventflow/internal/config"
	"eventflow/internal/model"
	"eventflow/internal/store"
	"eventflow/internal/tracker"
	"eventflow/internal/view"
)

var fixedNow = time.Date(2025, time.August, 20, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *tracker.Tracker) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Snapshot.Dir = t.TempDir()

	tr := tracker.New(tracker.Options{
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	})
	tr.Load(context.Background())

	srv := httptest.NewServer(NewServer(cfg, tr).Handler())
	t.Cleanup(srv.Close)
	return srv, tr
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestListEvents(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/events?filter=upcoming", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.StatusCode, body)
	}
	var got eventsResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}

	var positions []int
	for _, it := range got.Events {
		positions = append(positions, it.Position)
	}
	// Demo dataset: Aug 25 (0), Sep 2 (1), Sep 10 (3) are upcoming.
	if len(positions) != 3 || positions[0] != 0 || positions[1] != 1 || positions[2] != 3 {
		t.Errorf("positions = %v, want [0 1 3]", positions)
	}
	if got.Stats != (view.Stats{Total: 5, Completed: 2, Pending: 3, Upcoming: 3}) {
		t.Errorf("stats = %+v", got.Stats)
	}
	if got.Filter != view.FilterUpcoming || got.Source != tracker.SourceDemo || got.Today.String() != "2025-08-20" {
		t.Errorf("filter=%s source=%s today=%s", got.Filter, got.Source, got.Today)
	}
}

func TestListEventsQueryErrors(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	for _, q := range []string{"filter=soon", "from=yesterday", "to=2025-02-30x"} {
		resp, _ := do(t, http.MethodGet, srv.URL+"/api/events?"+q, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("?%s status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestListEventsSearchAndRange(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	_, body := do(t, http.MethodGet, srv.URL+"/api/events?from=2025-09-01&to=2025-09-30", "")
	var got eventsResponse
	json.Unmarshal(body, &got)
	if len(got.Events) != 2 || got.Events[0].Event.Title != "Client Presentation" || got.Events[1].Event.Title != "Product Demo" {
		t.Errorf("range result = %+v", got.Events)
	}

	_, body = do(t, http.MethodGet, srv.URL+"/api/events?search=%20DEMO%20", "")
	got = eventsResponse{}
	json.Unmarshal(body, &got)
	if len(got.Events) != 1 || got.Events[0].Position != 3 || got.Search != "DEMO" {
		t.Errorf("search result = %+v (search %q)", got.Events, got.Search)
	}
}

func TestCreateEvent(t *testing.T) {
	srv, tr := newTestServer(t, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/events",
		`{"title":"  Design review ","description":"Walk through the new layout","date":"2025-08-28"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d body=%s", resp.StatusCode, body)
	}
	var ev struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Date        string `json:"date"`
		IsCompleted bool   `json:"isCompleted"`
	}
	json.Unmarshal(body, &ev)
	if ev.Title != "Design review" || ev.Date != "2025-08-28" || ev.IsCompleted || ev.ID == "" {
		t.Errorf("created = %+v", ev)
	}
	if tr.Stats().Total != 6 {
		t.Errorf("Total = %d, want 6", tr.Stats().Total)
	}
}

func TestCreateEventValidation(t *testing.T) {
	srv, tr := newTestServer(t, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/events",
		`{"title":"Hi","description":"short","date":"2025-08-19"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body=%s", resp.StatusCode, body)
	}
	var got validationResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]store.Kind{
		"title":       store.KindTooShort,
		"description": store.KindTooShort,
		"date":        store.KindPastDate,
	}
	if len(got.Fields) != len(want) {
		t.Fatalf("fields = %+v", got.Fields)
	}
	for _, f := range got.Fields {
		if want[f.Field] != f.Kind {
			t.Errorf("field %s kind = %s, want %s", f.Field, f.Kind, want[f.Field])
		}
	}
	if tr.Stats().Total != 5 {
		t.Error("invalid create changed the store")
	}

	for _, bad := range []string{`{"title":`, `{"title":"Team sync","description":"Weekly status update","date":"2025-13-40"}`} {
		resp, _ := do(t, http.MethodPost, srv.URL+"/api/events", bad)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", bad, resp.StatusCode)
		}
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/events", `{"title":"Team sync","description":"Weekly status update"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("missing date: status = %d, want 422", resp.StatusCode)
	}
}

func TestCompleteDeleteUndo(t *testing.T) {
	srv, tr := newTestServer(t, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/events/0/complete", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"isCompleted":true`) {
		t.Fatalf("complete: status=%d body=%s", resp.StatusCode, body)
	}
	if got := tr.Stats(); got.Completed != 3 || got.Pending != 2 {
		t.Errorf("stats after complete = %+v", got)
	}

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodPost, "/api/events/9/complete", http.StatusNotFound},
		{http.MethodPost, "/api/events/abc/complete", http.StatusBadRequest},
		{http.MethodDelete, "/api/events/-1", http.StatusNotFound},
	}
	for _, tt := range tests {
		if resp, _ := do(t, tt.method, srv.URL+tt.path, ""); resp.StatusCode != tt.want {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
		}
	}

	resp, body = do(t, http.MethodDelete, srv.URL+"/api/events/1", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Client Presentation") {
		t.Fatalf("delete: status=%d body=%s", resp.StatusCode, body)
	}
	if tr.Stats().Total != 4 {
		t.Errorf("Total after delete = %d", tr.Stats().Total)
	}

	resp, body = do(t, http.MethodPost, srv.URL+"/api/events/undo", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Client Presentation") {
		t.Fatalf("undo: status=%d body=%s", resp.StatusCode, body)
	}
	snap := tr.Snapshot()
	if snap[len(snap)-1].Title != "Client Presentation" {
		t.Errorf("undo should append at the end, got %+v", snap)
	}

	if resp, _ := do(t, http.MethodPost, srv.URL+"/api/events/undo", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second undo status = %d, want 404", resp.StatusCode)
	}
}

func TestStatsSyncReloadAndExport(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	_, body := do(t, http.MethodGet, srv.URL+"/api/stats", "")
	var stats view.Stats
	json.Unmarshal(body, &stats)
	if stats.Total != 5 {
		t.Errorf("stats = %+v", stats)
	}

	_, body = do(t, http.MethodGet, srv.URL+"/api/sync", "")
	var sync syncResponse
	json.Unmarshal(body, &sync)
	if sync.LastLoad.Source != tracker.SourceDemo || sync.Sync != (tracker.SyncStats{}) {
		t.Errorf("sync = %+v", sync)
	}

	resp, body := do(t, http.MethodPost, srv.URL+"/api/events/reload", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"count":5`) {
		t.Errorf("reload: status=%d body=%s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/api/events.ics", "")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/calendar") {
		t.Fatalf("export: status=%d type=%s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if n := strings.Count(string(body), "BEGIN:VEVENT"); n != 5 {
		t.Errorf("exported %d VEVENTs, want 5", n)
	}
}

// upstream answers List with events unless the request context is done.
type upstream struct{ events []model.Event }

func (u upstream) List(ctx context.Context) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return u.events, nil
}
func (upstream) Create(context.Context, model.Event) error { return nil }
func (upstream) Complete(context.Context, int) error       { return nil }
func (upstream) Delete(context.Context, int) error         { return nil }
func (upstream) Undo(context.Context) error                { return nil }

func TestReloadAbortedByClientKeepsEvents(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Snapshot.Dir = t.TempDir()
	tr := tracker.New(tracker.Options{
		Remote:   upstream{events: []model.Event{{Title: "Upstream", Description: "Loaded from the server", Date: model.DateOf(fixedNow)}}},
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	})
	if src := tr.Load(context.Background()); src != tracker.SourceRemote {
		t.Fatalf("Load() = %s, want remote", src)
	}
	if _, err := tr.Complete(0); err != nil {
		t.Fatal(err)
	}
	tr.Wait()
	before := tr.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/events/reload", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	NewServer(cfg, tr).Handler().ServeHTTP(rec, req)

	got := tr.Snapshot()
	if len(got) != 1 || got[0] != before[0] || !got[0].IsCompleted {
		t.Errorf("store after aborted reload = %+v, want %+v", got, before)
	}
	if info := tr.LastLoad(); info.Source != tracker.SourceRemote {
		t.Errorf("LastLoad().Source = %s, want remote", info.Source)
	}
}

func TestPreviewAndStatic(t *testing.T) {
	cfg := config.DefaultConfig()
	srv, _ := newTestServer(t, cfg)

	if resp, _ := do(t, http.MethodGet, srv.URL+"/preview.png", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing preview status = %d, want 404", resp.StatusCode)
	}
	png := []byte("\x89PNG\r\n\x1a\nfake")
	if err := os.WriteFile(filepath.Join(cfg.Snapshot.Dir, "preview.png"), png, 0o644); err != nil {
		t.Fatal(err)
	}
	resp, body := do(t, http.MethodGet, srv.URL+"/preview.png", "")
	if resp.StatusCode != http.StatusOK || string(body) != string(png) {
		t.Errorf("preview status = %d", resp.StatusCode)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "data-ready") {
		t.Errorf("index: status=%d", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/nope", "")
	if resp.StatusCode != http.StatusNotFound || !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		t.Errorf("unknown api path: status=%d type=%s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	srv, _ := newTestServer(t, cfg)

	if resp, _ := do(t, http.MethodGet, srv.URL+"/health", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d, want 200 without auth", resp.StatusCode)
	}

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/stats", "")
	if resp.StatusCode != http.StatusUnauthorized || resp.Header.Get("WWW-Authenticate") == "" {
		t.Errorf("unauthenticated status = %d", resp.StatusCode)
	}

	for _, creds := range [][2]string{{"admin", "wrong"}, {"admin", "s3cret"}} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/stats", nil)
		req.SetBasicAuth(creds[0], creds[1])
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		want := http.StatusUnauthorized
		if creds[1] == "s3cret" {
			want = http.StatusOK
		}
		if resp.StatusCode != want {
			t.Errorf("creds %v status = %d, want %d", creds, resp.StatusCode, want)
		}
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	tr := tracker.New(tracker.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(cfg, tr).Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
