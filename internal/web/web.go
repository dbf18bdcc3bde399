package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"eventflow/internal/config"
	"eventflow/internal/ics"
	appLog "eventflow/internal/log"
	"eventflow/internal/model"
	"eventflow/internal/store"
	"eventflow/internal/tracker"
	"eventflow/internal/view"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// Server exposes the tracker over HTTP: the JSON API, the ICS export, the
// last captured preview and the embedded UI.
type Server struct {
	cfg     *config.Config
	tracker *tracker.Tracker
	mux     *http.ServeMux
}

// embeddedStatic contains the single-page UI. The page sets
// data-ready="true" on its root once the first render is done, which is
// what the capture package waits for.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, tr *tracker.Tracker) *Server {
	s := &Server{
		cfg:     cfg,
		tracker: tr,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="eventflow", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully. A clean shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("POST /api/events/{position}/complete", s.handleCompleteEvent)
	s.mux.HandleFunc("DELETE /api/events/{position}", s.handleDeleteEvent)
	s.mux.HandleFunc("POST /api/events/undo", s.handleUndo)
	s.mux.HandleFunc("POST /api/events/reload", s.handleReload)
	s.mux.HandleFunc("GET /api/events.ics", s.handleExport)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/sync", s.handleSync)

	s.mux.HandleFunc("GET /preview.png", s.handlePreview)

	// Everything else falls through to the embedded UI.
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON response shape for GET /api/events.
type eventsResponse struct {
	Events []view.Item       `json:"events"`
	Stats  view.Stats        `json:"stats"`
	Filter view.Filter       `json:"filter"`
	Search string            `json:"search"`
	Today  model.Date        `json:"today"`
	Source tracker.Source    `json:"source"`
	Sync   tracker.SyncStats `json:"sync"`
}

// handleListEvents returns the projected list.
//
// GET /api/events?search=demo&filter=upcoming&from=2025-09-01&to=2025-09-30
//   - search: case-insensitive substring of title or description
//   - filter: all (default), completed, pending, upcoming
//   - from/to: optional inclusive date bounds (YYYY-MM-DD)
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter, err := view.ParseFilter(q.Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseOptionalDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	to, err := parseOptionalDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date")
		return
	}

	search := q.Get("search")
	items := view.InRange(s.tracker.View(search, filter), from, to)

	writeJSON(w, http.StatusOK, eventsResponse{
		Events: items,
		Stats:  s.tracker.Stats(),
		Filter: filter,
		Search: strings.TrimSpace(search),
		Today:  s.tracker.Today(),
		Source: s.tracker.LastLoad().Source,
		Sync:   s.tracker.SyncStats(),
	})
}

// validationResponse is returned with 422 when a create request fails
// validation; every failing field is listed.
type validationResponse struct {
	Error  string             `json:"error"`
	Fields []store.FieldError `json:"fields"`
}

// handleCreateEvent accepts {"title", "description", "date"}.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var draft store.Draft
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ev, err := s.tracker.Create(draft)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
				Error:  verr.Error(),
				Fields: verr.Fields,
			})
			return
		}
		appLog.Error("create event failed", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleCompleteEvent(w http.ResponseWriter, r *http.Request) {
	s.mutateAt(w, r, s.tracker.Complete)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	s.mutateAt(w, r, s.tracker.Delete)
}

// mutateAt parses the {position} path value and applies op to it.
func (s *Server) mutateAt(w http.ResponseWriter, r *http.Request, op func(int) (model.Event, error)) {
	position, err := strconv.Atoi(r.PathValue("position"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "position must be an integer")
		return
	}
	ev, err := op(position)
	if err != nil {
		if errors.Is(err, store.ErrOutOfRange) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		appLog.Error("event mutation failed", err, "position", position)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleUndo(w http.ResponseWriter, _ *http.Request) {
	ev, ok := s.tracker.Undo()
	if !ok {
		writeError(w, http.StatusNotFound, "nothing to undo")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleReload repeats the initial load: upstream first, fallback otherwise.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.tracker.Load(r.Context())
	writeJSON(w, http.StatusOK, s.tracker.LastLoad())
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	body := ics.Export(s.tracker.Snapshot(), ics.ExportOptions{Name: "eventflow"})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Stats())
}

type syncResponse struct {
	Sync     tracker.SyncStats `json:"sync"`
	LastLoad tracker.LoadInfo  `json:"last_load"`
}

func (s *Server) handleSync(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, syncResponse{
		Sync:     s.tracker.SyncStats(),
		LastLoad: s.tracker.LastLoad(),
	})
}

// handlePreview serves the last captured PNG from the snapshot directory.
// http.ServeFile answers 404 when no capture has run yet.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.cfg.Snapshot.Dir, "preview.png"))
}

// staticFileServer serves the embedded UI from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unknown /api/* paths get a plain 404, never the HTML page.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func parseOptionalDate(s string) (model.Date, error) {
	if strings.TrimSpace(s) == "" {
		return model.Date{}, nil
	}
	return model.ParseDate(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
