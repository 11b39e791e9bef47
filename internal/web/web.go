package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"blocktimeline/internal/config"
	"blocktimeline/internal/feed"
	appLog "blocktimeline/internal/log"
	"blocktimeline/internal/model"
	"blocktimeline/internal/search"
	"blocktimeline/internal/timeline"
	"blocktimeline/internal/viewstate"
)

// Snapshot is one loaded generation of the timeline.
type Snapshot struct {
	Dataset      *timeline.Dataset
	Descriptions map[string]string
	LoadedAt     time.Time
	FromCache    bool
}

// Loader fetches the inputs and builds a new Snapshot.
type Loader func(ctx context.Context) (*Snapshot, error)

// ErrNotLoaded is returned by Current before the first successful load.
var ErrNotLoaded = errors.New("timeline not loaded yet")

// Server exposes the derived timeline over HTTP. Reloads build a new
// snapshot off-lock and swap the pointer, so readers never block on a
// fetch.
type Server struct {
	cfg    *config.Config
	loader Loader
	router chi.Router

	mu      sync.RWMutex
	current *Snapshot

	// reloadMu serializes reloads triggered by cron and /api/refresh.
	reloadMu sync.Mutex
}

// NewServer constructs a Server. loader may be nil for a server fed only
// through SetSnapshot.
func NewServer(cfg *config.Config, loader Loader) *Server {
	s := &Server{
		cfg:    cfg,
		loader: loader,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Current returns the active snapshot.
func (s *Server) Current() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNotLoaded
	}
	return s.current, nil
}

// SetSnapshot installs snap as the active generation.
func (s *Server) SetSnapshot(snap *Snapshot) {
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
}

// Reload runs the loader and swaps in the result. On failure the previous
// snapshot stays active.
func (s *Server) Reload(ctx context.Context) error {
	if s.loader == nil {
		return errors.New("web: no loader configured")
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	snap, err := s.loader(ctx)
	if err != nil {
		appLog.Error("timeline reload failed; keeping previous data", err)
		return err
	}
	s.SetSnapshot(snap)

	appLog.Info("timeline reloaded",
		"blocks", len(snap.Dataset.Blocks),
		"segments", len(snap.Dataset.Segments),
		"days", len(snap.Dataset.Days),
		"programs", len(snap.Dataset.Programs),
		"from_cache", snap.FromCache,
		"took", time.Since(start).String(),
	)
	return nil
}

// StartServer serves s on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func (s *Server) StartServer(ctx context.Context) error {
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			r.Use(s.basicAuthMiddleware)
		}

		r.Route("/api", func(r chi.Router) {
			r.Get("/timeline", s.handleTimeline)
			r.Get("/days", s.handleDays)
			r.Get("/programs", s.handlePrograms)
			r.Get("/programs/{name}/segments", s.handleProgramSegments)
			r.Get("/blocks/{id}", s.handleBlock)
			r.Get("/search", s.handleSearch)
			r.Get("/calendar.ics", s.handleCalendar)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/view", s.handleView)
		})

		if s.cfg.StaticDir != "" {
			r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
		}
	})
	return r
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"remote", r.RemoteAddr,
			"took", time.Since(start).String(),
		)
	})
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="blocktimeline", charset="UTF-8"`)
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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// timelineResponse is the full payload the renderer draws from.
type timelineResponse struct {
	Segments        []model.DaySegment     `json:"segments"`
	Days            []model.ObservationDay `json:"days"`
	Programs        []model.Program        `json:"programs"`
	ExtensionMonths int                    `json:"extension_months"`
	LoadedAt        time.Time              `json:"loaded_at"`
	FromCache       bool                   `json:"from_cache"`
}

func (s *Server) handleTimeline(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshotOrError(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, timelineResponse{
		Segments:        snap.Dataset.Segments,
		Days:            snap.Dataset.Days,
		Programs:        snap.Dataset.Programs,
		ExtensionMonths: s.cfg.ExtensionMonths,
		LoadedAt:        snap.LoadedAt,
		FromCache:       snap.FromCache,
	})
}

func (s *Server) handleDays(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshotOrError(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Dataset.Days)
}

func (s *Server) handlePrograms(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshotOrError(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Dataset.Programs)
}

type programSegmentsResponse struct {
	Program  model.Program      `json:"program"`
	Segments []model.DaySegment `json:"segments"`
}

func (s *Server) handleProgramSegments(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOrError(w)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	p, found := snap.Dataset.Program(name)
	if !found {
		writeError(w, http.StatusNotFound, "unknown program")
		return
	}
	writeJSON(w, http.StatusOK, programSegmentsResponse{
		Program:  p,
		Segments: snap.Dataset.ProgramSegments(name),
	})
}

type blockResponse struct {
	Block    model.RawBlock     `json:"block"`
	Segments []model.DaySegment `json:"segments"`
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOrError(w)
	if !ok {
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "block id must be an integer")
		return
	}
	segs := snap.Dataset.BlockSegments(id)
	if segs == nil {
		writeError(w, http.StatusNotFound, "unknown block")
		return
	}
	writeJSON(w, http.StatusOK, blockResponse{
		Block:    snap.Dataset.Blocks[id],
		Segments: segs,
	})
}

type searchResponse struct {
	Query   string         `json:"query"`
	Matches []search.Match `json:"matches"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOrError(w)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, searchResponse{
		Query:   q,
		Matches: snap.Dataset.Search(q),
	})
}

func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshotOrError(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(feed.ExportICS(snap.Dataset, snap.Descriptions)))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	snap, _ := s.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"loaded_at": snap.LoadedAt,
		"segments":  len(snap.Dataset.Segments),
	})
}

type viewRequest struct {
	State viewstate.State     `json:"state"`
	Event viewstate.WireEvent `json:"event"`
}

type viewResponse struct {
	State    viewstate.State    `json:"state"`
	Matches  []search.Match     `json:"matches"`
	Selected []model.DaySegment `json:"selected,omitempty"`
}

// handleView applies one renderer event to the posted view state and
// returns the next state with the data it refers to. The server keeps no
// per-client state.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOrError(w)
	if !ok {
		return
	}

	var req viewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid view request")
		return
	}
	ev, err := viewstate.Decode(req.Event)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	next := viewstate.Reduce(req.State, ev)
	matches := snap.Dataset.Search(next.Query)
	// Keep the cursor inside the current result list.
	next = viewstate.Reduce(next, viewstate.MoveCursor{Delta: 0, Results: len(matches)})

	resp := viewResponse{State: next, Matches: matches}
	if id, ok := next.Selected(); ok {
		resp.Selected = snap.Dataset.BlockSegments(id)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) snapshotOrError(w http.ResponseWriter) (*Snapshot, bool) {
	snap, err := s.Current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return nil, false
	}
	return snap, true
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
