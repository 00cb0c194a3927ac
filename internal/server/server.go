package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	gometrics "github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"linkcore/internal/history"
	"linkcore/internal/i18n"
	"linkcore/internal/metrics"
	"linkcore/internal/models"
	"linkcore/internal/reachability"
	"linkcore/internal/storage"
)

// Deps are the components the HTTP API exposes.
type Deps struct {
	Reachability *reachability.Engine
	I18n         *i18n.Service
	History      *storage.StatusHistory
	Metrics      *gometrics.InmemSink
	Logger       hclog.Logger
}

// Server wraps HTTP serving of the JSON API and the event stream.
type Server struct {
	httpServer   *http.Server
	engine       *reachability.Engine
	i18n         *i18n.Service
	history      *storage.StatusHistory
	sink         *gometrics.InmemSink
	logger       hclog.Logger
	historyLimit int
	now          func() time.Time
}

// New creates a configured HTTP server.
func New(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	mux := http.NewServeMux()
	s := &Server{
		httpServer:   &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		engine:       deps.Reachability,
		i18n:         deps.I18n,
		history:      deps.History,
		sink:         deps.Metrics,
		logger:       logger,
		historyLimit: 200,
		now:          time.Now,
	}
	s.registerRoutes(mux)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/uptime", s.handleUptime)
	mux.HandleFunc("/api/timeline", s.handleTimeline)
	mux.HandleFunc("/api/endpoints", s.handleEndpoints)
	mux.HandleFunc("/api/probe", s.handleProbe)
	mux.HandleFunc("/api/ws", s.handleStream)
	mux.HandleFunc("/api/i18n/locales", s.handleLocales)
	mux.HandleFunc("/api/i18n/locale", s.handleLocale)
	mux.HandleFunc("/api/i18n/translate", s.handleTranslate)
	mux.HandleFunc("/api/i18n/manifest", s.handleManifest)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
}

type statusResponse struct {
	Status      models.ConnectionStatus `json:"status"`
	State       string                  `json:"state"`
	GeneratedAt time.Time               `json:"generated_at"`
}

func (s *Server) statusSnapshot() statusResponse {
	return s.snapshotOf(s.engine.Status())
}

func (s *Server) snapshotOf(status models.ConnectionStatus) statusResponse {
	return statusResponse{
		Status:      status,
		State:       history.StateOf(status),
		GeneratedAt: s.now().UTC(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.statusSnapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	limit := parseLimit(r, s.historyLimit)
	samples := s.history.HistoryN(limit)
	if samples == nil {
		samples = []models.StatusSample{}
	}
	writeJSON(w, http.StatusOK, samples)
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	end := s.now()
	start := end.Add(-parseHours(r, 24))
	writeJSON(w, http.StatusOK, metrics.ComputeUptime(s.history.History(), start, end))
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	end := s.now()
	start := end.Add(-parseHours(r, 24))
	points := history.DefaultTimelinePoints
	if raw := r.URL.Query().Get("points"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 1000 {
			points = v
		}
	}
	writeJSON(w, http.StatusOK, history.BuildTimeline(s.history.History(), start, end, points))
}

func (s *Server) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Endpoints())
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	reachable, err := s.engine.Probe(r.Context(), name, force)
	if errors.Is(err, reachability.ErrEndpointNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.EndpointStatus{Name: name, Reachable: reachable})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if s.sink == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics disabled")
		return
	}
	summary, err := s.sink.DisplayMetrics(w, r)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func parseHours(r *http.Request, fallback int) time.Duration {
	hours := fallback
	if raw := r.URL.Query().Get("hours"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 24*90 {
			hours = v
		}
	}
	return time.Duration(hours) * time.Hour
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
