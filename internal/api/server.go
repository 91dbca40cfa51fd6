// Package api exposes the workflow service over HTTP and pushes workflow
// events to browsers over a websocket.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/HendryAvila/esp32-copilot/internal/config"
	"github.com/HendryAvila/esp32-copilot/internal/export"
	"github.com/HendryAvila/esp32-copilot/internal/llm"
	"github.com/HendryAvila/esp32-copilot/internal/pipeline"
	"github.com/HendryAvila/esp32-copilot/internal/project"
	"github.com/HendryAvila/esp32-copilot/internal/templates"
	"github.com/HendryAvila/esp32-copilot/internal/wiring"
	"github.com/HendryAvila/esp32-copilot/internal/workflow"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errBadRequest marks malformed request bodies and query parameters.
var errBadRequest = errors.New("bad request")

// Server holds the HTTP handlers.
type Server struct {
	svc     *workflow.Service
	cfg     config.Config
	hub     *Hub
	version string
	started time.Time
}

// New creates a Server. hub may be nil, in which case /api/ws is not
// served.
func New(svc *workflow.Service, cfg config.Config, hub *Hub, version string) *Server {
	return &Server{svc: svc, cfg: cfg, hub: hub, version: version, started: time.Now()}
}

// Handler returns the routed handler wrapped in CORS and access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/{$}", s.handleRoot)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/hardware", s.handleHardware)
	mux.HandleFunc("GET /api/board", s.handleBoard)
	mux.HandleFunc("POST /api/wiring", s.handleWiring)

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PATCH /api/projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("GET /api/projects/{id}/progress", s.handleProgress)
	mux.HandleFunc("POST /api/projects/{id}/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/projects/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /api/projects/{id}/stages/{stage}/approve", s.handleApprove)
	mux.HandleFunc("POST /api/projects/{id}/wiring", s.handleAttachWiring)
	mux.HandleFunc("GET /api/projects/{id}/export", s.handleExport)

	mux.HandleFunc("GET /api/templates", s.handleTemplates)
	mux.HandleFunc("POST /api/templates/{id}/instantiate", s.handleInstantiate)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)

	mux.HandleFunc("POST /api/content/segments", s.handleSegments)

	if s.hub != nil {
		mux.Handle("GET /api/ws", s.hub)
	}

	return s.accessLog(s.cors(mux))
}

// ─── Middleware ──────────────────────────────────────────────────────────────

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.cfg.AllowsOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/ws" {
			next.ServeHTTP(w, r)
			log.Printf("%s %s websocket closed", r.Method, r.URL.Path)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

// ─── Responses ───────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("WARNING: encoding response: %v", err)
	}
}

// writeError maps err to a status code and writes {"detail": message}.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("ERROR: %v", err)
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, workflow.ErrInvalidInput),
		errors.Is(err, wiring.ErrEmptySelection),
		errors.Is(err, pipeline.ErrUnknownStage),
		errors.Is(err, project.ErrInvalidSettings),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, llm.ErrMissingAPIKey):
		return http.StatusBadRequest
	case errors.Is(err, project.ErrNotFound),
		errors.Is(err, templates.ErrStarterNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrStageOutOfOrder),
		errors.Is(err, workflow.ErrBusy),
		errors.Is(err, project.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrNoContent),
		errors.Is(err, pipeline.ErrNotGeneratable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}
