package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/HendryAvila/esp32-copilot/internal/content"
	"github.com/HendryAvila/esp32-copilot/internal/pipeline"
	"github.com/HendryAvila/esp32-copilot/internal/project"
	"github.com/HendryAvila/esp32-copilot/internal/workflow"
)

// --- Service info ---

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "ESP32 IoT Copilot API",
		"version": s.version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if s.hub != nil {
		clients = s.hub.Count()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds":    int(time.Since(s.started).Seconds()),
		"websocket_clients": clients,
	})
}

// --- Hardware and wiring ---

func (s *Server) handleHardware(w http.ResponseWriter, r *http.Request) {
	cat := s.svc.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  cat.Len(),
		"groups": cat.Groups(),
	})
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Board().Summary())
}

type wiringRequest struct {
	ComponentIDs []string `json:"component_ids"`
}

func (s *Server) handleWiring(w http.ResponseWriter, r *http.Request) {
	var req wiringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.Wiring(req.ComponentIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Projects ---

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	opts := project.ListOptions{Status: project.Status(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest))
			return
		}
		opts.Limit = n
	}
	projects, err := s.svc.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req project.CreateParams
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req project.UpdateParams
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.svc.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Project deleted", "id": id})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current_stage": p.CurrentStage,
		"status":        p.Status,
		"approved":      pipeline.ApprovedCount(p),
		"total":         len(project.StageOrder),
		"stages":        pipeline.Progress(p),
	})
}

// --- Stages ---

type generateRequest struct {
	Stage       string           `json:"stage"`
	UserMessage *string          `json:"user_message"`
	Provider    project.Provider `json:"provider,omitempty"`
	Model       string           `json:"model,omitempty"`
	APIKey      string           `json:"api_key,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	params := workflow.GenerateParams{
		ProjectID: r.PathValue("id"),
		Stage:     project.Stage(req.Stage),
	}
	if req.UserMessage != nil {
		params.UserMessage = *req.UserMessage
	}
	if req.Provider != "" || req.Model != "" || req.APIKey != "" {
		params.Settings = &project.Settings{Provider: req.Provider, Model: req.Model, APIKey: req.APIKey}
	}

	res, err := s.svc.Generate(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type approveRequest struct {
	Stage    string `json:"stage"`
	Approved *bool  `json:"approved"`
	Notes    string `json:"notes,omitempty"`
}

// handleApprove serves both the body-addressed and the path-addressed
// approval routes. A stage in the path wins over one in the body.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	stage := req.Stage
	if v := r.PathValue("stage"); v != "" {
		stage = v
	}
	if stage == "" {
		writeError(w, fmt.Errorf("%w: stage is required", errBadRequest))
		return
	}
	if req.Approved == nil {
		writeError(w, fmt.Errorf("%w: approved is required", errBadRequest))
		return
	}

	res, err := s.svc.Approve(r.Context(), workflow.ApproveParams{
		ProjectID: r.PathValue("id"),
		Stage:     project.Stage(stage),
		Approved:  *req.Approved,
		Notes:     req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAttachWiring(w http.ResponseWriter, r *http.Request) {
	var req wiringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.svc.AttachWiring(r.Context(), r.PathValue("id"), req.ComponentIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Wiring)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Export(r.Context(), r.PathValue("id"), r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Body)
}

// --- Templates ---

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	starters, err := s.svc.Templates()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, starters)
}

type instantiateRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleInstantiate(w http.ResponseWriter, r *http.Request) {
	var req instantiateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.svc.CreateFromTemplate(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// --- Settings ---

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Settings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.Redacted())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req project.Settings
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	st, err := s.svc.UpdateSettings(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.Redacted())
}

// --- Content ---

type segmentsRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	var req segmentsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"segments": content.Segments(req.Text)})
}
