// Package workflow orchestrates project persistence, the stage state
// machine, the LLM and the pin resolver. The REST API and the MCP tools
// both call into a single Service.
//
// Generate, Approve and AttachWiring allow at most one in-flight operation
// per (project, stage). The LLM is called without holding any lock on the
// project record: the service reads the project, calls out, then applies
// the result in one versioned update, retried once if another writer got
// there first.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/HendryAvila/esp32-copilot/internal/export"
	"github.com/HendryAvila/esp32-copilot/internal/hardware"
	"github.com/HendryAvila/esp32-copilot/internal/llm"
	"github.com/HendryAvila/esp32-copilot/internal/pipeline"
	"github.com/HendryAvila/esp32-copilot/internal/project"
	"github.com/HendryAvila/esp32-copilot/internal/templates"
	"github.com/HendryAvila/esp32-copilot/internal/wiring"
)

var (
	// ErrBusy is returned when the same project stage already has an
	// operation in flight.
	ErrBusy = errors.New("another operation is in progress for this stage")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// redactedPrefix marks an API key that came back from a redacted read.
const redactedPrefix = "****"

// Deps are the collaborators of a Service. Store and Catalog are required.
type Deps struct {
	Store     project.Store
	Generator llm.Generator
	Catalog   *hardware.Catalog
	// Board defaults to the ESP32 DevKit V1.
	Board    *hardware.Board
	Renderer *templates.Renderer
	// Defaults are used until the user saves settings.
	Defaults project.Settings
	// TargetHardware fills CreateParams.TargetHardware when empty.
	TargetHardware string
	Observer       Observer
}

// Service is the application core shared by every boundary.
type Service struct {
	store    project.Store
	gen      llm.Generator
	catalog  *hardware.Catalog
	resolver *wiring.Resolver
	renderer *templates.Renderer
	exporter *export.Exporter
	defaults project.Settings
	target   string
	observer Observer

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates a Service.
func New(d Deps) (*Service, error) {
	if d.Store == nil {
		return nil, errors.New("workflow: store is required")
	}
	if d.Catalog == nil {
		return nil, errors.New("workflow: catalog is required")
	}
	if d.Board == nil {
		d.Board = hardware.ESP32DevKit()
	}
	if d.Renderer == nil {
		r, err := templates.NewRenderer()
		if err != nil {
			return nil, fmt.Errorf("workflow: %w", err)
		}
		d.Renderer = r
	}
	if d.Defaults == (project.Settings{}) {
		d.Defaults = project.DefaultSettings()
	}
	if d.TargetHardware == "" {
		d.TargetHardware = project.DefaultTargetHardware
	}
	return &Service{
		store:    d.Store,
		gen:      d.Generator,
		catalog:  d.Catalog,
		resolver: wiring.New(d.Catalog, d.Board),
		renderer: d.Renderer,
		exporter: export.New(d.Renderer),
		defaults: d.Defaults.Normalize(),
		target:   d.TargetHardware,
		observer: d.Observer,
		inflight: make(map[string]struct{}),
	}, nil
}

// Catalog returns the hardware catalog.
func (s *Service) Catalog() *hardware.Catalog { return s.catalog }

// Board returns the board the resolver assigns pins on.
func (s *Service) Board() *hardware.Board { return s.resolver.Board() }

// ─── In-flight guard ─────────────────────────────────────────────────────────

// begin claims (projectID, stage). The returned func releases it.
func (s *Service) begin(projectID string, stage project.Stage) (func(), error) {
	key := projectID + "/" + string(stage)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return nil, fmt.Errorf("%w: %s", ErrBusy, stage)
	}
	s.inflight[key] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}, nil
}

// update applies fn to a copy of p and stores it with a version check.
// On a version conflict it reloads the project and tries once more, so
// fn must be safe to run twice and must re-validate against what it gets.
func (s *Service) update(ctx context.Context, p *project.Project, fn func(*project.Project) error) (*project.Project, error) {
	for attempt := 0; ; attempt++ {
		next := p.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		err := s.store.Update(ctx, next, p.Version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, project.ErrVersionConflict) || attempt > 0 {
			return nil, err
		}
		p, err = s.store.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
	}
}

// ─── Projects ────────────────────────────────────────────────────────────────

// Create validates params and stores a new project.
func (s *Service) Create(ctx context.Context, params project.CreateParams) (*project.Project, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(params.TargetHardware) == "" {
		params.TargetHardware = s.target
	}
	p := project.NewProject(params)
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	notifyObserver(s.observer, Event{Type: EventProjectCreated, ProjectID: p.ID})
	return p, nil
}

// CreateFromTemplate creates a project from a starter template. An empty
// name uses the template's name.
func (s *Service) CreateFromTemplate(ctx context.Context, templateID, name string) (*project.Project, error) {
	st, err := templates.LookupStarter(templateID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = st.Name
	}
	return s.Create(ctx, project.CreateParams{
		Name:        name,
		Idea:        st.Idea,
		Description: st.Description,
		Components:  st.Components,
		TemplateID:  st.ID,
	})
}

// Templates lists the starter templates.
func (s *Service) Templates() ([]templates.Starter, error) {
	return templates.Starters()
}

// Get loads a project.
func (s *Service) Get(ctx context.Context, id string) (*project.Project, error) {
	return s.store.Get(ctx, id)
}

// List returns projects, newest first.
func (s *Service) List(ctx context.Context, opts project.ListOptions) ([]*project.Project, error) {
	if opts.Status != "" {
		if err := project.ValidateStatus(opts.Status); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return s.store.List(ctx, opts)
}

// Update applies a partial update to the project's metadata.
func (s *Service) Update(ctx context.Context, id string, params project.UpdateParams) (*project.Project, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.Empty() {
		return p, nil
	}
	updated, err := s.update(ctx, p, func(cur *project.Project) error {
		if err := params.Apply(cur); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	notifyObserver(s.observer, Event{Type: EventProjectUpdated, ProjectID: id})
	return updated, nil
}

// Delete removes a project.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	notifyObserver(s.observer, Event{Type: EventProjectDeleted, ProjectID: id})
	return nil
}

// ─── Stages ──────────────────────────────────────────────────────────────────

// GenerateParams is the input of Generate. Settings overrides the stored
// settings field by field; nil uses them as is.
type GenerateParams struct {
	ProjectID   string            `json:"project_id"`
	Stage       project.Stage     `json:"stage"`
	UserMessage string            `json:"user_message,omitempty"`
	Settings    *project.Settings `json:"settings,omitempty"`
}

// GenerateResult is the stored outcome of Generate.
type GenerateResult struct {
	Content  string        `json:"content"`
	Stage    project.Stage `json:"stage"`
	Revision int           `json:"revision"`
}

// Generate produces content for a stage with the LLM and stores it as a
// new, unapproved revision.
func (s *Service) Generate(ctx context.Context, params GenerateParams) (GenerateResult, error) {
	stage, err := pipeline.ParseStage(string(params.Stage))
	if err != nil {
		return GenerateResult{}, err
	}
	if s.gen == nil {
		return GenerateResult{}, errors.New("workflow: no generator configured")
	}
	release, err := s.begin(params.ProjectID, stage)
	if err != nil {
		return GenerateResult{}, err
	}
	defer release()

	p, err := s.store.Get(ctx, params.ProjectID)
	if err != nil {
		return GenerateResult{}, err
	}
	if err := pipeline.CanGenerate(p, stage); err != nil {
		return GenerateResult{}, err
	}
	settings, err := s.effectiveSettings(ctx, params.Settings)
	if err != nil {
		return GenerateResult{}, err
	}

	req := llm.BuildRequest(llm.PromptInput{
		Project:     p,
		Stage:       stage,
		UserMessage: params.UserMessage,
		Catalog:     s.catalog.Components(),
		Wiring:      s.projectDiagram(p),
	}, settings)

	content, err := s.gen.Generate(ctx, req)
	if err != nil {
		log.Printf("ERROR: generate %s for project %s: %v", stage, p.ID, err)
		return GenerateResult{}, err
	}

	msg := strings.TrimSpace(params.UserMessage)
	updated, err := s.update(ctx, p, func(cur *project.Project) error {
		if err := pipeline.ApplyGenerated(cur, stage, content); err != nil {
			return err
		}
		ts := project.Now()
		if msg != "" {
			cur.ConversationHistory = append(cur.ConversationHistory,
				project.Message{Role: "user", Content: msg, Stage: stage, Timestamp: ts})
		}
		cur.ConversationHistory = append(cur.ConversationHistory,
			project.Message{Role: "assistant", Content: content, Stage: stage, Timestamp: ts})
		return nil
	})
	if err != nil {
		return GenerateResult{}, err
	}

	rev := updated.Stage(stage).Revision
	notifyObserver(s.observer, Event{Type: EventStageGenerated, ProjectID: p.ID, Stage: stage, Revision: rev})
	return GenerateResult{Content: content, Stage: stage, Revision: rev}, nil
}

// ApproveParams is the input of Approve.
type ApproveParams struct {
	ProjectID string        `json:"project_id"`
	Stage     project.Stage `json:"stage"`
	Approved  bool          `json:"approved"`
	Notes     string        `json:"notes,omitempty"`
}

// ApproveResult carries the stage the project advanced to, nil when
// current_stage did not move.
type ApproveResult struct {
	NextStage *project.Stage   `json:"next_stage"`
	Project   *project.Project `json:"-"`
}

// Approve records an approval decision for a stage.
func (s *Service) Approve(ctx context.Context, params ApproveParams) (ApproveResult, error) {
	stage, err := pipeline.ParseStage(string(params.Stage))
	if err != nil {
		return ApproveResult{}, err
	}
	release, err := s.begin(params.ProjectID, stage)
	if err != nil {
		return ApproveResult{}, err
	}
	defer release()

	p, err := s.store.Get(ctx, params.ProjectID)
	if err != nil {
		return ApproveResult{}, err
	}

	var next *project.Stage
	updated, err := s.update(ctx, p, func(cur *project.Project) error {
		n, err := pipeline.Approve(cur, stage, params.Approved, params.Notes)
		next = n
		return err
	})
	if err != nil {
		return ApproveResult{}, err
	}

	ev := Event{Type: EventStageApproved, ProjectID: p.ID, Stage: stage, NextStage: next}
	if !params.Approved {
		ev.Type = EventStageRejected
	}
	notifyObserver(s.observer, ev)
	return ApproveResult{NextStage: next, Project: updated}, nil
}

// ─── Wiring ──────────────────────────────────────────────────────────────────

// Wiring resolves and renders pin assignments for a component selection.
func (s *Service) Wiring(componentIDs []string) (wiring.Wiring, error) {
	_, w, err := s.resolver.Wire(componentIDs)
	return w, err
}

// AttachResult is the outcome of AttachWiring.
type AttachResult struct {
	Wiring  wiring.Wiring    `json:"wiring"`
	Project *project.Project `json:"-"`
}

// AttachWiring stores the selection on the project and appends the
// rendered wiring section to the hardware stage. It is gated like
// generating the hardware stage.
func (s *Service) AttachWiring(ctx context.Context, projectID string, componentIDs []string) (AttachResult, error) {
	w, err := s.Wiring(componentIDs)
	if err != nil {
		return AttachResult{}, err
	}
	section, err := s.renderer.Render(templates.WiringSection, templates.WiringData{
		Board:    s.Board().Name,
		Diagram:  w.Diagram,
		Warnings: w.Warnings,
	})
	if err != nil {
		return AttachResult{}, err
	}

	release, err := s.begin(projectID, project.StageHardware)
	if err != nil {
		return AttachResult{}, err
	}
	defer release()

	p, err := s.store.Get(ctx, projectID)
	if err != nil {
		return AttachResult{}, err
	}
	ids := append([]string{}, componentIDs...)
	updated, err := s.update(ctx, p, func(cur *project.Project) error {
		if err := pipeline.ReplaceSection(cur, project.StageHardware, strings.TrimSpace(section)); err != nil {
			return err
		}
		cur.SelectedComponents = ids
		return nil
	})
	if err != nil {
		return AttachResult{}, err
	}

	notifyObserver(s.observer, Event{Type: EventWiringAttached, ProjectID: projectID, Stage: project.StageHardware})
	return AttachResult{Wiring: w, Project: updated}, nil
}

// projectDiagram renders the project's selection for prompt context.
// Resolution problems only drop the section; generation still proceeds.
func (s *Service) projectDiagram(p *project.Project) string {
	if len(p.SelectedComponents) == 0 {
		return ""
	}
	w, err := s.Wiring(p.SelectedComponents)
	if err != nil {
		log.Printf("WARNING: wiring for project %s: %v", p.ID, err)
		return ""
	}
	if len(w.Warnings) == 0 {
		return w.Diagram
	}
	return w.Diagram + "\n\nWarnings:\n- " + strings.Join(w.Warnings, "\n- ")
}

// ─── Settings ────────────────────────────────────────────────────────────────

// Settings returns the saved settings, or the configured defaults.
func (s *Service) Settings(ctx context.Context) (project.Settings, error) {
	st, err := s.store.GetSettings(ctx)
	if errors.Is(err, project.ErrNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return project.Settings{}, err
	}
	return st, nil
}

// UpdateSettings validates and saves settings. A redacted key, as
// returned by a previous read, keeps the stored key.
func (s *Service) UpdateSettings(ctx context.Context, in project.Settings) (project.Settings, error) {
	if strings.HasPrefix(in.APIKey, redactedPrefix) {
		cur, err := s.Settings(ctx)
		if err != nil {
			return project.Settings{}, err
		}
		in.APIKey = cur.APIKey
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return project.Settings{}, err
	}
	if err := s.store.SaveSettings(ctx, in); err != nil {
		return project.Settings{}, err
	}
	return in, nil
}

// effectiveSettings layers a per-call override over the saved settings.
func (s *Service) effectiveSettings(ctx context.Context, override *project.Settings) (project.Settings, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return project.Settings{}, err
	}
	if override != nil {
		if override.Provider != "" {
			st.Provider = override.Provider
		}
		if strings.TrimSpace(override.Model) != "" {
			st.Model = override.Model
		}
		if override.APIKey != "" && !strings.HasPrefix(override.APIKey, redactedPrefix) {
			st.APIKey = override.APIKey
		}
	}
	st = st.Normalize()
	if err := st.Validate(); err != nil {
		return project.Settings{}, err
	}
	return st, nil
}

// ─── Export ──────────────────────────────────────────────────────────────────

// Export renders a project as markdown or json.
func (s *Service) Export(ctx context.Context, projectID, format string) (export.Document, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return export.Document{}, err
	}
	p, err := s.store.Get(ctx, projectID)
	if err != nil {
		return export.Document{}, err
	}
	return s.exporter.Export(p, f)
}
