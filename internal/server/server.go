// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates the concrete store, catalog and
// LLM client, builds the workflow service on top of them and registers the
// tools, prompts and resources that depend on it. No business logic lives
// here, only wiring.
package server

import (
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/esp32-copilot/internal/config"
	"github.com/HendryAvila/esp32-copilot/internal/hardware"
	"github.com/HendryAvila/esp32-copilot/internal/llm"
	"github.com/HendryAvila/esp32-copilot/internal/project"
	"github.com/HendryAvila/esp32-copilot/internal/prompts"
	"github.com/HendryAvila/esp32-copilot/internal/resources"
	"github.com/HendryAvila/esp32-copilot/internal/templates"
	"github.com/HendryAvila/esp32-copilot/internal/tools"
	"github.com/HendryAvila/esp32-copilot/internal/workflow"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewService builds the workflow service from cfg. Events go to obs,
// which may be nil.
//
// The returned cleanup function closes the project database and must be
// called on shutdown. It is always non-nil.
func NewService(cfg config.Config, obs workflow.Observer) (*workflow.Service, func(), error) {
	catalog, err := LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, noop, err
	}

	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, noop, fmt.Errorf("creating template renderer: %w", err)
	}

	store, err := project.NewSQLiteStore(cfg.DataDir)
	if err != nil {
		return nil, noop, fmt.Errorf("opening project store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Printf("WARNING: project store close: %v", err)
		}
	}

	svc, err := workflow.New(workflow.Deps{
		Store:          store,
		Generator:      llm.NewClient(cfg.LLMTimeout),
		Catalog:        catalog,
		Renderer:       renderer,
		Defaults:       cfg.DefaultSettings(),
		TargetHardware: cfg.TargetHardware,
		Observer:       obs,
	})
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("creating workflow service: %w", err)
	}
	return svc, cleanup, nil
}

// LoadCatalog returns the catalog at path, or the embedded one when path
// is empty.
func LoadCatalog(path string) (*hardware.Catalog, error) {
	if path == "" {
		cat, err := hardware.DefaultCatalog()
		if err != nil {
			return nil, fmt.Errorf("loading embedded catalog: %w", err)
		}
		return cat, nil
	}
	cat, err := hardware.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", path, err)
	}
	log.Printf("hardware catalog: %d components from %s", cat.Len(), path)
	return cat, nil
}

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
func New(cfg config.Config) (*server.MCPServer, func(), error) {
	s := server.NewMCPServer(
		"esp32-copilot",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// Project changes made through any tool mark the projects resource as
	// updated, so hosts that show it can refresh.
	notifier := workflow.ObserverFunc(func(ev workflow.Event) {
		s.SendNotificationToAllClients(mcp.MethodNotificationResourceUpdated, map[string]any{
			"uri":   resources.ProjectsURI,
			"event": string(ev.Type),
		})
	})

	svc, cleanup, err := NewService(cfg, notifier)
	if err != nil {
		return nil, noop, err
	}

	registerTools(s, svc)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	rh := resources.NewHandler(svc)
	s.AddResource(rh.CatalogResource(), rh.HandleCatalog)
	s.AddResource(rh.BoardResource(), rh.HandleBoard)
	s.AddResource(rh.ProjectsResource(), rh.HandleProjects)

	return s, cleanup, nil
}

// registerTools adds every ESP32 tool to the server.
func registerTools(s *server.MCPServer, wf tools.Workflow) {
	// --- Hardware and wiring ---

	resolveTool := tools.NewResolveWiringTool(wf)
	s.AddTool(resolveTool.Definition(), resolveTool.Handle)

	catalogTool := tools.NewHardwareCatalogTool(wf)
	s.AddTool(catalogTool.Definition(), catalogTool.Handle)

	attachTool := tools.NewAttachWiringTool(wf)
	s.AddTool(attachTool.Definition(), attachTool.Handle)

	// --- Projects ---

	createTool := tools.NewCreateProjectTool(wf)
	s.AddTool(createTool.Definition(), createTool.Handle)

	getTool := tools.NewGetProjectTool(wf)
	s.AddTool(getTool.Definition(), getTool.Handle)

	listTool := tools.NewListProjectsTool(wf)
	s.AddTool(listTool.Definition(), listTool.Handle)

	updateTool := tools.NewUpdateProjectTool(wf)
	s.AddTool(updateTool.Definition(), updateTool.Handle)

	deleteTool := tools.NewDeleteProjectTool(wf)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	// --- Stages ---

	generateTool := tools.NewGenerateStageTool(wf)
	s.AddTool(generateTool.Definition(), generateTool.Handle)

	approveTool := tools.NewApproveStageTool(wf)
	s.AddTool(approveTool.Definition(), approveTool.Handle)

	// --- Export, starters, settings ---

	exportTool := tools.NewExportProjectTool(wf)
	s.AddTool(exportTool.Definition(), exportTool.Handle)

	templatesTool := tools.NewTemplatesTool(wf)
	s.AddTool(templatesTool.Definition(), templatesTool.Handle)

	settingsTool := tools.NewSettingsTool(wf)
	s.AddTool(settingsTool.Definition(), settingsTool.Handle)
}

// noop is a cleanup function that does nothing.
func noop() {}

// serverInstructions returns the system instructions sent to the host on
// initialize.
func serverInstructions() string {
	return `You have access to the ESP32 IoT Copilot, an MCP server that guides
a maker from a device idea to wired hardware and working firmware.

## WHEN TO USE IT

Suggest the copilot when the user:
- Wants to build a device on an ESP32 (sensors, displays, relays, LEDs)
- Asks which pins to connect a component to
- Has an IoT idea and does not know where to start

You do NOT need it for general C++ questions or for boards other than the ESP32.

## THE SEVEN STAGES

Every project moves through these stages, strictly in order:

1. idea: the user's own words. Approved on creation.
2. requirements: functional and non-functional requirements.
3. hardware: component list. Attach a pin map with esp32_attach_wiring.
4. architecture: firmware structure, data flow and timing.
5. code: the Arduino sketch, built on the resolved pins.
6. explanation: a walkthrough of the code for the maker.
7. iteration: improvements. Approving it completes the project.

A stage can only be generated once every earlier stage is approved.
Approving the current stage advances the project.

## RULES

- NEVER call esp32_stage_approve unless the user has explicitly approved the
  content you showed them. Show the generated stage first.
- When the user asks for changes, reject the stage with notes and regenerate
  it with the changes as user_message.
- Always take pin numbers from esp32_resolve_wiring or esp32_attach_wiring.
  Never invent GPIO numbers: several ESP32 pins are input-only, reserved for
  flash or sampled at boot.
- Warnings from the resolver (unknown component, pool exhausted) must be shown
  to the user; the rest of the wiring is still valid.

## USEFUL TOOLS

- esp32_templates / esp32_project_create with template: start from a starter project
- esp32_hardware_catalog: the component ids the resolver knows
- esp32_project_get: progress table and stage content
- esp32_project_export: the whole project as one markdown document
- esp32_settings: LLM provider and model used for generation`
}
