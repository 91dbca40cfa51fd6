// Package resources implements MCP resource handlers for the ESP32 copilot.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (esp32://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/esp32-copilot/internal/hardware"
	"github.com/HendryAvila/esp32-copilot/internal/pipeline"
	"github.com/HendryAvila/esp32-copilot/internal/project"
)

// Resource URIs.
const (
	CatalogURI  = "esp32://hardware/catalog"
	BoardURI    = "esp32://board/pins"
	ProjectsURI = "esp32://projects"
)

// Source is what the resources read from. workflow.Service satisfies it.
type Source interface {
	Catalog() *hardware.Catalog
	Board() *hardware.Board
	List(ctx context.Context, opts project.ListOptions) ([]*project.Project, error)
}

// Handler manages the ESP32 resource endpoints.
type Handler struct {
	src Source
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(src Source) *Handler {
	return &Handler{src: src}
}

// CatalogResource returns the MCP resource definition for the hardware catalog.
func (h *Handler) CatalogResource() mcp.Resource {
	return mcp.NewResource(
		CatalogURI,
		"ESP32 Hardware Catalog",
		mcp.WithResourceDescription("Every component the pin resolver knows, grouped by category"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleCatalog returns the catalog groups as JSON.
func (h *Handler) HandleCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, h.src.Catalog().Groups())
}

// BoardResource returns the MCP resource definition for the board pin map.
func (h *Handler) BoardResource() mcp.Resource {
	return mcp.NewResource(
		BoardURI,
		"ESP32 DevKit Pin Map",
		mcp.WithResourceDescription("Usable GPIOs, bus pins and the analog and digital allocation pools"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleBoard returns the board summary as JSON.
func (h *Handler) HandleBoard(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, h.src.Board().Summary())
}

// ProjectsResource returns the MCP resource definition for the active project overview.
func (h *Handler) ProjectsResource() mcp.Resource {
	return mcp.NewResource(
		ProjectsURI,
		"ESP32 Projects",
		mcp.WithResourceDescription("Active projects with their current stage and approval progress"),
		mcp.WithMIMEType("text/markdown"),
	)
}

// HandleProjects returns a markdown overview of active projects.
func (h *Handler) HandleProjects(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	projects, err := h.src.List(ctx, project.ListOptions{Status: project.StatusActive})
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("# Active Projects\n\n")
	if len(projects) == 0 {
		b.WriteString("_None yet._\n")
	}
	for _, p := range projects {
		fmt.Fprintf(&b, "- **%s** (`%s`): stage %s, %d/%d approved\n",
			p.Name, p.ID, p.CurrentStage, pipeline.ApprovedCount(p), len(project.StageOrder))
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     b.String(),
		},
	}, nil
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
