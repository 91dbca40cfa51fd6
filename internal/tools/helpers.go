// Package tools implements MCP tool handlers for the ESP32 copilot.
//
// Each tool receives its dependencies via its struct and returns a handler
// compatible with mcp-go's CallToolRequest signature:
// - one tool per type, grouped by concern per file
// - tools depend on the Workflow interface, not on the concrete service
// - user mistakes come back as tool errors; infrastructure failures as Go errors
package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/esp32-copilot/internal/export"
	"github.com/HendryAvila/esp32-copilot/internal/hardware"
	"github.com/HendryAvila/esp32-copilot/internal/llm"
	"github.com/HendryAvila/esp32-copilot/internal/pipeline"
	"github.com/HendryAvila/esp32-copilot/internal/project"
	"github.com/HendryAvila/esp32-copilot/internal/templates"
	"github.com/HendryAvila/esp32-copilot/internal/wiring"
	"github.com/HendryAvila/esp32-copilot/internal/workflow"
)

// Workflow is the subset of workflow.Service the tools call.
type Workflow interface {
	Catalog() *hardware.Catalog
	Board() *hardware.Board
	Wiring(componentIDs []string) (wiring.Wiring, error)
	AttachWiring(ctx context.Context, projectID string, componentIDs []string) (workflow.AttachResult, error)

	Create(ctx context.Context, params project.CreateParams) (*project.Project, error)
	CreateFromTemplate(ctx context.Context, templateID, name string) (*project.Project, error)
	Get(ctx context.Context, id string) (*project.Project, error)
	List(ctx context.Context, opts project.ListOptions) ([]*project.Project, error)
	Update(ctx context.Context, id string, params project.UpdateParams) (*project.Project, error)
	Delete(ctx context.Context, id string) error

	Generate(ctx context.Context, params workflow.GenerateParams) (workflow.GenerateResult, error)
	Approve(ctx context.Context, params workflow.ApproveParams) (workflow.ApproveResult, error)

	Export(ctx context.Context, projectID, format string) (export.Document, error)
	Templates() ([]templates.Starter, error)
	Settings(ctx context.Context) (project.Settings, error)
	UpdateSettings(ctx context.Context, s project.Settings) (project.Settings, error)
}

// userErrors are failures the caller can fix by changing the request.
var userErrors = []error{
	workflow.ErrInvalidInput,
	workflow.ErrBusy,
	wiring.ErrEmptySelection,
	pipeline.ErrUnknownStage,
	pipeline.ErrStageOutOfOrder,
	pipeline.ErrNoContent,
	pipeline.ErrNotGeneratable,
	project.ErrNotFound,
	project.ErrVersionConflict,
	project.ErrInvalidSettings,
	templates.ErrStarterNotFound,
	export.ErrUnsupportedFormat,
	llm.ErrMissingAPIKey,
	llm.ErrTimeout,
	llm.ErrUpstream,
}

// errorResult turns a known user error into a tool error result and
// passes anything else through as a Go error.
func errorResult(err error) (*mcp.CallToolResult, error) {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return nil, err
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// optionalString returns a pointer to the argument, or nil when absent.
func optionalString(req mcp.CallToolRequest, key string) *string {
	v, ok := req.GetArguments()[key].(string)
	if !ok {
		return nil
	}
	return &v
}

// splitList parses a comma- or whitespace-separated id list, keeping
// order and duplicates.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
}

// stageEnum lists every stage name for tool schemas.
func stageEnum() []string {
	out := make([]string, len(project.StageOrder))
	for i, s := range project.StageOrder {
		out[i] = string(s)
	}
	return out
}
