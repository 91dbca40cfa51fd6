package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ExportProjectTool handles the esp32_project_export MCP tool.
type ExportProjectTool struct {
	wf Workflow
}

// NewExportProjectTool creates an ExportProjectTool.
func NewExportProjectTool(wf Workflow) *ExportProjectTool {
	return &ExportProjectTool{wf: wf}
}

// Definition returns the MCP tool definition for registration.
func (t *ExportProjectTool) Definition() mcp.Tool {
	return mcp.NewTool("esp32_project_export",
		mcp.WithDescription(
			"Export a project as a single document. Markdown collects every stage with content "+
				"under its own heading; json is the full project record.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project ID"),
		),
		mcp.WithString("format",
			mcp.Description("Export format (default markdown)"),
			mcp.Enum("markdown", "json"),
		),
	)
}

// Handle processes the esp32_project_export tool call.
func (t *ExportProjectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("project_id", "")
	if id == "" {
		return mcp.NewToolResultError("project_id is required"), nil
	}
	doc, err := t.wf.Export(ctx, id, req.GetString("format", "markdown"))
	if err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("<!-- %s (%s) -->\n%s", doc.Filename, doc.ContentType, doc.Body)), nil
}
