package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// TemplatesTool handles the esp32_templates MCP tool.
type TemplatesTool struct {
	wf Workflow
}

// NewTemplatesTool creates a TemplatesTool.
func NewTemplatesTool(wf Workflow) *TemplatesTool {
	return &TemplatesTool{wf: wf}
}

// Definition returns the MCP tool definition for registration.
func (t *TemplatesTool) Definition() mcp.Tool {
	return mcp.NewTool("esp32_templates",
		mcp.WithDescription(
			"List the starter projects. Pass a starter id as the template argument of "+
				"esp32_project_create to start from it.",
		),
	)
}

// Handle processes the esp32_templates tool call.
func (t *TemplatesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	starters, err := t.wf.Templates()
	if err != nil {
		return nil, fmt.Errorf("loading starters: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Starter Projects (%d)\n", len(starters))
	for _, s := range starters {
		fmt.Fprintf(&b, "\n## %s (`%s`)\n\n", s.Name, s.ID)
		fmt.Fprintf(&b, "- **Difficulty**: %s\n", s.Difficulty)
		fmt.Fprintf(&b, "- **Components**: %s\n", strings.Join(s.Components, ", "))
		fmt.Fprintf(&b, "\n%s\n", s.Description)
	}
	return mcp.NewToolResultText(b.String()), nil
}
