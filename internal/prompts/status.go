package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the esp32-status MCP prompt.
// It instructs the AI to read and present a project's stage progress.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("esp32-status",
		mcp.WithPromptDescription(
			"Check where an ESP32 project stands: which stages are approved, "+
				"which one is current and what to do next.",
		),
		mcp.WithArgument("project_id",
			mcp.ArgumentDescription("Project ID. Leave empty to pick from the project list."),
		),
	)
}

// Handle processes the esp32-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	lookup := "Please run `esp32_project_list` and ask me which project to check. Then run `esp32_project_get` for it.\n\n"
	if id := req.Params.Arguments["project_id"]; id != "" {
		lookup = "Please run `esp32_project_get` with project_id='" + id + "'.\n\n"
	}

	return &mcp.GetPromptResult{
		Description: "ESP32 Project Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					lookup +
						"Then:\n" +
						"1. Show me the stage progress in a clear, visual format\n" +
						"2. Point out stages that were rejected and their notes\n" +
						"3. Tell me exactly what I should do next",
				),
			},
		},
	}, nil
}
