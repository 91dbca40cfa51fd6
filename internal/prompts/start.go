// Package prompts implements MCP prompt handlers for the ESP32 copilot.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the esp32-start MCP prompt.
// It guides the AI to create a project and walk the stages in order.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("esp32-start",
		mcp.WithPromptDescription(
			"Start a new ESP32 IoT project. "+
				"Creates the project and walks through requirements, hardware, architecture, "+
				"code, explanation and iteration with your approval at each stage.",
		),
		mcp.WithArgument("project_name",
			mcp.ArgumentDescription("Name of your project"),
		),
		mcp.WithArgument("idea",
			mcp.ArgumentDescription("What the device should do. Leave empty to be asked."),
		),
		mcp.WithArgument("template",
			mcp.ArgumentDescription("Starter project id (weather-station, plant-monitor, ...). Overrides idea."),
		),
	)
}

// Handle processes the esp32-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	projectName := "my-esp32-project"
	if name := args["project_name"]; name != "" {
		projectName = name
	}

	var create string
	switch {
	case args["template"] != "":
		create = fmt.Sprintf("1. Run `esp32_project_create` with template='%s' and name='%s'\n", args["template"], projectName)
	case args["idea"] != "":
		create = fmt.Sprintf("1. Run `esp32_project_create` with name='%s' and idea='%s'\n", projectName, args["idea"])
	default:
		create = fmt.Sprintf("1. Ask me what the device should do, then run `esp32_project_create` with name='%s' and my answer as the idea\n", projectName)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Start ESP32 project: %s", projectName),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"I want to build an ESP32 project called '" + projectName + "'.\n\n" +
						"Please:\n" +
						create +
						"2. Approve the idea stage with `esp32_stage_approve`, then generate requirements with `esp32_stage_generate`\n" +
						"3. Show me each generated stage and wait for my approval before calling `esp32_stage_approve`\n" +
						"4. At the hardware stage, pick components with `esp32_hardware_catalog` and attach pins with `esp32_attach_wiring`\n" +
						"5. Continue through architecture, code, explanation and iteration the same way\n\n" +
						"Never approve a stage I have not agreed to.",
				),
			},
		},
	}, nil
}
