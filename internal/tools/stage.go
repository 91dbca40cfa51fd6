package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/esp32-copilot/internal/content"
	"github.com/HendryAvila/esp32-copilot/internal/project"
	"github.com/HendryAvila/esp32-copilot/internal/workflow"
)

// --- esp32_stage_generate ---

// GenerateStageTool handles the esp32_stage_generate MCP tool.
// It asks the configured LLM for one stage of a project and stores the
// result as a new revision.
type GenerateStageTool struct {
	wf Workflow
}

// NewGenerateStageTool creates a GenerateStageTool.
func NewGenerateStageTool(wf Workflow) *GenerateStageTool {
	return &GenerateStageTool{wf: wf}
}

// Definition returns the MCP tool definition for registration.
func (t *GenerateStageTool) Definition() mcp.Tool {
	return mcp.NewTool("esp32_stage_generate",
		mcp.WithDescription(
			"Generate (or regenerate) one stage of a project with the configured LLM. "+
				"Every earlier stage must be approved. Regenerating replaces the stage content, "+
				"bumps its revision and clears its approval. The idea stage cannot be generated. "+
				"Present the result to the user and ask for approval before calling esp32_stage_approve.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project ID"),
		),
		mcp.WithString("stage",
			mcp.Required(),
			mcp.Description("Stage to generate"),
			mcp.Enum(stageEnum()[1:]...),
		),
		mcp.WithString("user_message",
			mcp.Description("Optional extra guidance, e.g. 'use deep sleep between readings'"),
		),
		mcp.WithString("provider",
			mcp.Description("Override the saved LLM provider for this call"),
			mcp.Enum(string(project.ProviderOpenAI), string(project.ProviderGroq), string(project.ProviderOpenRouter)),
		),
		mcp.WithString("model",
			mcp.Description("Override the saved model for this call"),
		),
	)
}

// Handle processes the esp32_stage_generate tool call.
func (t *GenerateStageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("project_id", "")
	if id == "" {
		return mcp.NewToolResultError("project_id is required"), nil
	}
	params := workflow.GenerateParams{
		ProjectID:   id,
		Stage:       project.Stage(req.GetString("stage", "")),
		UserMessage: req.GetString("user_message", ""),
	}
	provider := req.GetString("provider", "")
	model := req.GetString("model", "")
	if provider != "" || model != "" {
		params.Settings = &project.Settings{Provider: project.Provider(provider), Model: model}
	}

	res, err := t.wf.Generate(ctx, params)
	if err != nil {
		return errorResult(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s (revision %d)\n\n", project.StageLabels[res.Stage], res.Revision)
	b.WriteString(res.Content)
	b.WriteString("\n\n---\n\n")
	if blocks := content.CodeBlocks(res.Content, ""); len(blocks) > 0 {
		fmt.Fprintf(&b, "Contains %d code block(s).\n", len(blocks))
	}
	fmt.Fprintf(&b, "Ask the user to review this stage, then call `esp32_stage_approve` with stage `%s`.\n", res.Stage)
	return mcp.NewToolResultText(b.String()), nil
}

// --- esp32_stage_approve ---

// ApproveStageTool handles the esp32_stage_approve MCP tool.
type ApproveStageTool struct {
	wf Workflow
}

// NewApproveStageTool creates an ApproveStageTool.
func NewApproveStageTool(wf Workflow) *ApproveStageTool {
	return &ApproveStageTool{wf: wf}
}

// Definition returns the MCP tool definition for registration.
func (t *ApproveStageTool) Definition() mcp.Tool {
	return mcp.NewTool("esp32_stage_approve",
		mcp.WithDescription(
			"Approve or reject a stage. Approving the current stage advances the project to the next one; "+
				"approving the iteration stage completes the project. Rejecting keeps the content and "+
				"records the notes so the stage can be regenerated. "+
				"Only call this after the user has explicitly agreed.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project ID"),
		),
		mcp.WithString("stage",
			mcp.Required(),
			mcp.Description("Stage to approve or reject"),
			mcp.Enum(stageEnum()...),
		),
		mcp.WithBoolean("approved",
			mcp.Description("true to approve, false to reject (default true)"),
		),
		mcp.WithString("notes",
			mcp.Description("Reviewer notes, e.g. what to change when rejecting"),
		),
	)
}

// Handle processes the esp32_stage_approve tool call.
func (t *ApproveStageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("project_id", "")
	if id == "" {
		return mcp.NewToolResultError("project_id is required"), nil
	}
	stage := project.Stage(req.GetString("stage", ""))
	approved := boolArg(req, "approved", true)

	res, err := t.wf.Approve(ctx, workflow.ApproveParams{
		ProjectID: id,
		Stage:     stage,
		Approved:  approved,
		Notes:     req.GetString("notes", ""),
	})
	if err != nil {
		return errorResult(err)
	}

	if !approved {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Stage `%s` rejected. Regenerate it with `esp32_stage_generate`, passing the requested changes as user_message.",
			stage,
		)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Stage `%s` approved.\n\n", stage)
	switch {
	case res.NextStage != nil:
		fmt.Fprintf(&b, "Next stage: **%s**. Generate it with `esp32_stage_generate`.\n", project.StageLabels[*res.NextStage])
	case res.Project != nil && res.Project.Status == project.StatusCompleted:
		b.WriteString("All stages are approved. The project is complete. Export it with `esp32_project_export`.\n")
	}
	if res.Project != nil {
		b.WriteString("\n")
		writeProgress(&b, res.Project)
	}
	return mcp.NewToolResultText(b.String()), nil
}
