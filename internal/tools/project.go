package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/esp32-copilot/internal/pipeline"
	"github.com/HendryAvila/esp32-copilot/internal/project"
)

// --- esp32_project_create ---

// CreateProjectTool handles the esp32_project_create MCP tool.
type CreateProjectTool struct {
	wf Workflow
}

// NewCreateProjectTool creates a CreateProjectTool.
func NewCreateProjectTool(wf Workflow) *CreateProjectTool {
	return &CreateProjectTool{wf: wf}
}

// Definition returns the MCP tool definition for registration.
func (t *CreateProjectTool) Definition() mcp.Tool {
	return mcp.NewTool("esp32_project_create",
		mcp.WithDescription(
			"Create a new ESP32 project. The idea stage is approved on creation, so the next step "+
				"is generating the requirements stage with esp32_stage_generate. "+
				"Pass a template id instead of name and idea to start from a starter project "+
				"(see esp32_templates).",
		),
		mcp.WithString("name",
			mcp.Description("Project name. Required unless template is set."),
		),
		mcp.WithString("idea",
			mcp.Description("What the device should do, in a sentence or two. Required unless template is set."),
		),
		mcp.WithString("description",
			mcp.Description("Optional longer description"),
		),
		mcp.WithString("target_hardware",
			mcp.Description("Board the project targets. Defaults to the server's configured board."),
		),
		mcp.WithString("components",
			mcp.Description("Optional comma-separated catalog ids to preselect"),
		),
		mcp.WithString("template",
			mcp.Description("Starter project id. When set, name is optional and idea and components come from the starter."),
		),
	)
}

// Handle processes the esp32_project_create tool call.
func (t *CreateProjectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		p   *project.Project
		err error
	)
	if tmpl := req.GetString("template", ""); tmpl != "" {
		p, err = t.wf.CreateFromTemplate(ctx, tmpl, req.GetString("name", ""))
	} else {
		p, err = t.wf.Create(ctx, project.CreateParams{
			Name:           req.GetString("name", ""),
			Idea:           req.GetString("idea", ""),
			Description:    req.GetString("description", ""),
			TargetHardware: req.GetString("target_hardware", ""),
			Components:     splitList(req.GetString("components", "")),
		})
	}
	if err != nil {
		return errorResult(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Project Created: %s\n\n", p.Name)
	fmt.Fprintf(&b, "- **ID**: `%s`\n", p.ID)
	fmt.Fprintf(&b, "- **Target**: %s\n", p.TargetHardware)
	if p.TemplateID != "" {
		fmt.Fprintf(&b, "- **Template**: %s\n", p.TemplateID)
	}
	if len(p.SelectedComponents) > 0 {
		fmt.Fprintf(&b, "- **Components**: %s\n", strings.Join(p.SelectedComponents, ", "))
	}
	b.WriteString("\n## Next Step\n\n")
	fmt.Fprintf(&b, "Generate the requirements stage with `esp32_stage_generate` (project_id `%s`, stage `requirements`).\n", p.ID)
	return mcp.NewToolResultText(b.String()), nil
}

// --- esp32_project_get ---

// GetProjectTool handles the esp32_project_get MCP tool.
type GetProjectTool struct {
	wf Workflow
}

// NewGetProjectTool creates a GetProjectTool.
func NewGetProjectTool(wf Workflow) *GetProjectTool {
	return &GetProjectTool{wf: wf}
}

// Definition returns the MCP tool definition for registration.
func (t *GetProjectTool) Definition() mcp.Tool {
	return mcp.NewTool("esp32_project_get",
		mcp.WithDescription(
			"Show a project: its metadata, the approval state of every stage and, optionally, "+
				"the full content of one stage.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project ID"),
		),
		mcp.WithString("stage",
			mcp.Description("Include the full content of this stage"),
			mcp.Enum(stageEnum()...),
		),
	)
}

// Handle processes the esp32_project_get tool call.
func (t *GetProjectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("project_id", "")
	if id == "" {
		return mcp.NewToolResultError("project_id is required"), nil
	}
	var show project.Stage
	if name := req.GetString("stage", ""); name != "" {
		s, err := pipeline.ParseStage(name)
		if err != nil {
			return errorResult(err)
		}
		show = s
	}

	p, err := t.wf.Get(ctx, id)
	if err != nil {
		return errorResult(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	fmt.Fprintf(&b, "- **ID**: `%s`\n", p.ID)
	fmt.Fprintf(&b, "- **Status**: %s\n", p.Status)
	fmt.Fprintf(&b, "- **Target**: %s\n", p.TargetHardware)
	fmt.Fprintf(&b, "- **Current stage**: %s\n", p.CurrentStage)
	if len(p.SelectedComponents) > 0 {
		fmt.Fprintf(&b, "- **Components**: %s\n", strings.Join(p.SelectedComponents, ", "))
	}
	fmt.Fprintf(&b, "- **Idea**: %s\n", p.Idea)

	b.WriteString("\n")
	writeProgress(&b, p)

	if show != "" {
		st := p.Stage(show)
		fmt.Fprintf(&b, "\n## %s\n\n", project.StageLabels[show])
		if strings.TrimSpace(st.Content) == "" {
			b.WriteString("_No content yet._\n")
		} else {
			b.WriteString(st.Content)
			b.WriteString("\n")
		}
		if st.Notes != "" {
			fmt.Fprintf(&b, "\n**Notes**: %s\n", st.Notes)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// writeProgress renders the per-stage progress table.
func writeProgress(b *strings.Builder, p *project.Project) {
	fmt.Fprintf(b, "## Progress (%d/%d approved)\n\n", pipeline.ApprovedCount(p), len(project.StageOrder))
	b.WriteString("| Stage | Content | Approved | Revision |\n")
	b.WriteString("|-------|---------|----------|----------|\n")
	for _, sp := range pipeline.Progress(p) {
		label := sp.Label
		if sp.Current {
			label = "**" + label + "** (current)"
		}
		fmt.Fprintf(b, "| %s | %s | %s | %d |\n", label, yesNo(sp.HasContent), yesNo(sp.Approved), sp.Revision)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// --- esp32_project_list ---

// ListProjectsTool handles the esp32_project_list MCP tool.
type ListProjectsTool struct {
	wf Workflow
}

// NewListProjectsTool creates a ListProjectsTool.
func NewListProjectsTool(wf Workflow) *ListProjectsTool {
	return &ListProjectsTool{wf: wf}
}

// Definition returns the MCP tool definition for registration.
func (t *ListProjectsTool) Definition() mcp.Tool {
	return mcp.NewTool("esp32_project_list",
		mcp.WithDescription("List projects, most recently updated first."),
		mcp.WithString("status",
			mcp.Description("Only list projects with this status"),
			mcp.Enum(string(project.StatusActive), string(project.StatusCompleted), string(project.StatusArchived)),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of projects to return (default 50)"),
		),
	)
}

// Handle processes the esp32_project_list tool call.
func (t *ListProjectsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := t.wf.List(ctx, project.ListOptions{
		Status: project.Status(req.GetString("status", "")),
		Limit:  intArg(req, "limit", 0),
	})
	if err != nil {
		return errorResult(err)
	}
	if len(projects) == 0 {
		return mcp.NewToolResultText("No projects found. Create one with `esp32_project_create`."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Projects (%d)\n\n", len(projects))
	b.WriteString("| ID | Name | Status | Stage | Approved | Updated |\n")
	b.WriteString("|----|------|--------|-------|----------|---------|\n")
	for _, p := range projects {
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s | %d/%d | %s |\n",
			p.ID, p.Name, p.Status, p.CurrentStage,
			pipeline.ApprovedCount(p), len(project.StageOrder), p.UpdatedAt)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// --- esp32_project_update ---

// UpdateProjectTool handles the esp32_project_update MCP tool.
type UpdateProjectTool struct {
	wf Workflow
}

// NewUpdateProjectTool creates an UpdateProjectTool.
func NewUpdateProjectTool(wf Workflow) *UpdateProjectTool {
	return &UpdateProjectTool{wf: wf}
}

// Definition returns the MCP tool definition for registration.
func (t *UpdateProjectTool) Definition() mcp.Tool {
	return mcp.NewTool("esp32_project_update",
		mcp.WithDescription(
			"Change a project's metadata. Only the fields you pass are changed. "+
				"Stage content is changed through esp32_stage_generate and esp32_attach_wiring.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project ID"),
		),
		mcp.WithString("name", mcp.Description("New name")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("target_hardware", mcp.Description("New target board")),
		mcp.WithString("status",
			mcp.Description("New status"),
			mcp.Enum(string(project.StatusActive), string(project.StatusCompleted), string(project.StatusArchived)),
		),
	)
}

// Handle processes the esp32_project_update tool call.
func (t *UpdateProjectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("project_id", "")
	if id == "" {
		return mcp.NewToolResultError("project_id is required"), nil
	}
	params := project.UpdateParams{
		Name:           optionalString(req, "name"),
		Description:    optionalString(req, "description"),
		TargetHardware: optionalString(req, "target_hardware"),
	}
	if s := optionalString(req, "status"); s != nil {
		st := project.Status(*s)
		params.Status = &st
	}
	if params.Empty() {
		return mcp.NewToolResultError("nothing to update: pass at least one of name, description, target_hardware, status"), nil
	}

	p, err := t.wf.Update(ctx, id, params)
	if err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Project `%s` updated.\n\n- **Name**: %s\n- **Status**: %s\n- **Target**: %s\n",
		p.ID, p.Name, p.Status, p.TargetHardware,
	)), nil
}

// --- esp32_project_delete ---

// DeleteProjectTool handles the esp32_project_delete MCP tool.
type DeleteProjectTool struct {
	wf Workflow
}

// NewDeleteProjectTool creates a DeleteProjectTool.
func NewDeleteProjectTool(wf Workflow) *DeleteProjectTool {
	return &DeleteProjectTool{wf: wf}
}

// Definition returns the MCP tool definition for registration.
func (t *DeleteProjectTool) Definition() mcp.Tool {
	return mcp.NewTool("esp32_project_delete",
		mcp.WithDescription("Permanently delete a project and all of its stage content."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project ID"),
		),
	)
}

// Handle processes the esp32_project_delete tool call.
func (t *DeleteProjectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("project_id", "")
	if id == "" {
		return mcp.NewToolResultError("project_id is required"), nil
	}
	if err := t.wf.Delete(ctx, id); err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Project `%s` deleted.", id)), nil
}
