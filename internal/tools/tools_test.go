package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/esp32-copilot/internal/hardware"
	"github.com/HendryAvila/esp32-copilot/internal/llm"
	"github.com/HendryAvila/esp32-copilot/internal/project"
	"github.com/HendryAvila/esp32-copilot/internal/workflow"
)

// --- Test helpers ---

type stubGenerator struct {
	content string
	err     error
}

func (g *stubGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	return g.content, g.err
}

func newTestWorkflow(t *testing.T, gen llm.Generator) *workflow.Service {
	t.Helper()
	store, err := project.NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	catalog, err := hardware.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	svc, err := workflow.New(workflow.Deps{
		Store:     store,
		Generator: gen,
		Catalog:   catalog,
		Defaults:  project.Settings{Provider: project.ProviderGroq, Model: "llama-3.1-70b", APIKey: "gsk-secret-1234", Theme: project.ThemeDark},
	})
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}
	return svc
}

func callTool(t *testing.T, handle func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handle(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	return result
}

func isErrorResult(r *mcp.CallToolResult) bool {
	return r != nil && r.IsError
}

func getResultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	if tc, ok := r.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}

func createProject(t *testing.T, svc *workflow.Service) *project.Project {
	t.Helper()
	p, err := svc.Create(context.Background(), project.CreateParams{Name: "Greenhouse", Idea: "Watch soil moisture"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

// --- Helpers ---

func TestSplitList(t *testing.T) {
	got := splitList(" bme280, relay,relay\nbuzzer ")
	want := []string{"bme280", "relay", "relay", "buzzer"}
	if len(got) != len(want) {
		t.Fatalf("splitList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(splitList("  ,  ")) != 0 {
		t.Error("blank list should be empty")
	}
}

func TestErrorResult_PassesInfrastructureErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	res, err := errorResult(boom)
	if res != nil || !errors.Is(err, boom) {
		t.Fatalf("errorResult(infra) = %v, %v", res, err)
	}

	res, err = errorResult(project.ErrNotFound)
	if err != nil || !isErrorResult(res) {
		t.Fatalf("errorResult(user) = %v, %v", res, err)
	}
}

// --- Wiring ---

func TestResolveWiring_SharedBus(t *testing.T) {
	tool := NewResolveWiringTool(newTestWorkflow(t, nil))
	res := callTool(t, tool.Handle, map[string]interface{}{"components": "bme280, ssd1306_oled"})
	if isErrorResult(res) {
		t.Fatalf("unexpected error: %s", getResultText(res))
	}
	text := getResultText(res)
	for _, want := range []string{"```text", "SDA@BME280", "Pin Assignments", `"bme280"`} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestResolveWiring_UnknownIsWarning(t *testing.T) {
	tool := NewResolveWiringTool(newTestWorkflow(t, nil))
	res := callTool(t, tool.Handle, map[string]interface{}{"components": "bme280, flux_capacitor"})
	if isErrorResult(res) {
		t.Fatalf("unexpected error: %s", getResultText(res))
	}
	text := getResultText(res)
	if !strings.Contains(text, "## Warnings") || !strings.Contains(text, "flux_capacitor") {
		t.Errorf("expected unknown-component warning:\n%s", text)
	}
}

func TestResolveWiring_EmptySelection(t *testing.T) {
	tool := NewResolveWiringTool(newTestWorkflow(t, nil))
	res := callTool(t, tool.Handle, map[string]interface{}{"components": " , "})
	if !isErrorResult(res) {
		t.Fatal("expected error for empty selection")
	}
}

func TestHardwareCatalog(t *testing.T) {
	tool := NewHardwareCatalogTool(newTestWorkflow(t, nil))

	res := callTool(t, tool.Handle, map[string]interface{}{})
	text := getResultText(res)
	if isErrorResult(res) || !strings.Contains(text, "`bme280`") || !strings.Contains(text, "## display") {
		t.Fatalf("full catalog output unexpected:\n%s", text)
	}

	res = callTool(t, tool.Handle, map[string]interface{}{"category": "display"})
	text = getResultText(res)
	if strings.Contains(text, "`bme280`") {
		t.Error("display filter should exclude sensors")
	}
	if !strings.Contains(text, "`ssd1306_oled`") {
		t.Errorf("display filter missing oled:\n%s", text)
	}

	res = callTool(t, tool.Handle, map[string]interface{}{"category": "plumbing"})
	if !isErrorResult(res) {
		t.Error("unknown category should be an error")
	}
}

func TestAttachWiring_RequiresApprovedRequirements(t *testing.T) {
	svc := newTestWorkflow(t, &stubGenerator{content: "## Requirements"})
	p := createProject(t, svc)
	tool := NewAttachWiringTool(svc)

	res := callTool(t, tool.Handle, map[string]interface{}{"project_id": p.ID, "components": "soil_moisture"})
	if !isErrorResult(res) {
		t.Fatal("expected out-of-order error")
	}

	ctx := context.Background()
	if _, err := svc.Generate(ctx, workflow.GenerateParams{ProjectID: p.ID, Stage: project.StageRequirements}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := svc.Approve(ctx, workflow.ApproveParams{ProjectID: p.ID, Stage: project.StageRequirements, Approved: true}); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	res = callTool(t, tool.Handle, map[string]interface{}{"project_id": p.ID, "components": "soil_moisture, relay"})
	if isErrorResult(res) {
		t.Fatalf("unexpected error: %s", getResultText(res))
	}
	got, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.SelectedComponents) != 2 {
		t.Errorf("SelectedComponents = %v", got.SelectedComponents)
	}
	if !strings.Contains(strings.ToLower(got.Stage(project.StageHardware).Content), "soil") {
		t.Errorf("hardware stage missing wiring:\n%s", got.Stage(project.StageHardware).Content)
	}
}

// --- Projects ---

func TestCreateProject(t *testing.T) {
	svc := newTestWorkflow(t, nil)
	tool := NewCreateProjectTool(svc)

	res := callTool(t, tool.Handle, map[string]interface{}{
		"name":       "Greenhouse",
		"idea":       "Watch soil moisture",
		"components": "soil_moisture relay",
	})
	if isErrorResult(res) {
		t.Fatalf("unexpected error: %s", getResultText(res))
	}
	text := getResultText(res)
	if !strings.Contains(text, "Project Created: Greenhouse") || !strings.Contains(text, "soil_moisture, relay") {
		t.Errorf("unexpected output:\n%s", text)
	}

	projects, err := svc.List(context.Background(), project.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(projects) != 1 || projects[0].TargetHardware != project.DefaultTargetHardware {
		t.Errorf("projects = %+v", projects)
	}
}

func TestCreateProject_MissingIdea(t *testing.T) {
	tool := NewCreateProjectTool(newTestWorkflow(t, nil))
	res := callTool(t, tool.Handle, map[string]interface{}{"name": "Greenhouse"})
	if !isErrorResult(res) {
		t.Fatal("expected error for missing idea")
	}
	if !strings.Contains(getResultText(res), "idea") {
		t.Errorf("error should name the field: %s", getResultText(res))
	}
}

func TestCreateProject_FromTemplate(t *testing.T) {
	tool := NewCreateProjectTool(newTestWorkflow(t, nil))

	res := callTool(t, tool.Handle, map[string]interface{}{"template": "weather-station"})
	if isErrorResult(res) {
		t.Fatalf("unexpected error: %s", getResultText(res))
	}
	text := getResultText(res)
	if !strings.Contains(text, "Weather Station") || !strings.Contains(text, "weather-station") {
		t.Errorf("unexpected output:\n%s", text)
	}

	res = callTool(t, tool.Handle, map[string]interface{}{"template": "time-machine"})
	if !isErrorResult(res) {
		t.Error("unknown template should be an error")
	}
}

func TestGetProject(t *testing.T) {
	svc := newTestWorkflow(t, nil)
	p := createProject(t, svc)
	tool := NewGetProjectTool(svc)

	res := callTool(t, tool.Handle, map[string]interface{}{"project_id": p.ID, "stage": "idea"})
	if isErrorResult(res) {
		t.Fatalf("unexpected error: %s", getResultText(res))
	}
	text := getResultText(res)
	for _, want := range []string{"# Greenhouse", "Progress (1/7 approved)", "(current)", "Watch soil moisture"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	res = callTool(t, tool.Handle, map[string]interface{}{"project_id": p.ID, "stage": "wiring"})
	if !isErrorResult(res) {
		t.Error("unknown stage should be an error")
	}
	res = callTool(t, tool.Handle, map[string]interface{}{"project_id": "nope"})
	if !isErrorResult(res) {
		t.Error("missing project should be an error")
	}
	res = callTool(t, tool.Handle, map[string]interface{}{})
	if !isErrorResult(res) {
		t.Error("missing project_id should be an error")
	}
}

func TestListProjects(t *testing.T) {
	svc := newTestWorkflow(t, nil)
	tool := NewListProjectsTool(svc)

	res := callTool(t, tool.Handle, map[string]interface{}{})
	if !strings.Contains(getResultText(res), "No projects found") {
		t.Errorf("empty list output: %s", getResultText(res))
	}

	createProject(t, svc)
	createProject(t, svc)
	res = callTool(t, tool.Handle, map[string]interface{}{"limit": float64(1)})
	if !strings.Contains(getResultText(res), "# Projects (1)") {
		t.Errorf("limit not applied:\n%s", getResultText(res))
	}

	res = callTool(t, tool.Handle, map[string]interface{}{"status": "archived"})
	if !strings.Contains(getResultText(res), "No projects found") {
		t.Errorf("status filter not applied:\n%s", getResultText(res))
	}

	res = callTool(t, tool.Handle, map[string]interface{}{"status": "sleeping"})
	if !isErrorResult(res) {
		t.Error("bogus status should be an error")
	}
}

func TestUpdateProject(t *testing.T) {
	svc := newTestWorkflow(t, nil)
	p := createProject(t, svc)
	tool := NewUpdateProjectTool(svc)

	res := callTool(t, tool.Handle, map[string]interface{}{"project_id": p.ID})
	if !isErrorResult(res) {
		t.Error("update with no fields should be an error")
	}

	res = callTool(t, tool.Handle, map[string]interface{}{"project_id": p.ID, "name": "Hothouse", "status": "archived"})
	if isErrorResult(res) {
		t.Fatalf("unexpected error: %s", getResultText(res))
	}
	got, _ := svc.Get(context.Background(), p.ID)
	if got.Name != "Hothouse" || got.Status != project.StatusArchived {
		t.Errorf("got name=%q status=%q", got.Name, got.Status)
	}

	res = callTool(t, tool.Handle, map[string]interface{}{"project_id": p.ID, "status": "melted"})
	if !isErrorResult(res) {
		t.Error("invalid status should be an error")
	}
}

func TestDeleteProject(t *testing.T) {
	svc := newTestWorkflow(t, nil)
	p := createProject(t, svc)
	tool := NewDeleteProjectTool(svc)

	res := callTool(t, tool.Handle, map[string]interface{}{"project_id": p.ID})
	if isErrorResult(res) {
		t.Fatalf("unexpected error: %s", getResultText(res))
	}
	if _, err := svc.Get(context.Background(), p.ID); !errors.Is(err, project.ErrNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
	res = callTool(t, tool.Handle, map[string]interface{}{"project_id": p.ID})
	if !isErrorResult(res) {
		t.Error("deleting twice should be an error")
	}
}

// --- Stages ---

func TestGenerateAndApprove(t *testing.T) {
	svc := newTestWorkflow(t, &stubGenerator{content: "## Requirements\n\n```cpp\nvoid setup() {}\n```"})
	p := createProject(t, svc)
	gen := NewGenerateStageTool(svc)
	approve := NewApproveStageTool(svc)

	res := callTool(t, approve.Handle, map[string]interface{}{"project_id": p.ID, "stage": "idea"})
	if !strings.Contains(getResultText(res), project.StageLabels[project.StageRequirements]) {
		t.Fatalf("approving idea should advance to requirements:\n%s", getResultText(res))
	}

	res = callTool(t, gen.Handle, map[string]interface{}{"project_id": p.ID, "stage": "requirements", "user_message": "battery powered"})
	if isErrorResult(res) {
		t.Fatalf("unexpected error: %s", getResultText(res))
	}
	text := getResultText(res)
	if !strings.Contains(text, "revision 1") || !strings.Contains(text, "1 code block") {
		t.Errorf("unexpected generate output:\n%s", text)
	}

	res = callTool(t, approve.Handle, map[string]interface{}{"project_id": p.ID, "stage": "requirements"})
	if isErrorResult(res) {
		t.Fatalf("unexpected error: %s", getResultText(res))
	}
	text = getResultText(res)
	if !strings.Contains(text, "approved") || !strings.Contains(text, project.StageLabels[project.StageHardware]) {
		t.Errorf("unexpected approve output:\n%s", text)
	}

	got, _ := svc.Get(context.Background(), p.ID)
	if got.CurrentStage != project.StageHardware {
		t.Errorf("CurrentStage = %q, want hardware", got.CurrentStage)
	}
	if len(got.ConversationHistory) != 2 {
		t.Errorf("history len = %d, want 2", len(got.ConversationHistory))
	}
}

func TestGenerate_OutOfOrder(t *testing.T) {
	svc := newTestWorkflow(t, &stubGenerator{content: "code"})
	p := createProject(t, svc)
	res := callTool(t, NewGenerateStageTool(svc).Handle, map[string]interface{}{"project_id": p.ID, "stage": "code"})
	if !isErrorResult(res) {
		t.Fatal("expected out-of-order error")
	}
}

func TestGenerate_UpstreamFailureIsToolError(t *testing.T) {
	svc := newTestWorkflow(t, &stubGenerator{err: llm.ErrTimeout})
	p := createProject(t, svc)
	res := callTool(t, NewGenerateStageTool(svc).Handle, map[string]interface{}{"project_id": p.ID, "stage": "requirements"})
	if !isErrorResult(res) {
		t.Fatal("expected timeout to surface as a tool error")
	}
}

func TestApprove_Reject(t *testing.T) {
	svc := newTestWorkflow(t, &stubGenerator{content: "## Requirements"})
	p := createProject(t, svc)
	callTool(t, NewGenerateStageTool(svc).Handle, map[string]interface{}{"project_id": p.ID, "stage": "requirements"})

	res := callTool(t, NewApproveStageTool(svc).Handle, map[string]interface{}{
		"project_id": p.ID, "stage": "requirements", "approved": false, "notes": "add a battery",
	})
	if isErrorResult(res) {
		t.Fatalf("unexpected error: %s", getResultText(res))
	}
	if !strings.Contains(getResultText(res), "rejected") {
		t.Errorf("unexpected output: %s", getResultText(res))
	}
	got, _ := svc.Get(context.Background(), p.ID)
	if got.Stage(project.StageRequirements).Notes != "add a battery" {
		t.Errorf("notes = %q", got.Stage(project.StageRequirements).Notes)
	}
	if got.Stage(project.StageRequirements).UserApproved {
		t.Error("rejected stage should not be approved")
	}
}

func TestApprove_EmptyStage(t *testing.T) {
	svc := newTestWorkflow(t, nil)
	p := createProject(t, svc)
	res := callTool(t, NewApproveStageTool(svc).Handle, map[string]interface{}{"project_id": p.ID, "stage": "requirements"})
	if !isErrorResult(res) {
		t.Fatal("approving a stage without content should fail")
	}
}

// --- Export, templates, settings ---

func TestExportProject(t *testing.T) {
	svc := newTestWorkflow(t, nil)
	p := createProject(t, svc)
	tool := NewExportProjectTool(svc)

	res := callTool(t, tool.Handle, map[string]interface{}{"project_id": p.ID})
	text := getResultText(res)
	if isErrorResult(res) || !strings.Contains(text, "greenhouse.md") || !strings.Contains(text, "Watch soil moisture") {
		t.Errorf("unexpected markdown export:\n%s", text)
	}

	res = callTool(t, tool.Handle, map[string]interface{}{"project_id": p.ID, "format": "json"})
	if !strings.Contains(getResultText(res), `"id": "`+p.ID+`"`) && !strings.Contains(getResultText(res), `"id":"`+p.ID+`"`) {
		t.Errorf("json export missing id:\n%s", getResultText(res))
	}

	res = callTool(t, tool.Handle, map[string]interface{}{"project_id": p.ID, "format": "pdf"})
	if !isErrorResult(res) {
		t.Error("pdf export should be an error")
	}
}

func TestTemplates(t *testing.T) {
	res := callTool(t, NewTemplatesTool(newTestWorkflow(t, nil)).Handle, map[string]interface{}{})
	text := getResultText(res)
	for _, want := range []string{"`weather-station`", "`plant-monitor`", "bme280"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestSettings_GetAndSet(t *testing.T) {
	svc := newTestWorkflow(t, nil)
	tool := NewSettingsTool(svc)

	res := callTool(t, tool.Handle, map[string]interface{}{})
	text := getResultText(res)
	if !strings.Contains(text, "groq") || !strings.Contains(text, "****1234") {
		t.Errorf("unexpected get output:\n%s", text)
	}
	if strings.Contains(text, "gsk-secret") {
		t.Error("api key leaked")
	}

	res = callTool(t, tool.Handle, map[string]interface{}{"action": "set", "model": "mixtral-8x7b"})
	if isErrorResult(res) {
		t.Fatalf("unexpected error: %s", getResultText(res))
	}
	st, err := svc.Settings(context.Background())
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if st.Model != "mixtral-8x7b" || st.Provider != project.ProviderGroq || st.APIKey != "gsk-secret-1234" {
		t.Errorf("saved settings = %+v", st)
	}

	res = callTool(t, tool.Handle, map[string]interface{}{"action": "set", "provider": "anthropic"})
	if !isErrorResult(res) {
		t.Error("invalid provider should be an error")
	}
	res = callTool(t, tool.Handle, map[string]interface{}{"action": "set"})
	if !isErrorResult(res) {
		t.Error("set with no fields should be an error")
	}
	res = callTool(t, tool.Handle, map[string]interface{}{"action": "reset"})
	if !isErrorResult(res) {
		t.Error("unknown action should be an error")
	}
}
