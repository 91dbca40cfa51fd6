package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/esp32-copilot/internal/project"
)

// SettingsTool handles the esp32_settings MCP tool.
// API keys are never echoed back in full.
type SettingsTool struct {
	wf Workflow
}

// NewSettingsTool creates a SettingsTool.
func NewSettingsTool(wf Workflow) *SettingsTool {
	return &SettingsTool{wf: wf}
}

// Definition returns the MCP tool definition for registration.
func (t *SettingsTool) Definition() mcp.Tool {
	return mcp.NewTool("esp32_settings",
		mcp.WithDescription(
			"Read or change the saved LLM settings used by esp32_stage_generate. "+
				"With action 'set', only the fields you pass are changed.",
		),
		mcp.WithString("action",
			mcp.Description("get (default) or set"),
			mcp.Enum("get", "set"),
		),
		mcp.WithString("provider",
			mcp.Description("LLM provider"),
			mcp.Enum(string(project.ProviderOpenAI), string(project.ProviderGroq), string(project.ProviderOpenRouter)),
		),
		mcp.WithString("model",
			mcp.Description("Model name, e.g. gpt-4o"),
		),
		mcp.WithString("theme",
			mcp.Description("UI theme"),
			mcp.Enum(string(project.ThemeLight), string(project.ThemeDark), string(project.ThemeSystem)),
		),
		mcp.WithString("api_key",
			mcp.Description("Provider API key. When unset, the provider's environment variable is used."),
		),
	)
}

// Handle processes the esp32_settings tool call.
func (t *SettingsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := t.wf.Settings(ctx)
	if err != nil {
		return errorResult(err)
	}

	switch action := req.GetString("action", "get"); action {
	case "get":
		return mcp.NewToolResultText(formatSettings("Settings", st)), nil
	case "set":
		changed := false
		if v := req.GetString("provider", ""); v != "" {
			st.Provider = project.Provider(v)
			changed = true
		}
		if v := req.GetString("model", ""); v != "" {
			st.Model = v
			changed = true
		}
		if v := req.GetString("theme", ""); v != "" {
			st.Theme = project.Theme(v)
			changed = true
		}
		if v := req.GetString("api_key", ""); v != "" {
			st.APIKey = v
			changed = true
		}
		if !changed {
			return mcp.NewToolResultError("nothing to set: pass at least one of provider, model, theme, api_key"), nil
		}
		saved, err := t.wf.UpdateSettings(ctx, st)
		if err != nil {
			return errorResult(err)
		}
		return mcp.NewToolResultText(formatSettings("Settings Saved", saved)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q: use get or set", action)), nil
	}
}

func formatSettings(title string, st project.Settings) string {
	st = st.Redacted()
	key := st.APIKey
	if key == "" {
		key = "(from environment)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- **Provider**: %s\n", st.Provider)
	fmt.Fprintf(&b, "- **Model**: %s\n", st.Model)
	fmt.Fprintf(&b, "- **Theme**: %s\n", st.Theme)
	fmt.Fprintf(&b, "- **API key**: %s\n", key)
	return b.String()
}
