package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/esp32-copilot/internal/hardware"
	"github.com/HendryAvila/esp32-copilot/internal/wiring"
)

// --- esp32_resolve_wiring ---

// ResolveWiringTool handles the esp32_resolve_wiring MCP tool.
// It assigns ESP32 pins for a component selection without touching any project.
type ResolveWiringTool struct {
	wf Workflow
}

// NewResolveWiringTool creates a ResolveWiringTool.
func NewResolveWiringTool(wf Workflow) *ResolveWiringTool {
	return &ResolveWiringTool{wf: wf}
}

// Definition returns the MCP tool definition for registration.
func (t *ResolveWiringTool) Definition() mcp.Tool {
	return mcp.NewTool("esp32_resolve_wiring",
		mcp.WithDescription(
			"Assign ESP32 DevKit pins to a list of catalog components and render a text wiring diagram. "+
				"I2C and SPI parts share the bus pins; analog and digital signals get exclusive GPIOs. "+
				"Unknown ids and exhausted pin pools are reported as warnings, never as failures. "+
				"Use esp32_hardware_catalog to find component ids.",
		),
		mcp.WithString("components",
			mcp.Required(),
			mcp.Description("Comma-separated catalog ids in wiring order, e.g. 'bme280, ssd1306_oled, relay'. Repeat an id to place several of the same part."),
		),
	)
}

// Handle processes the esp32_resolve_wiring tool call.
func (t *ResolveWiringTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := splitList(req.GetString("components", ""))
	w, err := t.wf.Wiring(ids)
	if err != nil {
		return errorResult(err)
	}
	text, err := formatWiring(w)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(text), nil
}

// formatWiring renders a Wiring as markdown: diagram, warnings, then the
// role map as JSON.
func formatWiring(w wiring.Wiring) (string, error) {
	var b strings.Builder
	b.WriteString("# Wiring\n\n```text\n")
	b.WriteString(w.Diagram)
	b.WriteString("\n```\n")

	if len(w.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, warn := range w.Warnings {
			fmt.Fprintf(&b, "- %s\n", warn)
		}
	}

	data, err := json.MarshalIndent(w.PinAssignments, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding pin assignments: %w", err)
	}
	b.WriteString("\n## Pin Assignments\n\n```json\n")
	b.Write(data)
	b.WriteString("\n```\n")
	return b.String(), nil
}

// --- esp32_hardware_catalog ---

// HardwareCatalogTool handles the esp32_hardware_catalog MCP tool.
type HardwareCatalogTool struct {
	wf Workflow
}

// NewHardwareCatalogTool creates a HardwareCatalogTool.
func NewHardwareCatalogTool(wf Workflow) *HardwareCatalogTool {
	return &HardwareCatalogTool{wf: wf}
}

// Definition returns the MCP tool definition for registration.
func (t *HardwareCatalogTool) Definition() mcp.Tool {
	categories := make([]string, len(hardware.CategoryOrder))
	for i, c := range hardware.CategoryOrder {
		categories[i] = string(c)
	}
	return mcp.NewTool("esp32_hardware_catalog",
		mcp.WithDescription(
			"List the hardware components the pin resolver knows about, grouped by category, "+
				"with their interface, pin roles and supply voltage.",
		),
		mcp.WithString("category",
			mcp.Description("Only list one category. Omit for the full catalog."),
			mcp.Enum(categories...),
		),
	)
}

// Handle processes the esp32_hardware_catalog tool call.
func (t *HardwareCatalogTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	only := hardware.Category(req.GetString("category", ""))

	var b strings.Builder
	b.WriteString("# Hardware Catalog\n")
	shown := 0
	for _, g := range t.wf.Catalog().Groups() {
		if only != "" && g.Category != only {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", g.Category)
		b.WriteString("| ID | Name | Interface | Pins | Supply |\n")
		b.WriteString("|----|------|-----------|------|--------|\n")
		for _, c := range g.Components {
			pins := strings.Join(c.PinRoles, " ")
			if pins == "" {
				pins = "-"
			}
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s | %s |\n", c.ID, c.Name, c.Interface, pins, c.Supply)
			shown++
		}
	}
	if shown == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("No components in category %q.", only)), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

// --- esp32_attach_wiring ---

// AttachWiringTool handles the esp32_attach_wiring MCP tool.
// It stores the selection on a project and appends the diagram to its
// hardware stage.
type AttachWiringTool struct {
	wf Workflow
}

// NewAttachWiringTool creates an AttachWiringTool.
func NewAttachWiringTool(wf Workflow) *AttachWiringTool {
	return &AttachWiringTool{wf: wf}
}

// Definition returns the MCP tool definition for registration.
func (t *AttachWiringTool) Definition() mcp.Tool {
	return mcp.NewTool("esp32_attach_wiring",
		mcp.WithDescription(
			"Resolve pins for a component selection, save the selection on the project and append "+
				"the wiring diagram to its hardware stage. The requirements stage must be approved first. "+
				"The hardware stage becomes unapproved because its content changed.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project ID"),
		),
		mcp.WithString("components",
			mcp.Required(),
			mcp.Description("Comma-separated catalog ids in wiring order."),
		),
	)
}

// Handle processes the esp32_attach_wiring tool call.
func (t *AttachWiringTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("project_id", "")
	if id == "" {
		return mcp.NewToolResultError("project_id is required"), nil
	}
	res, err := t.wf.AttachWiring(ctx, id, splitList(req.GetString("components", "")))
	if err != nil {
		return errorResult(err)
	}
	text, err := formatWiring(res.Wiring)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(
		"Wiring attached to the hardware stage. Review it and approve the stage with `esp32_stage_approve`.\n\n" + text,
	), nil
}
