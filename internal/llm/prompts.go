package llm

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/esp32-copilot/internal/hardware"
	"github.com/HendryAvila/esp32-copilot/internal/project"
)

const fallbackSystemPrompt = "You are an ESP32 IoT expert assistant."

var systemPrompts = map[project.Stage]string{
	project.StageRequirements: `You are an ESP32 IoT project expert. Turn the user's project idea into clear, structured requirements.

Output format:
## Functional Requirements
## Hardware Requirements
Sensors, actuators and displays needed.
## Communication Requirements
WiFi, MQTT, HTTP, BLE, serial.
## Power Requirements
Battery, USB or mains.
## Constraints

Stay within what an ESP32 can realistically do.`,

	project.StageHardware: `You are an ESP32 hardware expert. Recommend concrete components for the requirements and explain how to wire them.

Prefer parts from this catalog (id: name, interface, pin roles):
%s

Output format:
## Recommended Components
Name, purpose and quantity for each part. Mention the catalog id.
## Wiring Diagram (Text)
Component pin -> ESP32 GPIO or rail.
## Wiring Notes
Pull-ups, level shifting, power budget, common mistakes.
## Shopping List`,

	project.StageArchitecture: `You are an ESP32 firmware architect. Design the software architecture for this project.

Output format:
## Architecture Overview
## Module Structure
Main loop, sensor reading, communication, display, configuration.
## State Machine
## Data Flow
## Libraries Required
Arduino libraries with install instructions.
## Memory Considerations`,

	project.StageCode: `You are an ESP32 Arduino developer. Write complete firmware that compiles with the Arduino core for ESP32.

Rules:
- include every header you use
- define all pins at the top, matching the wiring in the context
- prefer non-blocking code (millis) over delay
- log to Serial for debugging
- handle sensor read failures

Order the sketch as: header comment, includes, pin definitions, globals, setup(), loop(), helpers.`,

	project.StageExplanation: `You are an ESP32 educator. Explain the generated architecture and code so the user learns from it.

Output format:
## How It Works
## Code Walkthrough
## Key Concepts
## Common Modifications
## Debugging Tips
## Learning Resources`,

	project.StageIteration: `You are an ESP32 expert helping iterate on an existing project. Based on the user's feedback, suggest improvements, fix bugs or add features.

Give concrete code snippets. Consider performance, power consumption, code clarity, new features and bug fixes.`,
}

// PromptInput is everything needed to build a generation request.
type PromptInput struct {
	Project     *project.Project
	Stage       project.Stage
	UserMessage string
	// Catalog is embedded in the hardware stage prompt.
	Catalog []hardware.Component
	// Wiring is the resolved pin map, if the project has a selection.
	Wiring string
}

// SystemPrompt returns the system prompt for a stage.
func SystemPrompt(stage project.Stage, catalog []hardware.Component) string {
	prompt, ok := systemPrompts[stage]
	if !ok {
		return fallbackSystemPrompt
	}
	if stage == project.StageHardware {
		return fmt.Sprintf(prompt, CatalogSummary(catalog))
	}
	return prompt
}

// CatalogSummary renders one line per component for prompt embedding.
func CatalogSummary(components []hardware.Component) string {
	if len(components) == 0 {
		return "(catalog unavailable)"
	}
	var b strings.Builder
	for _, c := range components {
		fmt.Fprintf(&b, "- %s: %s, %s", c.ID, c.Name, c.Interface)
		if len(c.PinRoles) > 0 {
			fmt.Fprintf(&b, ", [%s]", strings.Join(c.PinRoles, " "))
		}
		if c.Supply == hardware.Rail5V {
			b.WriteString(", 5V")
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildContext assembles the project context for a stage: name, idea,
// description, target hardware, then every earlier stage's content in
// order. The current stage's own content is never included.
func BuildContext(p *project.Project, stage project.Stage, wiring string) string {
	parts := []string{
		"Project: " + p.Name,
		"Idea: " + p.Idea,
	}
	if p.Description != "" {
		parts = append(parts, "Description: "+p.Description)
	}
	parts = append(parts, "Target Hardware: "+p.TargetHardware)
	if len(p.SelectedComponents) > 0 {
		parts = append(parts, "Selected Components: "+strings.Join(p.SelectedComponents, ", "))
	}

	for _, prior := range project.StageOrder {
		if prior == stage {
			break
		}
		if prior == project.StageIdea {
			continue
		}
		if content := strings.TrimSpace(p.Stage(prior).Content); content != "" {
			parts = append(parts, fmt.Sprintf("\n=== %s ===\n%s", strings.ToUpper(string(prior)), content))
		}
	}

	if wiring != "" && stage != project.StageHardware {
		parts = append(parts, "\n=== RESOLVED WIRING ===\n"+wiring)
	}
	return strings.Join(parts, "\n")
}

// BuildRequest turns a PromptInput into a Request for the given settings.
func BuildRequest(in PromptInput, settings project.Settings) Request {
	ctx := BuildContext(in.Project, in.Stage, in.Wiring)
	var user string
	if msg := strings.TrimSpace(in.UserMessage); msg != "" {
		user = fmt.Sprintf("Project Context:\n%s\n\nUser Request: %s", ctx, msg)
	} else {
		user = fmt.Sprintf("Project Context:\n%s\n\nPlease generate the %s for this project.", ctx, in.Stage)
	}
	return Request{
		Settings: settings,
		System:   SystemPrompt(in.Stage, in.Catalog),
		Messages: []ChatMessage{{Role: "user", Content: user}},
	}
}
