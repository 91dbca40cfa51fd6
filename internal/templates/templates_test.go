package templates

import (
	"errors"
	"strings"
	"testing"
)

// --- NewRenderer ---

func TestNewRenderer_Succeeds(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() failed: %v", err)
	}
	if r == nil {
		t.Fatal("NewRenderer() returned nil")
	}
}

// --- Render: ProjectDoc ---

func TestRender_ProjectDoc(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	data := ProjectDocData{
		Name:           "Weather Station",
		Description:    "Desk gadget",
		Idea:           "Show temperature on an OLED",
		TargetHardware: "ESP32 DevKit V1",
		Status:         "active",
		CurrentStage:   "hardware",
		Components:     []string{"BME280", "SSD1306 OLED"},
		Stages: []StageSection{
			{Label: "Requirements", Content: "  - read every minute\n", Approved: true},
			{Label: "Hardware", Content: "BOM draft", Notes: "add a battery"},
			{Label: "Code"},
		},
		ExportedAt: "2026-02-20T12:00:00Z",
	}

	result, err := r.Render(ProjectDoc, data)
	if err != nil {
		t.Fatalf("Render(ProjectDoc) failed: %v", err)
	}

	checks := []string{
		"# Weather Station",
		"Target hardware: ESP32 DevKit V1",
		"Desk gadget",
		"## Idea",
		"Show temperature on an OLED",
		"## Selected Components",
		"- BME280",
		"- SSD1306 OLED",
		"## Requirements (approved)",
		"- read every minute",
		"## Hardware (draft)",
		"**Notes:** add a battery",
		"## Code",
		"_Not generated yet._",
		"2026-02-20T12:00:00Z",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("ProjectDoc output missing: %q\n%s", check, result)
		}
	}
}

func TestRender_ProjectDocWithoutOptionalSections(t *testing.T) {
	r, _ := NewRenderer()
	result, err := r.Render(ProjectDoc, ProjectDocData{Name: "Bare", Idea: "x"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(result, "## Selected Components") {
		t.Error("components section should be omitted when empty")
	}
}

// --- Render: WiringSection ---

func TestRender_WiringSection(t *testing.T) {
	r, _ := NewRenderer()
	result, err := r.Render(WiringSection, WiringData{
		Board:    "ESP32 DevKit V1",
		Diagram:  "GPIO21 --------> SDA@BME280",
		Warnings: []string{`unknown component "x"; skipped`},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, check := range []string{"## Wiring", "```text", "GPIO21 --------> SDA@BME280", "### Warnings", `- unknown component "x"; skipped`} {
		if !strings.Contains(result, check) {
			t.Errorf("WiringSection missing %q:\n%s", check, result)
		}
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	r, _ := NewRenderer()
	if _, err := r.Render("nope.tmpl", nil); err == nil {
		t.Error("unknown template should fail")
	}
}

// --- Starters ---

func TestStarters_Load(t *testing.T) {
	all, err := Starters()
	if err != nil {
		t.Fatalf("Starters: %v", err)
	}
	if len(all) == 0 {
		t.Fatal("no starters")
	}
	seen := map[string]bool{}
	for _, s := range all {
		if s.ID == "" || s.Name == "" || s.Idea == "" || len(s.Components) == 0 {
			t.Errorf("incomplete starter: %+v", s)
		}
		if seen[s.ID] {
			t.Errorf("duplicate starter id %s", s.ID)
		}
		seen[s.ID] = true
		if strings.HasSuffix(s.Idea, "\n") {
			t.Errorf("%s idea not trimmed", s.ID)
		}
	}
}

func TestLookupStarter(t *testing.T) {
	s, err := LookupStarter("weather-station")
	if err != nil {
		t.Fatalf("LookupStarter: %v", err)
	}
	if s.Components[0] != "bme280" {
		t.Errorf("components = %v", s.Components)
	}
	if _, err := LookupStarter("time-machine"); !errors.Is(err, ErrStarterNotFound) {
		t.Errorf("LookupStarter(time-machine) error = %v, want ErrStarterNotFound", err)
	}
}
