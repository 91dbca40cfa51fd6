package export

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/HendryAvila/esp32-copilot/internal/project"
	"github.com/HendryAvila/esp32-copilot/internal/templates"
)

func init() {
	timeNow = func() time.Time {
		return time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	}
}

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()
	r, err := templates.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return New(r)
}

func newExportProject() *project.Project {
	p := project.NewProject(project.CreateParams{
		Name:       "Garage Parking Sensor!",
		Idea:       "Tell me when to stop",
		Components: []string{"hc_sr04", "ws2812b_strip"},
	})
	p.Stages[project.StageRequirements] = project.StageData{Content: "- measure distance", UserApproved: true}
	return p
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"markdown", FormatMarkdown},
		{"MD", FormatMarkdown},
		{"", FormatMarkdown},
		{"json", FormatJSON},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %s, %v", tt.in, got, err)
		}
	}
	for _, bad := range []string{"pdf", "docx"} {
		if _, err := ParseFormat(bad); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("ParseFormat(%q) error = %v, want ErrUnsupportedFormat", bad, err)
		}
	}
}

func TestExport_Markdown(t *testing.T) {
	doc, err := newTestExporter(t).Export(newExportProject(), FormatMarkdown)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if doc.Filename != "garage-parking-sensor.md" {
		t.Errorf("Filename = %s", doc.Filename)
	}
	body := string(doc.Body)
	for _, want := range []string{"# Garage Parking Sensor!", "- hc_sr04", "## Requirements (approved)", "- measure distance", "## Iteration", "2026-02-20T12:00:00Z"} {
		if !strings.Contains(body, want) {
			t.Errorf("markdown missing %q:\n%s", want, body)
		}
	}
}

func TestExport_JSON(t *testing.T) {
	p := newExportProject()
	doc, err := newTestExporter(t).Export(p, FormatJSON)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if doc.ContentType != "application/json" {
		t.Errorf("ContentType = %s", doc.ContentType)
	}
	var back project.Project
	if err := json.Unmarshal(doc.Body, &back); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if back.ID != p.ID {
		t.Errorf("ID = %s, want %s", back.ID, p.ID)
	}
}

func TestExport_PDFUnsupported(t *testing.T) {
	_, err := newTestExporter(t).Export(newExportProject(), FormatPDF)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestSlug_Empty(t *testing.T) {
	if got := slug("!!!"); got != "project" {
		t.Errorf("slug = %s", got)
	}
}
