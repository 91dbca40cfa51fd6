// Package export renders a project as a downloadable document.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/HendryAvila/esp32-copilot/internal/project"
	"github.com/HendryAvila/esp32-copilot/internal/templates"
)

// ErrUnsupportedFormat is returned for formats other than markdown and json.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format is an export file format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatPDF      Format = "pdf"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// ParseFormat accepts "markdown", "md" and "json". "pdf" is recognized but
// not supported.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "pdf":
		return "", fmt.Errorf("%w: pdf", ErrUnsupportedFormat)
	default:
		return "", fmt.Errorf("%w: %q (use markdown or json)", ErrUnsupportedFormat, s)
	}
}

// Document is a rendered export.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Exporter renders projects with the embedded templates.
type Exporter struct {
	renderer *templates.Renderer
}

// New creates an Exporter.
func New(r *templates.Renderer) *Exporter {
	return &Exporter{renderer: r}
}

// Export renders p in the requested format.
func (e *Exporter) Export(p *project.Project, format Format) (Document, error) {
	base := slug(p.Name)
	switch format {
	case FormatMarkdown:
		body, err := e.markdown(p)
		if err != nil {
			return Document{}, err
		}
		return Document{Filename: base + ".md", ContentType: "text/markdown; charset=utf-8", Body: []byte(body)}, nil
	case FormatJSON:
		body, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return Document{}, fmt.Errorf("encoding project: %w", err)
		}
		return Document{Filename: base + ".json", ContentType: "application/json", Body: body}, nil
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func (e *Exporter) markdown(p *project.Project) (string, error) {
	data := templates.ProjectDocData{
		Name:           p.Name,
		Description:    p.Description,
		Idea:           p.Idea,
		TargetHardware: p.TargetHardware,
		Status:         string(p.Status),
		CurrentStage:   string(p.CurrentStage),
		Components:     p.SelectedComponents,
		ExportedAt:     timeNow().UTC().Format(time.RFC3339),
	}
	for _, s := range project.StageOrder {
		if s == project.StageIdea {
			continue
		}
		st := p.Stage(s)
		data.Stages = append(data.Stages, templates.StageSection{
			Label:    project.StageLabels[s],
			Content:  st.Content,
			Approved: st.UserApproved,
			Notes:    st.Notes,
		})
	}
	return e.renderer.Render(templates.ProjectDoc, data)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(name string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		return "project"
	}
	return s
}
