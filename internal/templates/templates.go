// Package templates renders project documents and holds the starter
// project catalog.
//
// Templates are embedded at build time with //go:embed. Rendering uses
// text/template (not html/template) because the output is markdown.
package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed files/*.tmpl files/starters.yaml
var files embed.FS

// ErrStarterNotFound is returned by LookupStarter for an unknown id.
var ErrStarterNotFound = errors.New("template not found")

// Template names.
const (
	ProjectDoc    = "project.md.tmpl"
	WiringSection = "wiring.md.tmpl"
)

// --- Renderer ---

// Renderer renders the embedded markdown templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"trim": strings.TrimSpace,
	}).ParseFS(files, "files/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the named template with data.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// StageSection is one stage in a ProjectDocData.
type StageSection struct {
	Label    string
	Content  string
	Approved bool
	Notes    string
}

// ProjectDocData feeds ProjectDoc.
type ProjectDocData struct {
	Name           string
	Description    string
	Idea           string
	TargetHardware string
	Status         string
	CurrentStage   string
	Components     []string
	Stages         []StageSection
	ExportedAt     string
}

// WiringData feeds WiringSection.
type WiringData struct {
	Board    string
	Diagram  string
	Warnings []string
}

// --- Starter projects ---

// Starter is a ready-made project idea with a component selection.
type Starter struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Difficulty  string   `yaml:"difficulty" json:"difficulty"`
	Description string   `yaml:"description" json:"description"`
	Idea        string   `yaml:"idea" json:"idea"`
	Components  []string `yaml:"components" json:"components"`
}

type starterFile struct {
	Starters []Starter `yaml:"starters"`
}

// Starters returns the embedded starter catalog in file order.
func Starters() ([]Starter, error) {
	data, err := files.ReadFile("files/starters.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading starters: %w", err)
	}
	var f starterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing starters: %w", err)
	}
	for i := range f.Starters {
		f.Starters[i].Idea = strings.TrimSpace(f.Starters[i].Idea)
	}
	return f.Starters, nil
}

// LookupStarter finds a starter by id.
func LookupStarter(id string) (Starter, error) {
	all, err := Starters()
	if err != nil {
		return Starter{}, err
	}
	for _, s := range all {
		if s.ID == id {
			return s, nil
		}
	}
	return Starter{}, fmt.Errorf("%w: %q", ErrStarterNotFound, id)
}
