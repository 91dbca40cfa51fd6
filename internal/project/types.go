// Package project holds the ESP32 copilot project document and its
// persistence.
//
// A project carries the seven workflow stages, each with its generated
// content and approval flag, plus the hardware selection and the LLM
// conversation history. The transition rules live in package pipeline;
// this package only describes and stores the data.
package project

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Now returns the current UTC time formatted as RFC3339.
func Now() string {
	return timeNow().UTC().Format(time.RFC3339)
}

// DefaultTargetHardware is used when a project is created without one.
const DefaultTargetHardware = "ESP32 DevKit V1"

// --- Stage enum ---

// Stage is one step of the idea-to-firmware workflow.
type Stage string

const (
	StageIdea         Stage = "idea"
	StageRequirements Stage = "requirements"
	StageHardware     Stage = "hardware"
	StageArchitecture Stage = "architecture"
	StageCode         Stage = "code"
	StageExplanation  Stage = "explanation"
	StageIteration    Stage = "iteration"
)

// StageOrder is the fixed stage sequence.
var StageOrder = []Stage{
	StageIdea,
	StageRequirements,
	StageHardware,
	StageArchitecture,
	StageCode,
	StageExplanation,
	StageIteration,
}

// StageLabels holds human-readable stage names for documents and prompts.
var StageLabels = map[Stage]string{
	StageIdea:         "Idea",
	StageRequirements: "Requirements",
	StageHardware:     "Hardware",
	StageArchitecture: "Architecture",
	StageCode:         "Code",
	StageExplanation:  "Explanation",
	StageIteration:    "Iteration",
}

// --- Status enum ---

// Status tracks the overall lifecycle of a project.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

var validStatuses = map[Status]bool{
	StatusActive:    true,
	StatusCompleted: true,
	StatusArchived:  true,
}

// ValidateStatus returns an error if the status is not recognized.
func ValidateStatus(s Status) error {
	if !validStatuses[s] {
		return fmt.Errorf("invalid status %q: must be one of: active, completed, archived", s)
	}
	return nil
}

// --- Core data structures ---

// StageData is the per-stage record inside a project.
type StageData struct {
	Content      string `json:"content,omitempty"`
	GeneratedAt  string `json:"generated_at,omitempty"`
	UserApproved bool   `json:"user_approved"`
	Notes        string `json:"notes,omitempty"`
	// Revision counts generations; regenerating a stage starts a new revision.
	Revision int `json:"revision"`
}

// Message is one entry of the LLM conversation history.
type Message struct {
	Role      string `json:"role"` // user | assistant
	Content   string `json:"content"`
	Stage     Stage  `json:"stage"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Project is the root document, persisted as JSON.
type Project struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Idea                string              `json:"idea"`
	Description         string              `json:"description,omitempty"`
	TargetHardware      string              `json:"target_hardware"`
	Status              Status              `json:"status"`
	CurrentStage        Stage               `json:"current_stage"`
	Stages              map[Stage]StageData `json:"stages"`
	SelectedComponents  []string            `json:"selected_components"`
	ConversationHistory []Message           `json:"conversation_history"`
	TemplateID          string              `json:"template_id,omitempty"`
	// Version increments on every stored update; see Store.Update.
	Version   int64  `json:"version"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate freely before an update.
func (p *Project) Clone() *Project {
	c := *p
	c.Stages = make(map[Stage]StageData, len(p.Stages))
	for k, v := range p.Stages {
		c.Stages[k] = v
	}
	c.SelectedComponents = append([]string(nil), p.SelectedComponents...)
	c.ConversationHistory = append([]Message(nil), p.ConversationHistory...)
	return &c
}

// Stage returns the record for a stage (zero value if absent).
func (p *Project) Stage(s Stage) StageData {
	return p.Stages[s]
}

// --- Creation and update inputs ---

// CreateParams is the input for NewProject.
type CreateParams struct {
	Name           string   `json:"name"`
	Idea           string   `json:"idea"`
	Description    string   `json:"description,omitempty"`
	TargetHardware string   `json:"target_hardware,omitempty"`
	Components     []string `json:"components,omitempty"`
	TemplateID     string   `json:"template_id,omitempty"`
}

// Validate checks the required fields.
func (c CreateParams) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(c.Idea) == "" {
		return errors.New("idea is required")
	}
	return nil
}

// NewProject builds a fresh project. The idea stage is auto-approved with
// the idea text as its content; every other stage starts empty.
func NewProject(c CreateParams) *Project {
	now := Now()
	target := c.TargetHardware
	if strings.TrimSpace(target) == "" {
		target = DefaultTargetHardware
	}

	stages := make(map[Stage]StageData, len(StageOrder))
	for _, s := range StageOrder {
		stages[s] = StageData{}
	}
	stages[StageIdea] = StageData{
		Content:      c.Idea,
		GeneratedAt:  now,
		UserApproved: true,
		Revision:     1,
	}

	components := append([]string{}, c.Components...)
	return &Project{
		ID:                  uuid.NewString(),
		Name:                strings.TrimSpace(c.Name),
		Idea:                c.Idea,
		Description:         c.Description,
		TargetHardware:      target,
		Status:              StatusActive,
		CurrentStage:        StageIdea,
		Stages:              stages,
		SelectedComponents:  components,
		ConversationHistory: []Message{},
		TemplateID:          c.TemplateID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// UpdateParams is a partial update; nil fields are left unchanged.
type UpdateParams struct {
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	TargetHardware *string `json:"target_hardware,omitempty"`
	Status         *Status `json:"status,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u UpdateParams) Empty() bool {
	return u.Name == nil && u.Description == nil && u.TargetHardware == nil && u.Status == nil
}

// Apply validates and applies the update to p.
func (u UpdateParams) Apply(p *Project) error {
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return errors.New("name cannot be empty")
		}
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Status != nil {
		if err := ValidateStatus(*u.Status); err != nil {
			return err
		}
		p.Status = *u.Status
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.TargetHardware != nil {
		p.TargetHardware = *u.TargetHardware
	}
	return nil
}
