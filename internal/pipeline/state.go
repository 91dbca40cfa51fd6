// Package pipeline implements the stage state machine for ESP32 projects.
//
// Stages run in a fixed order from idea to iteration. A stage may only be
// generated or approved once every earlier stage is approved, and
// current_stage moves forward one step when the current stage is approved.
// Iteration is terminal: it never advances and regenerating it simply
// starts a new revision.
//
// Every function here mutates the project in memory only; persisting the
// result is the caller's job.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/esp32-copilot/internal/project"
)

var (
	// ErrUnknownStage is returned for a stage name outside StageOrder.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrStageOutOfOrder is returned when an earlier stage is not approved.
	ErrStageOutOfOrder = errors.New("stage out of order")
	// ErrNoContent is returned when approving a stage that has no content.
	ErrNoContent = errors.New("stage has no content to approve")
	// ErrNotGeneratable is returned for the idea stage, whose content is
	// the user's own idea text.
	ErrNotGeneratable = errors.New("stage is not generated")
)

// timeNow stamps GeneratedAt; tests freeze it.
var timeNow = time.Now

func now() string {
	return timeNow().UTC().Format(time.RFC3339)
}

// StageIndex returns the 0-based position of a stage, or -1 if unknown.
func StageIndex(stage project.Stage) int {
	for i, s := range project.StageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// ParseStage validates a stage name.
func ParseStage(name string) (project.Stage, error) {
	s := project.Stage(strings.ToLower(strings.TrimSpace(name)))
	if StageIndex(s) < 0 {
		return "", fmt.Errorf("%w %q: must be one of: %s", ErrUnknownStage, name, stageList())
	}
	return s, nil
}

// Next returns the stage after s. ok is false for iteration and unknown stages.
func Next(s project.Stage) (next project.Stage, ok bool) {
	idx := StageIndex(s)
	if idx < 0 || idx >= len(project.StageOrder)-1 {
		return "", false
	}
	return project.StageOrder[idx+1], true
}

// IsTerminal reports whether s is the last stage.
func IsTerminal(s project.Stage) bool {
	return s == project.StageOrder[len(project.StageOrder)-1]
}

// requirePriorApproved checks that every stage strictly before s is approved.
func requirePriorApproved(p *project.Project, s project.Stage) error {
	idx := StageIndex(s)
	if idx < 0 {
		return fmt.Errorf("%w %q", ErrUnknownStage, s)
	}
	for _, prior := range project.StageOrder[:idx] {
		if !p.Stage(prior).UserApproved {
			return fmt.Errorf("%w: cannot work on %q until %q is approved", ErrStageOutOfOrder, s, prior)
		}
	}
	return nil
}

// CanGenerate reports whether content for s may be generated now.
func CanGenerate(p *project.Project, s project.Stage) error {
	if err := requirePriorApproved(p, s); err != nil {
		return err
	}
	if s == project.StageIdea {
		return fmt.Errorf("%w: %q holds the project idea; edit the project instead", ErrNotGeneratable, s)
	}
	return nil
}

// CanApprove reports whether s may receive an approval decision now.
// Rejections need no content; approvals do.
func CanApprove(p *project.Project, s project.Stage, approved bool) error {
	if err := requirePriorApproved(p, s); err != nil {
		return err
	}
	if approved && strings.TrimSpace(p.Stage(s).Content) == "" {
		return fmt.Errorf("%w: %q", ErrNoContent, s)
	}
	return nil
}

// ApplyGenerated stores freshly generated content for s. The stage becomes
// unapproved with a new revision; current_stage is not touched.
func ApplyGenerated(p *project.Project, s project.Stage, content string) error {
	if err := CanGenerate(p, s); err != nil {
		return err
	}
	prev := p.Stage(s)
	if p.Stages == nil {
		p.Stages = map[project.Stage]project.StageData{}
	}
	p.Stages[s] = project.StageData{
		Content:     content,
		GeneratedAt: now(),
		Revision:    prev.Revision + 1,
	}
	return nil
}

// AppendContent adds text to the end of an existing stage without starting
// a new revision. The stage is marked unapproved since its content changed.
func AppendContent(p *project.Project, s project.Stage, text string) error {
	if err := CanGenerate(p, s); err != nil {
		return err
	}
	st := p.Stage(s)
	if st.Content != "" {
		st.Content = strings.TrimRight(st.Content, "\n") + "\n\n"
	}
	st.Content += text
	st.UserApproved = false
	if st.Revision == 0 {
		st.Revision = 1
		st.GeneratedAt = now()
	}
	if p.Stages == nil {
		p.Stages = map[project.Stage]project.StageData{}
	}
	p.Stages[s] = st
	return nil
}

// ReplaceSection appends section to stage s after removing any earlier
// section with the same heading. The heading is the first line of section
// and the old section runs until the next heading of the same level.
// Fenced code blocks are skipped when looking for headings.
func ReplaceSection(p *project.Project, s project.Stage, section string) error {
	heading, _, _ := strings.Cut(section, "\n")
	heading = strings.TrimSpace(heading)
	if heading == "" {
		return AppendContent(p, s, section)
	}
	if err := CanGenerate(p, s); err != nil {
		return err
	}
	if st, ok := p.Stages[s]; ok {
		st.Content = cutSection(st.Content, heading)
		p.Stages[s] = st
	}
	return AppendContent(p, s, section)
}

// cutSection removes every section whose heading line equals heading.
func cutSection(text, heading string) string {
	level := strings.SplitN(heading, " ", 2)[0]
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	inFence, skipping := false, false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			if !skipping {
				out = append(out, line)
			}
			continue
		}
		if !inFence {
			switch {
			case trimmed == heading:
				skipping = true
				continue
			case skipping && strings.HasPrefix(trimmed, level+" "):
				skipping = false
			}
		}
		if !skipping {
			out = append(out, line)
		}
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n")
}

// Approve records an approval decision for s and returns the stage the
// project advanced to, or nil when current_stage did not move.
//
// current_stage advances only when s is the current stage, the decision is
// an approval, and s is not terminal. Approving the terminal stage marks
// the project completed.
func Approve(p *project.Project, s project.Stage, approved bool, notes string) (*project.Stage, error) {
	if err := CanApprove(p, s, approved); err != nil {
		return nil, err
	}

	st := p.Stage(s)
	st.UserApproved = approved
	if notes != "" {
		st.Notes = notes
	}
	if p.Stages == nil {
		p.Stages = map[project.Stage]project.StageData{}
	}
	p.Stages[s] = st

	if !approved || s != p.CurrentStage {
		return nil, nil
	}
	if IsTerminal(s) {
		p.Status = project.StatusCompleted
		return nil, nil
	}
	next, _ := Next(s)
	p.CurrentStage = next
	return &next, nil
}

// --- Progress ---

// StageProgress summarizes one stage for status displays.
type StageProgress struct {
	Stage      project.Stage `json:"stage"`
	Label      string        `json:"label"`
	HasContent bool          `json:"has_content"`
	Approved   bool          `json:"approved"`
	Revision   int           `json:"revision"`
	Current    bool          `json:"current"`
}

// Progress returns one entry per stage in order.
func Progress(p *project.Project) []StageProgress {
	out := make([]StageProgress, 0, len(project.StageOrder))
	for _, s := range project.StageOrder {
		st := p.Stage(s)
		out = append(out, StageProgress{
			Stage:      s,
			Label:      project.StageLabels[s],
			HasContent: strings.TrimSpace(st.Content) != "",
			Approved:   st.UserApproved,
			Revision:   st.Revision,
			Current:    s == p.CurrentStage,
		})
	}
	return out
}

// ApprovedCount returns how many stages are approved.
func ApprovedCount(p *project.Project) int {
	n := 0
	for _, s := range project.StageOrder {
		if p.Stage(s).UserApproved {
			n++
		}
	}
	return n
}

func stageList() string {
	names := make([]string, len(project.StageOrder))
	for i, s := range project.StageOrder {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
