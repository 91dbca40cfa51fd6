package wiring

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/esp32-copilot/internal/hardware"
)

// Arrow separates the source column from the target in every diagram line.
const Arrow = "-------->"

// ComponentRef names one placed component in a wiring response.
type ComponentRef struct {
	ID       string `json:"id"`
	Instance string `json:"instance"`
	Name     string `json:"name"`
}

// Wiring is the rendered form of a Result: a plain-text diagram, one
// warning per conflict, and the per-instance role map.
type Wiring struct {
	Components     []ComponentRef               `json:"components"`
	Diagram        string                       `json:"diagram"`
	Warnings       []string                     `json:"warnings"`
	PinAssignments map[string]map[string]string `json:"pin_assignments"`
}

// Render turns a Result into a Wiring. Each role becomes one line
// "<SOURCE> --------> <ROLE>@<NAME>" with the source column padded so all
// arrows line up. Components are separated by a blank line and keep the
// resolver's order.
func Render(res Result) Wiring {
	out := Wiring{
		Components:     make([]ComponentRef, 0, len(res.Assignments)),
		Warnings:       make([]string, 0, len(res.Conflicts)),
		PinAssignments: make(map[string]map[string]string, len(res.Assignments)),
	}

	width := 0
	for _, a := range res.Assignments {
		for _, c := range a.Connections {
			if n := len(c.Source()); n > width {
				width = n
			}
		}
	}

	var blocks []string
	for _, a := range res.Assignments {
		out.Components = append(out.Components, ComponentRef{ID: a.ComponentID, Instance: a.Instance, Name: a.Name})
		out.PinAssignments[a.Instance] = a.RoleToPin()

		if len(a.Connections) == 0 {
			continue
		}
		lines := make([]string, 0, len(a.Connections))
		label := a.Label()
		for _, c := range a.Connections {
			lines = append(lines, fmt.Sprintf("%-*s %s %s@%s", width, c.Source(), Arrow, c.Role, label))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	out.Diagram = strings.Join(blocks, "\n\n")

	for _, c := range res.Conflicts {
		out.Warnings = append(out.Warnings, Warning(c))
	}
	return out
}

// Warning formats a conflict as a single human-readable line.
func Warning(c Conflict) string {
	switch c.Kind {
	case ConflictUnknownComponent:
		return fmt.Sprintf("unknown component %q; skipped", strings.Join(c.Claimants, ", "))
	case ConflictPoolExhausted:
		pool := "digital"
		if c.Pool == hardware.PoolAnalog {
			pool = "ADC"
		}
		return fmt.Sprintf("%s pool exhausted (%s already assigned); %s could not be placed (%s)",
			pool, c.PoolRange, c.ComponentName, c.Role)
	default:
		return fmt.Sprintf("%s: %s", c.Kind, strings.Join(c.Claimants, ", "))
	}
}

// Wire resolves and renders in one call.
func (r *Resolver) Wire(componentIDs []string) (Result, Wiring, error) {
	res, err := r.Resolve(componentIDs)
	if err != nil {
		return Result{}, Wiring{}, err
	}
	return res, Render(res), nil
}
