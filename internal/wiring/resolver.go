// Package wiring assigns microcontroller pins to a selection of catalog
// components and renders the result as a text diagram.
//
// Resolution is a pure function of the ordered component-id list and the two
// static tables in package hardware: the same input always produces the same
// assignments, conflicts and diagram.
package wiring

import (
	"errors"
	"fmt"

	"github.com/HendryAvila/esp32-copilot/internal/hardware"
)

// ErrEmptySelection is returned when Resolve is called with no component ids.
var ErrEmptySelection = errors.New("empty selection: select at least one component")

// Catalog is the lookup contract the resolver needs.
type Catalog interface {
	Lookup(id string) (hardware.Component, bool)
}

// --- Result types ---

// Connection is one logical role of a component and what it is wired to.
// A role is either a GPIO, a power rail, or unassigned.
type Connection struct {
	Role     string `json:"role"`
	GPIO     int    `json:"gpio,omitempty"`
	Rail     string `json:"rail,omitempty"`
	Assigned bool   `json:"assigned"`
}

// Source is the left-hand side of a diagram line: "GPIO21", "3.3V", "GND",
// or "N/C" for an unassigned role.
func (c Connection) Source() string {
	switch {
	case !c.Assigned:
		return "N/C"
	case c.Rail != "":
		return c.Rail
	default:
		return hardware.GPIOLabel(c.GPIO)
	}
}

// PinAssignment is the resolver output for one selected component.
// Instance equals ComponentID for the first occurrence and gets a "#n"
// suffix for repeats, so "2x relay" yields "relay" and "relay#2".
type PinAssignment struct {
	ComponentID string             `json:"component_id"`
	Instance    string             `json:"instance"`
	Name        string             `json:"name"`
	Interface   hardware.Interface `json:"interface"`
	Connections []Connection       `json:"connections"`
	occurrence  int
}

// RoleToPin returns role -> source for every assigned role.
func (a PinAssignment) RoleToPin() map[string]string {
	m := make(map[string]string, len(a.Connections))
	for _, c := range a.Connections {
		if c.Assigned {
			m[c.Role] = c.Source()
		}
	}
	return m
}

// Label is the component name used in the diagram, numbered for repeats.
func (a PinAssignment) Label() string {
	if a.occurrence > 1 {
		return fmt.Sprintf("%s #%d", a.Name, a.occurrence)
	}
	return a.Name
}

// ConflictKind classifies a non-fatal resolution failure.
type ConflictKind string

const (
	ConflictUnknownComponent ConflictKind = "unknown-component"
	ConflictPoolExhausted    ConflictKind = "pool-exhausted"
)

// Conflict is reported alongside a best-effort assignment; it never aborts
// resolution. Pin is the contended GPIO, or -1 when no pin is involved.
type Conflict struct {
	Kind          ConflictKind  `json:"kind"`
	Pin           int           `json:"pin"`
	Pool          hardware.Pool `json:"pool,omitempty"`
	PoolRange     string        `json:"pool_range,omitempty"`
	Role          string        `json:"role,omitempty"`
	Claimants     []string      `json:"claimants"`
	ComponentName string        `json:"component_name,omitempty"`
}

// Result is the full output of one resolve pass.
type Result struct {
	Assignments []PinAssignment `json:"assignments"`
	Conflicts   []Conflict      `json:"conflicts"`
}

// --- Resolver ---

// Resolver binds the catalog and board tables. It holds no mutable state
// and may be shared across goroutines.
type Resolver struct {
	catalog Catalog
	board   *hardware.Board
}

// New creates a Resolver over the given tables.
func New(catalog Catalog, board *hardware.Board) *Resolver {
	return &Resolver{catalog: catalog, board: board}
}

// Board returns the board the resolver assigns against.
func (r *Resolver) Board() *hardware.Board { return r.board }

// Resolve assigns pins to the components in order. The pass runs in fixed
// phases: catalog lookup, shared bus roles, ADC pool, digital pool, power
// rails. Conflicts are reported in the order the phases discover them.
func (r *Resolver) Resolve(componentIDs []string) (Result, error) {
	if len(componentIDs) == 0 {
		return Result{}, ErrEmptySelection
	}

	res := Result{
		Assignments: make([]PinAssignment, 0, len(componentIDs)),
		Conflicts:   []Conflict{},
	}

	// Phase 1: lookup. Unknown ids are skipped, not fatal.
	occurrences := make(map[string]int, len(componentIDs))
	var supplies []string
	for _, id := range componentIDs {
		comp, ok := r.catalog.Lookup(id)
		if !ok {
			res.Conflicts = append(res.Conflicts, Conflict{
				Kind:      ConflictUnknownComponent,
				Pin:       -1,
				Claimants: []string{id},
			})
			continue
		}
		occurrences[id]++
		n := occurrences[id]
		instance := id
		if n > 1 {
			instance = fmt.Sprintf("%s#%d", id, n)
		}

		conns := make([]Connection, len(comp.PinRoles))
		for i, role := range comp.PinRoles {
			conns[i] = Connection{Role: role}
		}
		res.Assignments = append(res.Assignments, PinAssignment{
			ComponentID: id,
			Instance:    instance,
			Name:        comp.Name,
			Interface:   comp.Interface,
			Connections: conns,
			occurrence:  n,
		})
		supplies = append(supplies, comp.Supply)
	}

	// Phase 2: bus roles share the fixed bus pins and never conflict.
	for i := range res.Assignments {
		a := &res.Assignments[i]
		for j := range a.Connections {
			c := &a.Connections[j]
			var bus hardware.Interface
			switch hardware.ClassifyRole(a.Interface, c.Role) {
			case hardware.RoleI2C:
				bus = hardware.InterfaceI2C
			case hardware.RoleSPI:
				bus = hardware.InterfaceSPI
			default:
				continue
			}
			if gpio, ok := r.board.BusPin(bus, hardware.CanonicalRole(c.Role)); ok {
				c.GPIO = gpio
				c.Assigned = true
			}
		}
	}

	// Phases 3 and 4: exclusive pools, first come first served.
	alloc := r.board.NewAllocator()
	r.drawExclusive(&res, alloc, hardware.RoleAnalog, hardware.PoolAnalog)
	r.drawExclusive(&res, alloc, hardware.RoleDigital, hardware.PoolDigital)

	// Phase 5: power rails always fan out.
	for i := range res.Assignments {
		a := &res.Assignments[i]
		for j := range a.Connections {
			c := &a.Connections[j]
			if hardware.ClassifyRole(a.Interface, c.Role) != hardware.RolePower {
				continue
			}
			c.Rail = hardware.PowerRail(c.Role, supplies[i])
			c.Assigned = true
		}
	}

	return res, nil
}

// drawExclusive gives every role of the given class its own pin from pool.
// When the pool runs dry the role stays unassigned and a conflict names the
// component that could not be placed.
func (r *Resolver) drawExclusive(res *Result, alloc *hardware.Allocator, class hardware.RoleClass, pool hardware.Pool) {
	poolPins := r.board.Pool(pool)
	for i := range res.Assignments {
		a := &res.Assignments[i]
		for j := range a.Connections {
			c := &a.Connections[j]
			if hardware.ClassifyRole(a.Interface, c.Role) != class {
				continue
			}
			gpio, ok := alloc.Next(pool)
			if !ok {
				contended := -1
				if len(poolPins) > 0 {
					contended = poolPins[len(poolPins)-1]
				}
				res.Conflicts = append(res.Conflicts, Conflict{
					Kind:          ConflictPoolExhausted,
					Pin:           contended,
					Pool:          pool,
					PoolRange:     r.board.PoolRange(pool),
					Role:          c.Role,
					Claimants:     []string{a.Instance},
					ComponentName: a.Label(),
				})
				continue
			}
			c.GPIO = gpio
			c.Assigned = true
		}
	}
}
