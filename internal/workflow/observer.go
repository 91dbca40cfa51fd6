package workflow

import (
	"github.com/HendryAvila/esp32-copilot/internal/project"
)

// EventType names a workflow notification.
type EventType string

const (
	EventProjectCreated EventType = "project_created"
	EventProjectUpdated EventType = "project_updated"
	EventProjectDeleted EventType = "project_deleted"
	EventStageGenerated EventType = "stage_generated"
	EventStageApproved  EventType = "stage_approved"
	EventStageRejected  EventType = "stage_rejected"
	EventWiringAttached EventType = "wiring_attached"
)

// Event is sent to the Observer after a change has been stored.
type Event struct {
	Type      EventType      `json:"type"`
	ProjectID string         `json:"project_id"`
	Stage     project.Stage  `json:"stage,omitempty"`
	NextStage *project.Stage `json:"next_stage,omitempty"`
	Revision  int            `json:"revision,omitempty"`
	At        string         `json:"at"`
}

// Observer is notified of stored workflow changes.
// Implementations must not block; the websocket hub queues per client.
type Observer interface {
	OnEvent(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f(ev).
func (f ObserverFunc) OnEvent(ev Event) { f(ev) }

// notifyObserver is a nil-safe helper that calls obs.OnEvent if obs is
// non-nil. Observers are best-effort and never fail the operation.
func notifyObserver(obs Observer, ev Event) {
	if obs == nil {
		return
	}
	if ev.At == "" {
		ev.At = project.Now()
	}
	obs.OnEvent(ev)
}
