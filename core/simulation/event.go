package simulation

import (
	"time"

	"github.com/kilianp07/chargesim/core/model"
)

// EventType names a simulation lifecycle change.
type EventType string

const (
	EventCreated EventType = "simulation:created"
	EventUpdated EventType = "simulation:updated"
	EventDeleted EventType = "simulation:deleted"
)

// Event is published on the service bus after a successful store call.
// Deleted events only carry the simulation id.
type Event struct {
	Type       EventType        `json:"type"`
	Simulation model.Simulation `json:"data"`
	Time       time.Time        `json:"time"`
}
