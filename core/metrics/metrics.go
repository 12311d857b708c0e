package metrics

import (
	"time"

	"github.com/kilianp07/chargesim/core/model"
)

// Operation names used to label simulation events.
const (
	OpEstimate = "estimate"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpGet      = "get"
)

// SimulationEvent describes one evaluated or persisted simulation.
type SimulationEvent struct {
	// ID is empty for estimates that were never persisted.
	ID        string
	Operation string
	Inputs    model.SimulationInputs
	Outputs   model.SimulationOutputs
	Time      time.Time
}

// MetricsSink records simulation results for observability purposes.
type MetricsSink interface {
	RecordSimulation(ev SimulationEvent) error
}

// RejectionEvent captures inputs refused by validation.
type RejectionEvent struct {
	Reason string
	Inputs model.SimulationInputs
	Time   time.Time
}

// RejectionRecorder records validation rejections.
type RejectionRecorder interface {
	RecordRejection(ev RejectionEvent) error
}

// StoreErrorEvent captures a failed persistence call.
type StoreErrorEvent struct {
	Operation string
	ID        string
	Err       error
	Time      time.Time
}

// StoreErrorRecorder records persistence failures.
type StoreErrorRecorder interface {
	RecordStoreError(ev StoreErrorEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSimulation(SimulationEvent) error { return nil }
func (NopSink) RecordRejection(RejectionEvent) error   { return nil }
func (NopSink) RecordStoreError(StoreErrorEvent) error { return nil }
