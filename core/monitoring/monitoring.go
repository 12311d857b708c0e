package monitoring

import (
	"sync"
	"time"
)

// Monitor reports errors and panics to an external tracker.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// CapturePanic reports a recovered panic value and must flush before
	// returning since the panic is re-raised afterwards.
	CapturePanic(v any)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CapturePanic(any)                          {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init installs m as the process wide monitor. A nil m restores NopMonitor.
func Init(m Monitor) {
	if m == nil {
		m = NopMonitor{}
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

func monitor() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records err with optional tags.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	monitor().CaptureException(err, tags)
}

// CaptureStoreError reports a failed persistence call for a simulation.
func CaptureStoreError(op, simulationID string, err error) {
	tags := map[string]string{"component": "simulation_store", "operation": op}
	if simulationID != "" {
		tags["simulation_id"] = simulationID
	}
	CaptureException(err, tags)
}

// Recover must be deferred directly by the goroutine it guards. A panic is
// reported and then re-raised.
func Recover() {
	if r := recover(); r != nil {
		monitor().CapturePanic(r)
		panic(r)
	}
}

// Flush waits up to d for buffered events to be sent.
func Flush(d time.Duration) {
	monitor().Flush(d)
}
