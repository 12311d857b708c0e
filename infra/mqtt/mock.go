package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/chargesim/core/model"
)

// MockPublisher records published simulations in memory.
type MockPublisher struct {
	mu        sync.Mutex
	Published []model.Simulation
	Cleared   []string
	FailIDs   map[string]bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{FailIDs: make(map[string]bool)}
}

// PublishSimulation records the simulation or fails if its id is in FailIDs.
func (m *MockPublisher) PublishSimulation(_ context.Context, sim model.Simulation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[sim.ID] {
		return fmt.Errorf("publish failed")
	}
	m.Published = append(m.Published, sim.Clone())
	return nil
}

// ClearSimulation records the cleared id.
func (m *MockPublisher) ClearSimulation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[id] {
		return fmt.Errorf("publish failed")
	}
	m.Cleared = append(m.Cleared, id)
	return nil
}

func (m *MockPublisher) Disconnect() {}

// Snapshot returns copies of the recorded messages.
func (m *MockPublisher) Snapshot() ([]model.Simulation, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pub := make([]model.Simulation, len(m.Published))
	copy(pub, m.Published)
	cl := make([]string, len(m.Cleared))
	copy(cl, m.Cleared)
	return pub, cl
}
