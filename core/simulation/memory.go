package simulation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/chargesim/core/model"
)

// MemoryStore keeps simulations in a map. Data is lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.Simulation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]model.Simulation{}}
}

func (s *MemoryStore) Create(_ context.Context, sim model.Simulation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[sim.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, sim.ID)
	}
	s.data[sim.ID] = sim.Clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.Simulation, error) {
	s.mu.RLock()
	res := make([]model.Simulation, 0, len(s.data))
	for _, sim := range s.data {
		res = append(res, sim.Clone())
	}
	s.mu.RUnlock()
	SortNewestFirst(res)
	return res, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Simulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sim, ok := s.data[id]
	if !ok {
		return model.Simulation{}, ErrNotFound
	}
	return sim.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, in model.SimulationInputs, out model.SimulationOutputs) (model.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.data[id]
	if !ok {
		return model.Simulation{}, ErrNotFound
	}
	sim.Inputs = in
	sim.Outputs = out.Clone()
	s.data[id] = sim
	return sim.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return ErrNotFound
	}
	delete(s.data, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// SortNewestFirst orders simulations by creation time descending, breaking
// ties by id so the order is stable across stores.
func SortNewestFirst(sims []model.Simulation) {
	sort.Slice(sims, func(i, j int) bool {
		if !sims[i].CreatedAt.Equal(sims[j].CreatedAt) {
			return sims[i].CreatedAt.After(sims[j].CreatedAt)
		}
		return sims[i].ID > sims[j].ID
	})
}
