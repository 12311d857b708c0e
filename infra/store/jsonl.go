package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kilianp07/chargesim/core/model"
	"github.com/kilianp07/chargesim/core/simulation"
)

const (
	opPut    = "put"
	opDelete = "delete"
)

// entry is one line of the journal. Deletions carry only the id.
type entry struct {
	Op         string            `json:"op"`
	ID         string            `json:"id"`
	Simulation *model.Simulation `json:"simulation,omitempty"`
}

// JSONLStore keeps simulations in an append-only JSON lines journal. The
// latest line for an id wins and delete lines act as tombstones. The journal
// is replayed into memory on open and compacted when it holds stale lines.
type JSONLStore struct {
	path string
	mu   sync.RWMutex
	data map[string]model.Simulation
}

// NewJSONLStore opens or creates the journal at path.
func NewJSONLStore(path string) (*JSONLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	s := &JSONLStore{path: path, data: map[string]model.Simulation{}}
	lines, err := s.replay()
	if err != nil {
		return nil, err
	}
	if lines > len(s.data) {
		if err := s.compact(); err != nil {
			return nil, fmt.Errorf("compact %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *JSONLStore) replay() (int, error) {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	lines := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		lines++
		var e entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			// torn writes are skipped and dropped by the next compaction
			continue
		}
		switch e.Op {
		case opPut:
			if e.Simulation != nil {
				s.data[e.ID] = *e.Simulation
			}
		case opDelete:
			delete(s.data, e.ID)
		}
	}
	return lines, sc.Err()
}

// compact rewrites the journal with one line per live simulation.
func (s *JSONLStore) compact() error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	sims := make([]model.Simulation, 0, len(s.data))
	for _, sim := range s.data {
		sims = append(sims, sim)
	}
	simulation.SortNewestFirst(sims)
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := len(sims) - 1; i >= 0; i-- {
		sim := sims[i]
		if err := enc.Encode(entry{Op: opPut, ID: sim.ID, Simulation: &sim}); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *JSONLStore) append(e entry) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(e)
}

func (s *JSONLStore) Create(_ context.Context, sim model.Simulation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[sim.ID]; ok {
		return fmt.Errorf("%w: %s", simulation.ErrAlreadyExists, sim.ID)
	}
	sim = sim.Clone()
	if err := s.append(entry{Op: opPut, ID: sim.ID, Simulation: &sim}); err != nil {
		return err
	}
	s.data[sim.ID] = sim
	return nil
}

func (s *JSONLStore) List(_ context.Context) ([]model.Simulation, error) {
	s.mu.RLock()
	res := make([]model.Simulation, 0, len(s.data))
	for _, sim := range s.data {
		res = append(res, sim.Clone())
	}
	s.mu.RUnlock()
	simulation.SortNewestFirst(res)
	return res, nil
}

func (s *JSONLStore) Get(_ context.Context, id string) (model.Simulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sim, ok := s.data[id]
	if !ok {
		return model.Simulation{}, simulation.ErrNotFound
	}
	return sim.Clone(), nil
}

func (s *JSONLStore) Update(_ context.Context, id string, in model.SimulationInputs, out model.SimulationOutputs) (model.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.data[id]
	if !ok {
		return model.Simulation{}, simulation.ErrNotFound
	}
	sim.Inputs = in
	sim.Outputs = out.Clone()
	if err := s.append(entry{Op: opPut, ID: id, Simulation: &sim}); err != nil {
		return model.Simulation{}, err
	}
	s.data[id] = sim
	return sim.Clone(), nil
}

func (s *JSONLStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return simulation.ErrNotFound
	}
	if err := s.append(entry{Op: opDelete, ID: id}); err != nil {
		return err
	}
	delete(s.data, id)
	return nil
}

func (s *JSONLStore) Close() error { return nil }
