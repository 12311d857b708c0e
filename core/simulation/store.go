package simulation

import (
	"context"

	"github.com/kilianp07/chargesim/core/factory"
	"github.com/kilianp07/chargesim/core/model"
)

// Store persists simulations as opaque input/output records.
type Store interface {
	Create(ctx context.Context, sim model.Simulation) error
	// List returns all simulations, newest first.
	List(ctx context.Context) ([]model.Simulation, error)
	Get(ctx context.Context, id string) (model.Simulation, error)
	// Update replaces inputs and outputs, keeping id and creation time.
	Update(ctx context.Context, id string, in model.SimulationInputs, out model.SimulationOutputs) (model.Simulation, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

var storeRegistry = factory.NewRegistry[Store]()

func init() {
	_ = RegisterStore("memory", func(map[string]any) (Store, error) {
		return NewMemoryStore(), nil
	})
}

// RegisterStore adds a store factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore creates a Store from the provided configuration. An empty type
// selects the in-memory store.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		return NewMemoryStore(), nil
	}
	return storeRegistry.Create(cfg)
}
