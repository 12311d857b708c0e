package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/chargesim/core/estimator"
	"github.com/kilianp07/chargesim/core/logger"
	"github.com/kilianp07/chargesim/core/metrics"
	"github.com/kilianp07/chargesim/core/model"
	"github.com/kilianp07/chargesim/core/monitoring"
	"github.com/kilianp07/chargesim/internal/eventbus"
)

// Service validates inputs, runs the estimator and persists the results.
type Service struct {
	store  Store
	sink   metrics.MetricsSink
	bus    *eventbus.TypedBus[Event]
	log    logger.Logger
	limits Limits
	now    func() time.Time
	newID  func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithLimits overrides the accepted input ranges.
func WithLimits(l Limits) Option { return func(s *Service) { s.limits = l } }

// WithEventBus publishes lifecycle events on bus.
func WithEventBus(bus *eventbus.TypedBus[Event]) Option { return func(s *Service) { s.bus = bus } }

// WithClock sets the clock used for creation timestamps.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDGenerator sets the generator used for simulation ids.
func WithIDGenerator(gen func() string) Option { return func(s *Service) { s.newID = gen } }

// NewService builds a Service. A nil sink or logger falls back to no-op
// implementations.
func NewService(store Store, sink metrics.MetricsSink, log logger.Logger, opts ...Option) *Service {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	s := &Service{
		store:  store,
		sink:   sink,
		log:    logger.OrNop(log),
		limits: DefaultLimits(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the accepted input ranges.
func (s *Service) Limits() Limits { return s.limits }

// Estimate validates the inputs and returns the estimator outputs without
// persisting them.
func (s *Service) Estimate(in model.SimulationInputs) (model.SimulationOutputs, error) {
	out, err := s.evaluate(in)
	if err != nil {
		return model.SimulationOutputs{}, err
	}
	s.record(metrics.OpEstimate, "", in, out)
	return out, nil
}

// Create evaluates the inputs and saves the result. When saving fails the
// returned simulation still holds the computed outputs and the error wraps
// ErrPersistence.
func (s *Service) Create(ctx context.Context, in model.SimulationInputs) (model.Simulation, error) {
	out, err := s.evaluate(in)
	if err != nil {
		return model.Simulation{}, err
	}
	sim := model.Simulation{
		ID:        s.newID(),
		CreatedAt: s.now().UTC(),
		Inputs:    in,
		Outputs:   out,
	}
	if err := s.store.Create(ctx, sim); err != nil {
		s.storeFailure(metrics.OpCreate, sim.ID, err)
		return sim, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.log.Infof("simulation %s created (peak %.2f kW, concurrency %.2f%%)", sim.ID, out.ActualMaxPower, out.ConcurrencyFactor)
	s.record(metrics.OpCreate, sim.ID, in, out)
	s.publish(EventCreated, sim)
	return sim, nil
}

// List returns the saved simulations, newest first.
func (s *Service) List(ctx context.Context) ([]model.Simulation, error) {
	sims, err := s.store.List(ctx)
	if err != nil {
		s.storeFailure(metrics.OpList, "", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return sims, nil
}

// Get returns the simulation with the given id.
func (s *Service) Get(ctx context.Context, id string) (model.Simulation, error) {
	sim, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Simulation{}, err
		}
		s.storeFailure(metrics.OpGet, id, err)
		return model.Simulation{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return sim, nil
}

// Update re-evaluates a saved simulation with new inputs. The id and creation
// time are preserved. On a store failure the returned simulation carries the
// recomputed outputs and, when the stored record can still be read, its
// creation time.
func (s *Service) Update(ctx context.Context, id string, in model.SimulationInputs) (model.Simulation, error) {
	out, err := s.evaluate(in)
	if err != nil {
		return model.Simulation{}, err
	}
	sim, err := s.store.Update(ctx, id, in, out)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Simulation{}, err
		}
		s.storeFailure(metrics.OpUpdate, id, err)
		sim = model.Simulation{ID: id, Inputs: in, Outputs: out}
		if prev, gerr := s.store.Get(ctx, id); gerr == nil {
			sim.CreatedAt = prev.CreatedAt
		}
		return sim, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.log.Infof("simulation %s updated", id)
	s.record(metrics.OpUpdate, id, in, out)
	s.publish(EventUpdated, sim)
	return sim, nil
}

// Delete removes the simulation with the given id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		s.storeFailure(metrics.OpDelete, id, err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.log.Infof("simulation %s deleted", id)
	s.record(metrics.OpDelete, id, model.SimulationInputs{}, model.SimulationOutputs{})
	s.publish(EventDeleted, model.Simulation{ID: id})
	return nil
}

func (s *Service) evaluate(in model.SimulationInputs) (model.SimulationOutputs, error) {
	if err := Validate(in, s.limits); err != nil {
		s.log.Debugw("inputs rejected", map[string]any{
			"charge_points":      in.ChargePointsCount,
			"arrival_multiplier": in.ArrivalMultiplier,
			"car_consumption":    in.CarConsumption,
			"charging_power":     in.ChargingPower,
			"error":              err.Error(),
		})
		if rec, ok := s.sink.(metrics.RejectionRecorder); ok {
			ev := metrics.RejectionEvent{Reason: rejectionReason(err), Inputs: in, Time: s.now()}
			if rerr := rec.RecordRejection(ev); rerr != nil {
				s.log.Warnf("record rejection: %v", rerr)
			}
		}
		return model.SimulationOutputs{}, err
	}
	return estimator.Estimate(in), nil
}

func (s *Service) record(op, id string, in model.SimulationInputs, out model.SimulationOutputs) {
	ev := metrics.SimulationEvent{ID: id, Operation: op, Inputs: in, Outputs: out, Time: s.now()}
	if err := s.sink.RecordSimulation(ev); err != nil {
		s.log.Warnf("record %s metrics: %v", op, err)
	}
}

func (s *Service) storeFailure(op, id string, err error) {
	s.log.Errorf("store %s %s: %v", op, id, err)
	monitoring.CaptureStoreError(op, id, err)
	if rec, ok := s.sink.(metrics.StoreErrorRecorder); ok {
		if rerr := rec.RecordStoreError(metrics.StoreErrorEvent{Operation: op, ID: id, Err: err, Time: s.now()}); rerr != nil {
			s.log.Warnf("record store error: %v", rerr)
		}
	}
}

func (s *Service) publish(t EventType, sim model.Simulation) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(Event{Type: t, Simulation: sim.Clone(), Time: s.now()})
}
