package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/chargesim/core/metrics"
)

// PromSink records simulation events in Prometheus metrics.
type PromSink struct {
	simulations *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
	concurrency prometheus.Histogram
	peakPower   prometheus.Gauge
	maxPower    prometheus.Gauge
}

// NewPromSink registers simulation metrics on the default Prometheus registerer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	simulations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chargesim_simulations_total",
		Help: "Total number of simulations by operation",
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	rejections, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chargesim_rejections_total",
		Help: "Total number of inputs rejected by validation",
	}, []string{"reason"}))
	if err != nil {
		return nil, err
	}
	storeErrors, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chargesim_store_errors_total",
		Help: "Total number of failed persistence calls",
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	concurrency, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chargesim_concurrency_factor_percent",
		Help:    "Distribution of estimated concurrency factors",
		Buckets: prometheus.LinearBuckets(10, 10, 10),
	}))
	if err != nil {
		return nil, err
	}
	peakPower, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chargesim_last_peak_power_kw",
		Help: "Peak power demand of the last evaluated simulation",
	}))
	if err != nil {
		return nil, err
	}
	maxPower, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chargesim_last_theoretical_power_kw",
		Help: "Theoretical maximum power of the last evaluated simulation",
	}))
	if err != nil {
		return nil, err
	}
	return &PromSink{
		simulations: simulations,
		rejections:  rejections,
		storeErrors: storeErrors,
		concurrency: concurrency,
		peakPower:   peakPower,
		maxPower:    maxPower,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// RecordSimulation counts the event and tracks the latest estimate.
func (s *PromSink) RecordSimulation(ev coremetrics.SimulationEvent) error {
	s.simulations.WithLabelValues(ev.Operation).Inc()
	if ev.Operation == coremetrics.OpDelete {
		return nil
	}
	s.concurrency.Observe(ev.Outputs.ConcurrencyFactor)
	s.peakPower.Set(ev.Outputs.ActualMaxPower)
	s.maxPower.Set(ev.Outputs.TheoreticalMaxPower)
	return nil
}

// RecordRejection counts validation rejections by reason.
func (s *PromSink) RecordRejection(ev coremetrics.RejectionEvent) error {
	s.rejections.WithLabelValues(ev.Reason).Inc()
	return nil
}

// RecordStoreError counts persistence failures by operation.
func (s *PromSink) RecordStoreError(ev coremetrics.StoreErrorEvent) error {
	s.storeErrors.WithLabelValues(ev.Operation).Inc()
	return nil
}
