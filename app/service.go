package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apisim "github.com/kilianp07/chargesim/api/simulations"
	"github.com/kilianp07/chargesim/api/stream"
	"github.com/kilianp07/chargesim/config"
	coremetrics "github.com/kilianp07/chargesim/core/metrics"
	coremon "github.com/kilianp07/chargesim/core/monitoring"
	"github.com/kilianp07/chargesim/core/simulation"
	"github.com/kilianp07/chargesim/infra/logger"
	_ "github.com/kilianp07/chargesim/infra/metrics"
	"github.com/kilianp07/chargesim/infra/monitoring"
	"github.com/kilianp07/chargesim/infra/mqtt"
	_ "github.com/kilianp07/chargesim/infra/store"
	"github.com/kilianp07/chargesim/internal/eventbus"
)

const eventBuffer = 64

// Service wires the simulation service to its HTTP, live feed and MQTT
// outputs.
type Service struct {
	Simulations *simulation.Service

	cfg       *config.Config
	store     simulation.Store
	sink      coremetrics.MetricsSink
	bus       *eventbus.TypedBus[simulation.Event]
	events    <-chan simulation.Event
	hub       *stream.Hub
	publisher mqtt.Publisher
	server    *http.Server
	log       logger.Logger
	logCloser io.Closer

	ready chan struct{}
	addr  string
	once  sync.Once
}

// Option customizes the Service.
type Option func(*Service)

// WithPublisher replaces the MQTT publisher built from configuration.
func WithPublisher(p mqtt.Publisher) Option { return func(s *Service) { s.publisher = p } }

// NewSimulationService builds the simulation service and its store from the
// configuration. Callers own the returned store.
func NewSimulationService(cfg *config.Config, sink coremetrics.MetricsSink, opts ...simulation.Option) (*simulation.Service, simulation.Store, error) {
	store, err := simulation.NewStore(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: %w", err)
	}
	opts = append([]simulation.Option{simulation.WithLimits(cfg.Limits)}, opts...)
	return simulation.NewService(store, sink, logger.New("simulation"), opts...), store, nil
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	closer, err := logger.Configure(cfg.Logging.Options())
	if err != nil {
		return nil, err
	}
	log := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		log.Warnf("sentry disabled: %v", err)
	} else {
		coremon.Init(mon)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	s := &Service{
		cfg:       cfg,
		sink:      sink,
		bus:       eventbus.NewTypedBuffered[simulation.Event](eventBuffer),
		hub:       stream.NewHub(logger.New("stream")),
		log:       log,
		logCloser: closer,
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Simulations, s.store, err = NewSimulationService(cfg, sink, simulation.WithEventBus(s.bus))
	if err != nil {
		s.abort()
		return nil, err
	}
	if s.publisher == nil && cfg.MQTT.Enabled {
		pub, err := mqtt.NewPahoPublisher(cfg.MQTT)
		if err != nil {
			s.abort()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		s.publisher = pub
	}
	s.events = s.bus.Subscribe()

	mux := http.NewServeMux()
	apisim.NewHandler(s.Simulations, apisim.Options{
		Token:         cfg.HTTP.Token,
		AllowedOrigin: cfg.HTTP.AllowedOrigin,
		Logger:        logger.New("api"),
	}).Register(mux)
	mux.Handle("GET /ws", stream.NewHandler(s.hub, s.Simulations, stream.Options{
		AllowedOrigin: cfg.HTTP.AllowedOrigin,
		Token:         cfg.HTTP.Token,
		Logger:        logger.New("stream"),
	}))
	if cfg.Metrics.PrometheusEnabled() {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	s.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout(),
	}
	return s, nil
}

// Run serves HTTP and forwards simulation events until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	s.addr = ln.Addr().String()
	close(s.ready)
	s.log.Infof("listening on %s", s.addr)

	go s.forward(ctx)

	errCh := make(chan error, 1)
	go func() {
		defer coremon.Recover()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout())
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Ready is closed once the HTTP listener is bound.
func (s *Service) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound listen address. It is valid after Ready is closed.
func (s *Service) Addr() string { return s.addr }

// forward fans lifecycle events out to the live feed and MQTT.
func (s *Service) forward(ctx context.Context) {
	defer coremon.Recover()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			if err := s.hub.BroadcastEvent(ev); err != nil {
				s.log.Errorf("broadcast %s: %v", ev.Type, err)
			}
			if s.publisher != nil {
				if err := mqtt.Forward(ctx, s.publisher, ev); err != nil {
					s.log.Errorf("mqtt %s %s: %v", ev.Type, ev.Simulation.ID, err)
				}
			}
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	s.once.Do(func() {
		s.bus.Close()
		s.hub.Close()
		if s.publisher != nil {
			s.publisher.Disconnect()
		}
		closeSink(s.sink)
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
		if dropped := s.bus.Dropped(); dropped > 0 {
			s.log.Warnf("%d simulation events were dropped", dropped)
		}
		coremon.Flush(2 * time.Second)
		if err := s.logCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("log file: %w", err))
		}
	})
	return errors.Join(errs...)
}

// abort releases what New acquired before failing.
func (s *Service) abort() {
	s.bus.Close()
	s.hub.Close()
	closeSink(s.sink)
	if s.store != nil {
		_ = s.store.Close()
	}
	_ = s.logCloser.Close()
}

func closeSink(sink coremetrics.MetricsSink) {
	if m, ok := sink.(*coremetrics.MultiSink); ok {
		for _, s := range m.Sinks {
			closeSink(s)
		}
		return
	}
	if c, ok := sink.(interface{ Close() }); ok {
		c.Close()
	}
}
