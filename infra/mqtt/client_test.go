package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/chargesim/core/estimator"
	"github.com/kilianp07/chargesim/core/model"
	coremon "github.com/kilianp07/chargesim/core/monitoring"
	"github.com/kilianp07/chargesim/core/simulation"
)

type publishedMsg struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts        *paho.ClientOptions
	published   []publishedMsg
	publishErrs []error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(nil)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.published = append(m.published, publishedMsg{topic, qos, retained, payload.([]byte)})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

func withMockClient(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func testSimulation() model.Simulation {
	in := model.SimulationInputs{ChargePointsCount: 20, ArrivalMultiplier: 1, CarConsumption: 18, ChargingPower: 11}
	return model.Simulation{ID: "sim-1", CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Inputs: in, Outputs: estimator.Estimate(in)}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func TestPublishSimulationRetained(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", TopicPrefix: "site/", QoS: 1})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if mc.opts.ClientID != "chargesim" {
		t.Fatalf("default client id not applied: %q", mc.opts.ClientID)
	}
	sim := testSimulation()
	if err := pub.PublishSimulation(context.Background(), sim); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := pub.ClearSimulation(context.Background(), sim.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(mc.published))
	}
	msg := mc.published[0]
	if msg.topic != "site/simulations/sim-1" || msg.qos != 1 || !msg.retained {
		t.Fatalf("unexpected message meta: %+v", msg)
	}
	var got model.Simulation
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.ID != "sim-1" || got.Outputs.ActualMaxPower != 176 || len(got.Outputs.HourlyData) != 24 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if clear := mc.published[1]; len(clear.payload) != 0 || !clear.retained {
		t.Fatalf("delete must clear the retained message: %+v", clear)
	}
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "chargesim/status", LWTPayload: "offline", LWTQoS: 1}
	pub, err := NewPahoPublisher(cfg)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "chargesim/status" || string(mc.opts.WillPayload) != "offline" {
		t.Fatalf("will options incorrect")
	}
	pub.Disconnect()
	if len(mc.published) != 0 {
		t.Fatalf("unexpected publish on disconnect")
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMockClient(t, mc)
	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if err := pub.PublishSimulation(context.Background(), testSimulation()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries")
	}
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) CapturePanic(any)    {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishErrorCaptured(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail}}
	withMockClient(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if err := pub.ClearSimulation(context.Background(), "sim-9"); err == nil {
		t.Fatalf("expected error")
	}
	if mon.err == nil {
		t.Fatalf("error not captured")
	}
	if mon.tags["simulation_id"] != "sim-9" || mon.tags["module"] != "mqtt" {
		t.Fatalf("tags not set: %v", mon.tags)
	}
}

func TestForward(t *testing.T) {
	m := NewMockPublisher()
	sim := testSimulation()
	if err := Forward(context.Background(), m, simulation.Event{Type: simulation.EventCreated, Simulation: sim}); err != nil {
		t.Fatalf("created: %v", err)
	}
	if err := Forward(context.Background(), m, simulation.Event{Type: simulation.EventUpdated, Simulation: sim}); err != nil {
		t.Fatalf("updated: %v", err)
	}
	if err := Forward(context.Background(), m, simulation.Event{Type: simulation.EventDeleted, Simulation: model.Simulation{ID: "sim-1"}}); err != nil {
		t.Fatalf("deleted: %v", err)
	}
	if err := Forward(context.Background(), m, simulation.Event{Type: "bogus"}); err == nil {
		t.Fatalf("expected error for unknown event")
	}
	pub, cleared := m.Snapshot()
	if len(pub) != 2 || len(cleared) != 1 || cleared[0] != "sim-1" {
		t.Fatalf("unexpected forwarding: %d published, %v cleared", len(pub), cleared)
	}

	m.FailIDs["sim-1"] = true
	if err := Forward(context.Background(), m, simulation.Event{Type: simulation.EventCreated, Simulation: sim}); err == nil {
		t.Fatalf("expected publish failure")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("disabled config must be valid: %v", err)
	}
	if err := (Config{Enabled: true}).Validate(); err == nil {
		t.Fatalf("expected broker error")
	}
	if err := (Config{Enabled: true, Broker: "tcp://x:1883", QoS: 3}).Validate(); err == nil {
		t.Fatalf("expected qos error")
	}
	if err := (Config{Enabled: true, Broker: "tcp://x:1883", UseTLS: true}).Validate(); err == nil {
		t.Fatalf("expected tls error")
	}
	c := Config{}
	c.SetDefaults()
	if c.TopicPrefix != DefaultTopicPrefix || c.MaxRetries != 3 || c.BackoffMS != 100 {
		t.Fatalf("defaults not applied: %+v", c)
	}
}

func TestPublishStopsRetryingWhenCancelled(t *testing.T) {
	fail := fmt.Errorf("broker down")
	mc := &mockClient{publishErrs: []error{fail, fail, fail, fail}}
	withMockClient(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(nil)

	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 3, BackoffMS: 60000})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	err = pub.PublishSimulation(ctx, testSimulation())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("back-off ignored cancellation: %v", elapsed)
	}
	if len(mc.published) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(mc.published))
	}
	if mon.err != nil {
		t.Fatalf("cancellation must not be reported: %v", mon.err)
	}
}
