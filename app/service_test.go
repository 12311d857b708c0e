package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/chargesim/api/stream"
	"github.com/kilianp07/chargesim/config"
	"github.com/kilianp07/chargesim/core/factory"
	coremetrics "github.com/kilianp07/chargesim/core/metrics"
	"github.com/kilianp07/chargesim/core/model"
	"github.com/kilianp07/chargesim/infra/mqtt"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		HTTP:    config.HTTPConfig{Addr: "127.0.0.1:0"},
		Metrics: coremetrics.Config{Sinks: []factory.ModuleConfig{{Type: "prometheus"}}},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

//nolint:gocyclo
func TestService_EndToEnd(t *testing.T) {
	pub := mqtt.NewMockPublisher()
	svc, err := New(testConfig(t), WithPublisher(pub))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	select {
	case <-svc.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("service not ready")
	}
	base := "http://" + svc.Addr()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+svc.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env stream.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, stream.TypeSnapshot, env.Type)

	body := `{"chargePointsCount":20,"arrivalMultiplier":1,"carConsumption":18,"chargingPower":11}`
	resp, err := http.Post(base+"/api/simulations", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	var created model.Simulation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "simulation:created", env.Type)

	require.Eventually(t, func() bool {
		published, _ := pub.Snapshot()
		return len(published) == 1 && published[0].ID == created.ID
	}, 2*time.Second, 10*time.Millisecond)

	req, err := http.NewRequest(http.MethodDelete, base+"/api/simulations/"+created.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Eventually(t, func() bool {
		_, cleared := pub.Snapshot()
		return len(cleared) == 1 && cleared[0] == created.ID
	}, 2*time.Second, 10*time.Millisecond)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestNew_InvalidSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "statsd"}}
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestService_TokenGuardsAPIAndFeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Token = "secret"
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	_, err = svc.Simulations.Create(context.Background(), model.SimulationInputs{
		ChargePointsCount: 20, ArrivalMultiplier: 1, CarConsumption: 18, ChargingPower: 11,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Run(ctx) }()
	select {
	case <-svc.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("service not ready")
	}

	resp, err := http.Get("http://" + svc.Addr() + "/api/simulations")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial("ws://"+svc.Addr()+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+svc.Addr()+"/ws",
		http.Header{"Authorization": {"Bearer secret"}})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env stream.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, stream.TypeSnapshot, env.Type)
}
