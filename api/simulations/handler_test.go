package simulations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/chargesim/core/model"
	"github.com/kilianp07/chargesim/core/simulation"
)

const validBody = `{"chargePointsCount":20,"arrivalMultiplier":1,"carConsumption":18,"chargingPower":11}`

func newServer(t *testing.T, store simulation.Store, opts Options) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(simulation.NewService(store, nil, nil), opts).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestEstimate(t *testing.T) {
	srv := newServer(t, simulation.NewMemoryStore(), Options{})
	resp := do(t, http.MethodPost, srv.URL+"/api/estimate", validBody, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[model.SimulationOutputs](t, resp)
	assert.Equal(t, 176.0, out.ActualMaxPower)
	assert.Equal(t, 80.0, out.ConcurrencyFactor)
	assert.Len(t, out.HourlyData, 24)

	list := decode[[]model.Simulation](t, do(t, http.MethodGet, srv.URL+"/api/simulations", "", nil))
	assert.Empty(t, list)
}

func TestEstimate_BadRequests(t *testing.T) {
	srv := newServer(t, simulation.NewMemoryStore(), Options{})
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"chargePointsCount":`},
		{"unknown field", `{"chargePointsCount":20,"voltage":400}`},
		{"zero power", `{"chargePointsCount":20,"arrivalMultiplier":1,"carConsumption":18,"chargingPower":0}`},
		{"out of range", `{"chargePointsCount":500,"arrivalMultiplier":1,"carConsumption":18,"chargingPower":11}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/api/estimate", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode[errorBody](t, resp)
			assert.NotEmpty(t, body.Error)
		})
	}
}

//nolint:gocyclo
func TestSimulationLifecycle(t *testing.T) {
	srv := newServer(t, simulation.NewMemoryStore(), Options{})

	resp := do(t, http.MethodPost, srv.URL+"/api/simulations", validBody, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[createResponse](t, resp)
	assert.True(t, created.Persisted)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	resp = do(t, http.MethodGet, srv.URL+"/api/simulations", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]model.Simulation](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	resp = do(t, http.MethodGet, srv.URL+"/api/simulations/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[model.Simulation](t, resp)
	assert.Equal(t, 20, got.Inputs.ChargePointsCount)

	upd := `{"chargePointsCount":5,"arrivalMultiplier":1,"carConsumption":18,"chargingPower":11}`
	resp = do(t, http.MethodPut, srv.URL+"/api/simulations/"+created.ID, upd, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decode[model.Simulation](t, resp)
	assert.Equal(t, 44.0, got.Outputs.ActualMaxPower)
	assert.Equal(t, created.ID, got.ID)

	resp = do(t, http.MethodGet, srv.URL+"/api/simulations/"+created.ID+"/profile?format=csv", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(buf.String(), "hour,power_demand_kw,active_charge_points\n"))

	resp = do(t, http.MethodGet, srv.URL+"/api/simulations/"+created.ID+"/profile", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hours := decode[[]model.HourlyData](t, resp)
	assert.Len(t, hours, 24)

	resp = do(t, http.MethodGet, srv.URL+"/api/simulations/"+created.ID+"/profile?format=xml", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodDelete, srv.URL+"/api/simulations/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodDelete, srv.URL+"/api/simulations/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = do(t, http.MethodGet, srv.URL+"/api/simulations/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = do(t, http.MethodPut, srv.URL+"/api/simulations/"+created.ID, upd, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type brokenStore struct {
	*simulation.MemoryStore
}

func (brokenStore) Create(context.Context, model.Simulation) error { return errors.New("disk full") }
func (brokenStore) List(context.Context) ([]model.Simulation, error) {
	return nil, errors.New("disk full")
}

func TestCreate_PersistenceFailure(t *testing.T) {
	srv := newServer(t, brokenStore{simulation.NewMemoryStore()}, Options{})

	resp := do(t, http.MethodPost, srv.URL+"/api/simulations", validBody, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[createResponse](t, resp)
	assert.False(t, body.Persisted)
	assert.Contains(t, body.Error, "disk full")
	assert.Equal(t, 176.0, body.Outputs.ActualMaxPower)

	resp = do(t, http.MethodGet, srv.URL+"/api/simulations", "", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestPatternAndLimits(t *testing.T) {
	srv := newServer(t, simulation.NewMemoryStore(), Options{})

	resp := do(t, http.MethodGet, srv.URL+"/api/pattern", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[[]hourlyUsage](t, resp)
	require.Len(t, p, 24)
	assert.Equal(t, 0.80, p[18].Usage)

	resp = do(t, http.MethodGet, srv.URL+"/api/limits", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	l := decode[simulation.Limits](t, resp)
	assert.Equal(t, simulation.DefaultLimits(), l)
}

func TestAuthAndCORS(t *testing.T) {
	srv := newServer(t, simulation.NewMemoryStore(), Options{Token: "secret", AllowedOrigin: "*"})

	resp := do(t, http.MethodGet, srv.URL+"/api/simulations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = do(t, http.MethodGet, srv.URL+"/api/simulations", "", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodOptions, srv.URL+"/api/simulations", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
