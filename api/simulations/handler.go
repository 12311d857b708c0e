package simulations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kilianp07/chargesim/core/estimator"
	"github.com/kilianp07/chargesim/core/logger"
	"github.com/kilianp07/chargesim/core/model"
	"github.com/kilianp07/chargesim/core/simulation"
	"github.com/kilianp07/chargesim/pkg/export"
)

const maxBodyBytes = 1 << 20

// Service is the part of simulation.Service exposed over HTTP.
type Service interface {
	Estimate(in model.SimulationInputs) (model.SimulationOutputs, error)
	Create(ctx context.Context, in model.SimulationInputs) (model.Simulation, error)
	List(ctx context.Context) ([]model.Simulation, error)
	Get(ctx context.Context, id string) (model.Simulation, error)
	Update(ctx context.Context, id string, in model.SimulationInputs) (model.Simulation, error)
	Delete(ctx context.Context, id string) error
	Limits() simulation.Limits
}

// Options configures the HTTP handlers.
type Options struct {
	// Token enables bearer authentication on /api routes when non-empty.
	Token string
	// AllowedOrigin is returned in CORS headers when non-empty.
	AllowedOrigin string
	Logger        logger.Logger
}

// Handler serves the estimation and simulation history API.
type Handler struct {
	svc  Service
	opts Options
	log  logger.Logger
}

// NewHandler builds a Handler around svc.
func NewHandler(svc Service, opts Options) *Handler {
	return &Handler{svc: svc, opts: opts, log: logger.OrNop(opts.Logger)}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("POST /api/estimate", h.wrap(h.estimate))
	mux.Handle("GET /api/pattern", h.wrap(h.pattern))
	mux.Handle("GET /api/limits", h.wrap(h.limits))
	mux.Handle("POST /api/simulations", h.wrap(h.create))
	mux.Handle("GET /api/simulations", h.wrap(h.list))
	mux.Handle("GET /api/simulations/{id}", h.wrap(h.get))
	mux.Handle("PUT /api/simulations/{id}", h.wrap(h.update))
	mux.Handle("DELETE /api/simulations/{id}", h.wrap(h.remove))
	mux.Handle("GET /api/simulations/{id}/profile", h.wrap(h.profile))
	mux.Handle("OPTIONS /api/", h.wrap(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

// wrap applies CORS headers and the bearer token check.
func (h *Handler) wrap(fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.AllowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", h.opts.AllowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if h.opts.Token != "" && r.Method != http.MethodOptions {
			if r.Header.Get("Authorization") != "Bearer "+h.opts.Token {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
				return
			}
		}
		h.log.Debugf("%s %s", r.Method, r.URL.Path)
		fn(w, r)
	})
}

func (h *Handler) estimate(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInputs(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out, err := h.svc.Estimate(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type hourlyUsage struct {
	Hour  int     `json:"hour"`
	Usage float64 `json:"usage"`
}

func (h *Handler) pattern(w http.ResponseWriter, _ *http.Request) {
	p := estimator.UsagePattern()
	res := make([]hourlyUsage, len(p))
	for i, u := range p {
		res[i] = hourlyUsage{Hour: i, Usage: u}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) limits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Limits())
}

// createResponse reports whether the computed simulation was saved.
type createResponse struct {
	model.Simulation
	Persisted bool   `json:"persisted"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInputs(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sim, err := h.svc.Create(r.Context(), in)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, createResponse{Simulation: sim, Persisted: true})
	case errors.Is(err, simulation.ErrPersistence):
		// the estimate is still shown to the user
		writeJSON(w, http.StatusOK, createResponse{Simulation: sim, Error: err.Error()})
	default:
		h.writeError(w, err)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sims, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if sims == nil {
		sims = []model.Simulation{}
	}
	writeJSON(w, http.StatusOK, sims)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sim, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInputs(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sim, err := h.svc.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	sim, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		err = export.WriteJSON(w, sim.Outputs.HourlyData)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sim.ID+"-profile.csv"))
		err = export.WriteCSV(w, sim.Outputs.HourlyData)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unsupported format " + format})
		return
	}
	if err != nil {
		h.log.Errorf("export profile %s: %v", sim.ID, err)
	}
}

func decodeInputs(w http.ResponseWriter, r *http.Request) (model.SimulationInputs, error) {
	var in model.SimulationInputs
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, fmt.Errorf("%w: decode body: %w", simulation.ErrInvalidInput, err)
	}
	return in, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, simulation.ErrInvalidInput), errors.Is(err, simulation.ErrDegenerateResult):
		status = http.StatusBadRequest
	case errors.Is(err, simulation.ErrNotFound):
		status = http.StatusNotFound
	default:
		h.log.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
