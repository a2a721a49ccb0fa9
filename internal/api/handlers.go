package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/denizaktas/beautyharvest/internal/runner"
)

// Handlers exposes run management over HTTP: launch a harvest, poll its
// status, list known sites.
type Handlers struct {
	registry *runner.Registry
	runCtx   context.Context
	logger   *slog.Logger
}

// NewHandlers wires the registry into HTTP. runCtx scopes launched runs to
// the process, not to the triggering request.
func NewHandlers(registry *runner.Registry, runCtx context.Context, logger *slog.Logger) *Handlers {
	return &Handlers{
		registry: registry,
		runCtx:   runCtx,
		logger:   logger,
	}
}

// Router builds the chi router with the standard middleware stack.
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/api/health", h.GetHealth)
	r.Route("/api/runs", func(r chi.Router) {
		r.Post("/", h.CreateRun)
		r.Get("/", h.ListRuns)
		r.Get("/{runID}", h.GetRun)
	})
	r.Get("/api/sites", h.ListSites)

	return r
}

// CreateRunRequest launches a harvest for one site and category.
type CreateRunRequest struct {
	Site            string `json:"site"`
	Category        string `json:"category"`
	MaxProducts     int    `json:"max_products"`
	Workers         int    `json:"workers"`
	DeadlineSeconds int    `json:"deadline_seconds"`
}

func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Site == "" {
		h.respondError(w, http.StatusBadRequest, "site is required")
		return
	}
	if req.Category == "" {
		h.respondError(w, http.StatusBadRequest, "category is required")
		return
	}

	// The run outlives this request; only process shutdown cancels it.
	status, err := h.registry.Launch(h.runCtx, runner.Params{
		Site:        req.Site,
		Category:    req.Category,
		MaxProducts: req.MaxProducts,
		Workers:     req.Workers,
		Deadline:    time.Duration(req.DeadlineSeconds) * time.Second,
	})
	if err != nil {
		h.logger.Error("failed to launch run", "site", req.Site, "error", err)
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusCreated, status)
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		h.respondError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	status, ok := h.registry.Get(runID)
	if !ok {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	h.respondJSON(w, http.StatusOK, status)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, h.registry.List())
}

func (h *Handlers) ListSites(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string][]string{"sites": h.registry.Sites()})
}

func (h *Handlers) GetHealth(w http.ResponseWriter, _ *http.Request) {
	running := 0
	for _, status := range h.registry.List() {
		if status.State == runner.RunStateRunning {
			running++
		}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"running_runs": running,
	})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
