package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/denizaktas/beautyharvest/internal/sites"
)

// RunState is the externally visible lifecycle of a launched run.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// RunStatus is what the API reports about one launched run.
type RunStatus struct {
	ID        string    `json:"id"`
	Site      string    `json:"site"`
	Category  string    `json:"category"`
	State     RunState  `json:"state"`
	Summary   *Summary  `json:"summary,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Registry launches runs in the background and tracks their status so the
// HTTP surface can report on them. Statuses are kept for the process
// lifetime; the durable record lives in the persistence sinks.
type Registry struct {
	runner   *Runner
	profiles *sites.Registry
	logger   *slog.Logger

	mu   sync.RWMutex
	runs map[string]*RunStatus
	wg   sync.WaitGroup
}

func NewRegistry(runner *Runner, profiles *sites.Registry) *Registry {
	return &Registry{
		runner:   runner,
		profiles: profiles,
		logger:   slog.Default().With("component", "registry"),
		runs:     make(map[string]*RunStatus),
	}
}

// Launch validates the parameters and starts the run in the background. The
// returned status carries the registry's tracking ID, available immediately.
func (r *Registry) Launch(ctx context.Context, params Params) (*RunStatus, error) {
	profile, err := r.profiles.Get(params.Site)
	if err != nil {
		return nil, err
	}
	if params.Category == "" {
		return nil, fmt.Errorf("category is required")
	}

	status := &RunStatus{
		ID:        uuid.New().String(),
		Site:      params.Site,
		Category:  params.Category,
		State:     RunStateRunning,
		StartedAt: time.Now(),
	}

	r.mu.Lock()
	r.runs[status.ID] = status
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		summary, err := r.runner.Run(ctx, profile, params)

		r.mu.Lock()
		defer r.mu.Unlock()
		status.Summary = summary
		if err != nil {
			status.State = RunStateFailed
			status.Error = err.Error()
			r.logger.Error("run failed", "run", status.ID, "error", err)
			return
		}
		status.State = RunStateCompleted
	}()

	return status, nil
}

// Get returns a copy of the status for one run.
func (r *Registry) Get(id string) (RunStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, ok := r.runs[id]
	if !ok {
		return RunStatus{}, false
	}
	return *status, true
}

// List returns copies of all tracked run statuses.
func (r *Registry) List() []RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RunStatus, 0, len(r.runs))
	for _, status := range r.runs {
		out = append(out, *status)
	}
	return out
}

// Wait blocks until every launched run has finished. Called on shutdown.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Sites exposes the configured site names for the API.
func (r *Registry) Sites() []string {
	return r.profiles.Names()
}
