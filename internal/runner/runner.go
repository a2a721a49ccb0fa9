package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/denizaktas/beautyharvest/internal/browser"
	"github.com/denizaktas/beautyharvest/internal/discovery"
	"github.com/denizaktas/beautyharvest/internal/extract"
	"github.com/denizaktas/beautyharvest/internal/models"
	"github.com/denizaktas/beautyharvest/internal/quality"
	"github.com/denizaktas/beautyharvest/internal/queue"
	"github.com/denizaktas/beautyharvest/internal/sites"
)

// Session is the behavior the runner needs from one browser session. It is
// the union of what discovery and extraction consume; *browser.Session
// satisfies it via the cmd adapter, tests use fakes.
type Session interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	Text(selectors []string) (string, string, error)
	TextAll(selectors []string) ([]string, string, error)
	AttrAll(selector, name string) ([]string, error)
	Evaluate(script string) (interface{}, error)
	Content() (string, error)
}

// Factory creates and releases sessions. Every session handed out must be
// released exactly once, on every exit path. WithSession scopes a session to
// one function call and guarantees the release.
type Factory interface {
	NewSession(rateSeconds float64) (Session, error)
	Release(s Session) error
	WithSession(rateSeconds float64, fn func(Session) error) error
}

// Sink receives each extracted record with its quality report. Sinks decide
// for themselves whether to skip rejected records.
type Sink interface {
	Record(ctx context.Context, runID string, res Result) error
}

// Params are the caller-supplied knobs for one harvest run.
type Params struct {
	Site        string
	Category    string
	MaxProducts int
	Workers     int
	Deadline    time.Duration
	// URLTimeout bounds one full extraction attempt, retries and evasion
	// included. Expiry fails that single URL; sibling workers keep going.
	URLTimeout time.Duration
}

func (p Params) withDefaults() Params {
	if p.MaxProducts <= 0 {
		p.MaxProducts = 50
	}
	if p.Workers <= 0 {
		p.Workers = 2
	}
	// Must exceed the worst case for one URL: navigation ceilings, the
	// unreachable backoff, an evasion cooldown and a poisoned-session
	// re-attempt stacked together.
	if p.URLTimeout <= 0 {
		p.URLTimeout = 5 * time.Minute
	}
	return p
}

// Result pairs one extracted record with its validation verdict.
type Result struct {
	Fields *models.RawFieldMap  `json:"fields"`
	Report models.QualityReport `json:"report"`
}

// Summary aggregates the outcome of one run. Per-URL failures are isolated
// and counted by kind; they never abort sibling workers.
type Summary struct {
	RunID                string         `json:"run_id"`
	Site                 string         `json:"site"`
	Category             string         `json:"category"`
	Discovered           int            `json:"discovered"`
	Extracted            int            `json:"extracted"`
	Accepted             int            `json:"accepted"`
	AcceptedWithWarnings int            `json:"accepted_with_warnings"`
	Rejected             int            `json:"rejected"`
	Failed               int            `json:"failed"`
	Errors               map[string]int `json:"errors,omitempty"`
	StartedAt            time.Time      `json:"started_at"`
	FinishedAt           time.Time      `json:"finished_at"`
}

const (
	errKindPageUnreachable = "page_unreachable"
	errKindExtractionEmpty = "extraction_empty"
	errKindSessionPoisoned = "session_poisoned"
	errKindURLTimeout      = "url_timeout"
	errKindCancelled       = "cancelled"
	errKindOther           = "other"

	unreachableRetries = 2
)

// Runner drives one harvest: a single discovery pass feeding a bounded pool
// of extraction workers, each holding its own session.
type Runner struct {
	factory   Factory
	cascade   *discovery.Cascade
	engine    *extract.Engine
	validator *quality.Validator
	sinks     []Sink
	logger    *slog.Logger
}

func New(factory Factory, validator *quality.Validator, sinks ...Sink) *Runner {
	return &Runner{
		factory:   factory,
		cascade:   discovery.NewCascade(),
		engine:    extract.NewEngine(),
		validator: validator,
		sinks:     sinks,
		logger:    slog.Default().With("component", "runner"),
	}
}

// Run discovers URLs for the category and extracts them with params.Workers
// parallel sessions. One cancellation signal covers the whole run; when it
// fires, in-flight extractions abandon and every session is still released.
func (r *Runner) Run(ctx context.Context, profile *sites.Profile, params Params) (*Summary, error) {
	params = params.withDefaults()

	if params.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.Deadline)
		defer cancel()
	}

	summary := &Summary{
		RunID:     uuid.New().String(),
		Site:      profile.Name,
		Category:  params.Category,
		Errors:    make(map[string]int),
		StartedAt: time.Now(),
	}
	log := r.logger.With("run", summary.RunID, "site", profile.Name, "category", params.Category)

	urls, err := r.discover(ctx, profile, params)
	if err != nil {
		return nil, err
	}
	summary.Discovered = len(urls)
	log.Info("discovery complete", "urls", len(urls))

	work := queue.NewInMemoryQueue()
	for _, u := range urls {
		if err := work.Push(u); err != nil {
			return nil, fmt.Errorf("failed to enqueue discovered url: %w", err)
		}
	}
	work.Close()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < params.Workers; i++ {
		g.Go(func() error {
			return r.work(gctx, profile, params, summary.RunID, work, func(fn func(*Summary)) {
				mu.Lock()
				fn(summary)
				mu.Unlock()
			})
		})
	}

	err = g.Wait()
	summary.FinishedAt = time.Now()
	log.Info("run finished",
		"extracted", summary.Extracted,
		"accepted", summary.Accepted+summary.AcceptedWithWarnings,
		"rejected", summary.Rejected,
		"failed", summary.Failed)

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return summary, err
	}
	return summary, nil
}

// discover runs the cascade on a scoped session that is released before
// extraction starts.
func (r *Runner) discover(ctx context.Context, profile *sites.Profile, params Params) ([]models.DiscoveredURL, error) {
	var urls []models.DiscoveredURL
	err := r.factory.WithSession(profile.RateLimitSeconds, func(session Session) error {
		var derr error
		urls, derr = r.cascade.Discover(ctx, session, profile, params.Category, params.MaxProducts)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// work is one pool worker: it owns one session at a time and processes URLs
// until the queue drains or the run is cancelled.
func (r *Runner) work(ctx context.Context, profile *sites.Profile, params Params, runID string, work *queue.InMemoryQueue, update func(func(*Summary))) error {
	session, err := r.factory.NewSession(profile.RateLimitSeconds)
	if err != nil {
		return fmt.Errorf("failed to create worker session: %w", err)
	}
	defer func() { r.factory.Release(session) }()

	for {
		u, err := work.Pop(ctx)
		if errors.Is(err, queue.ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		urlCtx, cancelURL := context.WithTimeout(ctx, params.URLTimeout)
		fm, extractErr := r.extractWithRecovery(urlCtx, &session, profile, params, u)
		cancelURL()
		if extractErr != nil {
			kind := classify(extractErr)
			if kind == errKindCancelled && ctx.Err() == nil {
				// Only the per-URL budget expired; the run is still live.
				kind = errKindURLTimeout
				r.logger.Warn("url timed out", "run", runID, "url", u.URL)
			}
			update(func(s *Summary) {
				s.Failed++
				s.Errors[kind]++
			})
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		report := r.validator.Validate(fm, profile)
		update(func(s *Summary) {
			s.Extracted++
			switch report.Decision {
			case models.DecisionAccept:
				s.Accepted++
			case models.DecisionAcceptWithWarnings:
				s.AcceptedWithWarnings++
			case models.DecisionReject:
				s.Rejected++
			}
		})

		res := Result{Fields: fm, Report: report}
		for _, sink := range r.sinks {
			if err := sink.Record(ctx, runID, res); err != nil {
				r.logger.Error("sink failed", "run", runID, "url", fm.URL, "error", err)
			}
		}
	}
}

// extractWithRecovery extracts one URL with the per-URL retry policy:
// unreachable pages get a short backoff and retry, empty extractions fail
// immediately, and a poisoned session is swapped for a fresh one with a
// single re-attempt of the same URL.
func (r *Runner) extractWithRecovery(ctx context.Context, session *Session, profile *sites.Profile, params Params, u models.DiscoveredURL) (*models.RawFieldMap, error) {
	fm, err := r.extractWithBackoff(ctx, *session, profile, params, u)
	if !errors.Is(err, browser.ErrSessionPoisoned) {
		return fm, err
	}

	r.logger.Warn("session poisoned, recycling", "url", u.URL, "session", (*session).ID())
	r.factory.Release(*session)

	fresh, err := r.factory.NewSession(profile.RateLimitSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to replace poisoned session: %w", err)
	}
	*session = fresh

	return r.extractWithBackoff(ctx, *session, profile, params, u)
}

func (r *Runner) extractWithBackoff(ctx context.Context, session Session, profile *sites.Profile, params Params, u models.DiscoveredURL) (*models.RawFieldMap, error) {
	var lastErr error
	for attempt := 0; attempt <= unreachableRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		fm, err := r.engine.Extract(ctx, session, u, profile, params.Category)
		if err == nil {
			return fm, nil
		}
		lastErr = err

		// A poisoned session also reads as unreachable; recovery owns it.
		if errors.Is(err, browser.ErrSessionPoisoned) {
			return nil, err
		}
		if !errors.Is(err, extract.ErrPageUnreachable) {
			return nil, err
		}
	}
	return nil, lastErr
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errKindCancelled
	case errors.Is(err, browser.ErrSessionPoisoned):
		return errKindSessionPoisoned
	case errors.Is(err, extract.ErrPageUnreachable):
		return errKindPageUnreachable
	case errors.Is(err, extract.ErrExtractionEmpty):
		return errKindExtractionEmpty
	default:
		return errKindOther
	}
}
