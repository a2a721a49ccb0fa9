package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denizaktas/beautyharvest/internal/browser"
	"github.com/denizaktas/beautyharvest/internal/extract"
	"github.com/denizaktas/beautyharvest/internal/models"
	"github.com/denizaktas/beautyharvest/internal/quality"
	"github.com/denizaktas/beautyharvest/internal/sites"
)

// fakePage is the canned content served for one URL.
type fakePage struct {
	links   []string
	texts   map[string]string
	lists   map[string][]string
	navErr  error
	stall   bool
	content string
}

// fakeSession replays fakePages keyed by URL.
type fakeSession struct {
	id       string
	factory  *fakeFactory
	poisoned bool
	current  string
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.poisoned {
		return browser.ErrSessionPoisoned
	}
	page, ok := s.factory.pages[url]
	if !ok {
		return fmt.Errorf("no route to %s", url)
	}
	if page.navErr != nil {
		return page.navErr
	}
	if page.stall {
		<-ctx.Done()
		return ctx.Err()
	}
	s.current = url
	return nil
}

func (s *fakeSession) page() fakePage {
	return s.factory.pages[s.current]
}

func (s *fakeSession) Text(selectors []string) (string, string, error) {
	for _, sel := range selectors {
		if v := strings.TrimSpace(s.page().texts[sel]); v != "" {
			return v, sel, nil
		}
	}
	return "", "", nil
}

func (s *fakeSession) TextAll(selectors []string) ([]string, string, error) {
	for _, sel := range selectors {
		if vs := s.page().lists[sel]; len(vs) > 0 {
			return vs, sel, nil
		}
	}
	return nil, "", nil
}

func (s *fakeSession) AttrAll(selector, _ string) ([]string, error) {
	if selector == "div.grid a.card" {
		return s.page().links, nil
	}
	return nil, nil
}

func (s *fakeSession) Evaluate(_ string) (interface{}, error) {
	return []interface{}{}, nil
}

func (s *fakeSession) Content() (string, error) {
	return s.page().content, nil
}

// fakeFactory tracks the session-release invariant and can poison the n-th
// session it creates.
type fakeFactory struct {
	mu       sync.Mutex
	pages    map[string]fakePage
	poisoned map[int]bool
	created  int
	released int
	scoped   int
}

func (f *fakeFactory) NewSession(_ float64) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return &fakeSession{
		id:       fmt.Sprintf("s-%d", f.created),
		factory:  f,
		poisoned: f.poisoned[f.created],
	}, nil
}

func (f *fakeFactory) Release(_ Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

func (f *fakeFactory) WithSession(rateSeconds float64, fn func(Session) error) error {
	s, err := f.NewSession(rateSeconds)
	if err != nil {
		return err
	}
	defer f.Release(s)

	f.mu.Lock()
	f.scoped++
	f.mu.Unlock()

	return fn(s)
}

func (f *fakeFactory) open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created - f.released
}

// collectSink records everything it receives.
type collectSink struct {
	mu      sync.Mutex
	results []Result
}

func (c *collectSink) Record(_ context.Context, _ string, res Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, res)
	return nil
}

func runProfile() *sites.Profile {
	return &sites.Profile{
		Name:    "teststore",
		BaseURL: "https://shop.example.com",
		CategoryPaths: map[string]string{
			"makyaj": "/makyaj",
		},
		Selectors: map[string]sites.SelectorChain{
			"product_link": {"div.grid a.card"},
			"name":         {"h1"},
			"price":        {"span.price"},
			"description":  {"div.desc"},
			"usage":        {"div.usage"},
			"benefits":     {"div.benefits"},
		},
		RateLimitSeconds: 0,
	}
}

func productPage(name, price string) fakePage {
	return fakePage{
		texts: map[string]string{
			"h1":           name,
			"span.price":   price,
			"div.desc":     "açıklama",
			"div.usage":    "kullanım",
			"div.benefits": "fayda",
		},
	}
}

func baseFactory() *fakeFactory {
	return &fakeFactory{
		poisoned: map[int]bool{},
		pages: map[string]fakePage{
			"https://shop.example.com/makyaj": {
				links: []string{"/mat-ruj-p-1", "/far-paleti-p-2"},
			},
			"https://shop.example.com/mat-ruj-p-1":    productPage("Mat Ruj 01", "89,90 TL"),
			"https://shop.example.com/far-paleti-p-2": productPage("Far Paleti Nude", "249,90 TL"),
		},
	}
}

func TestRun_HappyPath(t *testing.T) {
	factory := baseFactory()
	sink := &collectSink{}
	r := New(factory, quality.NewValidator(quality.DefaultConfig()), sink)

	summary, err := r.Run(context.Background(), runProfile(), Params{
		Site: "teststore", Category: "makyaj", MaxProducts: 10, Workers: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Discovered)
	assert.Equal(t, 2, summary.Extracted)
	assert.Equal(t, 2, summary.Accepted, "rich on-category records score above the accept threshold")
	assert.Zero(t, summary.Failed)
	assert.NotEmpty(t, summary.RunID)
	assert.Len(t, sink.results, 2)

	assert.Zero(t, factory.open(), "every session must be released")
	assert.Equal(t, 1, factory.scoped, "discovery borrows exactly one scoped session")
}

func TestRun_StalledURLTimesOutWithoutAbortingRun(t *testing.T) {
	factory := baseFactory()
	factory.pages["https://shop.example.com/mat-ruj-p-1"] = fakePage{stall: true}
	sink := &collectSink{}
	r := New(factory, quality.NewValidator(quality.DefaultConfig()), sink)

	summary, err := r.Run(context.Background(), runProfile(), Params{
		Site: "teststore", Category: "makyaj", MaxProducts: 10, Workers: 1,
		URLTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err, "a timed-out URL must not fail the run")

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Errors["url_timeout"])
	assert.Equal(t, 1, summary.Extracted, "the sibling URL still completes")
	assert.Len(t, sink.results, 1)
	assert.Zero(t, factory.open())
}

func TestRun_PoisonedWorkerSessionIsRecycled(t *testing.T) {
	factory := baseFactory()
	// Session 1 handles discovery; session 2 is the first worker session.
	factory.poisoned[2] = true
	sink := &collectSink{}
	r := New(factory, quality.NewValidator(quality.DefaultConfig()), sink)

	summary, err := r.Run(context.Background(), runProfile(), Params{
		Site: "teststore", Category: "makyaj", MaxProducts: 10, Workers: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Extracted, "the URL hit by the poisoned session is re-attempted on a fresh one")
	assert.Zero(t, summary.Failed)
	assert.GreaterOrEqual(t, factory.created, 3, "a replacement session must have been created")
	assert.Zero(t, factory.open(), "poisoned sessions are released, not leaked")
}

func TestRun_ExtractionEmptyIsCountedNotRetried(t *testing.T) {
	factory := baseFactory()
	factory.pages["https://shop.example.com/mat-ruj-p-1"] = fakePage{
		texts:   map[string]string{},
		content: "<html><body>bare page</body></html>",
	}
	sink := &collectSink{}
	r := New(factory, quality.NewValidator(quality.DefaultConfig()), sink)

	summary, err := r.Run(context.Background(), runProfile(), Params{
		Site: "teststore", Category: "makyaj", MaxProducts: 10, Workers: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Extracted)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Errors["extraction_empty"])
	assert.Len(t, sink.results, 1)
	assert.Zero(t, factory.open())
}

func TestRun_RejectedRecordsStillReachSinks(t *testing.T) {
	factory := baseFactory()
	// Off-category name triggers the category penalty on a bare record.
	factory.pages["https://shop.example.com/mat-ruj-p-1"] = fakePage{
		texts: map[string]string{"h1": "Onarıcı Şampuan", "span.price": "99 TL"},
	}
	sink := &collectSink{}
	r := New(factory, quality.NewValidator(quality.DefaultConfig()), sink)

	summary, err := r.Run(context.Background(), runProfile(), Params{
		Site: "teststore", Category: "makyaj", MaxProducts: 10, Workers: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Rejected)
	assert.Len(t, sink.results, 2, "sinks see every result and decide about rejects themselves")

	var sawReject bool
	for _, res := range sink.results {
		if res.Report.Decision == models.DecisionReject {
			sawReject = true
		}
	}
	assert.True(t, sawReject)
}

func TestRun_CancellationReleasesEverySession(t *testing.T) {
	factory := baseFactory()
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel as soon as the first record lands in a sink.
	r := New(factory, quality.NewValidator(quality.DefaultConfig()), sinkFunc(func() {
		cancel()
	}))

	_, err := r.Run(ctx, runProfile(), Params{
		Site: "teststore", Category: "makyaj", MaxProducts: 10, Workers: 2,
	})
	require.NoError(t, err, "cancellation is a clean stop, not a run failure")

	assert.Zero(t, factory.open(), "active sessions after run termination must be zero")
}

type sinkFunc func()

func (f sinkFunc) Record(context.Context, string, Result) error {
	f()
	return nil
}

func TestRun_DiscoveryFailurePropagates(t *testing.T) {
	factory := &fakeFactory{
		poisoned: map[int]bool{},
		pages: map[string]fakePage{
			"https://shop.example.com/makyaj": {content: "<html><body>tık yok</body></html>"},
		},
	}
	r := New(factory, quality.NewValidator(quality.DefaultConfig()))

	_, err := r.Run(context.Background(), runProfile(), Params{
		Site: "teststore", Category: "makyaj", MaxProducts: 10, Workers: 1,
	})
	assert.Error(t, err)
	assert.Zero(t, factory.open())
}

func TestRun_DeadlineBoundsTheRun(t *testing.T) {
	factory := baseFactory()
	r := New(factory, quality.NewValidator(quality.DefaultConfig()))

	start := time.Now()
	summary, err := r.Run(context.Background(), runProfile(), Params{
		Site: "teststore", Category: "makyaj", MaxProducts: 10, Workers: 1,
		Deadline: 5 * time.Second,
	})
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unreachable", fmt.Errorf("%w: x", extract.ErrPageUnreachable), "page_unreachable"},
		{"empty", fmt.Errorf("%w: x", extract.ErrExtractionEmpty), "extraction_empty"},
		{"poisoned wins over unreachable", fmt.Errorf("%w: x: %w", extract.ErrPageUnreachable, browser.ErrSessionPoisoned), "session_poisoned"},
		{"cancelled", context.Canceled, "cancelled"},
		{"anything else", errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}
