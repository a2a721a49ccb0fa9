package browser

import (
	"context"
	"math/rand"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Humanizer injects human-like noise around navigations. Sessions call
// PauseBeforeNavigation before every Goto and Settle once the page loaded.
type Humanizer interface {
	PauseBeforeNavigation(ctx context.Context) error
	Settle(page playwright.Page)
}

// NaturalHumanizer pauses for a random interval before navigating, then
// wiggles the mouse and scrolls a little after the page loads.
type NaturalHumanizer struct {
	MinPause time.Duration
	MaxPause time.Duration
}

func NewNaturalHumanizer() *NaturalHumanizer {
	return &NaturalHumanizer{
		MinPause: 500 * time.Millisecond,
		MaxPause: 2 * time.Second,
	}
}

func (h *NaturalHumanizer) PauseBeforeNavigation(ctx context.Context) error {
	pause := h.MinPause
	if h.MaxPause > h.MinPause {
		pause += time.Duration(rand.Int63n(int64(h.MaxPause - h.MinPause)))
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(pause):
		return nil
	}
}

func (h *NaturalHumanizer) Settle(page playwright.Page) {
	for i := 0; i < 2+rand.Intn(3); i++ {
		x := 50 + rand.Float64()*900
		y := 50 + rand.Float64()*600
		page.Mouse().Move(x, y, playwright.MouseMoveOptions{
			Steps: playwright.Int(5 + rand.Intn(15)),
		})
		time.Sleep(time.Duration(100+rand.Intn(300)) * time.Millisecond)
	}

	// Read downward in short bursts rather than one long scroll.
	for i := 0; i < 1+rand.Intn(2); i++ {
		page.Mouse().Wheel(0, 200+rand.Float64()*400)
		time.Sleep(time.Duration(300+rand.Intn(500)) * time.Millisecond)
	}

	if rand.Float64() < 0.3 {
		page.Locator("a").First().Hover(playwright.LocatorHoverOptions{
			Timeout: playwright.Float(1000),
		})
	}
	if rand.Float64() < 0.2 {
		page.Keyboard().Press("Tab")
	}
}

// NoopHumanizer skips all delays and gestures. Used in tests and when the
// harvester runs against a local fixture server.
type NoopHumanizer struct{}

func Noop() NoopHumanizer { return NoopHumanizer{} }

func (NoopHumanizer) PauseBeforeNavigation(ctx context.Context) error { return ctx.Err() }

func (NoopHumanizer) Settle(playwright.Page) {}
