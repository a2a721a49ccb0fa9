package browser

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/denizaktas/beautyharvest/internal/ratelimit"
)

// Options configure the shared browser process. Per-session identity comes
// from StealthProfile, not from here.
type Options struct {
	Headless    bool
	ProxyServer string
	Humanizer   Humanizer
}

func DefaultOptions() *Options {
	return &Options{
		Headless:  true,
		Humanizer: NewNaturalHumanizer(),
	}
}

// Manager owns the playwright runtime and one browser process, and hands out
// isolated sessions. Each session is a fresh browser context with its own
// randomized stealth profile, rate limiter and init script.
type Manager struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    *Options
	logger  *slog.Logger
	active  atomic.Int64
}

func NewManager(opts *Options) (*Manager, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Humanizer == nil {
		opts.Humanizer = NewNaturalHumanizer()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}
	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.ProxyServer}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Manager{
		pw:      pw,
		browser: browser,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

// NewSession creates an isolated session paced at the given rate in seconds.
// Callers own the session until they Release it; sessions must never be
// shared between workers.
func (m *Manager) NewSession(rateSeconds float64) (*Session, error) {
	profile := NewStealthProfile()

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:  playwright.String(profile.UserAgent),
		Locale:     playwright.String(profile.Locale),
		TimezoneId: playwright.String(profile.TimezoneID),
		Viewport: &playwright.Size{
			Width:  profile.ViewportWidth,
			Height: profile.ViewportHeight,
		},
		ExtraHttpHeaders: map[string]string{
			"Accept-Language": profile.AcceptLanguage,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		},
	}

	bctx, err := m.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if err := bctx.AddInitScript(playwright.Script{
		Content: playwright.String(profile.initScript()),
	}); err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to add init script: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	session := &Session{
		id:        uuid.New().String(),
		page:      page,
		context:   bctx,
		profile:   profile,
		limiter:   ratelimit.ForProfile(rateSeconds),
		humanizer: m.opts.Humanizer,
		logger:    m.logger,
		state:     StateCreated,
	}

	m.active.Add(1)
	m.logger.Debug("session created",
		"session", session.id,
		"user_agent", profile.UserAgent,
		"viewport", fmt.Sprintf("%dx%d", profile.ViewportWidth, profile.ViewportHeight))

	return session, nil
}

// Release closes a session's context and drops it from the active count.
// Safe to call for poisoned sessions.
func (m *Manager) Release(s *Session) error {
	if s == nil || s.State() == StateClosed {
		return nil
	}
	defer m.active.Add(-1)
	return s.close()
}

// WithSession runs fn with a fresh session and guarantees release, even when
// fn panics or the session comes back poisoned.
func (m *Manager) WithSession(rateSeconds float64, fn func(*Session) error) error {
	session, err := m.NewSession(rateSeconds)
	if err != nil {
		return err
	}
	defer m.Release(session)
	return fn(session)
}

// ActiveSessions reports how many sessions are currently checked out.
func (m *Manager) ActiveSessions() int {
	return int(m.active.Load())
}

func (m *Manager) Close() error {
	var errs []error

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
