package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/denizaktas/beautyharvest/internal/ratelimit"
)

var (
	// ErrSessionPoisoned means anti-bot challenges persisted through the
	// evasion sequence. The session must be discarded, never reused.
	ErrSessionPoisoned = errors.New("session is poisoned")

	// ErrSessionClosed means the session was released back to its manager.
	ErrSessionClosed = errors.New("session is closed")
)

// State tracks a session through its lifecycle. Transitions only move
// forward out of Poisoned and Closed.
type State int

const (
	StateCreated State = iota
	StateActive
	StateChallenged
	StateEvading
	StatePoisoned
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateChallenged:
		return "challenged"
	case StateEvading:
		return "evading"
	case StatePoisoned:
		return "poisoned"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one isolated browser context with its own stealth profile, rate
// limiter and page. Sessions are single-owner: exactly one worker drives a
// session at a time.
type Session struct {
	id        string
	page      playwright.Page
	context   playwright.BrowserContext
	profile   StealthProfile
	limiter   *ratelimit.AdaptiveRateLimiter
	humanizer Humanizer
	logger    *slog.Logger

	mu                    sync.Mutex
	state                 State
	consecutiveChallenges int
}

const maxConsecutiveChallenges = 3

func (s *Session) ID() string { return s.id }

func (s *Session) Profile() StealthProfile { return s.profile }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Navigate loads a URL respecting the session's rate limit, settles the page
// with humanization noise, and screens the result for anti-bot challenges.
// A challenge triggers one evasion sequence; if the challenge persists, or
// challenges keep recurring across navigations, the session is poisoned.
func (s *Session) Navigate(ctx context.Context, url string) error {
	switch s.State() {
	case StatePoisoned:
		return ErrSessionPoisoned
	case StateClosed:
		return ErrSessionClosed
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := s.humanizer.PauseBeforeNavigation(ctx); err != nil {
		return err
	}

	if _, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(30000),
	}); err != nil {
		s.limiter.RecordError()
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	s.humanizer.Settle(s.page)

	challenged, err := s.checkChallenge()
	if err != nil {
		return err
	}
	if !challenged {
		s.mu.Lock()
		s.consecutiveChallenges = 0
		s.state = StateActive
		s.mu.Unlock()
		s.limiter.RecordSuccess()
		return nil
	}

	s.mu.Lock()
	s.consecutiveChallenges++
	streak := s.consecutiveChallenges
	s.state = StateChallenged
	s.mu.Unlock()
	s.limiter.RecordError()

	s.logger.Warn("challenge detected", "session", s.id, "url", url, "streak", streak)

	if streak >= maxConsecutiveChallenges {
		s.setState(StatePoisoned)
		return ErrSessionPoisoned
	}

	if err := s.evade(ctx, url); err != nil {
		return err
	}

	challenged, err = s.checkChallenge()
	if err != nil {
		return err
	}
	if challenged {
		s.setState(StatePoisoned)
		return ErrSessionPoisoned
	}

	s.setState(StateActive)
	s.logger.Info("evasion succeeded", "session", s.id, "url", url)
	return nil
}

func (s *Session) checkChallenge() (bool, error) {
	title, err := s.page.Title()
	if err != nil {
		return false, fmt.Errorf("failed to get page title: %w", err)
	}
	content, err := s.page.Content()
	if err != nil {
		return false, fmt.Errorf("failed to get page content: %w", err)
	}
	return looksChallenged(title, content), nil
}

var challengeMarkers = []string{
	"checking your browser",
	"just a moment",
	"verify you are a human",
	"access denied",
	"captcha",
	"cf-challenge",
	"robot olmadığınızı",
	"güvenlik doğrulaması",
	"erişim engellendi",
}

// looksChallenged reports whether a page is an anti-bot interstitial rather
// than real content.
func looksChallenged(title, content string) bool {
	t := strings.ToLower(title)
	c := strings.ToLower(content)
	for _, marker := range challengeMarkers {
		if strings.Contains(t, marker) || strings.Contains(c, marker) {
			return true
		}
	}
	return false
}

// evade runs the recovery sequence: shrink the viewport, browse like a
// confused human for a while, then cool down before the caller re-checks.
func (s *Session) evade(ctx context.Context, url string) error {
	s.setState(StateEvading)
	s.logger.Info("starting evasion sequence", "session", s.id)

	if err := s.page.SetViewportSize(1366, 768); err != nil {
		s.logger.Debug("viewport resize failed during evasion", "error", err)
	}

	s.typeLikeHuman("parfüm hediye seti")

	for i := 0; i < 3+rand.Intn(3); i++ {
		s.page.Mouse().Wheel(0, 150+rand.Float64()*350)
		time.Sleep(time.Duration(400+rand.Intn(800)) * time.Millisecond)
	}

	cooldown := time.Duration(15+rand.Intn(11)) * time.Second
	s.logger.Info("cooling down", "session", s.id, "duration", cooldown)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(cooldown):
	}

	if _, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(30000),
	}); err != nil {
		return fmt.Errorf("failed to navigate after evasion: %w", err)
	}

	return nil
}

// typeLikeHuman types a search query character by character with uneven
// delays and the occasional corrected typo. Silently does nothing when the
// page has no search box.
func (s *Session) typeLikeHuman(query string) {
	box := s.page.Locator(`input[type="search"], input[name="q"], input[placeholder*="ara"]`).First()
	count, err := box.Count()
	if err != nil || count == 0 {
		return
	}
	if err := box.Click(); err != nil {
		return
	}

	for _, r := range query {
		if rand.Float64() < 0.05 {
			s.page.Keyboard().Type(string(r + 1))
			time.Sleep(time.Duration(150+rand.Intn(250)) * time.Millisecond)
			s.page.Keyboard().Press("Backspace")
			time.Sleep(time.Duration(100+rand.Intn(150)) * time.Millisecond)
		}
		s.page.Keyboard().Type(string(r))
		time.Sleep(time.Duration(80+rand.Intn(220)) * time.Millisecond)
	}
}

// Text returns the text content of the first element matching any selector
// in the chain, together with the selector that matched.
func (s *Session) Text(selectors []string) (string, string, error) {
	if err := s.usable(); err != nil {
		return "", "", err
	}
	for _, sel := range selectors {
		loc := s.page.Locator(sel).First()
		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}
		text, err := loc.TextContent()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, sel, nil
		}
	}
	return "", "", nil
}

// TextAll returns trimmed text for every element matching the first selector
// in the chain that matches anything.
func (s *Session) TextAll(selectors []string) ([]string, string, error) {
	if err := s.usable(); err != nil {
		return nil, "", err
	}
	for _, sel := range selectors {
		loc := s.page.Locator(sel)
		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}
		var texts []string
		for i := 0; i < count; i++ {
			text, err := loc.Nth(i).TextContent()
			if err != nil {
				continue
			}
			text = strings.TrimSpace(text)
			if text != "" {
				texts = append(texts, text)
			}
		}
		if len(texts) > 0 {
			return texts, sel, nil
		}
	}
	return nil, "", nil
}

// Attr returns an attribute of the first element matching any selector.
func (s *Session) Attr(selectors []string, name string) (string, string, error) {
	if err := s.usable(); err != nil {
		return "", "", err
	}
	for _, sel := range selectors {
		loc := s.page.Locator(sel).First()
		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}
		val, err := loc.GetAttribute(name)
		if err != nil || val == "" {
			continue
		}
		return val, sel, nil
	}
	return "", "", nil
}

// AttrAll returns an attribute from every element matching a selector.
func (s *Session) AttrAll(selector, name string) ([]string, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	loc := s.page.Locator(selector)
	count, err := loc.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count %q: %w", selector, err)
	}
	var vals []string
	for i := 0; i < count; i++ {
		val, err := loc.Nth(i).GetAttribute(name)
		if err != nil || val == "" {
			continue
		}
		vals = append(vals, val)
	}
	return vals, nil
}

// Evaluate runs a script on the current page.
func (s *Session) Evaluate(script string) (interface{}, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	result, err := s.page.Evaluate(script)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate script: %w", err)
	}
	return result, nil
}

// Content returns the current page HTML.
func (s *Session) Content() (string, error) {
	if err := s.usable(); err != nil {
		return "", err
	}
	content, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return content, nil
}

// URL returns the page's current URL.
func (s *Session) URL() string {
	return s.page.URL()
}

func (s *Session) usable() error {
	switch s.State() {
	case StatePoisoned:
		return ErrSessionPoisoned
	case StateClosed:
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) close() error {
	s.setState(StateClosed)
	if err := s.context.Close(); err != nil {
		return fmt.Errorf("failed to close session context: %w", err)
	}
	return nil
}
