package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/denizaktas/beautyharvest/internal/models"
	"github.com/denizaktas/beautyharvest/internal/sites"
)

// ErrDiscoveryExhausted means all four phases combined found no product URL.
var ErrDiscoveryExhausted = errors.New("discovery exhausted: no product URLs found")

// Pager is the slice of session behavior discovery needs. *browser.Session
// satisfies it; tests use an in-memory fake.
type Pager interface {
	Navigate(ctx context.Context, url string) error
	AttrAll(selector, attr string) ([]string, error)
	Evaluate(script string) (interface{}, error)
	Content() (string, error)
}

const (
	phaseAttempts   = 2
	maxListingPages = 10
)

// phase is one strategy in the cascade. Confidence for a URL it finds is
// base plus the category boost, clamped into [floor, ceil].
type phase struct {
	id          models.DiscoveryPhase
	base        float64
	floor, ceil float64
	collect     func(ctx context.Context, page Pager, profile *sites.Profile) ([]string, error)
}

// Cascade discovers product URLs for a category with strategies of
// increasing aggressiveness. Phases run strictly in order; a URL found by an
// earlier phase is never re-emitted by a later one.
type Cascade struct {
	logger *slog.Logger
	phases []phase
}

func NewCascade() *Cascade {
	c := &Cascade{
		logger: slog.Default().With("component", "discovery"),
	}
	c.phases = []phase{
		{models.PhaseDirectSelector, 0.95, 0.9, 1.0, c.directSelector},
		{models.PhaseScriptEvaluation, 0.8, 0.7, 0.9, c.scriptEvaluation},
		{models.PhaseAggressiveFallback, 0.55, 0.4, 0.7, c.aggressiveFallback},
		{models.PhaseEmergencyExtraction, 0.25, 0.1, 0.4, c.emergencyExtraction},
	}
	return c
}

// Discover navigates to the category listing and runs the cascade until
// maxURLs unique URLs are collected or every phase is exhausted. When the
// profile configures a next_page chain, further listing pages are followed
// until maxURLs is met, the chain stops matching, or the page cap is hit.
// URLs are deduplicated across phases and listing pages by normalized URL.
func (c *Cascade) Discover(ctx context.Context, page Pager, profile *sites.Profile, category string, maxURLs int) ([]models.DiscoveredURL, error) {
	listingURL := profile.CategoryURL(category)
	if err := page.Navigate(ctx, listingURL); err != nil {
		return nil, fmt.Errorf("failed to open category listing %s: %w", listingURL, err)
	}

	rule := sites.RuleFor(category)
	seen := make(map[string]bool)
	visited := map[string]bool{NormalizeURL(listingURL): true}
	var found []models.DiscoveredURL

	pageURL := listingURL
	for listPage := 1; ; listPage++ {
		var err error
		found, err = c.scanListing(ctx, page, profile, rule, pageURL, seen, found, maxURLs)
		if err != nil {
			return nil, err
		}
		if len(found) >= maxURLs || listPage >= maxListingPages {
			break
		}

		next := c.nextListingURL(page, profile)
		if next == "" || visited[NormalizeURL(next)] {
			break
		}
		visited[NormalizeURL(next)] = true

		if err := page.Navigate(ctx, next); err != nil {
			c.logger.Warn("failed to open next listing page",
				"site", profile.Name, "url", next, "error", err)
			break
		}
		pageURL = next
		c.logger.Info("following next listing page",
			"site", profile.Name, "page", listPage+1, "url", next)
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("%w: site %s category %s", ErrDiscoveryExhausted, profile.Name, category)
	}
	return found, nil
}

// scanListing runs every phase against the currently loaded listing page.
func (c *Cascade) scanListing(ctx context.Context, page Pager, profile *sites.Profile, rule sites.CategoryRule, pageURL string, seen map[string]bool, found []models.DiscoveredURL, maxURLs int) ([]models.DiscoveredURL, error) {
	for _, ph := range c.phases {
		if len(found) >= maxURLs {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hrefs, err := c.runPhase(ctx, page, profile, pageURL, ph)
		if err != nil {
			c.logger.Warn("phase failed, falling through",
				"site", profile.Name, "phase", ph.id.String(), "error", err)
			continue
		}

		added := 0
		for _, href := range hrefs {
			abs := Absolutize(profile.BaseURL, href)
			if abs == "" || !IsProductURL(abs) {
				continue
			}
			key := NormalizeURL(abs)
			if seen[key] {
				continue
			}
			seen[key] = true

			found = append(found, models.DiscoveredURL{
				URL:        key,
				Phase:      ph.id,
				Confidence: clamp(ph.base+rule.ScoreURL(key), ph.floor, ph.ceil),
			})
			added++
			if len(found) >= maxURLs {
				break
			}
		}

		c.logger.Info("phase complete",
			"site", profile.Name, "phase", ph.id.String(), "added", added, "total", len(found))
	}
	return found, nil
}

// nextListingURL resolves the profile's next_page chain against the current
// page. An empty result means the listing has no further pages.
func (c *Cascade) nextListingURL(page Pager, profile *sites.Profile) string {
	for _, sel := range profile.Chain(models.FieldNextPage) {
		hrefs, err := page.AttrAll(sel, "href")
		if err != nil {
			continue
		}
		for _, href := range hrefs {
			if abs := Absolutize(profile.BaseURL, href); abs != "" {
				return abs
			}
		}
	}
	return ""
}

// runPhase retries a phase once after re-navigating, so one flaky page state
// does not cost the phase entirely.
func (c *Cascade) runPhase(ctx context.Context, page Pager, profile *sites.Profile, listingURL string, ph phase) ([]string, error) {
	var lastErr error
	for attempt := 1; attempt <= phaseAttempts; attempt++ {
		if attempt > 1 {
			if err := page.Navigate(ctx, listingURL); err != nil {
				return nil, fmt.Errorf("failed to re-open listing for retry: %w", err)
			}
		}
		hrefs, err := ph.collect(ctx, page, profile)
		if err == nil {
			return hrefs, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Cascade) directSelector(_ context.Context, page Pager, profile *sites.Profile) ([]string, error) {
	var hrefs []string
	for _, sel := range profile.Chain(models.FieldProductLink) {
		vals, err := page.AttrAll(sel, "href")
		if err != nil {
			return nil, err
		}
		hrefs = append(hrefs, vals...)
		if len(hrefs) > 0 {
			break
		}
	}
	return hrefs, nil
}

const linkHarvestScript = `(() => {
  const urls = new Set();
  document.querySelectorAll('a[href]').forEach(a => { if (a.href) urls.add(a.href); });
  document.querySelectorAll('[data-url], [data-href], [data-link]').forEach(el => {
    const v = el.getAttribute('data-url') || el.getAttribute('data-href') || el.getAttribute('data-link');
    if (v) urls.add(v);
  });
  return Array.from(urls);
})()`

func (c *Cascade) scriptEvaluation(_ context.Context, page Pager, _ *sites.Profile) ([]string, error) {
	result, err := page.Evaluate(linkHarvestScript)
	if err != nil {
		return nil, err
	}

	items, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected script result type %T", result)
	}

	hrefs := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			hrefs = append(hrefs, s)
		}
	}
	return hrefs, nil
}

func (c *Cascade) aggressiveFallback(_ context.Context, page Pager, _ *sites.Profile) ([]string, error) {
	html, err := page.Content()
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page markup: %w", err)
	}

	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs, nil
}

func (c *Cascade) emergencyExtraction(_ context.Context, page Pager, _ *sites.Profile) ([]string, error) {
	html, err := page.Content()
	if err != nil {
		return nil, err
	}
	return ExtractURLShaped(html), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
