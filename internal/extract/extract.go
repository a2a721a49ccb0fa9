package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/denizaktas/beautyharvest/internal/models"
	"github.com/denizaktas/beautyharvest/internal/sites"
)

var (
	// ErrPageUnreachable means the product page never loaded.
	ErrPageUnreachable = errors.New("page unreachable")

	// ErrExtractionEmpty means the page loaded but no selector chain
	// produced either a name or a price.
	ErrExtractionEmpty = errors.New("extraction empty")
)

// Pager is the slice of session behavior extraction needs. *browser.Session
// satisfies it; tests use an in-memory fake.
type Pager interface {
	Navigate(ctx context.Context, url string) error
	Text(selectors []string) (string, string, error)
	TextAll(selectors []string) ([]string, string, error)
	AttrAll(selector, name string) ([]string, error)
	Content() (string, error)
}

// Engine turns one discovered URL into a RawFieldMap by walking each field's
// selector fallback chain: first selector with a non-empty result wins, and
// the winning selector is recorded per field.
type Engine struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine() *Engine {
	return &Engine{
		logger: slog.Default().With("component", "extract"),
		now:    time.Now,
	}
}

// Extract loads the product page and collects every field the profile
// configures. Fields whose whole chain comes up empty are simply absent.
func (e *Engine) Extract(ctx context.Context, page Pager, u models.DiscoveredURL, profile *sites.Profile, category string) (*models.RawFieldMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := page.Navigate(ctx, u.URL); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPageUnreachable, u.URL, err)
	}

	fm := &models.RawFieldMap{
		URL:            u.URL,
		Site:           profile.Name,
		Category:       category,
		Fields:         make(map[string]string),
		Lists:          make(map[string][]string),
		SourceSelector: make(map[string]string),
		ScrapedAt:      e.now(),
	}

	for _, field := range profile.FieldNames() {
		if field == models.FieldProductLink || field == models.FieldNextPage {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chain := profile.Chain(field)
		if models.ListFields[field] {
			e.extractList(page, fm, field, chain)
		} else {
			e.extractText(page, fm, field, chain)
		}
	}

	if e.missingRequired(fm) {
		if err := e.structuredFallback(page, fm); err != nil {
			e.logger.Debug("structured data fallback failed", "url", u.URL, "error", err)
		}
	}

	if !fm.Has(models.FieldName) && !fm.Has(models.FieldPrice) {
		return nil, fmt.Errorf("%w: %s", ErrExtractionEmpty, u.URL)
	}

	e.logger.Debug("extracted product",
		"url", u.URL, "fields", len(fm.Fields), "lists", len(fm.Lists))
	return fm, nil
}

func (e *Engine) extractText(page Pager, fm *models.RawFieldMap, field string, chain []string) {
	text, sel, err := page.Text(chain)
	if err != nil || text == "" {
		return
	}
	fm.Fields[field] = text
	fm.SourceSelector[field] = sel
}

func (e *Engine) extractList(page Pager, fm *models.RawFieldMap, field string, chain []string) {
	if field == models.FieldImages {
		// Image URLs live in attributes, not text nodes.
		for _, sel := range chain {
			vals, err := page.AttrAll(sel, "src")
			if err != nil || len(vals) == 0 {
				continue
			}
			fm.Lists[field] = vals
			fm.SourceSelector[field] = sel
			return
		}
		return
	}

	vals, sel, err := page.TextAll(chain)
	if err != nil || len(vals) == 0 {
		return
	}
	fm.Lists[field] = vals
	fm.SourceSelector[field] = sel
}

func (e *Engine) missingRequired(fm *models.RawFieldMap) bool {
	for _, field := range models.RequiredFields {
		if !fm.Has(field) {
			return true
		}
	}
	return false
}
