package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/denizaktas/beautyharvest/internal/models"
	"github.com/denizaktas/beautyharvest/internal/runner"
)

// Record upserts one extracted product keyed by its normalized URL. Rejected
// records are skipped; the durable store only carries usable data.
func (db *DB) Record(ctx context.Context, runID string, res runner.Result) error {
	if !res.Report.Acceptable() {
		return nil
	}

	fm := res.Fields

	fieldsJSON, err := json.Marshal(fm.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}
	listsJSON, err := json.Marshal(fm.Lists)
	if err != nil {
		return fmt.Errorf("failed to marshal lists: %w", err)
	}
	selectorsJSON, err := json.Marshal(fm.SourceSelector)
	if err != nil {
		return fmt.Errorf("failed to marshal source selectors: %w", err)
	}
	warningsJSON, err := json.Marshal(res.Report.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	query := `
		INSERT INTO products (url, site, category, name, brand, price,
			fields, lists, source_selector, quality_score, decision,
			warnings, run_id, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (url) DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			price = EXCLUDED.price,
			fields = EXCLUDED.fields,
			lists = EXCLUDED.lists,
			source_selector = EXCLUDED.source_selector,
			quality_score = EXCLUDED.quality_score,
			decision = EXCLUDED.decision,
			warnings = EXCLUDED.warnings,
			run_id = EXCLUDED.run_id,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = now()`

	_, err = db.pool.Exec(ctx, query,
		fm.URL, fm.Site, fm.Category,
		fm.Fields[models.FieldName], fm.Fields[models.FieldBrand], fm.Fields[models.FieldPrice],
		fieldsJSON, listsJSON, selectorsJSON,
		res.Report.Score, res.Report.Decision.String(),
		warningsJSON, runID, fm.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

// CountBySite reports stored products per site, used by the health surface.
func (db *DB) CountBySite(ctx context.Context) (map[string]int, error) {
	rows, err := db.pool.Query(ctx, `SELECT site, COUNT(*) FROM products GROUP BY site`)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var site string
		var n int
		if err := rows.Scan(&site, &n); err != nil {
			return nil, fmt.Errorf("failed to scan product count: %w", err)
		}
		counts[site] = n
	}
	return counts, rows.Err()
}
