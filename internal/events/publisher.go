package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/denizaktas/beautyharvest/internal/models"
	"github.com/denizaktas/beautyharvest/internal/runner"
)

const StreamProductExtracted = "stream:product_extracted"

// RedisClient is the subset of redis operations the publisher uses,
// extracted for testing with a fake.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// ProductExtractedPayload is the event body published for every accepted
// record. Downstream text-generation consumers read only these events.
type ProductExtractedPayload struct {
	RunID      string            `json:"run_id"`
	URL        string            `json:"url"`
	Site       string            `json:"site"`
	Category   string            `json:"category"`
	Name       string            `json:"name"`
	Price      string            `json:"price"`
	Score      int               `json:"score"`
	Decision   string            `json:"decision"`
	Warnings   []string          `json:"warnings,omitempty"`
	ScrapedAt  time.Time         `json:"scraped_at"`
	Selectors  map[string]string `json:"source_selectors,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Publisher emits accepted extraction results onto a Redis stream.
type Publisher struct {
	client RedisClient
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(client RedisClient) *Publisher {
	return &Publisher{
		client: client,
		logger: slog.Default().With("component", "events"),
		now:    time.Now,
	}
}

// Record publishes the result unless it was rejected. Implements the runner
// sink contract.
func (p *Publisher) Record(ctx context.Context, runID string, res runner.Result) error {
	if !res.Report.Acceptable() {
		return nil
	}

	payload := ProductExtractedPayload{
		RunID:      runID,
		URL:        res.Fields.URL,
		Site:       res.Fields.Site,
		Category:   res.Fields.Category,
		Name:       res.Fields.Fields[models.FieldName],
		Price:      res.Fields.Fields[models.FieldPrice],
		Score:      res.Report.Score,
		Decision:   res.Report.Decision.String(),
		Warnings:   res.Report.Warnings,
		ScrapedAt:  res.Fields.ScrapedAt,
		Selectors:  res.Fields.SourceSelector,
		OccurredAt: p.now(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: StreamProductExtracted,
		Values: map[string]interface{}{
			"event_type": "product_extracted",
			"payload":    string(data),
		},
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", StreamProductExtracted, err)
	}

	p.logger.Debug("event published", "stream", StreamProductExtracted, "url", payload.URL)
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
