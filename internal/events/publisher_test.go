package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denizaktas/beautyharvest/internal/models"
	"github.com/denizaktas/beautyharvest/internal/runner"
)

type fakeRedis struct {
	added []*redis.XAddArgs
	err   error
}

func (f *fakeRedis) XAdd(_ context.Context, args *redis.XAddArgs) *redis.StringCmd {
	cmd := redis.NewStringCmd(context.Background())
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.added = append(f.added, args)
	cmd.SetVal("1-0")
	return cmd
}

func (f *fakeRedis) Close() error { return nil }

func acceptedResult() runner.Result {
	return runner.Result{
		Fields: &models.RawFieldMap{
			URL:      "https://shop.example.com/ruj-p-1",
			Site:     "teststore",
			Category: "makyaj",
			Fields: map[string]string{
				"name":  "Mat Ruj",
				"price": "89,90 TL",
			},
			SourceSelector: map[string]string{"name": "h1"},
			ScrapedAt:      time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Report: models.QualityReport{Score: 84, Decision: models.DecisionAccept},
	}
}

func TestPublisher_PublishesAcceptedRecord(t *testing.T) {
	client := &fakeRedis{}
	pub := NewPublisher(client)

	require.NoError(t, pub.Record(context.Background(), "run-1", acceptedResult()))
	require.Len(t, client.added, 1)

	args := client.added[0]
	assert.Equal(t, StreamProductExtracted, args.Stream)
	assert.Equal(t, "product_extracted", args.Values.(map[string]interface{})["event_type"])

	var payload ProductExtractedPayload
	raw := args.Values.(map[string]interface{})["payload"].(string)
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.Equal(t, "run-1", payload.RunID)
	assert.Equal(t, "Mat Ruj", payload.Name)
	assert.Equal(t, 84, payload.Score)
	assert.Equal(t, "accept", payload.Decision)
}

func TestPublisher_SkipsRejectedRecord(t *testing.T) {
	client := &fakeRedis{}
	pub := NewPublisher(client)

	res := acceptedResult()
	res.Report.Decision = models.DecisionReject

	require.NoError(t, pub.Record(context.Background(), "run-1", res))
	assert.Empty(t, client.added)
}

func TestPublisher_PropagatesRedisError(t *testing.T) {
	client := &fakeRedis{err: errors.New("connection refused")}
	pub := NewPublisher(client)

	err := pub.Record(context.Background(), "run-1", acceptedResult())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), StreamProductExtracted)
}
