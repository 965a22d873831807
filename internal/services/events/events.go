// Package events publishes pipeline notifications on a redis pub/sub
// channel so downstream consumers (alerting, dashboards) can react without
// polling. Without a redis URL the publisher degrades to structured logs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meterwise/costops/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/bytebufferpool"
)

// Event types emitted by the pipeline and the analytics chain.
const (
	TypeMetricIngested           = "metric_ingested"
	TypePricingMismatchDetected  = "pricing_mismatch_detected"
	TypeAnomalyDetected          = "anomaly_detected"
	TypeBudgetProjectionExceeded = "budget_projection_exceeded"
)

// Event is the envelope published on the channel.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Publisher emits events; implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// New builds the publisher selected by config: redis pub/sub when a URL is
// configured, otherwise the log fallback.
func New(cfg models.EventsConfig) (Publisher, error) {
	if cfg.RedisURL == "" {
		fiberlog.Debug("Events: no redis URL configured, publishing to logs only")
		return &LogPublisher{}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL for event publisher: %w", err)
	}
	fiberlog.Debugf("Events: publishing to redis channel %s", cfg.Channel)
	return NewRedisPublisher(redis.NewClient(opts), cfg.Channel), nil
}

// RedisPublisher fans events out over one pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = "costops:events"
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	enc := json.NewEncoder(buf)
	if err := enc.Encode(Event{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}); err != nil {
		return fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}

	if err := p.client.Publish(ctx, p.channel, buf.Bytes()).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

// LogPublisher writes events to the structured log. Used when no broker is
// configured and as the terminal fallback in tests.
type LogPublisher struct{}

func (p *LogPublisher) Publish(_ context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}
	fiberlog.Infof("Event %s: %s", eventType, body)
	return nil
}
