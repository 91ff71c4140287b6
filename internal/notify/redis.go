package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/brokerage-alerts/internal/config"
	"github.com/tbourn/brokerage-alerts/internal/domain"
)

// EventAlertCreated is the event type published for new alerts.
const EventAlertCreated = "alert.created"

// Event is the payload published on the realtime channel.
type Event struct {
	Type   string       `json:"type"`
	UserID string       `json:"user_id"`
	Alert  domain.Alert `json:"alerta"`
	At     time.Time    `json:"at"`
}

// RedisPublisher publishes alert events on a Redis pub/sub channel for
// dashboards connected to other processes.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher connects to cfg.Addr. The connection is lazy; a bad
// address surfaces on the first publish.
func NewRedisPublisher(cfg config.RedisConfig) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr: cfg.Addr,
			DB:   cfg.DB,
		}),
		channel: cfg.Channel,
	}
}

// PublishCreated implements services.Publisher.
func (p *RedisPublisher) PublishCreated(ctx context.Context, a domain.Alert) error {
	payload, err := json.Marshal(Event{Type: EventAlertCreated, UserID: a.OwnerID, Alert: a, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// Ping checks connectivity.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
