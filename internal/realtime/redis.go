package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the redis change channel.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisChannel publishes and subscribes change events over redis pub/sub.
type RedisChannel struct {
	client  *redis.Client
	channel string
}

// NewRedisChannel connects to redis and verifies the connection.
func NewRedisChannel(cfg RedisConfig) (*RedisChannel, error) {
	if cfg.Addr == "" {
		return nil, errors.New("realtime: empty redis addr")
	}
	if cfg.Channel == "" {
		cfg.Channel = "safewatch:alerts"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("realtime: connect redis: %w", err)
	}

	return &RedisChannel{client: client, channel: cfg.Channel}, nil
}

// Publish sends a payload on the change channel.
func (c *RedisChannel) Publish(ctx context.Context, payload []byte) error {
	if c == nil || c.client == nil {
		return errors.New("realtime: nil redis channel")
	}
	return c.client.Publish(ctx, c.channel, payload).Err()
}

// Subscribe starts a pub/sub subscription and relays messages until the
// returned cancel func is called.
func (c *RedisChannel) Subscribe(ctx context.Context) (<-chan []byte, func(), error) {
	if c == nil || c.client == nil {
		return nil, nil, errors.New("realtime: nil redis channel")
	}
	pubsub := c.client.Subscribe(ctx, c.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("realtime: subscribe: %w", err)
	}

	out := make(chan []byte, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		src := pubsub.Channel()
		for {
			select {
			case msg, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-done:
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return out, cancel, nil
}

// Close releases the underlying client.
func (c *RedisChannel) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
