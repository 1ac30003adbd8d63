package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// GlobalStream receives every alert regardless of sport.
const GlobalStream = "odds.alerts"

// StreamSink publishes alerts to Redis Streams: one stream per sport plus
// the global one.
type StreamSink struct {
	client *redis.Client
}

// NewStreamSink creates a new stream publisher
func NewStreamSink(client *redis.Client) *StreamSink {
	return &StreamSink{client: client}
}

// Name implements Sink.
func (p *StreamSink) Name() string { return "redis-stream" }

// Send publishes to the sport stream, then the global stream.
func (p *StreamSink) Send(ctx context.Context, a Alert) error {
	alertJSON, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}

	for _, stream := range []string{GlobalStream + "." + a.Sport, GlobalStream} {
		_, err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]interface{}{
				"alert": string(alertJSON),
				"level": a.Level,
			},
		}).Result()
		if err != nil {
			return fmt.Errorf("publishing to stream %s: %w", stream, err)
		}
	}
	return nil
}

// RedisGate is a cooldown gate shared by every process using the same Redis,
// so scheduled runs in separate processes do not repeat each other's alerts.
type RedisGate struct {
	client *redis.Client
	prefix string
}

// NewRedisGate creates a gate storing keys under "alerts:cooldown:".
func NewRedisGate(client *redis.Client) *RedisGate {
	return &RedisGate{client: client, prefix: "alerts:cooldown:"}
}

// Acquire implements Gate with SET NX EX.
func (g *RedisGate) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	ok, err := g.client.SetNX(ctx, g.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setting cooldown key: %w", err)
	}
	return ok, nil
}
