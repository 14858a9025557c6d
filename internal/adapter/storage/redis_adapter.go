package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "lock:"

// compareAndDeleteScript deletes the key only while the caller's token is
// still the value. Doing GET then DEL as two commands would let a delayed
// holder delete a lock re-acquired by someone else after TTL expiry.
var compareAndDeleteScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIfAbsent(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
}

func (r *RedisAdapter) CompareAndDelete(ctx context.Context, key, token string) (bool, error) {
	deleted, err := compareAndDeleteScript.Run(ctx, r.client, []string{lockKeyPrefix + key}, token).Int()
	if err != nil && err != redis.Nil {
		return false, err
	}
	return deleted == 1, nil
}

func (r *RedisAdapter) Publish(ctx context.Context, channel string) error {
	return r.client.Publish(ctx, channel, "").Err()
}

// Subscribe bridges Redis pub/sub into a signal channel. Events carry no
// payload; a waiter that is not ready when an event arrives misses it and
// falls back on its own timeout.
func (r *RedisAdapter) Subscribe(ctx context.Context, channel string) (<-chan struct{}, func(), error) {
	pubsub := r.client.Subscribe(ctx, channel)

	// Force the SUBSCRIBE round-trip so no release event published after
	// this call returns can be missed by the transport.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	events := make(chan struct{}, 1)
	go func() {
		defer close(events)
		for range pubsub.Channel() {
			select {
			case events <- struct{}{}:
			default:
			}
		}
	}()

	stop := func() { pubsub.Close() }
	return events, stop, nil
}
