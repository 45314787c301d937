package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ClientStorage is a string key/value store scoped to one namespace, used
// as the durable side of the report generation controller. Values never
// expire.
type ClientStorage struct {
	client redis.UniversalClient
	prefix string
}

func (s *Store) ClientStorage(namespace string) *ClientStorage {
	return &ClientStorage{client: s.client, prefix: "client:" + namespace + ":"}
}

func (c *ClientStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (c *ClientStorage) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, c.prefix+key, value, 0).Err()
}

func (c *ClientStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return c.client.Del(ctx, full...).Err()
}

// Bus carries raw payloads over a redis pub/sub channel.
type Bus struct {
	client  redis.UniversalClient
	channel string
}

func (s *Store) Bus(channel string) *Bus {
	return &Bus{client: s.client, channel: channel}
}

func (b *Bus) Publish(ctx context.Context, payload []byte) error {
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Subscribe starts receiving payloads. The returned channel is closed after
// cancel is called or ctx ends.
func (b *Bus) Subscribe(ctx context.Context) (<-chan []byte, func(), error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan []byte, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(m.Payload):
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
	return out, cancel, nil
}
