package icons

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBacking shares encoded icons between processes.
type RedisBacking struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBacking creates a backing store; ttl <= 0 keeps entries forever.
func NewRedisBacking(client *redis.Client, ttl time.Duration) *RedisBacking {
	return &RedisBacking{client: client, ttl: ttl}
}

func iconKey(code string) string {
	return fmt.Sprintf("weather_icon:%s", code)
}

// Get returns the bitmap for code; a missing key is not an error.
func (b *RedisBacking) Get(ctx context.Context, code string) (string, bool, error) {
	data, err := b.client.Get(ctx, iconKey(code)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get icon from Redis: %w", err)
	}
	return data, true, nil
}

// Set stores the bitmap for code.
func (b *RedisBacking) Set(ctx context.Context, code, bitmap string) error {
	if err := b.client.Set(ctx, iconKey(code), bitmap, b.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set icon in Redis: %w", err)
	}
	return nil
}
