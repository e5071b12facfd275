package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "grading:report:"

// Reports caches serialized grading reports by submission id.
type Reports struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewReports(rdb *redis.Client, ttl time.Duration) *Reports {
	return &Reports{rdb: rdb, ttl: ttl}
}

// Get returns the cached report, or ok=false on a miss.
func (c *Reports) Get(ctx context.Context, id string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *Reports) Set(ctx context.Context, id string, report []byte) error {
	return c.rdb.Set(ctx, keyPrefix+id, report, c.ttl).Err()
}

func (c *Reports) Delete(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, keyPrefix+id).Err()
}
