package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/campaign-manager/internal/send"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func progressKey(campaignID int64) string {
	return fmt.Sprintf("campaign:%d:progress", campaignID)
}

func (c *RedisCache) StoreProgress(ctx context.Context, campaignID int64, p send.Progress) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, progressKey(campaignID), b, c.ttl).Err()
}

func (c *RedisCache) Progress(ctx context.Context, campaignID int64) (send.Progress, bool, error) {
	raw, err := c.rdb.Get(ctx, progressKey(campaignID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return send.Progress{}, false, nil
	}
	if err != nil {
		return send.Progress{}, false, err
	}

	var p send.Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return send.Progress{}, false, err
	}
	return p, true, nil
}

type sentValue struct {
	SentAt time.Time `json:"sentAt"`
}

func (c *RedisCache) StoreSent(ctx context.Context, messageID int64, sentAt time.Time) error {
	val := sentValue{SentAt: sentAt.UTC()}
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("msg:%d", messageID), b, c.ttl).Err()
}
