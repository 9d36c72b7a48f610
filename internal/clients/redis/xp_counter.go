package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/feedquest-backend/internal/logger"
)

// XPCounter is the increment-only experience counter. It mirrors each
// actor's total XP independently of the relational rows, so a lost update in
// the store never silently loses experience.
type XPCounter interface {
	IncrBy(ctx context.Context, did string, delta int64) (int64, error)
	Get(ctx context.Context, did string) (int64, bool, error)
	Set(ctx context.Context, did string, value int64) error
	Close() error
}

type xpCounter struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewXPCounter(log *logger.Logger) (XPCounter, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(os.Getenv("REDIS_XP_PREFIX"))
	if prefix == "" {
		prefix = "feedquest:xp"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &xpCounter{
		log:    log.With("service", "RedisXPCounter"),
		rdb:    rdb,
		prefix: prefix,
	}, nil
}

func (c *xpCounter) key(did string) string {
	return c.prefix + ":" + did
}

func (c *xpCounter) IncrBy(ctx context.Context, did string, delta int64) (int64, error) {
	if c == nil || c.rdb == nil {
		return 0, fmt.Errorf("xp counter not initialized")
	}
	return c.rdb.IncrBy(ctx, c.key(did), delta).Result()
}

func (c *xpCounter) Get(ctx context.Context, did string) (int64, bool, error) {
	if c == nil || c.rdb == nil {
		return 0, false, fmt.Errorf("xp counter not initialized")
	}
	val, err := c.rdb.Get(ctx, c.key(did)).Int64()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

func (c *xpCounter) Set(ctx context.Context, did string, value int64) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("xp counter not initialized")
	}
	return c.rdb.Set(ctx, c.key(did), value, 0).Err()
}

func (c *xpCounter) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
