package redisad

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window counter shared by every API instance: one INCR
// per write on a key that expires with its window.
type Limiter struct {
	c      *redis.Client
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewClient(addr, pass string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

func NewLimiter(c *redis.Client, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Second
	}
	return &Limiter{c: c, limit: int64(limit), window: window, prefix: "bookshelf:writes:", now: time.Now}
}

func (l *Limiter) key(subject string) string {
	bucket := l.now().UnixNano() / int64(l.window)
	return l.prefix + subject + ":" + strconv.FormatInt(bucket, 10)
}

func (l *Limiter) Allow(ctx context.Context, subject string) (bool, error) {
	key := l.key(subject)
	var incr *redis.IntCmd
	_, err := l.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, l.window+time.Second)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis limiter: %w", err)
	}
	return incr.Val() <= l.limit, nil
}

// Ping reports whether the backend is reachable.
func (l *Limiter) Ping(ctx context.Context) error {
	return l.c.Ping(ctx).Err()
}
