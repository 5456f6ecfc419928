package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// ContextCallbackSettled is set to true by a callback handler once the body
// has been applied or found already applied and committed.
const ContextCallbackSettled = "callback_settled"

// CallbackCache remembers callback bodies that were already settled.
type CallbackCache interface {
	Settled(ctx context.Context, key string) (bool, error)
	MarkSettled(ctx context.Context, key string) error
}

type redisCallbackCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisCallbackCache) Settled(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+":"+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *redisCallbackCache) MarkSettled(ctx context.Context, key string) error {
	return d.client.Set(ctx, d.prefix+":"+key, "1", d.ttl).Err()
}

type memoryCallbackCache struct {
	mu      sync.Mutex
	settled map[string]time.Time
	ttl     time.Duration
	nextGC  time.Time
}

func newMemoryCallbackCache(ttl time.Duration) *memoryCallbackCache {
	return &memoryCallbackCache{
		settled: make(map[string]time.Time),
		ttl:     ttl,
		nextGC:  time.Now().Add(ttl),
	}
}

func (d *memoryCallbackCache) Settled(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.settled[key]
	return ok && exp.After(time.Now()), nil
}

func (d *memoryCallbackCache) MarkSettled(_ context.Context, key string) error {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.settled[key] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for k, exp := range d.settled {
			if exp.Before(now) {
				delete(d.settled, k)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}
	return nil
}

// NewCallbackCache builds a Redis cache and falls back to in-memory on failure.
func NewCallbackCache(addr, pass string, db int, ttl time.Duration) (CallbackCache, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if addr == "" {
		return newMemoryCallbackCache(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return newMemoryCallbackCache(ttl), err
	}

	return &redisCallbackCache{
		client: client,
		prefix: "pay:callback",
		ttl:    ttl,
	}, nil
}

// CallbackKey identifies a callback body from one gateway.
func CallbackKey(gateway string, body []byte) string {
	sum := sha256.Sum256(body)
	return gateway + ":" + hex.EncodeToString(sum[:])
}

// CallbackReplayGuard answers a byte-identical repeat of an already settled
// callback with ack, without reaching the handler. Bodies are only
// remembered after the handler reports them settled, so a delivery that
// failed is always processed again.
func CallbackReplayGuard(cache CallbackCache, gateway string, ack echo.HandlerFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cache == nil {
				return next(c)
			}

			req := c.Request()
			if req.Body == nil {
				return next(c)
			}
			rawBody, err := io.ReadAll(req.Body)
			if err != nil {
				return next(c)
			}
			req.Body = io.NopCloser(bytes.NewBuffer(rawBody))
			if len(rawBody) == 0 {
				return next(c)
			}

			key := CallbackKey(gateway, rawBody)
			if settled, err := cache.Settled(req.Context(), key); err == nil && settled {
				return ack(c)
			}

			if err := next(c); err != nil {
				return err
			}
			if settled, _ := c.Get(ContextCallbackSettled).(bool); settled {
				_ = cache.MarkSettled(req.Context(), key)
			}
			return nil
		}
	}
}
