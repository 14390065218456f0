package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"outreach/config"
	"outreach/utils"
)

const (
	rateLimitWindow = 15 * time.Minute
	rateLimitPrefix = "ratelimit:"
	redisOpTimeout  = 2 * time.Second
)

// APIRateLimiter caps requests per client IP on the /api group
func APIRateLimiter() fiber.Handler {
	cfg := limiter.Config{
		Max:          config.AppConfig.RateLimitMax,
		Expiration:   rateLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: rateLimitReached,
	}
	if config.AppConfig.Redis.Enabled {
		cfg.Storage = NewRedisStorage(config.AppConfig.Redis)
	}
	return limiter.New(cfg)
}

func rateLimitReached(c *fiber.Ctx) error {
	utils.LogEvent("rate_limit_hit", map[string]interface{}{
		"endpoint":   c.Path(),
		"ip":         c.IP(),
		"user_agent": c.Get(fiber.HeaderUserAgent),
	})
	c.Set(fiber.HeaderRetryAfter, "900")
	return utils.ErrorResponse(c, fiber.StatusTooManyRequests, "Too many requests, please try again later",
		fiber.Map{"retry_after": rateLimitWindow.String()})
}

// RedisStorage backs the limiter with Redis so counters survive restarts
// and are shared between instances. Keys live under rateLimitPrefix.
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(cfg config.RedisConfig) *RedisStorage {
	return &RedisStorage{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

func (r *RedisStorage) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

// Get returns nil, nil for a missing key as fiber.Storage requires
func (r *RedisStorage) Get(key string) ([]byte, error) {
	ctx, cancel := r.ctx()
	defer cancel()
	val, err := r.client.Get(ctx, rateLimitPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (r *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := r.ctx()
	defer cancel()
	return r.client.Set(ctx, rateLimitPrefix+key, val, exp).Err()
}

func (r *RedisStorage) Delete(key string) error {
	ctx, cancel := r.ctx()
	defer cancel()
	return r.client.Del(ctx, rateLimitPrefix+key).Err()
}

// Reset drops only the limiter's own keys; the database may be shared
func (r *RedisStorage) Reset() error {
	ctx := context.Background()
	iter := r.client.Scan(ctx, 0, rateLimitPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
