package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ClientOptions configures the shared Redis connection.
type ClientOptions struct {
	// URL is a redis:// or rediss:// URL. It wins over Addr when both are set.
	URL        string
	Addr       string
	MaxRetries int
	Timeout    time.Duration
}

// Enabled reports whether a Redis endpoint was configured at all.
func (o ClientOptions) Enabled() bool {
	return o.URL != "" || o.Addr != ""
}

// NewRedisClient builds a client with a small retry budget and per-call
// timeouts so a slow cache degrades to the store path instead of stalling.
func NewRedisClient(o ClientOptions) (*redis.Client, error) {
	var opts *redis.Options
	if o.URL != "" {
		parsed, err := redis.ParseURL(o.URL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: o.Addr}
	}
	opts.MaxRetries = o.MaxRetries
	if o.Timeout > 0 {
		opts.DialTimeout = o.Timeout
		opts.ReadTimeout = o.Timeout
		opts.WriteTimeout = o.Timeout
	}
	return redis.NewClient(opts), nil
}

// Redis is the go-redis backed Cache.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (c *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &Error{Op: "get", Key: key, Err: err}
	}
	return val, true, nil
}

func (c *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.SetEx(ctx, key, value, ttl).Err(); err != nil {
		return &Error{Op: "set", Key: key, Err: err}
	}
	return nil
}

var _ Cache = (*Redis)(nil)
