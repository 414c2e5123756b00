package cookiejar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexora/nexora-analytics/browser"
)

const (
	defaultRedisPrefix  = "nexora:jar:"
	defaultRedisTimeout = 5 * time.Second
)

// RedisConfig configures a Redis-backed jar.
type RedisConfig struct {
	// Address is the Redis server address (e.g. "localhost:6379").
	Address  string
	Password string
	Database int

	// Prefix is prepended to every key.
	Prefix  string
	Timeout time.Duration
}

// DialRedis connects to Redis and verifies the connection.
func DialRedis(cfg RedisConfig) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisJar is a browser.CookieJar storing one profile in Redis. Persistent
// cookies expire through key TTLs; session cookies are indexed in a set so
// EndSession can drop them.
type RedisJar struct {
	client  redis.Cmdable
	profile string
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

func NewRedisJar(client redis.Cmdable, profile string, cfg RedisConfig, now func() time.Time) *RedisJar {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultRedisPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRedisTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &RedisJar{client: client, profile: profile, prefix: cfg.Prefix, timeout: cfg.Timeout, now: now}
}

func (j *RedisJar) key(name string) string {
	return j.prefix + j.profile + ":" + name
}

func (j *RedisJar) sessionSetKey() string {
	return j.prefix + j.profile + ":session"
}

type storedCookie struct {
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path"`
	SameSite string `json:"sameSite,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
}

func (j *RedisJar) Get(name string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	raw, err := j.client.Get(ctx, j.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cookie %s: %w", name, err)
	}
	var sc storedCookie
	if err := json.Unmarshal(raw, &sc); err != nil {
		return "", false, fmt.Errorf("failed to decode cookie %s: %w", name, err)
	}
	return sc.Value, true, nil
}

func (j *RedisJar) Set(c browser.Cookie) error {
	if err := ValidateCookie(c); err != nil {
		return fmt.Errorf("invalid cookie: %w", err)
	}
	if c.ExpiredAt(j.now()) {
		return j.Delete(c.Name)
	}
	path := c.Path
	if path == "" {
		path = "/"
	}
	data, err := json.Marshal(storedCookie{Value: c.Value, Domain: c.Domain, Path: path, SameSite: c.SameSite, Secure: c.Secure})
	if err != nil {
		return fmt.Errorf("failed to encode cookie %s: %w", c.Name, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	pipe := j.client.TxPipeline()
	if c.Session() {
		pipe.Set(ctx, j.key(c.Name), data, 0)
		pipe.SAdd(ctx, j.sessionSetKey(), c.Name)
	} else {
		pipe.Set(ctx, j.key(c.Name), data, c.Expires.Sub(j.now()))
		pipe.SRem(ctx, j.sessionSetKey(), c.Name)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write cookie %s: %w", c.Name, err)
	}
	return nil
}

func (j *RedisJar) Delete(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	pipe := j.client.TxPipeline()
	pipe.Del(ctx, j.key(name))
	pipe.SRem(ctx, j.sessionSetKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete cookie %s: %w", name, err)
	}
	return nil
}

func (j *RedisJar) EndSession() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	names, err := j.client.SMembers(ctx, j.sessionSetKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to list session cookies: %w", err)
	}
	keys := make([]string, 0, len(names)+1)
	for _, name := range names {
		keys = append(keys, j.key(name))
	}
	keys = append(keys, j.sessionSetKey())
	if err := j.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}
