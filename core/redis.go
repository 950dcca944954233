package core

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

const loginAttemptKeyPrefix = "login_attempts:"

// LoginThrottle counts failed logins per username in a fixed window so that
// password guessing has to wait out the window instead of hammering bcrypt.
// State lives in redis; the process keeps nothing in memory, so the count is
// shared across replicas.
type LoginThrottle struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewLoginThrottle(client *redis.Client, limit int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{client: client, limit: limit, window: window}
}

// Blocked reports whether username has exhausted its failure budget for the
// current window.
func (t *LoginThrottle) Blocked(ctx context.Context, username string) (bool, error) {
	n, err := t.client.Get(ctx, loginAttemptKeyPrefix+username).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return n >= t.limit, nil
}

// RecordFailure bumps the failure counter. The window expiry is set on the
// first failure only, making the window fixed rather than sliding.
func (t *LoginThrottle) RecordFailure(ctx context.Context, username string) error {
	key := loginAttemptKeyPrefix + username
	n, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return t.client.Expire(ctx, key, t.window).Err()
	}
	return nil
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, username string) error {
	return t.client.Del(ctx, loginAttemptKeyPrefix+username).Err()
}
