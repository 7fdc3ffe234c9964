// Package ratelimit implements the cross-process request rate limiter
// (spec §4.C): two fixed windows (minute, hour) counted in Redis so the
// limit is shared by every API process, not just the one handling a given
// request.
//
// The Config/Service naming is grounded on the teacher's in-process
// engine/auth/ratelimit.Service — but that service counts with
// golang.org/x/time/rate token buckets held in process memory, which is
// the wrong mechanism here: a per-process limiter lets every replica of
// this service grant its own independent quota. This version keeps the
// teacher's naming only; it holds no in-process state and runs no
// background goroutine. The counters live in Redis as INCR'd integers with
// an expiry, matching the Redis key layout in spec §6.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wanderlyst/agentcore/engine/cache"
	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/pkg/logger"
)

// Config holds rate limiting configuration.
type Config struct {
	// RequestsPerMinute is Rm, the minute-bucket limit.
	RequestsPerMinute int
	// RequestsPerHour is Rh, the hour-bucket limit.
	RequestsPerHour int
}

// DefaultConfig returns the spec's documented defaults (30/min, 500/hour).
func DefaultConfig() *Config {
	return &Config{RequestsPerMinute: 30, RequestsPerHour: 500}
}

const (
	minuteWindowSeconds = 60
	hourWindowSeconds   = 3600
	// minuteKeyTTL/hourKeyTTL are 2x the window, the "safety margin" spec §4.C
	// calls for so a slow consumer doesn't see a counter vanish mid-window.
	minuteKeyTTL = 2 * minuteWindowSeconds * time.Second
	hourKeyTTL   = 2 * hourWindowSeconds * time.Second
)

// Result is returned by Check.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Service checks and increments the two-window limiter against Redis.
type Service struct {
	client cache.RedisInterface
	config *Config
}

// NewService constructs a Service. A nil config uses DefaultConfig.
func NewService(client cache.RedisInterface, config *Config) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{client: client, config: config}
}

// Identifier builds the spec's `user:<id>` / `ip:<ip>` identifier string.
func Identifier(userID, ip string) string {
	if userID != "" {
		return fmt.Sprintf("user:%s", userID)
	}
	return fmt.Sprintf("ip:%s", ip)
}

func minuteKey(id string, now time.Time) string {
	return fmt.Sprintf("ratelimit:minute:%s:%d", id, now.Unix()/minuteWindowSeconds)
}

func hourKey(id string, now time.Time) string {
	return fmt.Sprintf("ratelimit:hour:%s:%d", id, now.Unix()/hourWindowSeconds)
}

// Check reads both windows' counters and, if increment is true and the
// request is allowed, increments both: the minute counter first, then the
// hour counter, as two separate INCR calls. The two increments are not one
// transaction, so an error on the hour increment leaves the minute counter
// already incremented. A rejected request leaves both counters untouched.
func (s *Service) Check(ctx context.Context, id string, increment bool) (*Result, error) {
	now := time.Now()
	mKey := minuteKey(id, now)
	hKey := hourKey(id, now)

	minuteCount, err := s.getCount(ctx, mKey)
	if err != nil {
		return nil, core.NewKindError(core.KindDependency, err, core.CodeStoreFailure, nil)
	}
	if minuteCount >= s.config.RequestsPerMinute {
		retryAfter := time.Duration(minuteWindowSeconds-int(now.Unix())%minuteWindowSeconds) * time.Second
		return &Result{Allowed: false, RetryAfter: retryAfter}, nil
	}

	hourCount, err := s.getCount(ctx, hKey)
	if err != nil {
		return nil, core.NewKindError(core.KindDependency, err, core.CodeStoreFailure, nil)
	}
	if hourCount >= s.config.RequestsPerHour {
		remaining := hourWindowSeconds - int(now.Unix())%hourWindowSeconds
		return &Result{Allowed: false, RetryAfter: time.Duration(remaining) * time.Second}, nil
	}

	if increment {
		if err := s.incr(ctx, mKey, minuteKeyTTL); err != nil {
			return nil, core.NewKindError(core.KindDependency, err, core.CodeStoreFailure, nil)
		}
		if err := s.incr(ctx, hKey, hourKeyTTL); err != nil {
			return nil, core.NewKindError(core.KindDependency, err, core.CodeStoreFailure, nil)
		}
	}

	return &Result{Allowed: true}, nil
}

func (s *Service) getCount(ctx context.Context, key string) (int, error) {
	val, err := s.client.Get(ctx, key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return val, nil
}

// incr increments key via INCR and sets its TTL only on first increment
// (i.e., when the post-increment value is 1), matching spec §4.C step 4.
func (s *Service) incr(ctx context.Context, key string, ttl time.Duration) error {
	pipe := s.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return err
	}
	if incrCmd.Val() == 1 {
		if _, err := s.client.Expire(ctx, key, ttl).Result(); err != nil {
			return err
		}
	}
	return nil
}

// CheckRequest checks and increments the caller's counters and logs a
// warning when the request is rejected, mirroring the teacher's habit of a
// thin request-shaped wrapper atop the raw counter check.
func (s *Service) CheckRequest(ctx context.Context, userID, ip string) (*Result, error) {
	id := Identifier(userID, ip)
	result, err := s.Check(ctx, id, true)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	if !result.Allowed {
		log.Warn("rate limit exceeded", "identifier", id, "retry_after", result.RetryAfter)
	}
	return result, nil
}
