package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/feeledger/internal/config"
)

const keyPaymentWrite = "payment:write:%s"

var ErrRateLimited = errors.New("rate_limited")

// Allower decides whether one more payment write from a client may proceed.
type Allower interface {
	AllowPaymentWrite(ctx context.Context, client string) (*Result, error)
}

type PaymentWriteLimiter struct {
	bucket *TokenBucket
	client *redis.Client
	rate   float64
	burst  int
}

// NewPaymentWriteLimiter returns nil when rate limiting is disabled.
func NewPaymentWriteLimiter(cfg config.Config) (*PaymentWriteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.PaymentWriteRate <= 0 || limitCfg.PaymentWriteBurst <= 0 {
		return nil, errors.New("payment write rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: limitCfg.RedisPassword,
		DB:       limitCfg.RedisDB,
	})
	return &PaymentWriteLimiter{
		bucket: NewTokenBucket(client),
		client: client,
		rate:   limitCfg.PaymentWriteRate,
		burst:  limitCfg.PaymentWriteBurst,
	}, nil
}

func (l *PaymentWriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *PaymentWriteLimiter) AllowPaymentWrite(ctx context.Context, client string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPaymentWrite, strings.TrimSpace(client)), l.rate, l.burst)
}

func (l *PaymentWriteLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
