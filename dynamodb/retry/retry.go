// Package retry retries DynamoDB operations that failed with a transient
// service error, using capped attempts and exponential backoff with full
// jitter.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 50 * time.Millisecond
)

// Config bounds how hard a Handler retries.
type Config struct {
	// MaxAttempts counts the first call, so 1 disables retries.
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultConfig returns 3 attempts with a 50ms base delay.
func DefaultConfig() Config {
	return Config{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	return c
}

var retryableCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
	"ThrottlingException":                    true,
}

// IsRetryable reports whether err is a throttling or transient server error.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && retryableCodes[apiErr.ErrorCode()] {
		return true
	}
	// Satisfied by smithyhttp.ResponseError and the SDK's awshttp.ResponseError.
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusInternalServerError, http.StatusServiceUnavailable:
			return true
		}
	}
	return false
}

// Handler runs operations under a retry policy. The zero value is not
// usable; build one with New.
type Handler struct {
	cfg    Config
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

type Option func(*Handler)

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// withSleep replaces the wait between attempts; tests use it to avoid real delays.
func withSleep(fn func(context.Context, time.Duration) error) Option {
	return func(h *Handler) { h.sleep = fn }
}

func New(cfg Config, opts ...Option) *Handler {
	h := &Handler{
		cfg:    cfg.withDefaults(),
		logger: zap.NewNop(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Config returns the effective configuration.
func (h *Handler) Config() Config { return h.cfg }

// Do calls op until it succeeds, fails with a non-retryable error, or the
// attempts run out. The last error is returned as is.
func (h *Handler) Do(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= h.cfg.MaxAttempts; attempt++ {
		err = op(ctx)
		if err == nil || !IsRetryable(err) || attempt == h.cfg.MaxAttempts {
			return err
		}
		delay := Backoff(h.cfg.BaseDelay, attempt)
		h.logger.Warn("retrying dynamodb operation",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", h.cfg.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))
		if serr := h.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return err
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, h *Handler, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := h.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Backoff is the wait after the n-th failed attempt (n starts at 1):
// base*2^(n-1) plus a jitter drawn uniformly from [0, base*2^(n-1)).
func Backoff(base time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	if n > 30 {
		n = 30
	}
	d := base << (n - 1)
	if d <= 0 {
		return 0
	}
	return d + time.Duration(rand.Int63n(int64(d)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
