package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// EndpointClass groups endpoints that share one budget, so a flood on one
// class cannot starve another.
type EndpointClass string

const (
	ClassRead     EndpointClass = "read"
	ClassSubmit   EndpointClass = "submit"
	ClassFlag     EndpointClass = "flag"
	ClassRegister EndpointClass = "register"
	ClassWrite    EndpointClass = "write"
	ClassModerate EndpointClass = "moderate"
)

var (
	ErrRateLimited          = errors.New("rate limited")
	ErrLimiterUnavailable   = errors.New("rate limiter unavailable")
	ErrUnknownEndpointClass = errors.New("unknown endpoint class")
)

// DeniedError is returned for every denial. It always matches ErrRateLimited
// and additionally matches Err when the denial was caused by a failure.
type DeniedError struct {
	Class      EndpointClass
	RetryAfter time.Duration
	Err        error
}

func (e *DeniedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrRateLimited, e.Class, e.Err)
	}
	return fmt.Sprintf("%s: %s: retry after %s", ErrRateLimited, e.Class, e.RetryAfter)
}

func (e *DeniedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRateLimited, e.Err}
	}
	return []error{ErrRateLimited}
}

type Policy struct {
	Limit  int64
	Window time.Duration
}

func (p Policy) valid() bool {
	return p.Limit > 0 && p.Window > 0
}

func DefaultPolicies() map[EndpointClass]Policy {
	return map[EndpointClass]Policy{
		ClassRead:     {Limit: 300, Window: time.Minute},
		ClassSubmit:   {Limit: 10, Window: time.Minute},
		ClassFlag:     {Limit: 5, Window: time.Minute},
		ClassRegister: {Limit: 5, Window: time.Minute},
		ClassWrite:    {Limit: 60, Window: time.Minute},
		ClassModerate: {Limit: 120, Window: time.Minute},
	}
}

type Decision struct {
	Remaining int64
	ResetAt   time.Time
}

// Limiter counts hits in fixed windows. Hit increments the counter of the
// window containing now and returns the new count and the window start.
type Limiter interface {
	Hit(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type Controller struct {
	limiter  Limiter
	policies map[EndpointClass]Policy
	clock    Clock
	logger   *slog.Logger
}

// NewController merges overrides onto the default policies. Invalid
// overrides are ignored.
func NewController(limiter Limiter, overrides map[EndpointClass]Policy, clock Clock, logger *slog.Logger) *Controller {
	policies := DefaultPolicies()
	for class, policy := range overrides {
		if policy.valid() {
			policies[class] = policy
		}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		limiter:  limiter,
		policies: policies,
		clock:    clock,
		logger:   logger,
	}
}

func (c *Controller) Policy(class EndpointClass) (Policy, bool) {
	policy, ok := c.policies[class]
	return policy, ok
}

// Allow charges one hit to (subject, class). Any failure to count denies the
// request.
func (c *Controller) Allow(ctx context.Context, subject string, class EndpointClass) (Decision, error) {
	policy, ok := c.policies[class]
	if !ok || !policy.valid() {
		c.logger.Error("admission class not configured",
			"event", "admission_unknown_class",
			"module", "internal/platform/admission",
			"layer", "platform",
			"class", string(class),
		)
		return Decision{}, &DeniedError{Class: class, RetryAfter: time.Second, Err: ErrUnknownEndpointClass}
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "unknown"
	}

	now := c.clock.Now().UTC()
	count, windowStart, err := c.limiter.Hit(ctx, string(class)+":"+subject, policy.Window, now)
	if err != nil {
		c.logger.Error("admission limiter failed, denying",
			"event", "admission_limiter_failed",
			"module", "internal/platform/admission",
			"layer", "platform",
			"class", string(class),
			"error", err.Error(),
		)
		return Decision{}, &DeniedError{
			Class:      class,
			RetryAfter: time.Second,
			Err:        fmt.Errorf("%w: %v", ErrLimiterUnavailable, err),
		}
	}

	resetAt := windowStart.Add(policy.Window)
	if count > policy.Limit {
		retryAfter := resetAt.Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Millisecond
		}
		c.logger.Warn("admission denied",
			"event", "admission_denied",
			"module", "internal/platform/admission",
			"layer", "platform",
			"class", string(class),
			"count", count,
			"limit", policy.Limit,
			"retry_after_ms", retryAfter.Milliseconds(),
		)
		return Decision{ResetAt: resetAt}, &DeniedError{Class: class, RetryAfter: retryAfter}
	}
	return Decision{Remaining: policy.Limit - count, ResetAt: resetAt}, nil
}
