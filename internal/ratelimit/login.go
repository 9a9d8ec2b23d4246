package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/lokera/lokera/internal/observability/logger"
	"github.com/lokera/lokera/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyLoginIP    = "login:ip:"
	keyLoginEmail = "login:email:"

	// Per-IP: sustained one attempt per 2s with room for a small burst.
	loginIPRate  = 0.5
	loginIPBurst = 10
	// Per-email: slower, so a distributed guessing run against one
	// account still starves quickly.
	loginEmailRate  = 0.2
	loginEmailBurst = 5
)

// LoginParams collects the limiter's dependencies.
type LoginParams struct {
	fx.In

	Log     *zap.Logger
	Bucket  *TokenBucket     `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

// LoginLimiter throttles sign-in attempts per client IP and per target
// email. Without redis it is disabled and allows everything.
type LoginLimiter struct {
	log     *zap.Logger
	bucket  *TokenBucket
	metrics *metrics.Metrics
}

func NewLoginLimiter(p LoginParams) *LoginLimiter {
	log := p.Log.Named("ratelimit.login")
	if p.Bucket == nil {
		log.Warn("redis not configured, sign-in rate limiting disabled")
	}
	return &LoginLimiter{log: log, bucket: p.Bucket, metrics: p.Metrics}
}

// Allow reports whether a sign-in attempt may proceed. A redis failure
// allows the attempt; the password check still gates access.
func (l *LoginLimiter) Allow(ctx context.Context, ip, email string) (bool, time.Duration) {
	if l == nil || l.bucket == nil {
		return true, 0
	}

	if ip != "" {
		res, err := l.bucket.Allow(ctx, keyLoginIP+ip, loginIPRate, loginIPBurst)
		if err != nil {
			logger.WithContext(ctx, l.log).Warn("rate limit check failed", zap.Error(err))
			return true, 0
		}
		if !res.Allowed {
			l.record(ctx, false)
			return false, res.RetryAfter
		}
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		res, err := l.bucket.Allow(ctx, keyLoginEmail+email, loginEmailRate, loginEmailBurst)
		if err != nil {
			logger.WithContext(ctx, l.log).Warn("rate limit check failed", zap.Error(err))
			return true, 0
		}
		if !res.Allowed {
			l.record(ctx, false)
			return false, res.RetryAfter
		}
	}

	l.record(ctx, true)
	return true, 0
}

func (l *LoginLimiter) record(ctx context.Context, allowed bool) {
	l.metrics.RecordRateLimit(ctx, allowed)
}
