package worker

import (
	"math/rand/v2"
	"time"

	"agrirent/internal/config"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 2 * time.Second
	defaultMaxDelay    = time.Minute
)

// RetryPolicy schedules the next ledger sync attempt. Delays double from
// BaseDelay up to MaxDelay, then Jitter trims a random share of each delay
// so tasks that failed together do not retry together.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the largest fraction of a delay that may be cut, in [0, 1].
	Jitter float64

	random func() float64
}

// RetryPolicyFromConfig reads google.sync_retry. Zero fields keep the defaults.
func RetryPolicyFromConfig(cfg config.SyncRetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   time.Duration(cfg.BaseDelaySeconds) * time.Second,
		MaxDelay:    time.Duration(cfg.MaxDelaySeconds) * time.Second,
		Jitter:      cfg.Jitter,
	}.withDefaults()
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	p.Jitter = min(max(p.Jitter, 0), 1)
	if p.random == nil {
		p.random = rand.Float64
	}
	return p
}

// Exhausted reports whether a task that failed its attempt-th try is done retrying.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}

// Backoff is the wait before retry number attempt, counting from 1.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	attempt = max(attempt, 1)
	d := p.BaseDelay
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	d = min(d, p.MaxDelay)
	if p.Jitter > 0 && p.random != nil {
		d -= time.Duration(p.Jitter * p.random() * float64(d))
	}
	return d
}
