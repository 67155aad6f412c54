package syncdb

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds how often an external-mode operation restarts after
// the external document changed under a writing transaction.
type RetryPolicy struct {
	// MaxConflictRetries caps the number of attempts. Zero or less retries
	// until the document stops changing.
	MaxConflictRetries int
	BaseDelay          time.Duration
	MaxDelay           time.Duration
	// JitterPercent randomizes each delay by up to this share.
	JitterPercent uint64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxConflictRetries: 5,
		BaseDelay:          100 * time.Millisecond,
		MaxDelay:           2 * time.Second,
		JitterPercent:      50,
	}
}

func (p RetryPolicy) backoff() retry.Backoff {
	var b retry.Backoff
	if p.BaseDelay > 0 {
		b = retry.NewExponential(p.BaseDelay)
		if p.JitterPercent > 0 {
			b = retry.WithJitterPercent(p.JitterPercent, b)
		}
		if p.MaxDelay > 0 {
			b = retry.WithCappedDuration(p.MaxDelay, b)
		}
	} else {
		b = retry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	}

	if p.MaxConflictRetries > 0 {
		b = retry.WithMaxRetries(uint64(p.MaxConflictRetries-1), b)
	}
	return b
}
