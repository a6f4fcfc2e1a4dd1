package framed

import (
	"time"
)

type (
	// Retry decides how long the accept loop backs off after a temporary
	// accept error.
	Retry interface {
		Backoff(retry uint64) time.Duration
	}

	// ExponentialRetry implements exponential backoff without jitter.
	ExponentialRetry struct {
		InitialDelay time.Duration
		MaxDelay     time.Duration
	}
)

var (
	// DefaultRetry implements the same behaviour as net/http's Server
	// accept retry.
	DefaultRetry Retry = ExponentialRetry{
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     1 * time.Second,
	}
)

func (er ExponentialRetry) Backoff(retry uint64) time.Duration {
	d := er.InitialDelay * (1 << retry)
	if d > er.MaxDelay {
		d = er.MaxDelay
	}
	return d
}
