// Package retry decides whether a failed publish attempt is tried again.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/maheshrc27/contentflow/internal/gateway"
	"github.com/maheshrc27/contentflow/internal/models"
)

const (
	DefaultBaseDelay   = 30 * time.Second
	DefaultMaxDelay    = 30 * time.Minute
	DefaultMaxAttempts = 5
)

type Class int

const (
	ClassTransient Class = iota
	ClassPermanent
)

type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

type Decision struct {
	Retry  bool
	After  time.Duration
	Reason string
}

func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Classify sorts a gateway failure. Anything the provider did not mark as
// permanent is treated as transient.
func Classify(err error) Class {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		if gwErr.Transient {
			return ClassTransient
		}
		return ClassPermanent
	}
	if errors.Is(err, gateway.ErrPermanent) {
		return ClassPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	return ClassTransient
}

// ShouldRetry decides the outcome of the attempt that just failed with err.
// The attempt being decided is attempt_count+1.
func (p Policy) ShouldRetry(post *models.Post, err error) Decision {
	p = p.withDefaults()
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}

	if Classify(err) == ClassPermanent {
		return Decision{Reason: reason}
	}

	attempts := post.AttemptCount + 1
	if attempts >= p.MaxAttempts {
		return Decision{Reason: fmt.Sprintf("retries exhausted after %d attempts: %s", attempts, reason)}
	}
	return Decision{Retry: true, After: p.Backoff(attempts), Reason: reason}
}

// Backoff returns the delay before the attempt following attempt n (1-based).
func (p Policy) Backoff(n int) time.Duration {
	p = p.withDefaults()
	if n < 1 {
		n = 1
	}
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p Policy) withDefaults() Policy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	return p
}
