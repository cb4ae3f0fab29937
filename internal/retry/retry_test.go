package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/maheshrc27/contentflow/internal/gateway"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassTransient, Classify(gateway.Transient(503, "down")))
	assert.Equal(t, ClassPermanent, Classify(gateway.Permanent(400, "bad payload")))
	assert.Equal(t, ClassPermanent, Classify(fmt.Errorf("publish: %w", gateway.Permanent(401, "revoked"))))
	assert.Equal(t, ClassTransient, Classify(context.DeadlineExceeded))
	assert.Equal(t, ClassTransient, Classify(errors.New("something odd")))
}

func TestShouldRetry_BacksOffExponentially(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: time.Minute, MaxAttempts: 10}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		d := p.ShouldRetry(&models.Post{AttemptCount: i}, gateway.Transient(503, "down"))
		assert.True(t, d.Retry)
		assert.Equal(t, w, d.After, "attempt %d", i+1)
	}
}

func TestShouldRetry_DelayIsCapped(t *testing.T) {
	p := Policy{BaseDelay: time.Minute, MaxDelay: 5 * time.Minute, MaxAttempts: 100}

	d := p.ShouldRetry(&models.Post{AttemptCount: 40}, errors.New("flaky"))
	assert.True(t, d.Retry)
	assert.Equal(t, 5*time.Minute, d.After)
}

func TestShouldRetry_ExhaustsAtMaxAttempts(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: time.Minute, MaxAttempts: 3}

	assert.True(t, p.ShouldRetry(&models.Post{AttemptCount: 1}, gateway.Transient(0, "timeout")).Retry)

	d := p.ShouldRetry(&models.Post{AttemptCount: 2}, gateway.Transient(0, "timeout"))
	assert.False(t, d.Retry)
	assert.Contains(t, d.Reason, "retries exhausted")
}

func TestShouldRetry_PermanentNeverRetries(t *testing.T) {
	d := DefaultPolicy().ShouldRetry(&models.Post{}, gateway.Permanent(400, "content rejected"))
	assert.False(t, d.Retry)
	assert.Contains(t, d.Reason, "content rejected")
}

func TestPolicy_ZeroValueUsesDefaults(t *testing.T) {
	var p Policy
	assert.Equal(t, DefaultBaseDelay, p.Backoff(1))
	assert.Equal(t, DefaultMaxDelay, p.Backoff(50))
}
