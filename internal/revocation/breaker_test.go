package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("connection refused")

func newTestBreaker(maxFailures int, cooldown time.Duration) (*breaker, *time.Time) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	b := newBreaker(maxFailures, cooldown)
	b.now = func() time.Time { return now }
	return b, &now
}

func fail() error    { return errBackend }
func succeed() error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.do(fail), errBackend)
	}
	assert.Equal(t, stateClosed, b.State())

	assert.ErrorIs(t, b.do(fail), errBackend)
	assert.Equal(t, stateOpen, b.State())

	called := false
	err := b.do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)

	assert.Error(t, b.do(fail))
	assert.NoError(t, b.do(succeed))
	assert.Error(t, b.do(fail))

	assert.Equal(t, stateClosed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)

	require.Error(t, b.do(fail))
	require.Equal(t, stateOpen, b.State())

	*now = now.Add(59 * time.Second)
	assert.ErrorIs(t, b.do(succeed), ErrUnavailable)

	*now = now.Add(time.Second)
	assert.ErrorIs(t, b.do(fail), errBackend)
	assert.Equal(t, stateOpen, b.State(), "failed probe reopens")

	*now = now.Add(time.Minute)
	assert.NoError(t, b.do(succeed))
	assert.Equal(t, stateClosed, b.State())
}

func TestBreaker_SingleProbeInFlight(t *testing.T) {
	b, now := newTestBreaker(1, time.Second)

	require.Error(t, b.do(fail))
	*now = now.Add(time.Second)

	err := b.do(func() error {
		assert.Equal(t, stateHalfOpen, b.State())
		assert.ErrorIs(t, b.do(succeed), ErrUnavailable)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, stateClosed, b.State())
}

func TestBreaker_IgnoresCallerCancellation(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)

	err := b.do(func() error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, stateClosed, b.State())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", stateClosed.String())
	assert.Equal(t, "open", stateOpen.String())
	assert.Equal(t, "half-open", stateHalfOpen.String())
}
