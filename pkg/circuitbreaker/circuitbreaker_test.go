package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errDown = errors.New("redis down")
	errMiss = errors.New("miss")
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	var transitions []string
	cb := New("cache",
		WithFailureThreshold(2),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.True(t, cb.IsOpen())

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejected(err))
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)}
	cb := New("cache",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithTimeout(10*time.Second),
		WithMaxHalfOpenRequests(2),
		WithNow(clock.now),
	)

	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	clock.advance(5 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)

	clock.advance(5 * time.Second)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)}
	cb := New("cache", WithFailureThreshold(1), WithTimeout(time.Second), WithNow(clock.now))

	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	clock.advance(time.Second)
	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.True(t, cb.IsOpen())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)
}

func TestBreaker_IgnoresNonFailures(t *testing.T) {
	ctx := context.Background()
	cb := CacheBreaker(func(err error) bool { return !errors.Is(err, errMiss) }, nil)

	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, func(context.Context) error { return errMiss }), errMiss)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 10, cb.Counts().TotalSuccesses)
	assert.Equal(t, "report-cache", cb.Name())
}

func TestBreaker_FallbackAndReset(t *testing.T) {
	ctx := context.Background()
	cb := New("cache", WithFailureThreshold(1))
	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)

	err := cb.ExecuteWithFallback(ctx, ok, func(error) error { return errMiss })
	assert.ErrorIs(t, err, errMiss)

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Execute(ctx, ok))
}
