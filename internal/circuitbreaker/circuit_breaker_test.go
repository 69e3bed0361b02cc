package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	cb := NewCircuitBreaker(&Config{
		Name:                "test",
		MinCalls:            4,
		FailureThreshold:    0.5,
		ConsecutiveFailures: 3,
		Cooldown:            time.Minute,
		HalfOpenTrials:      1,
	})
	cb.now = clock.Now
	return cb
}

func TestCircuitBreaker_OpensOnConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := newTestBreaker(clock)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}

func TestCircuitBreaker_OpensOnFailureRate(t *testing.T) {
	cb := newTestBreaker(&fakeClock{t: time.Unix(0, 0)})

	cb.Record(false)
	cb.Record(true)
	cb.Record(false)
	assert.Equal(t, StateClosed, cb.State())

	cb.Record(true)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		cb.Record(true)
	}
	require.Equal(t, StateOpen, cb.State())

	clock.t = clock.t.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrTooManyRequests)

	cb.Record(false)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		cb.Record(true)
	}

	clock.t = clock.t.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	cb.Record(true)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestManager_GetOrCreate(t *testing.T) {
	m := NewManager()
	a := m.GetOrCreate("agent")
	assert.Same(t, a, m.GetOrCreate("agent"))
	assert.Equal(t, map[string]State{"agent": StateClosed}, m.States())
}
