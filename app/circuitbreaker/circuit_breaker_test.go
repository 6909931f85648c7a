package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
Circuit breaker test cases:
1) closed breaker passes calls through
2) breaker opens after maxFailures consecutive failures
3) open breaker fails fast with ErrOpen
4) after resetTimeout the breaker half-opens and a success closes it
5) a failure in half-open reopens the breaker
6) success resets the failure count
*/

var errBoom = errors.New("boom")

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	cb := New(3, time.Second, 1)

	called := false
	err := cb.Call(context.Background(), func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := New(3, time.Second, 1)

	for i := 0; i < 3; i++ {
		err := cb.Call(context.Background(), func() error { return errBoom })
		assert.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Call(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreaker_HalfOpenThenCloses(t *testing.T) {
	cb := New(1, 10*time.Millisecond, 1)

	_ = cb.Call(context.Background(), func() error { return errBoom })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	err := cb.Call(context.Background(), func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(1, 10*time.Millisecond, 1)

	_ = cb.Call(context.Background(), func() error { return errBoom })
	time.Sleep(20 * time.Millisecond)

	err := cb.Call(context.Background(), func() error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	cb := New(3, time.Second, 1)

	_ = cb.Call(context.Background(), func() error { return errBoom })
	_ = cb.Call(context.Background(), func() error { return errBoom })
	require.NoError(t, cb.Call(context.Background(), func() error { return nil }))

	// Two more failures should not open (count was reset)
	_ = cb.Call(context.Background(), func() error { return errBoom })
	_ = cb.Call(context.Background(), func() error { return errBoom })
	assert.Equal(t, StateClosed, cb.State())
}
