package phasez

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

func TestRaceNilPending(t *testing.T) {
	res := Race[int](context.Background(), clockz.RealClock, nil, time.Millisecond)

	assert.False(t, res.TimedOut)
	assert.Zero(t, res.Value)
	assert.NoError(t, res.Err)
}

func TestRacePassThrough(t *testing.T) {
	p := Go(func() (string, error) {
		time.Sleep(5 * time.Millisecond)
		return "value", nil
	})

	res := Race(context.Background(), clockz.RealClock, p, time.Second)

	assert.False(t, res.TimedOut)
	assert.Equal(t, "value", res.Value)
	assert.NoError(t, res.Err)
}

func TestRaceReturnsOperationError(t *testing.T) {
	p := Go(func() (int, error) {
		return 0, errBoom
	})

	res := Race(context.Background(), clockz.RealClock, p, time.Second)

	assert.False(t, res.TimedOut)
	assert.ErrorIs(t, res.Err, errBoom)
}

func TestRaceTimeoutDoesNotCancel(t *testing.T) {
	release := make(chan struct{})
	p := Go(func() (int, error) {
		<-release
		return 42, nil
	})

	start := time.Now()
	res := Race(context.Background(), clockz.RealClock, p, 20*time.Millisecond)
	elapsed := time.Since(start)

	assert.True(t, res.TimedOut)
	assert.Zero(t, res.Value)
	assert.Less(t, elapsed, 500*time.Millisecond)

	// The operation keeps running after the caller moved on.
	close(release)
	select {
	case <-p.Done():
		v, err := p.Result()
		assert.Equal(t, 42, v)
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pending operation never completed")
	}
}

func TestRaceContextCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	p := Go(func() (int, error) {
		<-release
		return 0, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Race(ctx, clockz.RealClock, p, time.Hour)

	assert.False(t, res.TimedOut)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestRaceWithoutBudgetWaits(t *testing.T) {
	p := Go(func() (int, error) {
		time.Sleep(10 * time.Millisecond)
		return 7, nil
	})

	res := Race(context.Background(), nil, p, 0)

	assert.False(t, res.TimedOut)
	assert.Equal(t, 7, res.Value)
}

func TestGoRecoversPanic(t *testing.T) {
	p := Go(func() (int, error) {
		panic("kaboom")
	})

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("panicking operation never settled")
	}

	_, err := p.Result()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHookPanicked))
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRaceFakeClock(t *testing.T) {
	clock := clockz.NewFakeClock()
	release := make(chan struct{})
	defer close(release)

	p := Go(func() (int, error) {
		<-release
		return 1, nil
	})

	results := make(chan Result[int], 1)
	go func() {
		results <- Race(context.Background(), clock, p, time.Second)
	}()

	var res Result[int]
	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		select {
		case res = <-results:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	assert.True(t, res.TimedOut)
}
