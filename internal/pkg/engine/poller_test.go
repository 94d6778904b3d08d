package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerStartsAndStopsWithDemand(t *testing.T) {
	var ticks atomic.Int32
	p := NewPoller(5*time.Millisecond, func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	})

	assert.False(t, p.IsRunning())

	release := p.Acquire()
	assert.True(t, p.IsRunning())

	require.Eventually(t, func() bool {
		return ticks.Load() >= 2
	}, time.Second, time.Millisecond)

	release()
	assert.False(t, p.IsRunning())

	// no further ticks after the last release
	settled := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), settled+1)
}

func TestPollerCountsOverlappingDemand(t *testing.T) {
	p := NewPoller(time.Minute, func(ctx context.Context) error { return nil })

	r1 := p.Acquire()
	r2 := p.Acquire()
	r1()
	assert.True(t, p.IsRunning(), "second subscriber still holds demand")
	r2()
	assert.False(t, p.IsRunning())
}

func TestPollerReleaseIsIdempotent(t *testing.T) {
	p := NewPoller(time.Minute, func(ctx context.Context) error { return nil })

	release := p.Acquire()
	release()
	release()

	// a double release must not eat a later subscriber's demand
	r2 := p.Acquire()
	assert.True(t, p.IsRunning())
	r2()
	assert.False(t, p.IsRunning())
}

func TestPollerSkipsOverlappingRefresh(t *testing.T) {
	block := make(chan struct{})
	var calls atomic.Int32
	p := NewPoller(time.Minute, func(ctx context.Context) error {
		calls.Add(1)
		<-block
		return nil
	})

	done := make(chan struct{})
	go func() {
		_ = p.RefreshNow(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, time.Millisecond)

	// second call lands while the first is still in flight and is skipped
	require.NoError(t, p.RefreshNow(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	close(block)
	<-done
}

func TestPollerShutdownOverridesDemand(t *testing.T) {
	p := NewPoller(time.Minute, func(ctx context.Context) error { return nil })

	p.Acquire()
	p.Acquire()
	p.Shutdown()
	assert.False(t, p.IsRunning())
}
