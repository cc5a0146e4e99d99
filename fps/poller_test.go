package fps

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollerRunsRepeatedly(t *testing.T) {
	var count atomic.Int64
	p := NewPoller("t", 10*time.Millisecond, func(ctx context.Context) {
		count.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	p.Stop()

	assert.GreaterOrEqual(t, count.Load(), int64(3))
}

func TestPollerPauseStopsRuns(t *testing.T) {
	var count atomic.Int64
	p := NewPoller("t", 10*time.Millisecond, func(ctx context.Context) {
		count.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	p.Pause()
	afterPause := count.Load()
	time.Sleep(60 * time.Millisecond)
	stableCount := count.Load()
	p.Stop()

	assert.Equal(t, afterPause, stableCount)
}

func TestPollerResumeContinuesRuns(t *testing.T) {
	var count atomic.Int64
	p := NewPoller("t", 10*time.Millisecond, func(ctx context.Context) {
		count.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	p.Pause()
	time.Sleep(30 * time.Millisecond)
	before := count.Load()
	p.Resume()
	time.Sleep(60 * time.Millisecond)
	p.Stop()

	assert.Greater(t, count.Load(), before)
}

func TestPollerSetDelayImmediateTriggersRightAway(t *testing.T) {
	var count atomic.Int64
	p := NewPoller("t", time.Hour, func(ctx context.Context) {
		count.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	p.SetDelay(10*time.Millisecond, true)
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	assert.Greater(t, count.Load(), int64(0))
}
