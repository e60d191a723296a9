package workerpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/filemanager/pkg/workerpool"
)

func TestSubmitWaitRunsEveryTask(t *testing.T) {
	pool := workerpool.New(4)
	var ran atomic.Int64
	for range 100 {
		require.NoError(t, pool.SubmitWait(context.Background(), func() { ran.Add(1) }))
	}
	pool.Shutdown()
	assert.Equal(t, int64(100), ran.Load(), "shutdown drains the queue")
}

func TestSubmitFailsFastWhenQueueIsFull(t *testing.T) {
	pool := workerpool.New(0)
	defer pool.Shutdown()
	assert.Equal(t, 1, pool.Size())

	release, started := make(chan struct{}), make(chan struct{})
	require.NoError(t, pool.Submit(func() { close(started); <-release }))
	<-started

	require.NoError(t, pool.Submit(func() {}))
	require.NoError(t, pool.Submit(func() {}))
	assert.ErrorIs(t, pool.Submit(func() {}), workerpool.ErrPoolFull)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.SubmitWait(ctx, func() {}), context.DeadlineExceeded)

	close(release)
}

func TestClosedPoolRejectsWork(t *testing.T) {
	pool := workerpool.New(2)
	pool.Shutdown()
	pool.Shutdown()

	assert.ErrorIs(t, pool.Submit(func() {}), workerpool.ErrPoolClosed)
	assert.ErrorIs(t, pool.SubmitWait(context.Background(), func() {}), workerpool.ErrPoolClosed)

	errs := pool.Each(context.Background(), 2, func(int) error { return nil })
	assert.ErrorIs(t, errs[0], workerpool.ErrPoolClosed)
	assert.ErrorIs(t, errs[1], workerpool.ErrPoolClosed)
}

func TestWorkerSurvivesPanic(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Shutdown()

	require.NoError(t, pool.SubmitWait(context.Background(), func() { panic("intentional") }))

	done := make(chan struct{})
	require.NoError(t, pool.SubmitWait(context.Background(), func() { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died with the panicking task")
	}
}

func TestEachReportsPerIndex(t *testing.T) {
	pool := workerpool.New(3)
	defer pool.Shutdown()

	boom := errors.New("boom")
	var mu sync.Mutex
	seen := map[int]bool{}
	errs := pool.Each(context.Background(), 10, func(i int) error {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
		switch i {
		case 3:
			return boom
		case 7:
			panic("bad key")
		}
		return nil
	})

	require.Len(t, errs, 10)
	assert.Len(t, seen, 10)
	for i, err := range errs {
		switch i {
		case 3:
			assert.ErrorIs(t, err, boom)
		case 7:
			assert.ErrorContains(t, err, "task 7 panicked: bad key")
		default:
			assert.NoError(t, err, "index %d", i)
		}
	}
}

func TestEachStopsOnCancelledContext(t *testing.T) {
	pool := workerpool.New(2)
	defer pool.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int64
	errs := pool.Each(ctx, 5, func(int) error { ran.Add(1); return nil })

	assert.Zero(t, ran.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
