package slackingress

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsAndDrains(t *testing.T) {
	p := NewPool(2, 10)
	var n int32
	for i := 0; i < 10; i++ {
		require.True(t, p.Submit(func() { atomic.AddInt32(&n, 1) }))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(10), atomic.LoadInt32(&n))
	assert.False(t, p.Submit(func() {}), "closed pool rejects work")
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestPool_FullQueueRejects(t *testing.T) {
	p := NewPool(1, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	require.True(t, p.Submit(func() { close(started); <-release }))
	<-started
	require.True(t, p.Submit(func() {}))
	assert.False(t, p.Submit(func() {}))

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPool_ShutdownDeadline(t *testing.T) {
	p := NewPool(1, 1)
	release := make(chan struct{})
	defer close(release)
	require.True(t, p.Submit(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)
}
