package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerGroup_StopWaitsForWorkers(t *testing.T) {
	g := newWorkerGroup(context.Background())

	var finished atomic.Int32
	for i := 0; i < 3; i++ {
		g.spawn(func(ctx context.Context) {
			<-ctx.Done()
			// a final write racing shutdown
			time.Sleep(20 * time.Millisecond)
			finished.Add(1)
		})
	}

	g.stop()
	assert.Equal(t, int32(3), finished.Load())
}

func TestWorkerGroup_ParentCancelStopsWorkers(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	g := newWorkerGroup(parent)

	done := make(chan struct{})
	g.spawn(func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not observe parent cancellation")
	}
	g.stop()
}
