package main

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// workerGroup runs background loops that share one cancellation. stop
// returns only after every loop has exited.
type workerGroup struct {
	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group
}

func newWorkerGroup(parent context.Context) *workerGroup {
	ctx, cancel := context.WithCancel(parent)
	g, ctx := errgroup.WithContext(ctx)
	return &workerGroup{ctx: ctx, cancel: cancel, g: g}
}

func (w *workerGroup) spawn(run func(context.Context)) {
	w.g.Go(func() error {
		run(w.ctx)
		return nil
	})
}

func (w *workerGroup) stop() {
	w.cancel()
	w.g.Wait()
}
