package blockstorm

import (
	"context"
	"sync"
	"sync/atomic"
)

// opGuard counts open atomic-operation windows. The count is read and
// written without the editor lock so that views can consult it from inside
// change handlers.
type opGuard struct {
	n atomic.Int64
}

// enter opens a window and returns its release. The release is idempotent;
// releasing a window that was never opened panics.
func (g *opGuard) enter() (release func()) {
	g.n.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			if g.n.Add(-1) < 0 {
				panic("blockstorm: atomic operation released without a matching begin")
			}
		})
	}
}

// active reports whether any window is open.
func (g *opGuard) active() bool {
	return g.n.Load() > 0
}

// WithAtomicOperation runs fn inside an atomic-operation window. While the
// window is open InAtomicOperation reports true and StopCapturing is
// suppressed, so a multi-step operation lands in a single undo entry and
// views skip their own write-back. The window closes when fn returns,
// including by panic.
func (e *Editor) WithAtomicOperation(fn func() error) error {
	release := e.guard.enter()
	defer release()
	return fn()
}

// WithAtomicOperationAsync holds an atomic-operation window open across an
// asynchronous reconciliation. fn runs on the calling goroutine and may
// block; ctx carries its cancellation. The window closes when fn returns.
func (e *Editor) WithAtomicOperationAsync(ctx context.Context, fn func(context.Context) error) error {
	release := e.guard.enter()
	defer release()
	return fn(ctx)
}

// BeginAtomic opens an atomic-operation window that outlives the current
// call, for flows that must stretch the window through a deferred render
// tick. The returned release closes it; calling release more than once is
// safe.
func (e *Editor) BeginAtomic() (release func()) {
	return e.guard.enter()
}

// InAtomicOperation reports whether any atomic-operation window is open.
// Views check this inside change handlers to suppress write-back of
// partially applied state.
func (e *Editor) InAtomicOperation() bool {
	return e.guard.active()
}
