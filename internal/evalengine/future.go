package evalengine

import "context"

// Future is the value a namespace root's call_async path hands back to
// the DSL: a handle to a child operation already running on its own
// goroutine. DSL code resolves it with the await() builtin; Run awaits
// whatever the program itself never collects before returning, so a
// forgotten await can't leak a goroutine past execute (spec.md §4.F:
// concurrent child operations must be awaited before execute returns).
type Future struct {
	done chan struct{}
	val  any
	err  error
}

// NewFuture returns an unresolved Future. Call Resolve exactly once,
// from the goroutine running the underlying call.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) Resolve(val any, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// Await blocks until Resolve runs or ctx is done, whichever comes
// first.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
