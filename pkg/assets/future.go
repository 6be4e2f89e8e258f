package assets

import "context"

// Status is the load state of a cached asset.
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Future is a value resolved exactly once by a background load. Readers
// poll with Value or block with Wait.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(val T, err error) {
	f.val, f.err = val, err
	close(f.done)
}

// Status reports the load state without blocking.
func (f *Future[T]) Status() Status {
	select {
	case <-f.done:
		if f.err != nil {
			return StatusUnavailable
		}
		return StatusReady
	default:
		return StatusPending
	}
}

// Value returns the loaded value if it is ready. It never blocks.
func (f *Future[T]) Value() (T, bool) {
	var zero T
	select {
	case <-f.done:
		if f.err != nil {
			return zero, false
		}
		return f.val, true
	default:
		return zero, false
	}
}

// Err returns the load error once resolved, nil while pending or on success.
func (f *Future[T]) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Done is closed when the load completes either way.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the load completes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
