package detection

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-facefx/pkg/landmark"
)

// Outcome is a completed detection call.
type Outcome struct {
	Landmarks   landmark.Set // nil when nothing was detected
	TimestampMs int64
	Err         error // per-frame failure, already logged
}

// Detected reports whether the outcome carries landmarks.
func (o Outcome) Detected() bool { return o.Err == nil && len(o.Landmarks) > 0 }

// Stats counts detector activity.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Skipped   uint64 `json:"skipped"` // submissions dropped because a call was in flight
	Detected  uint64 `json:"detected"`
	Empty     uint64 `json:"empty"`
	Failed    uint64 `json:"failed"`
	InFlight  bool   `json:"in_flight"`
}

// Detector wraps a Model so that only one call is ever in flight. The
// busy flag is set before the model is invoked and cleared when the call
// returns, however it returns.
type Detector struct {
	model  Model
	topo   landmark.Topology
	logger *slog.Logger

	busy    atomic.Bool
	closed  atomic.Bool
	results chan Outcome

	tsMu   sync.Mutex
	lastTS int64

	submitted atomic.Uint64
	skipped   atomic.Uint64
	detected  atomic.Uint64
	empty     atomic.Uint64
	failed    atomic.Uint64
}

// NewDetector wraps an initialized model.
func NewDetector(model Model, topo landmark.Topology, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		model:   model,
		topo:    topo,
		logger:  logger,
		results: make(chan Outcome, 1),
	}
}

// Open creates the model with factory and wraps it. Failures are returned
// as a *ModelError matching ErrModelInit.
func Open(ctx context.Context, backend string, factory ModelFactory, opts ModelOptions, logger *slog.Logger) (*Detector, error) {
	if err := opts.Validate(); err != nil {
		return nil, &ModelError{Backend: backend, Err: err}
	}
	topo, err := landmark.TopologyFor(opts.Kind)
	if err != nil {
		return nil, &ModelError{Backend: backend, Err: err}
	}

	model, err := factory(ctx, opts)
	if err != nil {
		return nil, &ModelError{Backend: backend, Err: err}
	}

	d := NewDetector(model, topo, logger)
	d.logger.Info("landmark model ready",
		"backend", backend,
		"kind", opts.Kind,
		"delegate", opts.Delegate,
	)
	return d, nil
}

// Topology returns the landmark layout this detector produces.
func (d *Detector) Topology() landmark.Topology { return d.topo }

// Busy reports whether a call is in flight.
func (d *Detector) Busy() bool { return d.busy.Load() }

// Submit starts an asynchronous detection on frame. It returns false
// without invoking the model when a previous call is still in flight or
// the detector is closed. The outcome is collected with Poll.
func (d *Detector) Submit(frame image.Image, timestampMs int64) bool {
	if d.closed.Load() {
		return false
	}
	if !d.busy.CompareAndSwap(false, true) {
		d.skipped.Add(1)
		return false
	}
	d.submitted.Add(1)
	ts := d.clampTimestamp(timestampMs)

	go func() {
		defer d.busy.Store(false)

		set, err := d.invoke(frame, ts)
		out := Outcome{Landmarks: set, TimestampMs: ts, Err: err}

		// Keep only the newest outcome if the loop has not collected the last one
		select {
		case <-d.results:
		default:
		}
		d.results <- out
	}()
	return true
}

// Poll returns a completed outcome without blocking.
func (d *Detector) Poll() (Outcome, bool) {
	select {
	case out := <-d.results:
		return out, true
	default:
		return Outcome{}, false
	}
}

// Detect runs the model synchronously under the same single-flight rule.
// It returns ErrBusy if an asynchronous call is pending.
func (d *Detector) Detect(frame image.Image, timestampMs int64) (landmark.Set, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if !d.busy.CompareAndSwap(false, true) {
		d.skipped.Add(1)
		return nil, ErrBusy
	}
	defer d.busy.Store(false)

	d.submitted.Add(1)
	return d.invoke(frame, d.clampTimestamp(timestampMs))
}

// Stats returns a snapshot of the counters.
func (d *Detector) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Skipped:   d.skipped.Load(),
		Detected:  d.detected.Load(),
		Empty:     d.empty.Load(),
		Failed:    d.failed.Load(),
		InFlight:  d.busy.Load(),
	}
}

// Close releases the model. Calling Close more than once is a no-op.
// A call still in flight is not waited for.
func (d *Detector) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.model.Close()
}

func (d *Detector) clampTimestamp(ts int64) int64 {
	d.tsMu.Lock()
	defer d.tsMu.Unlock()
	if ts < d.lastTS {
		ts = d.lastTS
	}
	d.lastTS = ts
	return ts
}

// invoke calls the model and converts any failure, including a panic, to
// a logged per-frame error.
func (d *Detector) invoke(frame image.Image, ts int64) (set landmark.Set, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panic: %v", r)
		}
		if err != nil {
			d.failed.Add(1)
			d.logger.Warn("detection failed", "timestamp_ms", ts, "error", err)
			set = nil
		}
	}()

	res, err := d.model.DetectForVideo(frame, ts)
	if err != nil {
		return nil, err
	}

	first, ok := res.First()
	if !ok {
		d.empty.Add(1)
		return nil, nil
	}
	if len(first) != d.topo.Count {
		return nil, fmt.Errorf("%w: got %d, want %d for %s", ErrUnexpectedShape, len(first), d.topo.Count, d.topo.Kind)
	}

	d.detected.Add(1)
	return first.Clone(), nil
}
