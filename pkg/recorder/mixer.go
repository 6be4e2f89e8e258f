package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/algo-vecmath"

	"github.com/teslashibe/go-facefx/pkg/audioio"
)

// maxPendingFrames bounds how far an input may run ahead of the mixer
// clock before its oldest samples are dropped.
const maxPendingFrames = 10

// MixerStats reports mixer activity.
type MixerStats struct {
	Frames    uint64   `json:"frames"`
	Underruns uint64   `json:"underruns"`
	Inputs    []string `json:"inputs"`
	Closed    bool     `json:"closed"`
}

// Mixer sums any number of audio sources into one mono track. Each input
// is downmixed, resampled to the mixer rate and buffered; Frame pulls one
// frame from every input, applies its gain and sums the result.
//
// The mixer reads its sources but does not own them: Close stops reading
// and never stops a source.
type Mixer struct {
	rate      int
	frameSize int
	frameDur  time.Duration
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	inputs  []*mixerInput
	closed  bool
	acc     []float64
	tmp     []float64
	scratch []float64

	frames    atomic.Uint64
	underruns atomic.Uint64
	releases  atomic.Int32
}

type mixerInput struct {
	name string
	gain float64
	stop chan struct{}

	// Owned by the pump goroutine.
	rs     *resample.Resampler
	rsFrom int

	mu      sync.Mutex
	pending []float64
}

// NewMixer creates a mixer producing frames of frameDuration at
// sampleRate.
func NewMixer(sampleRate int, frameDuration time.Duration, logger *slog.Logger) *Mixer {
	if logger == nil {
		logger = slog.Default()
	}
	size := int(int64(sampleRate) * int64(frameDuration) / int64(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	return &Mixer{
		rate:      sampleRate,
		frameSize: size,
		frameDur:  frameDuration,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		acc:       make([]float64, size),
		tmp:       make([]float64, size),
		scratch:   make([]float64, size),
	}
}

// FrameSize returns the number of samples per frame.
func (m *Mixer) FrameSize() int { return m.frameSize }

// Connect routes src into the mix under name, replacing any input with the
// same name. The source must already be started. Chunks the source
// buffered before Connect are discarded so the input starts in sync with
// the mixer clock.
func (m *Mixer) Connect(name string, src audioio.Source, gain float64) error {
	if src == nil {
		return ErrNilSource
	}
	if s, ok := src.(audioio.SourceWithStats); ok && !s.Stats().Running {
		return fmt.Errorf("connect %s (%s): %w", name, src.Name(), ErrSourceStopped)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMixerClosed
	}
	m.removeLocked(name)

	ch := src.Stream()
	stale := drain(ch)

	in := &mixerInput{name: name, gain: gain, stop: make(chan struct{})}
	m.inputs = append(m.inputs, in)

	m.wg.Add(1)
	go m.pump(in, ch)

	m.logger.Debug("mixer input connected",
		"input", name, "source", src.Name(), "gain", gain, "stale_chunks", stale)
	return nil
}

// drain discards what is already queued on ch without blocking.
func drain(ch <-chan audioio.AudioChunk) int {
	n := 0
	for limit := cap(ch) + 1; n < limit; n++ {
		select {
		case _, ok := <-ch:
			if !ok {
				return n
			}
		default:
			return n
		}
	}
	return n
}

// Disconnect removes an input. It reports whether the input existed.
func (m *Mixer) Disconnect(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(name)
}

func (m *Mixer) removeLocked(name string) bool {
	for i, in := range m.inputs {
		if in.name == name {
			close(in.stop)
			m.inputs = append(m.inputs[:i], m.inputs[i+1:]...)
			return true
		}
	}
	return false
}

// pump moves chunks from a source into the input buffer until the source
// ends, the input is removed or the mixer closes.
func (m *Mixer) pump(in *mixerInput, ch <-chan audioio.AudioChunk) {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-in.stop:
			return
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			samples, err := in.convert(chunk, m.rate)
			if err != nil {
				m.logger.Warn("mixer input dropped chunk", "input", in.name, "error", err)
				continue
			}
			in.push(samples, m.frameSize*maxPendingFrames)
		}
	}
}

// convert downmixes a chunk and brings it to rate. The resampler is kept
// across chunks so its filter history spans chunk boundaries; it is
// rebuilt only if the source changes rate.
func (in *mixerInput) convert(chunk audioio.AudioChunk, rate int) ([]float64, error) {
	mono := chunk.Mono()
	out := make([]float64, len(mono))
	audioio.ToFloat(out, mono)

	if chunk.SampleRate <= 0 || chunk.SampleRate == rate {
		in.rs = nil
		return out, nil
	}
	if in.rs == nil || in.rsFrom != chunk.SampleRate {
		rs, err := resample.NewForRates(float64(chunk.SampleRate), float64(rate))
		if err != nil {
			return nil, fmt.Errorf("resampler %d -> %d Hz: %w", chunk.SampleRate, rate, err)
		}
		in.rs, in.rsFrom = rs, chunk.SampleRate
	}
	return in.rs.Process(out), nil
}

func (in *mixerInput) push(samples []float64, limit int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.pending = append(in.pending, samples...)
	if over := len(in.pending) - limit; over > 0 {
		in.pending = in.pending[over:]
	}
}

// pull fills dst from the buffer, zero-padding a short read, and returns
// the number of real samples.
func (in *mixerInput) pull(dst []float64) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := copy(dst, in.pending)
	in.pending = in.pending[n:]
	clear(dst[n:])
	return n
}

// Frame mixes one frame into dst, which must hold FrameSize samples.
// Inputs that have not delivered enough audio contribute silence for the
// missing part.
func (m *Mixer) Frame(dst []int16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.acc)
	short := false
	for _, in := range m.inputs {
		if in.pull(m.scratch) < m.frameSize {
			short = true
		}
		vecmath.ScaleBlock(m.tmp, m.scratch, in.gain)
		vecmath.AddBlockInPlace(m.acc, m.tmp)
	}
	audioio.FromFloat(dst[:m.frameSize], m.acc)

	m.frames.Add(1)
	if short {
		m.underruns.Add(1)
	}
}

// Run emits one mixed frame per frame duration until ctx is done, the
// mixer closes or emit fails.
func (m *Mixer) Run(ctx context.Context, emit func(pcm []int16) error) error {
	ticker := time.NewTicker(m.frameDur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.ctx.Done():
			return nil
		case <-ticker.C:
			frame := make([]int16, m.frameSize)
			m.Frame(frame)
			if err := emit(frame); err != nil {
				return err
			}
		}
	}
}

// Close stops all pumps and releases the graph. Safe to call more than
// once; only the first call does anything.
func (m *Mixer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, in := range m.inputs {
		close(in.stop)
	}
	m.inputs = nil
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	m.releases.Add(1)
	m.logger.Debug("mixer closed", "frames", m.frames.Load())
	return nil
}

// Releases returns how many times the graph was torn down. It is 1 after
// any number of Close calls.
func (m *Mixer) Releases() int { return int(m.releases.Load()) }

// Stats returns a snapshot of mixer activity.
func (m *Mixer) Stats() MixerStats {
	m.mu.Lock()
	names := make([]string, len(m.inputs))
	for i, in := range m.inputs {
		names[i] = in.name
	}
	closed := m.closed
	m.mu.Unlock()

	return MixerStats{
		Frames:    m.frames.Load(),
		Underruns: m.underruns.Load(),
		Inputs:    names,
		Closed:    closed,
	}
}
