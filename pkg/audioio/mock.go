package audioio

import (
	"log/slog"
	"math"
)

// MockSource is a mock audio source for testing.
// It generates synthetic audio (silence or sine wave).
type MockSource struct {
	paced

	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	m := &MockSource{
		paced:     newPaced(cfg, logger, "mock"),
		amplitude: 0.5,
	}
	m.fill = m.generate

	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockSource) generate(samples []int16) bool {
	if m.frequency <= 0 {
		return true
	}
	channels := m.cfg.Channels
	for i := 0; i < len(samples)/channels; i++ {
		sample := m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate))
		sampleInt := int16(sample * 32767)
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = sampleInt
		}

		m.phase++
		if m.phase >= float64(m.cfg.SampleRate) {
			m.phase = 0
		}
	}
	return true
}

var _ SourceWithStats = (*MockSource)(nil)
