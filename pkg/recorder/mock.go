package recorder

import (
	"context"
	"fmt"
	"sync"
)

// MockMuxer is an in-memory Muxer for tests. It emits Header on creation,
// one byte per video frame, and Trailer on Close.
type MockMuxer struct {
	Header  []byte
	Trailer []byte
	Mime    string

	// Quiet suppresses the per-frame bytes.
	Quiet bool

	// CreateErr, when set, makes the factory fail.
	CreateErr error

	mu          sync.Mutex
	emit        ChunkFunc
	opts        MuxOptions
	videoFrames int
	audioFrames int
	audioPeak   int16
	closes      int
}

// NewMockMuxer creates a mock that emits a short header.
func NewMockMuxer() *MockMuxer {
	return &MockMuxer{Header: []byte("WEBM"), Mime: mimeVideoAudio}
}

// MockFactory returns a factory that hands out m for every session.
func MockFactory(m *MockMuxer) MuxerFactory {
	return func(_ context.Context, opts MuxOptions, emit ChunkFunc) (Muxer, error) {
		if m.CreateErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrRecorderInit, m.CreateErr)
		}
		m.mu.Lock()
		m.emit = emit
		m.opts = opts
		m.closes = 0
		header := m.Header
		m.mu.Unlock()

		if len(header) > 0 {
			emit(append([]byte(nil), header...))
		}
		return m, nil
	}
}

func (m *MockMuxer) WriteVideo(rgba []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closes > 0 {
		return ErrSessionClosed
	}
	m.videoFrames++
	if !m.Quiet {
		m.emit([]byte{'v'})
	}
	return nil
}

func (m *MockMuxer) WriteAudio(pcm []int16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closes > 0 {
		return ErrSessionClosed
	}
	m.audioFrames++
	for _, s := range pcm {
		if s > m.audioPeak {
			m.audioPeak = s
		}
	}
	return nil
}

func (m *MockMuxer) MimeType() string { return m.Mime }

func (m *MockMuxer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	if m.closes == 1 && len(m.Trailer) > 0 {
		m.emit(append([]byte(nil), m.Trailer...))
	}
	return nil
}

// Options returns the options of the last session.
func (m *MockMuxer) Options() MuxOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts
}

// VideoFrames returns the number of frames written.
func (m *MockMuxer) VideoFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoFrames
}

// AudioFrames returns the number of PCM frames written.
func (m *MockMuxer) AudioFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioFrames
}

// AudioPeak returns the largest sample seen.
func (m *MockMuxer) AudioPeak() int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioPeak
}

// Closes returns how many times Close was called in the last session.
func (m *MockMuxer) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

var _ Muxer = (*MockMuxer)(nil)
