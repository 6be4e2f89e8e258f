package recorder

import "context"

// MuxOptions describes the tracks a muxer receives.
type MuxOptions struct {
	Width     int
	Height    int
	Framerate int

	// Audio is false when the recording has no audio inputs.
	Audio        bool
	SampleRate   int
	FrameSize    int
	AudioBitrate int
	VideoBitrate string
}

// ChunkFunc receives muxed output in order. The slice is owned by the
// callee.
type ChunkFunc func(chunk []byte)

// Muxer combines raw video frames and PCM audio frames into a container
// stream, emitting chunks as they become available.
type Muxer interface {
	// WriteVideo writes one RGBA frame of Width*Height*4 bytes.
	WriteVideo(rgba []byte) error

	// WriteAudio writes one mono PCM frame of FrameSize samples.
	WriteAudio(pcm []int16) error

	// MimeType returns the container and codec type of the output.
	MimeType() string

	// Close flushes remaining output through the ChunkFunc and releases
	// the muxer. No chunks are emitted after Close returns.
	Close() error
}

// MuxerFactory constructs a muxer for one session.
type MuxerFactory func(ctx context.Context, opts MuxOptions, emit ChunkFunc) (Muxer, error)
