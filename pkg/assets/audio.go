package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"gopkg.in/hraban/opus.v2"

	"github.com/teslashibe/go-facefx/pkg/audioio"
)

// ClipSampleRate is the rate every decoded clip is converted to.
const ClipSampleRate = 48000

// AudioClip is a decoded mono PCM16 clip at ClipSampleRate.
type AudioClip struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the clip length.
func (c *AudioClip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// LoadAudio reads and decodes the clip behind uri.
func LoadAudio(ctx context.Context, uri string) (*AudioClip, error) {
	if name, ok := builtinName(uri); ok {
		return BuiltinAudio(name)
	}

	data, err := ReadURI(ctx, uri)
	if err != nil {
		return nil, err
	}
	return DecodeAudio(data)
}

// DecodeAudio decodes a PCM WAV file or an Ogg Opus stream to mono
// 48 kHz.
func DecodeAudio(data []byte) (*AudioClip, error) {
	var (
		chunk audioio.AudioChunk
		err   error
	)
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		chunk, err = decodeWAV(data)
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		chunk, err = decodeOpus(data)
	default:
		return nil, fmt.Errorf("%w: not WAV or Ogg Opus", ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}

	samples, err := audioio.Resample(chunk.Mono(), chunk.SampleRate, ClipSampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return &AudioClip{Samples: samples, SampleRate: ClipSampleRate}, nil
}

func decodeWAV(data []byte) (audioio.AudioChunk, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return audioio.AudioChunk{}, fmt.Errorf("%w: invalid wav file", ErrUnsupportedFormat)
	}
	if d.WavAudioFormat != wavFormatPCM {
		return audioio.AudioChunk{}, fmt.Errorf("%w: wav format %d, want PCM", ErrUnsupportedFormat, d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return audioio.AudioChunk{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 || buf.Format.SampleRate == 0 {
		return audioio.AudioChunk{}, fmt.Errorf("%w: wav has no channels", ErrUnsupportedFormat)
	}

	samples, err := toPCM16(buf)
	if err != nil {
		return audioio.AudioChunk{}, err
	}
	return audioio.AudioChunk{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

const wavFormatPCM = 1

// toPCM16 scales integer PCM of any supported depth to 16 bits.
func toPCM16(buf *audio.IntBuffer) ([]int16, error) {
	var conv func(int) int16
	switch buf.SourceBitDepth {
	case 8:
		// 8-bit WAV is unsigned
		conv = func(v int) int16 { return int16((v - 128) << 8) }
	case 16:
		conv = func(v int) int16 { return int16(v) }
	case 24:
		conv = func(v int) int16 { return int16(v >> 8) }
	case 32:
		conv = func(v int) int16 { return int16(v >> 16) }
	default:
		return nil, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, buf.SourceBitDepth)
	}

	out := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = conv(v)
	}
	return out, nil
}

// opusChannels reads the channel count from the OpusHead packet.
func opusChannels(data []byte) (int, error) {
	idx := bytes.Index(data, []byte("OpusHead"))
	if idx < 0 || idx+10 > len(data) {
		return 0, fmt.Errorf("%w: ogg stream has no OpusHead", ErrUnsupportedFormat)
	}
	channels := int(data[idx+9])
	if channels == 0 {
		return 0, fmt.Errorf("%w: opus stream has no channels", ErrUnsupportedFormat)
	}
	return channels, nil
}

func decodeOpus(data []byte) (audioio.AudioChunk, error) {
	channels, err := opusChannels(data)
	if err != nil {
		return audioio.AudioChunk{}, err
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return audioio.AudioChunk{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer stream.Close()

	// 120 ms is the longest Opus frame
	buf := make([]int16, 5760*channels)
	var samples []int16
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			samples = append(samples, buf[:n*channels]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return audioio.AudioChunk{}, fmt.Errorf("decode opus: %w", err)
		}
	}

	return audioio.AudioChunk{Samples: samples, SampleRate: 48000, Channels: channels}, nil
}

// NewAudioCache returns a cache of decoded clips.
func NewAudioCache(logger *slog.Logger) *Cache[*AudioClip] {
	return NewCache(LoadAudio, logger)
}
