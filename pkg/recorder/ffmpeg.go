package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"
)

const (
	mimeVideoAudio = "video/webm;codecs=vp8,opus"
	mimeVideoOnly  = "video/webm;codecs=vp8"

	opusPayloadType = 111
	chunkSize       = 32 * 1024
	maxOpusPacket   = 4000
)

// FFmpegMuxer encodes the recording with an ffmpeg child process. Raw RGBA
// frames go to stdin. Audio is Opus-encoded in process and written as an
// Ogg stream on fd 3. WebM output is read from stdout and emitted as
// chunks.
type FFmpegMuxer struct {
	opts   MuxOptions
	logger *slog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	readWG sync.WaitGroup

	audioMu sync.Mutex
	enc     *opus.Encoder
	ogg     *oggwriter.OggWriter
	audioW  *os.File
	packet  []byte
	seq     uint16
	ts      uint32
	ssrc    uint32

	closeOnce sync.Once
	closeErr  error
}

// FFmpegFactory returns a MuxerFactory that runs the ffmpeg binary at path.
func FFmpegFactory(path string, logger *slog.Logger) MuxerFactory {
	return func(ctx context.Context, opts MuxOptions, emit ChunkFunc) (Muxer, error) {
		return NewFFmpegMuxer(ctx, path, opts, emit, logger)
	}
}

// NewFFmpegMuxer starts ffmpeg and returns a muxer feeding it.
func NewFFmpegMuxer(ctx context.Context, path string, opts MuxOptions, emit ChunkFunc, logger *slog.Logger) (*FFmpegMuxer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := exec.LookPath(path); err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrRecorderInit, path, err)
	}

	m := &FFmpegMuxer{opts: opts, logger: logger, ssrc: rand.Uint32()}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-r", strconv.Itoa(opts.Framerate),
		"-i", "pipe:0",
	}
	if opts.Audio {
		args = append(args, "-f", "ogg", "-i", "pipe:3")
	}
	args = append(args,
		"-c:v", "libvpx",
		"-deadline", "realtime",
		"-b:v", opts.VideoBitrate,
	)
	if opts.Audio {
		args = append(args, "-c:a", "copy")
	}
	args = append(args, "-f", "webm", "pipe:1")

	m.cmd = exec.CommandContext(ctx, path, args...)
	m.cmd.Stderr = &m.stderr

	stdin, err := m.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrRecorderInit, err)
	}
	m.stdin = stdin

	stdout, err := m.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrRecorderInit, err)
	}

	var audioR *os.File
	if opts.Audio {
		if err := m.initAudio(); err != nil {
			return nil, err
		}
		r, w, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("%w: audio pipe: %v", ErrRecorderInit, err)
		}
		audioR, m.audioW = r, w
		m.cmd.ExtraFiles = []*os.File{audioR}
	}

	if err := m.cmd.Start(); err != nil {
		if audioR != nil {
			audioR.Close()
			m.audioW.Close()
		}
		return nil, fmt.Errorf("%w: start ffmpeg: %v", ErrRecorderInit, err)
	}
	if audioR != nil {
		// The child holds its own copy.
		audioR.Close()

		ogg, err := oggwriter.NewWith(m.audioW, uint32(opts.SampleRate), 1)
		if err != nil {
			m.audioW.Close()
			m.stdin.Close()
			_ = m.cmd.Wait()
			return nil, fmt.Errorf("%w: ogg writer: %v", ErrRecorderInit, err)
		}
		m.ogg = ogg
	}

	m.readWG.Add(1)
	go m.readLoop(stdout, emit)

	logger.Debug("ffmpeg muxer started",
		"size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"fps", opts.Framerate,
		"audio", opts.Audio)
	return m, nil
}

func (m *FFmpegMuxer) initAudio() error {
	enc, err := opus.NewEncoder(m.opts.SampleRate, 1, opus.AppAudio)
	if err != nil {
		return fmt.Errorf("%w: opus encoder: %v", ErrRecorderInit, err)
	}
	if m.opts.AudioBitrate > 0 {
		if err := enc.SetBitrate(m.opts.AudioBitrate); err != nil {
			return fmt.Errorf("%w: opus bitrate: %v", ErrRecorderInit, err)
		}
	}
	m.enc = enc
	m.packet = make([]byte, maxOpusPacket)
	return nil
}

// readLoop is the only caller of emit.
func (m *FFmpegMuxer) readLoop(r io.Reader, emit ChunkFunc) {
	defer m.readWG.Done()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			emit(chunk)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				m.logger.Warn("ffmpeg output read failed", "error", err)
			}
			return
		}
	}
}

// WriteVideo writes one raw RGBA frame.
func (m *FFmpegMuxer) WriteVideo(rgba []byte) error {
	if _, err := m.stdin.Write(rgba); err != nil {
		return fmt.Errorf("write video frame: %w", err)
	}
	return nil
}

// WriteAudio encodes one PCM frame to Opus and appends it to the Ogg
// stream.
func (m *FFmpegMuxer) WriteAudio(pcm []int16) error {
	m.audioMu.Lock()
	defer m.audioMu.Unlock()

	if m.ogg == nil {
		return nil
	}
	n, err := m.enc.Encode(pcm, m.packet)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}

	payload := make([]byte, n)
	copy(payload, m.packet[:n])
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: m.seq,
			Timestamp:      m.ts,
			SSRC:           m.ssrc,
		},
		Payload: payload,
	}
	m.seq++
	m.ts += uint32(len(pcm))

	if err := m.ogg.WriteRTP(pkt); err != nil {
		return fmt.Errorf("write ogg page: %w", err)
	}
	return nil
}

// MimeType returns the WebM codec string.
func (m *FFmpegMuxer) MimeType() string {
	if m.opts.Audio {
		return mimeVideoAudio
	}
	return mimeVideoOnly
}

// Close ends both inputs, waits for ffmpeg to flush the container and
// exits. Safe to call more than once.
func (m *FFmpegMuxer) Close() error {
	m.closeOnce.Do(func() {
		var errs []error
		if err := m.stdin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close video input: %w", err))
		}

		m.audioMu.Lock()
		if m.ogg != nil {
			// Closing the writer closes the pipe behind it.
			if err := m.ogg.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close audio input: %w", err))
			}
			m.ogg = nil
		}
		m.audioMu.Unlock()

		m.readWG.Wait()
		if err := m.cmd.Wait(); err != nil {
			errs = append(errs, fmt.Errorf("ffmpeg: %w: %s", err, bytes.TrimSpace(m.stderr.Bytes())))
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}

var _ Muxer = (*FFmpegMuxer)(nil)
