package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-facefx/pkg/audioio"
)

// Input names on the session mixer.
const (
	InputMic = "mic"
	InputAux = "aux"
)

// VideoSource is a canvas the recorder can sample.
type VideoSource interface {
	Size() (int, int)
	CopyPix(dst []byte) uint64
}

// Blob is a finished recording.
type Blob struct {
	ID       uuid.UUID
	Data     []byte
	MimeType string
	Duration time.Duration
}

// Size returns the blob length in bytes.
func (b Blob) Size() int { return len(b.Data) }

// Option configures a Recorder.
type Option func(*Recorder)

// WithMuxer overrides the muxer factory.
func WithMuxer(f MuxerFactory) Option {
	return func(r *Recorder) { r.factory = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// Recorder starts and stops recording sessions. At most one session is
// active at a time.
type Recorder struct {
	cfg     Config
	factory MuxerFactory
	logger  *slog.Logger

	mu     sync.Mutex
	active *Session
}

// New creates a recorder. Without WithMuxer, sessions are encoded by
// ffmpeg at cfg.FFmpegPath.
func New(cfg Config, opts ...Option) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recorder config: %w", err)
	}
	r := &Recorder{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.factory == nil {
		r.factory = FFmpegFactory(cfg.FFmpegPath, r.logger)
	}
	return r, nil
}

// Start begins a session sampling video and mixing mic and aux. Either
// audio input may be nil; with neither, the recording has no audio track.
// The session takes ownership of aux and closes it when it ends; mic is
// only read.
func (r *Recorder) Start(ctx context.Context, video VideoSource, mic, aux audioio.Source) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, ErrAlreadyRecording
	}

	w, h := video.Size()
	hasAudio := mic != nil || aux != nil
	opts := MuxOptions{
		Width:        w,
		Height:       h,
		Framerate:    r.cfg.Framerate,
		Audio:        hasAudio,
		SampleRate:   r.cfg.SampleRate,
		FrameSize:    r.cfg.FrameSize(),
		AudioBitrate: r.cfg.AudioBitrate,
		VideoBitrate: r.cfg.VideoBitrate,
	}

	s := &Session{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		cfg:       r.cfg,
		video:     video,
		aux:       aux,
	}
	s.logger = r.logger.With("session", s.ID.String())

	// The muxer outlives the caller's context; the session ends it.
	mux, err := r.factory(context.WithoutCancel(ctx), opts, s.appendChunk)
	if err != nil {
		if aux != nil {
			aux.Close()
		}
		return nil, err
	}
	s.mux = mux
	s.MimeType = mux.MimeType()

	if hasAudio {
		if err := s.connectInputs(mic, aux); err != nil {
			s.abort()
			return nil, err
		}
	}

	s.start(w, h)
	r.active = s

	s.logger.Info("recording started", "mime", s.MimeType, "size", fmt.Sprintf("%dx%d", w, h), "audio", hasAudio)
	return s, nil
}

// Stop finalizes s and returns its blob. A recording with no bytes yields
// ErrEmptyRecording and no blob.
func (r *Recorder) Stop(s *Session) (Blob, error) {
	defer r.release(s)
	return s.stop()
}

// Discard tears s down without producing a blob. Safe on a finished
// session.
func (r *Recorder) Discard(s *Session) {
	defer r.release(s)
	s.discard()
}

// Active returns the running session, or nil.
func (r *Recorder) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Close discards any active session.
func (r *Recorder) Close() error {
	if s := r.Active(); s != nil {
		r.Discard(s)
	}
	return nil
}

func (r *Recorder) release(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == s {
		r.active = nil
	}
}

// SessionStatus is a snapshot of a session.
type SessionStatus struct {
	ID          string      `json:"id"`
	MimeType    string      `json:"mime_type"`
	StartedAt   time.Time   `json:"started_at"`
	Bytes       int         `json:"bytes"`
	Chunks      int         `json:"chunks"`
	VideoFrames uint64      `json:"video_frames"`
	Audio       *MixerStats `json:"audio,omitempty"`
}

// Session is one recording. It is not reusable: once stopped or
// discarded, start a new one.
type Session struct {
	ID        uuid.UUID
	MimeType  string
	StartedAt time.Time

	cfg    Config
	video  VideoSource
	mux    Muxer
	mixer  *Mixer
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// auxMu serializes aux swaps against teardown so every aux source
	// is closed exactly once.
	auxMu sync.Mutex
	aux   audioio.Source

	mu          sync.Mutex
	chunks      [][]byte
	size        int
	videoFrames uint64
	finished    bool
	endedAt     time.Time
	muxErr      error
}

func (s *Session) connectInputs(mic, aux audioio.Source) error {
	s.mixer = NewMixer(s.cfg.SampleRate, s.cfg.FrameDuration, s.logger)
	if mic != nil {
		if err := s.mixer.Connect(InputMic, mic, s.cfg.MicGain); err != nil {
			return fmt.Errorf("connect microphone: %w", err)
		}
	}
	if aux != nil {
		if err := s.mixer.Connect(InputAux, aux, s.cfg.AuxGain); err != nil {
			return fmt.Errorf("connect aux: %w", err)
		}
	}
	return nil
}

// abort releases a session that failed before it started.
func (s *Session) abort() {
	s.finished = true
	if s.mixer != nil {
		s.mixer.Close()
	}
	if err := s.mux.Close(); err != nil {
		s.logger.Debug("muxer close after failed start", "error", err)
	}
	if s.aux != nil {
		s.aux.Close()
		s.aux = nil
	}
}

func (s *Session) start(w, h int) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	buf := make([]byte, w*h*4)
	// One frame up front so even an immediate stop has content.
	s.writeFrame(buf)

	s.wg.Add(1)
	go s.videoLoop(ctx, buf)

	if s.mixer != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.mixer.Run(ctx, s.mux.WriteAudio); err != nil {
				s.fail(err)
			}
		}()
	}
}

func (s *Session) videoLoop(ctx context.Context, buf []byte) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.Framerate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.writeFrame(buf) {
				return
			}
		}
	}
}

func (s *Session) writeFrame(buf []byte) bool {
	s.video.CopyPix(buf)
	if err := s.mux.WriteVideo(buf); err != nil {
		s.fail(err)
		return false
	}
	s.mu.Lock()
	s.videoFrames++
	s.mu.Unlock()
	return true
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	first := s.muxErr == nil
	if first {
		s.muxErr = err
	}
	s.mu.Unlock()
	if first {
		s.logger.Warn("recording input failed", "error", err)
	}
}

func (s *Session) appendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.size += len(chunk)
	s.mu.Unlock()
}

// SetAux swaps the auxiliary input mid-recording. A nil src removes it.
// The session always takes ownership of src: it is closed when replaced,
// when the session ends, or right away if the swap fails.
func (s *Session) SetAux(src audioio.Source) error {
	s.auxMu.Lock()
	defer s.auxMu.Unlock()

	if err := s.swapAuxLocked(src); err != nil {
		if src != nil && src != s.aux {
			src.Close()
		}
		return err
	}
	return nil
}

func (s *Session) swapAuxLocked(src audioio.Source) error {
	if s.Finished() {
		return ErrSessionClosed
	}
	if s.mixer == nil {
		return ErrNoAudioTrack
	}
	if src == nil {
		s.mixer.Disconnect(InputAux)
	} else if err := s.mixer.Connect(InputAux, src, s.cfg.AuxGain); err != nil {
		return err
	}

	old := s.aux
	s.aux = src
	if old != nil && old != src {
		old.Close()
	}
	return nil
}

// teardown stops sampling, closes the audio graph and the muxer. It
// reports false if the session had already finished.
func (s *Session) teardown() bool {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return false
	}
	s.finished = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	if s.mixer != nil {
		s.mixer.Close()
	}
	if err := s.mux.Close(); err != nil {
		s.fail(err)
	}

	s.mu.Lock()
	s.endedAt = time.Now()
	s.mu.Unlock()

	s.auxMu.Lock()
	aux := s.aux
	s.aux = nil
	s.auxMu.Unlock()
	if aux != nil {
		aux.Close()
	}
	return true
}

func (s *Session) stop() (Blob, error) {
	if !s.teardown() {
		return Blob{}, ErrSessionClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size == 0 {
		s.logger.Warn("recording produced no data")
		return Blob{}, ErrEmptyRecording
	}
	if s.muxErr != nil {
		return Blob{}, fmt.Errorf("%w: %w", ErrFinalize, s.muxErr)
	}

	data := make([]byte, 0, s.size)
	for _, c := range s.chunks {
		data = append(data, c...)
	}
	s.chunks = nil

	blob := Blob{
		ID:       s.ID,
		Data:     data,
		MimeType: s.MimeType,
		Duration: s.endedAt.Sub(s.StartedAt),
	}
	s.logger.Info("recording stopped", "bytes", len(data), "duration", blob.Duration)
	return blob, nil
}

func (s *Session) discard() {
	if !s.teardown() {
		return
	}
	s.mu.Lock()
	s.chunks = nil
	s.mu.Unlock()
	s.logger.Info("recording discarded")
}

// Finished reports whether the session was stopped or discarded.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Mixer returns the session's audio graph, or nil without audio.
func (s *Session) Mixer() *Mixer { return s.mixer }

// Status returns a snapshot of the session.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	st := SessionStatus{
		ID:          s.ID.String(),
		MimeType:    s.MimeType,
		StartedAt:   s.StartedAt,
		Bytes:       s.size,
		Chunks:      len(s.chunks),
		VideoFrames: s.videoFrames,
	}
	s.mu.Unlock()

	if s.mixer != nil {
		ms := s.mixer.Stats()
		st.Audio = &ms
	}
	return st
}
