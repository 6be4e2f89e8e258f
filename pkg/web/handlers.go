package web

import (
	"bytes"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-facefx/pkg/pipeline"
	"github.com/teslashibe/go-facefx/pkg/recorder"
)

// SettingsResponse is returned by GET /api/settings.
type SettingsResponse struct {
	Settings pipeline.Settings `json:"settings"`
	Catalog  pipeline.Catalog  `json:"catalog"`
}

// RecordingResponse describes a finished recording.
type RecordingResponse struct {
	ID       string  `json:"id"`
	MimeType string  `json:"mime_type"`
	Size     int     `json:"size"`
	Duration float64 `json:"duration_seconds"`
	URL      string  `json:"url"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Fatal bool   `json:"fatal,omitempty"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.p.Status())
}

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	return c.JSON(SettingsResponse{
		Settings: s.p.Settings(),
		Catalog:  s.p.Catalog(),
	})
}

func (s *Server) handlePutSettings(c *fiber.Ctx) error {
	var req pipeline.Settings
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid settings body")
	}
	if err := s.p.ApplySettings(req); err != nil {
		return err
	}
	return c.JSON(SettingsResponse{
		Settings: s.p.Settings(),
		Catalog:  s.p.Catalog(),
	})
}

func (s *Server) handleStartRecording(c *fiber.Ctx) error {
	session, err := s.p.StartRecording(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(session.Status())
}

func (s *Server) handleStopRecording(c *fiber.Ctx) error {
	blob, err := s.p.StopRecording()
	if err != nil {
		return err
	}
	id := blob.ID.String()
	s.logger.Info("recording ready", "id", id, "bytes", blob.Size(), "duration", blob.Duration)
	return c.JSON(RecordingResponse{
		ID:       id,
		MimeType: blob.MimeType,
		Size:     blob.Size(),
		Duration: blob.Duration.Round(time.Millisecond).Seconds(),
		URL:      "/api/recordings/" + id,
	})
}

// handleDownload serves a recording once; the blob is forgotten after.
func (s *Server) handleDownload(c *fiber.Ctx) error {
	id := c.Params("id")
	blob, ok := s.p.TakeRecording(id)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "recording not found")
	}
	c.Set(fiber.HeaderContentType, blob.MimeType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+id+`.webm"`)
	return c.Send(blob.Data)
}

// encodePreview returns the canvas as JPEG when it changed since last.
func (s *Server) encodePreview(last uint64) ([]byte, uint64, bool) {
	canvas := s.p.Canvas()
	if canvas == nil {
		return nil, 0, false
	}
	seq := canvas.Seq()
	if seq == last {
		return nil, 0, false
	}
	var buf bytes.Buffer
	if err := canvas.EncodeJPEG(&buf, s.cfg.JPEGQuality); err != nil {
		s.logger.Warn("encode preview", "error", err)
		return nil, 0, false
	}
	return buf.Bytes(), seq, true
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, pipeline.ErrInvalidSettings):
		return fiber.StatusBadRequest
	case errors.Is(err, pipeline.ErrNotOpen),
		errors.Is(err, pipeline.ErrNotRecording),
		errors.Is(err, recorder.ErrAlreadyRecording):
		return fiber.StatusConflict
	case errors.Is(err, recorder.ErrEmptyRecording):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrClosed), pipeline.IsFatal(err):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(ErrorResponse{
		Error: err.Error(),
		Fatal: pipeline.IsFatal(err),
	})
}
