package config

import (
	"fmt"
	"strconv"

	"github.com/teslashibe/go-facefx/pkg/audioio"
	"github.com/teslashibe/go-facefx/pkg/capture"
	"github.com/teslashibe/go-facefx/pkg/pipeline"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FACEFX_"

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from FACEFX_* variables:
//
//	FACEFX_LOG_LEVEL        log level
//	FACEFX_ADDR             HTTP listen address
//	FACEFX_MODE             overlay or avatar
//	FACEFX_AUTO_OPEN        open the camera at startup
//	FACEFX_CAMERA           camera device
//	FACEFX_CAMERA_BACKEND   gocv or mock
//	FACEFX_WIDTH, FACEFX_HEIGHT, FACEFX_FPS
//	FACEFX_MICROPHONE       capture the microphone
//	FACEFX_AUDIO_BACKEND    auto, alsa or mock
//	FACEFX_DETECTOR         yunet, remote or mock
//	FACEFX_DETECTOR_URL     remote landmarker URL
//	FACEFX_MODEL_PATH       model asset path
//	FACEFX_AVATAR           avatar name or .json path
//	FACEFX_FFMPEG           ffmpeg binary
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("LOG_LEVEL", &c.LogLevel)
	e.str("ADDR", &c.Web.Addr)
	e.boolean("AUTO_OPEN", &c.AutoOpen)

	p := &c.Pipeline
	if v, ok := e.get("MODE"); ok {
		p.Mode = pipeline.Mode(v)
	}
	e.str("CAMERA", &p.Capture.Device)
	if v, ok := e.get("CAMERA_BACKEND"); ok {
		p.Capture.Backend = capture.Backend(v)
	}
	e.integer("WIDTH", &p.Capture.Width)
	e.integer("HEIGHT", &p.Capture.Height)
	e.integer("FPS", &p.Capture.Framerate)
	e.boolean("MICROPHONE", &p.Capture.Microphone)
	if v, ok := e.get("AUDIO_BACKEND"); ok {
		p.Capture.Audio.Backend = audioio.Backend(v)
	}
	e.str("DETECTOR", &p.Detector.Backend)
	e.str("DETECTOR_URL", &p.Detector.RemoteURL)
	e.str("MODEL_PATH", &p.Detector.Options.ModelAssetPath)
	e.str("AVATAR", &p.Avatar.Avatar)
	e.str("FFMPEG", &p.Recorder.FFmpegPath)

	return e.err
}

// envReader keeps the first parse error.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) integer(name string, dst *int) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = n
}

func (e *envReader) boolean(name string, dst *bool) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = b
}

func (e *envReader) fail(name, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s%s=%q: %w", EnvPrefix, name, value, err)
	}
}
