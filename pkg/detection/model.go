// Package detection adapts external landmark models to a per-frame
// detect call with at most one invocation in flight.
package detection

import (
	"context"
	"fmt"
	"image"

	"github.com/teslashibe/go-facefx/pkg/landmark"
)

// Delegate selects the inference device.
type Delegate string

const (
	DelegateGPU Delegate = "GPU"
	DelegateCPU Delegate = "CPU"
)

// RunningMode mirrors the landmarker running modes. Only VIDEO is used by
// the render loop: timestamps must be non-decreasing.
type RunningMode string

const (
	RunningModeImage RunningMode = "IMAGE"
	RunningModeVideo RunningMode = "VIDEO"
)

// ModelOptions are passed to a model factory, the equivalent of a
// landmarker's createFromOptions.
type ModelOptions struct {
	ModelAssetPath string        `yaml:"model_asset_path" json:"modelAssetPath"`
	Delegate       Delegate      `yaml:"delegate" json:"delegate"`
	RunningMode    RunningMode   `yaml:"running_mode" json:"runningMode"`
	Kind           landmark.Kind `yaml:"kind" json:"kind"`

	MinDetectionConfidence float64 `yaml:"min_detection_confidence" json:"minDetectionConfidence"`
	MinPresenceConfidence  float64 `yaml:"min_presence_confidence" json:"minPresenceConfidence"`
	MinTrackingConfidence  float64 `yaml:"min_tracking_confidence" json:"minTrackingConfidence"`

	// NumResults is numFaces or numPoses depending on Kind.
	NumResults int `yaml:"num_results" json:"numResults"`
}

// DefaultModelOptions returns production defaults for the YuNet backend.
func DefaultModelOptions() ModelOptions {
	return ModelOptions{
		ModelAssetPath:         "models/face_detection_yunet.onnx",
		Delegate:               DelegateCPU,
		RunningMode:            RunningModeVideo,
		Kind:                   landmark.KindFace5,
		MinDetectionConfidence: 0.5,
		MinPresenceConfidence:  0.5,
		MinTrackingConfidence:  0.5,
		NumResults:             1,
	}
}

// Validate checks the options are usable.
func (o ModelOptions) Validate() error {
	if o.ModelAssetPath == "" {
		return fmt.Errorf("model_asset_path is required")
	}
	switch o.Delegate {
	case DelegateGPU, DelegateCPU:
	default:
		return fmt.Errorf("delegate must be GPU or CPU, got %q", o.Delegate)
	}
	if o.RunningMode != RunningModeVideo {
		return fmt.Errorf("running_mode must be VIDEO, got %q", o.RunningMode)
	}
	if _, err := landmark.TopologyFor(o.Kind); err != nil {
		return err
	}
	for name, v := range map[string]float64{
		"min_detection_confidence": o.MinDetectionConfidence,
		"min_presence_confidence":  o.MinPresenceConfidence,
		"min_tracking_confidence":  o.MinTrackingConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, v)
		}
	}
	if o.NumResults < 1 {
		return fmt.Errorf("num_results must be at least 1, got %d", o.NumResults)
	}
	return nil
}

// Result is one model invocation. Landmarks holds one set per detected
// subject; only the first is consumed.
type Result struct {
	Landmarks []landmark.Set `json:"landmarks"`
}

// First returns the first landmark set, if any.
func (r Result) First() (landmark.Set, bool) {
	if len(r.Landmarks) == 0 || len(r.Landmarks[0]) == 0 {
		return nil, false
	}
	return r.Landmarks[0], true
}

// Model is an external landmark model used as a black box.
type Model interface {
	// DetectForVideo runs the model on frame. timestampMs must be
	// non-decreasing across calls.
	DetectForVideo(frame image.Image, timestampMs int64) (Result, error)

	// Close releases the model.
	Close() error
}

// ModelFactory creates and initializes a model.
type ModelFactory func(ctx context.Context, opts ModelOptions) (Model, error)
