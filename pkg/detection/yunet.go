package detection

import (
	"context"
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facefx/pkg/landmark"
)

// YuNetModel runs OpenCV's FaceDetectorYN and reports its five facial
// keypoints as a Face5 landmark set.
type YuNetModel struct {
	detector gocv.FaceDetectorYN
	opts     ModelOptions
	mu       sync.Mutex // Protects inference
	closed   bool
}

// NewYuNetModel loads the YuNet ONNX model at opts.ModelAssetPath.
func NewYuNetModel(opts ModelOptions) (*YuNetModel, error) {
	if opts.Kind != landmark.KindFace5 {
		return nil, fmt.Errorf("yunet produces %s landmarks, not %s", landmark.KindFace5, opts.Kind)
	}
	if _, err := os.Stat(opts.ModelAssetPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	if opts.Delegate == DelegateGPU {
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}

	// Input size is updated per frame
	detector := gocv.NewFaceDetectorYNWithParams(
		opts.ModelAssetPath,
		"",
		image.Pt(320, 320),
		float32(opts.MinDetectionConfidence),
		0.3,  // NMS threshold
		5000, // Top K
		int(backend),
		int(target),
	)

	return &YuNetModel{detector: detector, opts: opts}, nil
}

// YuNetFactory is a ModelFactory for YuNetModel.
func YuNetFactory(_ context.Context, opts ModelOptions) (Model, error) {
	return NewYuNetModel(opts)
}

type yunetFace struct {
	score float64
	area  float64
	set   landmark.Set
}

// DetectForVideo finds faces in frame. Faces are ordered best first.
func (m *YuNetModel) DetectForVideo(frame image.Image, _ int64) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Result{}, ErrClosed
	}

	img, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return Result{}, fmt.Errorf("convert frame: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return Result{}, fmt.Errorf("empty frame")
	}

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())

	m.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	m.detector.Detect(img, &faces)

	// YuNet rows (15 columns):
	// 0-3: x, y, w, h of the box in pixels
	// 4-13: right eye, left eye, nose tip, right mouth corner, left mouth corner
	// 14: score
	found := make([]yunetFace, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		set := make(landmark.Set, landmark.Face5.Count)
		for p := 0; p < landmark.Face5.Count; p++ {
			set[p] = landmark.Landmark{
				X: float64(faces.GetFloatAt(r, 4+2*p)) / imgW,
				Y: float64(faces.GetFloatAt(r, 5+2*p)) / imgH,
			}
		}
		w := float64(faces.GetFloatAt(r, 2)) / imgW
		h := float64(faces.GetFloatAt(r, 3)) / imgH
		found = append(found, yunetFace{
			score: float64(faces.GetFloatAt(r, 14)),
			area:  w * h,
			set:   set,
		})
	}

	rankFaces(found)

	n := min(len(found), m.opts.NumResults)
	res := Result{Landmarks: make([]landmark.Set, 0, n)}
	for _, f := range found[:n] {
		res.Landmarks = append(res.Landmarks, f.set)
	}
	return res, nil
}

// rankFaces orders faces by confidence*0.7 + relative area*0.3 so the
// most prominent confident face comes first.
func rankFaces(faces []yunetFace) {
	maxArea := 0.0
	for _, f := range faces {
		maxArea = max(maxArea, f.area)
	}
	score := func(f yunetFace) float64 {
		if maxArea == 0 {
			return f.score
		}
		return f.score*0.7 + (f.area/maxArea)*0.3
	}
	sort.SliceStable(faces, func(i, j int) bool {
		return score(faces[i]) > score(faces[j])
	})
}

// Close releases the detector resources.
func (m *YuNetModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.detector.Close()
	return nil
}
