package avatar

import (
	"context"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-facefx/pkg/landmark"
	"github.com/teslashibe/go-facefx/pkg/presence"
)

// face5 builds a YuNet-style set with the nose at noseX.
func face5(noseX, mouthY float64) landmark.Set {
	return landmark.Set{
		{X: 0.40, Y: 0.40},
		{X: 0.60, Y: 0.40},
		{X: noseX, Y: 0.50},
		{X: 0.45, Y: mouthY},
		{X: 0.55, Y: mouthY},
	}
}

func loadDefault(t *testing.T) (*Avatar, *Skeleton) {
	t.Helper()
	a, err := LoadEmbedded(DefaultAvatar)
	require.NoError(t, err)
	s, err := NewSkeleton(a)
	require.NoError(t, err)
	return a, s
}

func TestLoadEmbedded_Default(t *testing.T) {
	a, s := loadDefault(t)

	assert.Equal(t, "default", a.Name)
	assert.Contains(t, a.Joints, "Head")
	assert.Contains(t, a.Blendshapes, "jawOpen")
	assert.Contains(t, a.Blendshapes, "eyeBlink")
	assert.Len(t, a.Mappings, len(DefaultMappings()))

	arm, ok := s.Joint("LeftUpperArm")
	require.True(t, ok)
	assert.InDelta(t, 1.2, arm.Z, 1e-9)
}

func TestLoad(t *testing.T) {
	a, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAvatar, a.Name)

	robot, err := Load("robot")
	require.NoError(t, err)
	assert.Equal(t, "Neck", robot.Mappings[1].Joint)

	_, err = Load("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListEmbedded(t *testing.T) {
	names, err := ListEmbedded()
	require.NoError(t, err)
	assert.Contains(t, names, "default")
	assert.Contains(t, names, "robot")
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{`},
		{"no joints", `{"joints": []}`},
		{"unknown correction", `{"joints": ["Head"], "pose_corrections": {"Tail": {"x": 1}}}`},
		{"default mapping without jaw", `{"joints": ["Head"], "blendshapes": []}`},
		{"mapping to missing joint", `{"joints": ["Head"], "mappings": [{"signal": "yaw", "joint": "Neck", "axis": "y", "sensitivity": 1, "min": -1, "max": 1}]}`},
		{"mapping with two targets", `{"joints": ["Head"], "blendshapes": ["jawOpen"], "mappings": [{"signal": "mouth", "joint": "Head", "axis": "x", "blendshape": "jawOpen", "sensitivity": 1, "max": 1}]}`},
		{"unknown signal", `{"joints": ["Head"], "mappings": [{"signal": "roll", "joint": "Head", "axis": "z", "sensitivity": 1, "max": 1}]}`},
	}

	dir := t.TempDir()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := LoadFromFile(path)
			assert.ErrorIs(t, err, ErrInvalidAvatar)
		})
	}
}

func TestLoadFromFile_Custom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.json")
	body := `{"joints": ["Head"], "blendshapes": ["jawOpen", "eyeBlink"]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	a, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cat", a.Name)
}

func TestSkeleton(t *testing.T) {
	_, s := loadDefault(t)

	require.NoError(t, s.SetJointRotation("LeftUpperArm", Euler{X: 0.5}))
	arm, _ := s.Joint("LeftUpperArm")
	assert.Equal(t, Euler{X: 0.5, Z: 1.2}, arm)

	require.NoError(t, s.SetBlendshape("jawOpen", 1.7))
	w, _ := s.Blendshape("jawOpen")
	assert.Equal(t, 1.0, w)

	assert.ErrorIs(t, s.SetJointRotation("Tail", Euler{}), ErrUnknownJoint)
	assert.ErrorIs(t, s.SetBlendshape("smirk", 1), ErrUnknownBlendshape)

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.Seq)
	snap.Blendshapes["jawOpen"] = 0
	w, _ = s.Blendshape("jawOpen")
	assert.Equal(t, 1.0, w, "snapshot must be a copy")
}

func TestBoneMapping_Apply(t *testing.T) {
	m := DefaultMappings()

	tests := []struct {
		name    string
		mapping BoneMapping
		in      float64
		want    float64
	}{
		{"yaw straight", m[0], 0, 0},
		{"yaw scaled", m[0], 0.2, 0.3},
		{"yaw clamped", m[0], 2, math.Pi / 3},
		{"pitch scaled", m[1], 0.1, 0.05 * math.Pi},
		{"pitch clamped", m[1], -1, -math.Pi / 4},
		{"mouth closed", m[2], 0.01, 0},
		{"mouth half", m[2], 0.05, 0.5},
		{"mouth wide", m[2], 0.2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.mapping.Apply(tt.in), 1e-9)
		})
	}
}

func TestMeasure(t *testing.T) {
	sig, ok := Measure(face5(0.5, 0.55), landmark.Face5)
	require.True(t, ok)
	assert.InDelta(t, 0, sig.Yaw, 1e-9)
	assert.InDelta(t, 0, sig.Pitch, 1e-9)
	assert.InDelta(t, 0.05, sig.Mouth, 1e-9)

	sig, ok = Measure(face5(0.55, 0.55), landmark.Face5)
	require.True(t, ok)
	assert.InDelta(t, math.Atan2(0.05, 0.1), sig.Yaw, 1e-9)

	_, ok = Measure(landmark.Set{{X: 0.5}}, landmark.Face5)
	assert.False(t, ok)
}

func TestMeasure_Depth(t *testing.T) {
	topo := landmark.FaceMesh
	set := make(landmark.Set, topo.Count)
	set[topo.RightEar] = landmark.Landmark{X: 0.3, Y: 0.5, Z: 0}
	set[topo.LeftEar] = landmark.Landmark{X: 0.7, Y: 0.5, Z: 0.4}
	set[topo.NoseTip] = landmark.Landmark{X: 0.5, Y: 0.6}
	set[topo.MouthRight] = landmark.Landmark{X: 0.45, Y: 0.7}
	set[topo.MouthLeft] = landmark.Landmark{X: 0.55, Y: 0.7}

	sig, ok := Measure(set, topo)
	require.True(t, ok)
	assert.InDelta(t, math.Pi/4, sig.Yaw, 1e-9)
	assert.InDelta(t, 0.1, sig.Pitch, 1e-9)
	assert.InDelta(t, 0.1, sig.Mouth, 1e-9)
}

func TestRetargeter_Update(t *testing.T) {
	_, s := loadDefault(t)
	r, err := NewRetargeter(s, landmark.Face5, nil, nil)
	require.NoError(t, err)

	ok, err := r.Update(face5(0.55, 0.55), presence.Active)
	require.NoError(t, err)
	require.True(t, ok)

	head, _ := s.Joint("Head")
	assert.InDelta(t, 1.5*math.Atan2(0.05, 0.1), head.Y, 1e-9)
	assert.InDelta(t, 0, head.X, 1e-9)
	jaw, _ := s.Blendshape("jawOpen")
	assert.InDelta(t, 0.5, jaw, 1e-9)

	ok, err = r.Update(face5(0.5, 0.60), presence.Grace)
	require.NoError(t, err)
	assert.True(t, ok)
	head, _ = s.Joint("Head")
	assert.InDelta(t, 0, head.Y, 1e-9)
}

func TestRetargeter_FrozenOutsideActive(t *testing.T) {
	_, s := loadDefault(t)
	r, err := NewRetargeter(s, landmark.Face5, nil, nil)
	require.NoError(t, err)

	_, err = r.Update(face5(0.55, 0.55), presence.Active)
	require.NoError(t, err)
	before := s.Snapshot()

	for _, st := range []presence.State{presence.Fading, presence.Lost} {
		ok, err := r.Update(face5(0.45, 0.60), st)
		require.NoError(t, err)
		assert.False(t, ok, st.String())
	}

	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, RetargetStats{Applied: 1, Frozen: 2}, r.Stats())
	assert.InDelta(t, math.Atan2(0.05, 0.1), r.LastSignals().Yaw, 1e-9)
}

func TestRetargeter_InvalidMapping(t *testing.T) {
	_, s := loadDefault(t)
	_, err := NewRetargeter(s, landmark.Face5, []BoneMapping{{Signal: "roll"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidAvatar)
}

func TestBlinker(t *testing.T) {
	_, s := loadDefault(t)
	b := NewBlinker(s, BlinkConfig{
		Interval:   20 * time.Millisecond,
		Duration:   5 * time.Millisecond,
		Blendshape: "eyeBlink",
	}, nil)

	require.NoError(t, b.Start(context.Background()))
	assert.ErrorIs(t, b.Start(context.Background()), ErrAlreadyRunning)
	assert.True(t, b.Running())

	// Blinks keep coming while the retargeter is frozen.
	r, err := NewRetargeter(s, landmark.Face5, nil, nil)
	require.NoError(t, err)
	_, err = r.Update(face5(0.5, 0.55), presence.Lost)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return b.Blinks() >= 2 }, time.Second, 5*time.Millisecond)

	b.Stop()
	b.Stop()
	assert.False(t, b.Running())
	w, _ := s.Blendshape("eyeBlink")
	assert.Equal(t, 0.0, w)
}

func TestSketch_Features(t *testing.T) {
	_, s := loadDefault(t)
	sk := DefaultSketch()

	count := func() int {
		img := image.NewRGBA(image.Rect(0, 0, 320, 240))
		sk.Draw(img, s.Snapshot())
		n := 0
		for i := 0; i < len(img.Pix); i += 4 {
			if img.Pix[i] == sk.Feature.R && img.Pix[i+1] == sk.Feature.G && img.Pix[i+2] == sk.Feature.B {
				n++
			}
		}
		return n
	}

	base := count()
	assert.Greater(t, base, 0)

	require.NoError(t, s.SetBlendshape("jawOpen", 1))
	open := count()
	assert.Greater(t, open, base)

	require.NoError(t, s.SetBlendshape("eyeBlink", 1))
	assert.Less(t, count(), open)
}
