package landmark

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestSmooth_Bootstrap(t *testing.T) {
	raw := Set{{X: 0.2, Y: 0.4, Z: -0.1}, {X: 0.6, Y: 0.5, Z: 0}}

	got := Smooth(raw, nil, DefaultAlpha)
	if diff := cmp.Diff(raw, got); diff != "" {
		t.Errorf("bootstrap should return raw unchanged (-want +got):\n%s", diff)
	}
}

func TestSmooth_Blend(t *testing.T) {
	prev := Set{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 1}}
	raw := Set{{X: 1, Y: 0.5, Z: -1}, {X: 0, Y: 1, Z: 0}}

	got := Smooth(raw, prev, 0.1)
	want := Set{{X: 0.1, Y: 0.05, Z: -0.1}, {X: 0.9, Y: 1, Z: 0.9}}

	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("blend mismatch (-want +got):\n%s", diff)
	}
}

func TestSmooth_StaysBetweenInputs(t *testing.T) {
	prev := make(Set, 478)
	raw := make(Set, 478)
	for i := range raw {
		prev[i] = Landmark{X: float64(i%7) / 7, Y: float64(i%11) / 11, Z: -float64(i%3) / 3}
		raw[i] = Landmark{X: float64(i%5) / 5, Y: float64(i%13) / 13, Z: float64(i%4) / 4}
	}

	for _, alpha := range []float64{0.1, 0.5, 0.9} {
		got := Smooth(raw, prev, alpha)
		if len(got) != len(raw) {
			t.Fatalf("alpha %.1f: length %d, want %d", alpha, len(got), len(raw))
		}
		for i := range got {
			checkBetween(t, got[i].X, raw[i].X, prev[i].X)
			checkBetween(t, got[i].Y, raw[i].Y, prev[i].Y)
			checkBetween(t, got[i].Z, raw[i].Z, prev[i].Z)
		}
	}
}

func checkBetween(t *testing.T, v, a, b float64) {
	t.Helper()
	lo, hi := math.Min(a, b), math.Max(a, b)
	if a == b {
		if math.Abs(v-a) > 1e-12 {
			t.Errorf("got %v, want %v", v, a)
		}
		return
	}
	if v <= lo || v >= hi {
		t.Errorf("%v not strictly between %v and %v", v, lo, hi)
	}
}

func TestSmooth_LengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on length mismatch")
		}
	}()
	Smooth(make(Set, 33), make(Set, 478), DefaultAlpha)
}

func TestSmoother_UpdateAndReset(t *testing.T) {
	s := NewSmoother(0.5)

	first := s.Update(Set{{X: 1}})
	if first[0].X != 1 {
		t.Errorf("first update: got %v, want 1", first[0].X)
	}

	second := s.Update(Set{{X: 0}})
	if second[0].X != 0.5 {
		t.Errorf("second update: got %v, want 0.5", second[0].X)
	}

	s.Reset()
	if s.Current() != nil {
		t.Error("Reset should drop the held set")
	}

	third := s.Update(Set{{X: 0.25}})
	if third[0].X != 0.25 {
		t.Errorf("after reset: got %v, want 0.25", third[0].X)
	}
}

func TestNewSmoother_ClampsAlpha(t *testing.T) {
	if a := NewSmoother(-1).Alpha(); a != 0 {
		t.Errorf("got %v, want 0", a)
	}
	if a := NewSmoother(3).Alpha(); a != 1 {
		t.Errorf("got %v, want 1", a)
	}
}

func TestSet_At(t *testing.T) {
	s := Set{{X: 0.1}, {X: 0.2}}

	if _, ok := s.At(None); ok {
		t.Error("None index should not resolve")
	}
	if _, ok := s.At(2); ok {
		t.Error("out of range index should not resolve")
	}
	if l, ok := s.At(1); !ok || l.X != 0.2 {
		t.Errorf("At(1) = %v, %v", l, ok)
	}
}

func TestTopologies(t *testing.T) {
	for _, kind := range []Kind{KindFaceMesh, KindPose, KindFace5} {
		topo, err := TopologyFor(kind)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		for name, idx := range map[string]int{
			"RightEye": topo.RightEye, "LeftEye": topo.LeftEye, "NoseTip": topo.NoseTip,
			"MouthRight": topo.MouthRight, "MouthLeft": topo.MouthLeft,
			"RightEar": topo.RightEar, "LeftEar": topo.LeftEar,
		} {
			if idx < 0 || idx >= topo.Count {
				t.Errorf("%s.%s = %d out of range [0,%d)", kind, name, idx, topo.Count)
			}
		}
	}

	if _, err := TopologyFor("hands"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestGeometry(t *testing.T) {
	a := Landmark{X: 0.25, Y: 0.5}.ToPixel(640, 480)
	b := Landmark{X: 0.75, Y: 0.5}.ToPixel(640, 480)

	if a.X != 160 || a.Y != 240 {
		t.Errorf("ToPixel: got %+v", a)
	}
	if d := Distance(a, b); d != 320 {
		t.Errorf("Distance: got %v, want 320", d)
	}
	if m := Midpoint(a, b); m.X != 320 || m.Y != 240 {
		t.Errorf("Midpoint: got %+v", m)
	}
}

func TestTopology_Index(t *testing.T) {
	tests := []struct {
		topo Topology
		role Role
		want int
	}{
		{FaceMesh, RoleBetweenEyes, 168},
		{FaceMesh, RoleForehead, 10},
		{Pose, RoleLeftShoulder, 11},
		{Face5, RoleForehead, None},
		{Face5, RoleRightEar, 0},
		{Face5, "chin", None},
	}
	for _, tc := range tests {
		if got := tc.topo.Index(tc.role); got != tc.want {
			t.Errorf("%s.Index(%s) = %d, want %d", tc.topo.Kind, tc.role, got, tc.want)
		}
	}

	set := Set{{X: 0.1}, {X: 0.2}, {X: 0.3}, {X: 0.4}, {X: 0.5}}
	if l, ok := Face5.Lookup(set, RoleNoseTip); !ok || l.X != 0.3 {
		t.Errorf("Lookup nose tip: %+v %v", l, ok)
	}
	if _, ok := Face5.Lookup(set, RoleForehead); ok {
		t.Error("Lookup of a missing role should fail")
	}
}
