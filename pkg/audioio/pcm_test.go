package audioio

import "testing"

func TestBytesToSamples(t *testing.T) {
	data := []byte{0x02, 0x01, 0x04, 0x03}
	samples := BytesToSamples(data)

	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}
	if samples[0] != 0x0102 {
		t.Errorf("Sample 0: expected 0x0102, got 0x%04x", samples[0])
	}
	if samples[1] != 0x0304 {
		t.Errorf("Sample 1: expected 0x0304, got 0x%04x", samples[1])
	}
}

func TestStereoToMono(t *testing.T) {
	stereo := []int16{100, 200, 300, 400}
	mono := StereoToMono(stereo)

	if len(mono) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(mono))
	}

	// (100+200)/2 = 150, (300+400)/2 = 350
	expected := []int16{150, 350}
	for i, s := range expected {
		if mono[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, mono[i])
		}
	}
}

func TestFloatRoundTrip(t *testing.T) {
	samples := []int16{0, 16384, -16384, 32767, -32768}
	floats := make([]float64, len(samples))
	ToFloat(floats, samples)

	if floats[1] != 0.5 || floats[2] != -0.5 || floats[4] != -1 {
		t.Errorf("unexpected scaling: %v", floats)
	}

	back := make([]int16, len(floats))
	FromFloat(back, floats)
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("sample %d: expected %d, got %d", i, samples[i], back[i])
		}
	}
}

func TestFromFloat_Clips(t *testing.T) {
	out := make([]int16, 3)
	FromFloat(out, []float64{1.7, -2.5, 0.25})

	expected := []int16{32767, -32768, 8192}
	for i, s := range expected {
		if out[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, out[i])
		}
	}
}

func BenchmarkBytesToSamples(b *testing.B) {
	data := make([]byte, 960)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = BytesToSamples(data)
	}
}
