package audioio

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-dsp/dsp/resample"
)

func constant(value int16, n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = value
	}
	return s
}

func TestResample_SameRate(t *testing.T) {
	samples := []int16{1, 2, 3, 4, 5}
	result, err := Resample(samples, 48000, 48000)
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(result))
	}
	for i := range samples {
		if result[i] != samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, samples[i], result[i])
		}
	}
}

func TestResample_Lengths(t *testing.T) {
	tests := []struct {
		name     string
		in       int
		from, to int
		want     int
	}{
		{"downsample 2x", 960, 48000, 24000, 480},
		{"upsample 2x", 480, 24000, 48000, 960},
		{"cd to opus", 441, 44100, 48000, 480},
		{"wideband to opus", 320, 16000, 48000, 960},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Resample(constant(1000, tt.in), tt.from, tt.to)
			if err != nil {
				t.Fatal(err)
			}
			if len(result) != tt.want {
				t.Errorf("Expected %d samples, got %d", tt.want, len(result))
			}
		})
	}
}

func TestResample_KeepsLevel(t *testing.T) {
	result, err := Resample(constant(8000, 2205), 44100, 48000)
	if err != nil {
		t.Fatal(err)
	}
	// Past the filter warm-up a constant input stays constant.
	for i := len(result) / 2; i < len(result); i++ {
		if d := math.Abs(float64(result[i]) - 8000); d > 40 {
			t.Fatalf("Sample %d: expected ~8000, got %d", i, result[i])
		}
	}
}

func TestResample_RemovesAliasing(t *testing.T) {
	// 20 kHz cannot be represented at 16 kHz and must be filtered out.
	in := make([]int16, 4800)
	for i := range in {
		in[i] = int16(16000 * math.Sin(2*math.Pi*20000*float64(i)/48000))
	}
	out, err := Resample(in, 48000, 16000)
	if err != nil {
		t.Fatal(err)
	}
	var peak int16
	for _, s := range out[len(out)/4:] {
		if s > peak {
			peak = s
		}
	}
	if peak > 800 {
		t.Errorf("Expected aliased tone suppressed, peak %d", peak)
	}
}

func TestResample_Empty(t *testing.T) {
	result, err := Resample(nil, 24000, 48000)
	if err != nil || len(result) != 0 {
		t.Errorf("Expected empty result for empty input, got %v, %v", result, err)
	}
}

func TestResample_InvalidRate(t *testing.T) {
	_, err := Resample([]int16{1}, 0, 48000)
	if !errors.Is(err, resample.ErrInvalidRate) {
		t.Errorf("Expected ErrInvalidRate, got %v", err)
	}
}

func BenchmarkResample_44k1To48k(b *testing.B) {
	samples := make([]int16, 4410)
	for i := range samples {
		samples[i] = int16(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Resample(samples, 44100, 48000)
	}
}
