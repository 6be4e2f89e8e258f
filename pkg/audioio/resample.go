package audioio

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/resample"
)

// Resample converts a complete clip between sample rates with a polyphase
// FIR. Streams that arrive in chunks keep their own resample.Resampler so
// filter state carries across chunk boundaries.
func Resample(samples []int16, fromRate, toRate int) ([]int16, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("resample %d -> %d Hz: %w", fromRate, toRate, resample.ErrInvalidRate)
	}
	if fromRate == toRate || len(samples) == 0 {
		return samples, nil
	}

	in := make([]float64, len(samples))
	ToFloat(in, samples)

	g := gcd(fromRate, toRate)
	out, err := resample.Resample(in, toRate/g, fromRate/g)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d Hz: %w", fromRate, toRate, err)
	}

	pcm := make([]int16, len(out))
	FromFloat(pcm, out)
	return pcm, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
