package audioio

// BytesToSamples converts raw PCM16 little-endian bytes to int16 samples.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// StereoToMono averages stereo samples to mono.
func StereoToMono(samples []int16) []int16 {
	mono := make([]int16, len(samples)/2)
	for i := range mono {
		left := int32(samples[i*2])
		right := int32(samples[i*2+1])
		mono[i] = int16((left + right) / 2)
	}
	return mono
}

// ToFloat writes samples scaled to [-1, 1) into dst, which must be at
// least len(samples) long.
func ToFloat(dst []float64, samples []int16) {
	for i, s := range samples {
		dst[i] = float64(s) / 32768
	}
}

// FromFloat converts [-1, 1] floats back to PCM16, clipping out-of-range
// values.
func FromFloat(dst []int16, src []float64) {
	for i, v := range src {
		switch {
		case v >= 1:
			dst[i] = 32767
		case v <= -1:
			dst[i] = -32768
		default:
			dst[i] = int16(v * 32768)
		}
	}
}
