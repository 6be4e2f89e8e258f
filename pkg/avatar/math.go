package avatar

// clamp restricts a value to a range.
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// remap maps v linearly from [inMin, inMax] to [0, 1] without clamping.
func remap(v, inMin, inMax float64) float64 {
	if inMax == inMin {
		return 0
	}
	return (v - inMin) / (inMax - inMin)
}
