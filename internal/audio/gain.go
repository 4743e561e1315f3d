package audio

// MixRamp adds src into acc while moving the gain linearly from `from` to `to`
// across the block. Both slices hold interleaved stereo; the gain steps once
// per frame so left and right stay matched.
func MixRamp(acc []float32, src []int16, from, to float64) {
	n := len(src) / Channels
	if m := len(acc) / Channels; m < n {
		n = m
	}
	if n == 0 {
		return
	}
	step := (to - from) / float64(n)
	for i := 0; i < n; i++ {
		g := float32(from + step*float64(i+1))
		if g == 0 {
			continue
		}
		for c := 0; c < Channels; c++ {
			acc[i*Channels+c] += float32(src[i*Channels+c]) * g
		}
	}
}

// ClampSample rounds v to the int16 range.
func ClampSample(v float32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// Quantize writes acc into dst with clipping.
func Quantize(dst []int16, acc []float32) {
	for i := range dst {
		if i >= len(acc) {
			dst[i] = 0
			continue
		}
		dst[i] = ClampSample(acc[i])
	}
}

// floatToSample converts a normalized float sample to int16.
func floatToSample(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return int16(x * 32767)
}
