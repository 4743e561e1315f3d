package audio

// resample converts interleaved stereo from one rate to another with
// Catmull-Rom cubic interpolation.
func resample(in []float32, from, to int) []float32 {
	frames := len(in) / Channels
	if frames == 0 || from == to {
		return in
	}
	ratio := float64(from) / float64(to)
	outFrames := int(float64(frames) / ratio)
	if outFrames == 0 {
		outFrames = 1
	}

	at := func(frame, c int) float32 {
		if frame < 0 {
			frame = 0
		} else if frame >= frames {
			frame = frames - 1
		}
		return in[frame*Channels+c]
	}

	out := make([]float32, outFrames*Channels)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		x := float32(pos - float64(idx))
		for c := 0; c < Channels; c++ {
			out[i*Channels+c] = cubic(at(idx-1, c), at(idx, c), at(idx+1, c), at(idx+2, c), x)
		}
	}
	return out
}

func cubic(y0, y1, y2, y3, x float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1
	return a0*x*x*x + a1*x*x + a2*x + a3
}
