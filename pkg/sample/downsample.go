package sample

// Downsample reduces values to at most maxPoints by decimation.
// Destination-based: reuses dst if it has sufficient capacity, otherwise allocates new.
// A non-positive maxPoints returns all values.
func Downsample(dst []float64, values []float64, maxPoints int) []float64 {
	if maxPoints <= 0 || len(values) <= maxPoints {
		if cap(dst) >= len(values) {
			dst = dst[:len(values)]
		} else {
			dst = make([]float64, len(values))
		}
		copy(dst, values)
		return dst
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]float64, 0, maxPoints)
	}

	step := float64(len(values)) / float64(maxPoints)
	for i := range maxPoints {
		dst = append(dst, values[int(float64(i)*step)])
	}
	return dst
}

// History returns every channel's rolling window, oldest first, decimated
// to at most maxPoints values per channel.
func (d *Decoder) History(maxPoints int) [][]float64 {
	out := make([][]float64, len(d.windows))
	for ch, w := range d.windows {
		out[ch] = Downsample(nil, w.Values(), maxPoints)
	}
	return out
}
