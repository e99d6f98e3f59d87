package audiovol

// mix writes the weighted sum of srcs into out, which may alias the
// first source. An input with no setting of its own uses the first
// input's. A nil source is a disabled input.
func mix(out [][]float32, srcs [][][]float32, vol, pan []float64, swap []bool) {
	dst := make([][]float32, len(out))
	for c := range out {
		dst[c] = make([]float32, len(out[c]))
	}
	defer func() {
		for c := range out {
			copy(out[c], dst[c])
		}
	}()
	stereo := len(dst) == 2
	for i, src := range srcs {
		v := at(vol, i, 1)
		if v == 0 || len(src) == 0 {
			continue
		}
		if !stereo || len(src) < 2 {
			for c, acc := range dst {
				in := src[min(c, len(src)-1)]
				for s := range min(len(acc), len(in)) {
					acc[s] += float32(v) * in[s]
				}
			}
			continue
		}
		left, right := v, v
		if p := at(pan, i, 0); p < 0 {
			right *= 1 + p
		} else {
			left *= 1 - p
		}
		l, r := src[0], src[1]
		if at(swap, i, false) {
			l, r = r, l
		}
		for s := range min(len(dst[0]), len(l)) {
			dst[0][s] += float32(left) * l[s]
		}
		for s := range min(len(dst[1]), len(r)) {
			dst[1][s] += float32(right) * r[s]
		}
	}
}

func at[T any](vals []T, i int, def T) T {
	switch {
	case i < len(vals):
		return vals[i]
	case len(vals) > 0:
		return vals[0]
	}
	return def
}
