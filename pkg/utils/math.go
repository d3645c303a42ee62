package utils

import "math"

// NormalizeL2 normalizes the slice in place to unit L2 norm.
// If the norm is zero, the slice is unchanged.
func NormalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range x {
		x[i] *= norm
	}
}

// MeanPool averages the token rows of a [tokens x dims] matrix stored row-major in
// data, counting only rows whose mask entry is non-zero. A nil mask counts every row.
// Returns nil if no row is counted or the shapes disagree.
func MeanPool(data []float32, mask []int64, tokens, dims int) []float32 {
	if tokens <= 0 || dims <= 0 || len(data) < tokens*dims {
		return nil
	}
	out := make([]float32, dims)
	var counted float32
	for t := 0; t < tokens; t++ {
		if mask != nil && (t >= len(mask) || mask[t] == 0) {
			continue
		}
		row := data[t*dims : (t+1)*dims]
		for i, v := range row {
			out[i] += v
		}
		counted++
	}
	if counted == 0 {
		return nil
	}
	for i := range out {
		out[i] /= counted
	}
	return out
}

// AllFinite reports whether every value is neither NaN nor infinite.
func AllFinite(x []float32) bool {
	for _, v := range x {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
