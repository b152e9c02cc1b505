package utils

import "math"

// NormalizeL2 scales x in place to unit length, so inner products between normalized
// vectors are cosine similarities. It reports false and leaves x unchanged when x has
// no usable magnitude (all zeros, NaN or Inf).
func NormalizeL2(x []float32) bool {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return false
	}
	scale := 1 / math.Sqrt(sum)
	for i, v := range x {
		x[i] = float32(float64(v) * scale)
	}
	return true
}
