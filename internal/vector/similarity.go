package vector

import "math"

// InnerProduct returns the inner product of two vectors; for L2-normalized
// vectors this equals their cosine similarity.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return dot
}

// L2Norm returns the Euclidean norm of x.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v * v)
	}
	return math.Sqrt(sum)
}

// NormalizeL2 scales x in place to unit L2 norm and returns the original
// norm. A norm of zero leaves x unchanged.
func NormalizeL2(x []float32) float64 {
	norm := L2Norm(x)
	if norm == 0 {
		return 0
	}
	inv := float32(1 / norm)
	for i := range x {
		x[i] *= inv
	}
	return norm
}
