package vector

// InnerProduct returns the dot product of a and b, accumulated in float64.
// Both vectors are unit length in an index, so this is their cosine similarity.
// Vectors of different lengths score 0.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i, x := range a {
		dot += float64(x) * float64(b[i])
	}
	return dot
}
