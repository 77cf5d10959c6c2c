package vector

import (
	"context"
	"testing"
)

func BenchmarkFlatIndexSearch(b *testing.B) {
	idx, _ := NewFlatIndex(384)
	ctx := context.Background()
	vecs := make([][]float32, 1000)
	for i := range vecs {
		vecs[i] = make([]float32, 384)
		vecs[i][0] = float32(i+1) / 1000
		vecs[i][i%384] += 0.5
	}
	_ = idx.Build(vecs)
	query := make([]float32, 384)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 10)
	}
}
