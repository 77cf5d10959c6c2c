package indexer

import (
	"strings"
	"testing"
)

func BenchmarkChunker_Collect(b *testing.B) {
	c, _ := NewChunker(1000, 200)
	text := strings.Repeat("a line of meeting notes about the roof. ", 2500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Collect("notes/long.md", text)
	}
}
