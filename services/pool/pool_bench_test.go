package pool

import (
	"bytes"
	"testing"
)

func BenchmarkBufferPool(b *testing.B) {
	pool := NewObjectPool()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := pool.Buffer.Get()
			buf.WriteString("00000000  48 65 6c 6c 6f")
			pool.ResetBuffer(buf)
		}
	})
}

// Benchmark direct allocation for comparison
func BenchmarkBufferAllocation(b *testing.B) {
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := bytes.NewBuffer(make([]byte, 0, 4096))
			buf.WriteString("00000000  48 65 6c 6c 6f")
		}
	})
}
