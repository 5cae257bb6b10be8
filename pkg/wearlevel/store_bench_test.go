//go:build bench
// +build bench

package wearlevel

import (
	"testing"

	"github.com/ssargent/wearlevel/pkg/device"
)

func benchStore(b *testing.B, size int) *Store {
	b.Helper()

	s, err := NewStore(device.NewMemory(size))
	if err != nil {
		b.Fatal(err)
	}
	if err := s.Format(); err != nil {
		b.Fatal(err)
	}
	if _, err := s.Init(); err != nil {
		b.Fatal(err)
	}
	return s
}

func BenchmarkStore_Write(b *testing.B) {
	s := benchStore(b, 1024)
	payload := make([]byte, 16)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		payload[0] = byte(i)
		if err := s.Write(payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStore_Read(b *testing.B) {
	s := benchStore(b, 1024)
	if err := s.Write(make([]byte, 16)); err != nil {
		b.Fatal(err)
	}
	buf := make([]byte, 16)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Read(buf); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStore_Init(b *testing.B) {
	s := benchStore(b, device.MaxSize)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Init(); err != nil {
			b.Fatal(err)
		}
	}
}
