package compression

import (
	"bytes"
	"testing"
)

func TestZstdCompressor(t *testing.T) {
	c, err := NewZstdCompressor(LevelDefault)
	if err != nil {
		t.Fatalf("Failed to create zstd compressor: %v", err)
	}
	defer c.Close()

	original := []byte("Hello, World! This is a test string for compression.")

	compressed, err := c.Compress(original)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	decompressed, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}

	if !bytes.Equal(original, decompressed) {
		t.Error("Decompressed data doesn't match original")
	}
}

func TestCompressionLevels(t *testing.T) {
	original := make([]byte, 10000)
	for i := range original {
		original[i] = byte(i % 256)
	}

	levels := []Level{LevelFastest, LevelDefault, LevelBest}

	for _, level := range levels {
		c, err := NewZstdCompressor(level)
		if err != nil {
			t.Fatalf("Failed to create compressor: %v", err)
		}

		compressed, err := c.Compress(original)
		if err != nil {
			t.Fatalf("Compress failed: %v", err)
		}
		decompressed, err := c.Decompress(compressed)
		if err != nil {
			t.Fatalf("Decompress failed: %v", err)
		}
		if !bytes.Equal(original, decompressed) {
			t.Error("Data mismatch")
		}
		c.Close()
	}
}

func BenchmarkZstdCompress(b *testing.B) {
	c, _ := NewZstdCompressor(LevelDefault)
	defer c.Close()
	data := make([]byte, 10000)
	for i := range data {
		data[i] = byte(i % 256)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Compress(data)
	}
}

func BenchmarkZstdDecompress(b *testing.B) {
	c, _ := NewZstdCompressor(LevelDefault)
	defer c.Close()
	data := make([]byte, 10000)
	for i := range data {
		data[i] = byte(i % 256)
	}
	compressed, _ := c.Compress(data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Decompress(compressed)
	}
}
