package compression

import (
	"bytes"
	"strings"
	"testing"
)

// frame is a representative JSON change-set frame payload
var frame = []byte(strings.Repeat(`{"reason":"Add","key":42,"current":{"id":42,"name":"sensor"}},`, 50))

func roundTrip(t *testing.T, config *Config) {
	t.Helper()
	c, err := NewCompressor(config)
	if err != nil {
		t.Fatalf("Failed to create compressor: %v", err)
	}
	defer c.Close()

	compressed, err := c.Compress(frame)
	if err != nil {
		t.Fatalf("Failed to compress: %v", err)
	}
	decompressed, err := c.Decompress(compressed)
	if err != nil {
		t.Fatalf("Failed to decompress: %v", err)
	}
	if !bytes.Equal(decompressed, frame) {
		t.Error("Expected round trip to reproduce the frame")
	}
	if config.Algorithm != AlgorithmNone && len(compressed) >= len(frame) {
		t.Errorf("Expected %s to shrink a repetitive frame, got %d >= %d",
			config.Algorithm, len(compressed), len(frame))
	}
}

func TestSnappyRoundTrip(t *testing.T) {
	roundTrip(t, SnappyConfig())
}

func TestZstdRoundTrip(t *testing.T) {
	roundTrip(t, ZstdConfig(3))
}

func TestGzipRoundTrip(t *testing.T) {
	roundTrip(t, GzipConfig(6))
}

func TestZlibRoundTrip(t *testing.T) {
	roundTrip(t, ZlibConfig(6))
}

func TestNonePassesThrough(t *testing.T) {
	c, err := NewCompressor(NoneConfig())
	if err != nil {
		t.Fatalf("Failed to create compressor: %v", err)
	}
	defer c.Close()

	out, err := c.Compress(frame)
	if err != nil {
		t.Fatalf("Failed to compress: %v", err)
	}
	if !bytes.Equal(out, frame) {
		t.Error("Expected none algorithm to pass data through")
	}
}

func TestEmptyPayload(t *testing.T) {
	c, err := NewCompressor(SnappyConfig())
	if err != nil {
		t.Fatalf("Failed to create compressor: %v", err)
	}
	defer c.Close()

	out, err := c.Compress(nil)
	if err != nil {
		t.Fatalf("Failed to compress empty payload: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Expected empty output, got %d bytes", len(out))
	}
}

func TestParseAlgorithm(t *testing.T) {
	cases := map[string]Algorithm{
		"":       AlgorithmNone,
		"none":   AlgorithmNone,
		"snappy": AlgorithmSnappy,
		"zstd":   AlgorithmZstd,
		"gzip":   AlgorithmGzip,
		"zlib":   AlgorithmZlib,
	}
	for name, expected := range cases {
		got, err := ParseAlgorithm(name)
		if err != nil {
			t.Errorf("Failed to parse %q: %v", name, err)
		}
		if got != expected {
			t.Errorf("Expected %q to parse as %v, got %v", name, expected, got)
		}
	}

	if _, err := ParseAlgorithm("lz4"); err == nil {
		t.Error("Expected unknown algorithm to be rejected")
	}
}

func TestDecompressGarbageFails(t *testing.T) {
	for _, config := range []*Config{ZstdConfig(3), GzipConfig(6), ZlibConfig(6)} {
		c, err := NewCompressor(config)
		if err != nil {
			t.Fatalf("Failed to create compressor: %v", err)
		}
		if _, err := c.Decompress([]byte("definitely not compressed")); err == nil {
			t.Errorf("Expected %s to reject garbage input", config.Algorithm)
		}
		c.Close()
	}
}

func BenchmarkCompressSnappy(b *testing.B) {
	c, _ := NewCompressor(SnappyConfig())
	defer c.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Compress(frame)
	}
}

func BenchmarkCompressZstd(b *testing.B) {
	c, _ := NewCompressor(ZstdConfig(3))
	defer c.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Compress(frame)
	}
}
