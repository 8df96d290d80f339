package events

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// CompressionLevel defines the compression level for Redis payloads.
// Maps to klauspost/compress/zstd levels.
type CompressionLevel string

const (
	// CompressionLevelNone disables compression entirely.
	CompressionLevelNone CompressionLevel = "none"

	// CompressionLevelFastest is zstd level 1.
	CompressionLevelFastest CompressionLevel = "fastest"

	// CompressionLevelDefault is zstd level 3. Recommended.
	CompressionLevelDefault CompressionLevel = "default"

	// CompressionLevelBest is zstd level 11.
	CompressionLevelBest CompressionLevel = "best"
)

// minCompressSize is the payload size below which compression is
// skipped (overhead not worth it).
const minCompressSize = 64

// codec is a thread-safe zstd encoder/decoder pair.
type codec struct {
	mu      sync.RWMutex
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	enabled bool
}

func newCodec(level CompressionLevel) (*codec, error) {
	c := &codec{}

	if level == CompressionLevelNone {
		return c, nil
	}

	var encLevel zstd.EncoderLevel
	switch level {
	case CompressionLevelFastest:
		encLevel = zstd.SpeedFastest
	case CompressionLevelDefault, "":
		encLevel = zstd.SpeedDefault
	case CompressionLevelBest:
		encLevel = zstd.SpeedBestCompression
	default:
		return nil, fmt.Errorf("unknown compression level: %s", level)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	c.encoder = encoder
	c.decoder = decoder
	c.enabled = true
	return c, nil
}

func (c *codec) compress(data []byte) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.enabled || len(data) < minCompressSize {
		return data
	}
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)))
}

// decompress restores a payload. Uncompressed payloads (no zstd magic
// number) pass through unchanged so mixed producers stay compatible.
func (c *codec) decompress(data []byte) ([]byte, error) {
	if !isZstdCompressed(data) {
		return data, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.decoder == nil {
		return nil, fmt.Errorf("decoder not initialized")
	}
	return c.decoder.DecodeAll(data, make([]byte, 0, len(data)*3))
}

// isZstdCompressed checks for the zstd magic number (0x28 0xB5 0x2F 0xFD).
func isZstdCompressed(data []byte) bool {
	return len(data) >= 4 &&
		data[0] == 0x28 &&
		data[1] == 0xB5 &&
		data[2] == 0x2F &&
		data[3] == 0xFD
}
