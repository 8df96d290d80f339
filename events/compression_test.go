//go:build test

package events

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	c, err := newCodec(CompressionLevelDefault)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte(`{"kind":"status_updated","active":true}`), 16)
	compressed := c.compress(payload)
	require.True(t, isZstdCompressed(compressed))
	require.Less(t, len(compressed), len(payload))

	restored, err := c.decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, payload, restored)
}

func TestCodecSkipsSmallPayloads(t *testing.T) {
	c, err := newCodec(CompressionLevelDefault)
	require.NoError(t, err)

	small := []byte(`{"kind":"drop_claimed"}`)
	require.Less(t, len(small), minCompressSize)
	require.Equal(t, small, c.compress(small))
}

func TestCodecNoneIsPassThrough(t *testing.T) {
	c, err := newCodec(CompressionLevelNone)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("x"), 256)
	require.Equal(t, payload, c.compress(payload))

	restored, err := c.decompress(payload)
	require.NoError(t, err)
	require.Equal(t, payload, restored)
}

func TestCodecDecompressPassesUncompressedThrough(t *testing.T) {
	c, err := newCodec(CompressionLevelBest)
	require.NoError(t, err)

	plain := []byte(`{"kind":"mining_complete"}`)
	restored, err := c.decompress(plain)
	require.NoError(t, err)
	require.Equal(t, plain, restored)
}

func TestCodecRejectsUnknownLevel(t *testing.T) {
	_, err := newCodec(CompressionLevel("turbo"))
	require.ErrorContains(t, err, "unknown compression level")
}

func TestCodecLevels(t *testing.T) {
	for _, level := range []CompressionLevel{CompressionLevelFastest, CompressionLevelDefault, CompressionLevelBest, ""} {
		c, err := newCodec(level)
		require.NoError(t, err, "level %q", level)

		payload := bytes.Repeat([]byte("drops "), 64)
		restored, err := c.decompress(c.compress(payload))
		require.NoError(t, err)
		require.Equal(t, payload, restored)
	}
}
