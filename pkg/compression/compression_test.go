package compression

import (
	"bytes"
	"testing"

	"github.com/caskstore/cask/pkg/sgdata"
	"github.com/stretchr/testify/require"
)

func TestForScheme(t *testing.T) {
	for _, scheme := range []string{"", SchemeZstd, SchemeLZ4, SchemeNone} {
		_, err := ForScheme(scheme)
		require.NoError(t, err, scheme)
	}
	_, err := ForScheme("brotli")
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte("x"),
		bytes.Repeat([]byte("compressible content "), 1000),
		{0x00, 0xff, 0x80, 0x7f},
	}

	for _, scheme := range []string{SchemeZstd, SchemeLZ4, SchemeNone} {
		codec, err := ForScheme(scheme)
		require.NoError(t, err)

		for _, payload := range payloads {
			compressed, err := codec.Compress(sgdata.FromSingle(payload))
			require.NoError(t, err, scheme)

			back, err := codec.Decompress(compressed)
			require.NoError(t, err, scheme)
			require.Equal(t, payload, append([]byte(nil), back.Bytes()...), scheme)
		}
	}
}

func TestCompressionShrinksRepetitiveContent(t *testing.T) {
	payload := sgdata.FromSingle(bytes.Repeat([]byte("0123456789"), 10000))

	for _, scheme := range []string{SchemeZstd, SchemeLZ4} {
		codec, err := ForScheme(scheme)
		require.NoError(t, err)

		compressed, err := codec.Compress(payload)
		require.NoError(t, err)
		require.Less(t, compressed.Len(), payload.Len(), scheme)
	}
}
