// Package compression provides the chunk compression codecs.
//
// Both codecs use self-describing frame formats, so decompression does
// not need the plaintext length up front.
package compression

import (
	"bytes"
	"fmt"

	"github.com/caskstore/cask/pkg/sgdata"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	// SchemeZstd is the default codec: good ratios on text-like
	// backup content at acceptable CPU cost.
	SchemeZstd = "zstd"

	// SchemeLZ4 trades ratio for speed.
	SchemeLZ4 = "lz4"

	// SchemeNone disables compression.
	SchemeNone = "none"

	// decompressed output is produced in parts of this size
	partSize = 512 * 1024
)

// Codec compresses chunk plaintext on write and reverses it on read.
type Codec interface {
	Name() string
	Compress(data sgdata.SG) (sgdata.SG, error)
	Decompress(data sgdata.SG) (sgdata.SG, error)
}

// ForScheme returns the Codec for a config scheme name.
func ForScheme(scheme string) (Codec, error) {
	switch scheme {
	case SchemeZstd, "":
		return newZstdCodec()
	case SchemeLZ4:
		return lz4Codec{}, nil
	case SchemeNone:
		return noneCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown compression scheme %q", scheme)
	}
}

type noneCodec struct{}

func (noneCodec) Name() string                                 { return SchemeNone }
func (noneCodec) Compress(data sgdata.SG) (sgdata.SG, error)   { return data, nil }
func (noneCodec) Decompress(data sgdata.SG) (sgdata.SG, error) { return data, nil }

type zstdCodec struct {
	// encoder and decoder are stateless in EncodeAll/DecodeAll mode
	// and safe for concurrent use
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec() (Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) Name() string { return SchemeZstd }

func (c *zstdCodec) Compress(data sgdata.SG) (sgdata.SG, error) {
	return sgdata.FromSingle(c.enc.EncodeAll(data.Bytes(), nil)), nil
}

func (c *zstdCodec) Decompress(data sgdata.SG) (sgdata.SG, error) {
	out, err := c.dec.DecodeAll(data.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return sgdata.FromSingle(out), nil
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return SchemeLZ4 }

func (lz4Codec) Compress(data sgdata.SG) (sgdata.SG, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := data.WriteTo(w); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return sgdata.FromSingle(buf.Bytes()), nil
}

func (lz4Codec) Decompress(data sgdata.SG) (sgdata.SG, error) {
	sg, err := sgdata.ReadAll(lz4.NewReader(bytes.NewReader(data.Bytes())), partSize)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return sg, nil
}
