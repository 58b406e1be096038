// Package chunk holds the addressing model of the store: digests,
// data addresses and the data type tag that selects the read policy.
package chunk

import (
	"encoding/hex"
	"fmt"
)

const (
	// DigestSize is the fixed length of a chunk digest in bytes.
	DigestSize = 32

	// DigestSizeHex is the length of the hex representation of a digest.
	DigestSizeHex = 2 * DigestSize
)

// Digest identifies a chunk by the hash of its plaintext content.
type Digest [DigestSize]byte

// NewDigest creates a digest from raw bytes
func NewDigest(data []byte) (Digest, error) {
	var d Digest
	n := copy(d[:], data)
	if n != DigestSize || len(data) != DigestSize {
		return Digest{}, &BadDigestSize{Raw: data}
	}
	return d, nil
}

// MustNewDigest creates a digest from raw bytes but panics if there is an error
func MustNewDigest(data []byte) Digest {
	d, err := NewDigest(data)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// DigestFromString parses a digest from its hex representation
func DigestFromString(s string) (Digest, error) {
	if len(s) != DigestSizeHex {
		return Digest{}, fmt.Errorf("%q has invalid length %d, expected %d", s, len(s), DigestSizeHex)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, err
	}
	return NewDigest(raw)
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// BadDigestSize is an error that's returned when the digest to create has an invalid size.
type BadDigestSize struct {
	Raw []byte
}

func (b *BadDigestSize) Error() string {
	return fmt.Sprintf("%x has invalid size of %d, expected %d", b.Raw, len(b.Raw), DigestSize)
}

// DataType tags a chunk with the policy family it belongs to.
//
// Index chunks hold digest sequences, data chunks hold object bytes.
// Whether either gets compressed or encrypted is decided by the
// repository policy, not here.
type DataType int

const (
	// DataTypeData marks chunks holding object content
	DataTypeData DataType = iota

	// DataTypeIndex marks chunks holding sequences of child digests
	DataTypeIndex
)

func (t DataType) String() string {
	switch t {
	case DataTypeIndex:
		return "index"
	case DataTypeData:
		return "data"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// DataAddress names either a leaf data chunk (IndexLevel == 0) or an
// index chunk whose plaintext is a flat concatenation of level-1
// addresses' digests.
//
// The level is purely an interpretation of the chunk's plaintext: every
// chunk, whatever its level, is stored as one flat chunk.
type DataAddress struct {
	Digest     Digest `yaml:"digest"`
	IndexLevel uint32 `yaml:"index_level"`
}

func (a DataAddress) String() string {
	return fmt.Sprintf("%s@%d", a.Digest, a.IndexLevel)
}

// MarshalYAML stores the digest in hex
func (a DataAddress) MarshalYAML() (interface{}, error) {
	return struct {
		Digest     string `yaml:"digest"`
		IndexLevel uint32 `yaml:"index_level"`
	}{Digest: a.Digest.String(), IndexLevel: a.IndexLevel}, nil
}

// UnmarshalYAML parses the hex digest back
func (a *DataAddress) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var aux struct {
		Digest     string `yaml:"digest"`
		IndexLevel uint32 `yaml:"index_level"`
	}
	if err := unmarshal(&aux); err != nil {
		return err
	}
	d, err := DigestFromString(aux.Digest)
	if err != nil {
		return err
	}
	a.Digest = d
	a.IndexLevel = aux.IndexLevel
	return nil
}
