package chunk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

func TestNewDigest(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, DigestSize)
	d, err := NewDigest(raw)
	require.NoError(t, err)
	require.Equal(t, raw, d[:])

	_, err = NewDigest(raw[:DigestSize-1])
	require.Error(t, err)
	require.IsType(t, &BadDigestSize{}, err)

	_, err = NewDigest(append(raw, 0xab))
	require.Error(t, err)
}

func TestDigestRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x5c}, DigestSize)
	d := MustNewDigest(raw)

	parsed, err := DigestFromString(d.String())
	require.NoError(t, err)
	require.Equal(t, d, parsed)

	_, err = DigestFromString("deadbeef")
	require.Error(t, err)

	_, err = DigestFromString(string(bytes.Repeat([]byte{'z'}, DigestSizeHex)))
	require.Error(t, err)
}

func TestDataTypeString(t *testing.T) {
	require.Equal(t, "index", DataTypeIndex.String())
	require.Equal(t, "data", DataTypeData.String())
}

func TestDataAddressYAML(t *testing.T) {
	addr := DataAddress{
		Digest:     MustNewDigest(bytes.Repeat([]byte{0x01}, DigestSize)),
		IndexLevel: 3,
	}

	b, err := yaml.Marshal(addr)
	require.NoError(t, err)

	var back DataAddress
	require.NoError(t, yaml.Unmarshal(b, &back))
	require.Equal(t, addr, back)
}
