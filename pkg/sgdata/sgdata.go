// Package sgdata provides scatter/gather byte buffers.
//
// Chunk payloads travel through the store as an ordered sequence of
// parts rather than one contiguous slice: backends may return bodies in
// batches and the decompression path emits fixed-size segments. Callers
// that need contiguous bytes linearize explicitly.
package sgdata

import "io"

// SG is an ordered scatter/gather list of byte parts.
type SG [][]byte

// FromSingle wraps a single contiguous slice.
func FromSingle(b []byte) SG {
	return SG{b}
}

// Parts returns the underlying parts in order.
func (sg SG) Parts() [][]byte {
	return sg
}

// Len is the total number of bytes across all parts.
func (sg SG) Len() int {
	n := 0
	for _, part := range sg {
		n += len(part)
	}
	return n
}

// Bytes linearizes the buffer. A single-part SG returns its part
// without copying.
func (sg SG) Bytes() []byte {
	if len(sg) == 1 {
		return sg[0]
	}
	out := make([]byte, 0, sg.Len())
	for _, part := range sg {
		out = append(out, part...)
	}
	return out
}

// WriteTo writes every part to w, preserving part order.
func (sg SG) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for _, part := range sg {
		if len(part) == 0 {
			continue
		}
		n, err := w.Write(part)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// ReadAll drains r into parts of at most partSize bytes.
func ReadAll(r io.Reader, partSize int) (SG, error) {
	var sg SG
	for {
		part := make([]byte, partSize)
		n, err := io.ReadFull(r, part)
		if n > 0 {
			sg = append(sg, part[:n])
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return sg, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
