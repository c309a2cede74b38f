package jbig2

import (
	"fmt"
	"math"
)

const maxSpanSize = 256 * 1024 * 1024

// BitStream is a big-endian reader over an in-memory JBIG2 stream. Segment
// headers, segment data fields and the arithmetic decoder all read through
// it.
type BitStream struct {
	buf    []byte
	key    uint64
	byteIx uint32
}

// NewBitStream constructs a stream over data. Inputs larger than 256 MB are
// refused and leave the stream empty.
func NewBitStream(data []byte, key uint64) *BitStream {
	if len(data) > maxSpanSize {
		data = nil
	}
	return &BitStream{
		buf: data,
		key: key,
	}
}

// Key returns the stream key associated with the buffer.
func (bs *BitStream) Key() uint64 { return bs.key }

// ReadByte returns the next raw byte.
func (bs *BitStream) ReadByte() (uint8, error) {
	if !bs.InBounds() {
		return 0, fmt.Errorf("%w: read past end of stream at offset %d", ErrMalformed, bs.byteIx)
	}
	value := bs.buf[bs.byteIx]
	bs.byteIx++
	return value, nil
}

// ReadInt8 reads one byte as a two's complement offset.
func (bs *BitStream) ReadInt8() (int8, error) {
	b, err := bs.ReadByte()
	return int8(b), err
}

// ReadUint32 reads a big-endian 32-bit value.
func (bs *BitStream) ReadUint32() (uint32, error) {
	if bs.BytesLeft() < 4 {
		return 0, fmt.Errorf("%w: truncated uint32 at offset %d", ErrMalformed, bs.byteIx)
	}
	v := uint32(bs.buf[bs.byteIx])<<24 |
		uint32(bs.buf[bs.byteIx+1])<<16 |
		uint32(bs.buf[bs.byteIx+2])<<8 |
		uint32(bs.buf[bs.byteIx+3])
	bs.byteIx += 4
	return v, nil
}

// ReadUint16 reads a big-endian 16-bit value.
func (bs *BitStream) ReadUint16() (uint16, error) {
	if bs.BytesLeft() < 2 {
		return 0, fmt.Errorf("%w: truncated uint16 at offset %d", ErrMalformed, bs.byteIx)
	}
	v := uint16(bs.buf[bs.byteIx])<<8 | uint16(bs.buf[bs.byteIx+1])
	bs.byteIx += 2
	return v, nil
}

// CurByte returns the current byte, or zero when out of bounds.
func (bs *BitStream) CurByte() uint8 {
	if bs.InBounds() {
		return bs.buf[bs.byteIx]
	}
	return 0
}

// IncByte advances one byte.
func (bs *BitStream) IncByte() {
	bs.AddOffset(1)
}

// CurByteArith returns the current byte, or 0xFF past the end so the
// arithmetic decoder sees marker padding.
func (bs *BitStream) CurByteArith() uint8 {
	if bs.InBounds() {
		return bs.buf[bs.byteIx]
	}
	return 0xFF
}

// NextByteArith returns the byte after the current one, or 0xFF if none.
func (bs *BitStream) NextByteArith() uint8 {
	next := bs.byteIx + 1
	if next < uint32(len(bs.buf)) {
		return bs.buf[next]
	}
	return 0xFF
}

// Offset returns the current byte index.
func (bs *BitStream) Offset() uint32 { return bs.byteIx }

// SetOffset moves the stream to offset, clamped to the buffer size.
func (bs *BitStream) SetOffset(offset uint32) {
	if offset > uint32(len(bs.buf)) {
		offset = uint32(len(bs.buf))
	}
	bs.byteIx = offset
}

// AddOffset advances the current byte index while clamping to the buffer size.
func (bs *BitStream) AddOffset(delta uint32) {
	if delta > math.MaxUint32-bs.byteIx {
		delta = math.MaxUint32 - bs.byteIx
	}
	bs.SetOffset(bs.byteIx + delta)
}

// Pointer returns the unread remainder of the buffer.
func (bs *BitStream) Pointer() []byte {
	if int(bs.byteIx) >= len(bs.buf) {
		return nil
	}
	return bs.buf[bs.byteIx:]
}

// Span returns up to n bytes starting at offset without moving the stream.
// The second result reports whether all n bytes were available.
func (bs *BitStream) Span(offset, n uint32) ([]byte, bool) {
	if int64(offset) > int64(len(bs.buf)) {
		return nil, n == 0
	}
	end := int64(offset) + int64(n)
	if end > int64(len(bs.buf)) {
		return bs.buf[offset:], false
	}
	return bs.buf[offset:end], true
}

// BytesLeft returns the number of remaining bytes in the stream.
func (bs *BitStream) BytesLeft() uint32 {
	if int(bs.byteIx) >= len(bs.buf) {
		return 0
	}
	return uint32(len(bs.buf) - int(bs.byteIx))
}

// InBounds reports whether the current byte index is within the buffer.
func (bs *BitStream) InBounds() bool {
	return bs.byteIx < uint32(len(bs.buf))
}
