package jbig2

import (
	"fmt"
	"math"
	"sync/atomic"
)

// ComposeOp selects how a region is combined with the bitmap beneath it.
type ComposeOp int

const (
	ComposeOR ComposeOp = iota
	ComposeAND
	ComposeXOR
	ComposeXNOR
	ComposeReplace
)

func (op ComposeOp) String() string {
	switch op {
	case ComposeOR:
		return "OR"
	case ComposeAND:
		return "AND"
	case ComposeXOR:
		return "XOR"
	case ComposeXNOR:
		return "XNOR"
	case ComposeReplace:
		return "REPLACE"
	default:
		return fmt.Sprintf("ComposeOp(%d)", int(op))
	}
}

// Image is a packed 1 bit per pixel bitmap. Rows are byte aligned with the
// most significant bit first, and the buffer carries one guard byte past the
// last row so whole-byte readers may run one byte over the final scanline.
//
// Images are shared between segments by reference count: Clone takes a
// reference and Release drops one, freeing the buffer at zero.
type Image struct {
	width  int
	height int
	stride int
	data   []byte
	refs   atomic.Int32
}

// NewImage allocates a zeroed w x h bitmap with a reference count of one.
func NewImage(w, h int) (*Image, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: invalid image dimensions %dx%d", ErrAllocation, w, h)
	}
	stride := ((w - 1) >> 3) + 1
	size, ok := bufferSize(stride, h)
	if !ok {
		return nil, fmt.Errorf("%w: stride(%d)*height(%d) overflows", ErrAllocation, stride, h)
	}
	img := &Image{
		width:  w,
		height: h,
		stride: stride,
		data:   make([]byte, size),
	}
	img.refs.Store(1)
	return img, nil
}

func bufferSize(stride, h int) (int, bool) {
	check := int64(stride)*int64(h) + 1
	if check > math.MaxInt32 {
		return 0, false
	}
	return int(check), true
}

// Width returns the image width in pixels.
func (img *Image) Width() int { return img.width }

// Height returns the image height in pixels.
func (img *Image) Height() int { return img.height }

// Stride returns the number of bytes per scanline.
func (img *Image) Stride() int { return img.stride }

// Data exposes the backing buffer, guard byte included.
func (img *Image) Data() []byte { return img.data }

// Clone takes another reference to img and returns it.
func (img *Image) Clone() *Image {
	if img != nil {
		img.refs.Add(1)
	}
	return img
}

// Release drops a reference. The buffer is freed when the last one goes.
func (img *Image) Release() {
	if img == nil {
		return
	}
	if img.refs.Add(-1) == 0 {
		img.data = nil
	}
}

// Refs reports the number of live references.
func (img *Image) Refs() int { return int(img.refs.Load()) }

// Line returns scanline y, or nil when y is outside the image.
func (img *Image) Line(y int) []byte {
	if img == nil || img.data == nil || y < 0 || y >= img.height {
		return nil
	}
	start := y * img.stride
	return img.data[start : start+img.stride]
}

// GetPixel returns the bit at (x, y). Coordinates outside the frame read as 0.
func (img *Image) GetPixel(x, y int) int {
	if img == nil || img.data == nil {
		return 0
	}
	if x < 0 || x >= img.width || y < 0 || y >= img.height {
		return 0
	}
	return int(img.data[y*img.stride+(x>>3)]>>(7-(x&7))) & 1
}

// SetPixel stores v at (x, y). It reports false, leaving the image
// untouched, when the coordinate is outside the frame.
func (img *Image) SetPixel(x, y, v int) bool {
	if img == nil || img.data == nil {
		return false
	}
	if x < 0 || x >= img.width || y < 0 || y >= img.height {
		return false
	}
	i := y*img.stride + (x >> 3)
	bit := uint(7 - (x & 7))
	img.data[i] = img.data[i]&^(1<<bit) | byte(v&1)<<bit
	return true
}

// Clear fills every row with 0xFF when v is set, otherwise with 0x00.
func (img *Image) Clear(v bool) {
	if img == nil || img.data == nil {
		return
	}
	img.fillRows(0, img.height, v)
}

func (img *Image) fillRows(from, to int, v bool) {
	value := byte(0)
	if v {
		value = 0xff
	}
	rows := img.data[from*img.stride : to*img.stride]
	for i := range rows {
		rows[i] = value
	}
}

// Resize changes the image height in place. Rows gained are zero filled.
// Changing the width is not supported.
func (img *Image) Resize(w, h int) error {
	if img == nil || img.data == nil {
		return fmt.Errorf("%w: resize of released image", ErrMalformed)
	}
	if w != img.width {
		return fmt.Errorf("%w: resize from width %d to %d", ErrUnsupported, img.width, w)
	}
	if h <= 0 {
		return fmt.Errorf("%w: resize to height %d", ErrAllocation, h)
	}
	size, ok := bufferSize(img.stride, h)
	if !ok {
		return fmt.Errorf("%w: stride(%d)*height(%d) overflows during resize", ErrAllocation, img.stride, h)
	}
	data := make([]byte, size)
	copy(data, img.data[:min(img.height, h)*img.stride])
	img.data = data
	img.height = h
	return nil
}

// copyPrevRow duplicates row-1 into row. Row 0 is cleared instead.
func (img *Image) copyPrevRow(row int) {
	dst := img.Line(row)
	if dst == nil {
		return
	}
	if row == 0 {
		clear(dst)
		return
	}
	copy(dst, img.Line(row-1))
}

// ComposeFrom combines src into img with its top left corner at (x, y).
func (img *Image) ComposeFrom(x, y int, src *Image, op ComposeOp) error {
	return src.ComposeTo(img, x, y, op)
}

// ComposeTo combines img into dst with its top left corner at (x, y),
// clipping to dst. OR and REPLACE take byte-aligned fast paths when the
// placement allows it; every other case goes pixel by pixel.
func (img *Image) ComposeTo(dst *Image, x, y int, op ComposeOp) error {
	if img == nil || dst == nil || img.data == nil || dst.data == nil {
		return fmt.Errorf("%w: compose with released image", ErrMalformed)
	}
	if op < ComposeOR || op > ComposeReplace {
		return fmt.Errorf("%w: unknown compose operator %d", ErrMalformed, int(op))
	}
	if op != ComposeOR && op != ComposeReplace {
		composeUnopt(dst, img, x, y, op)
		return nil
	}

	w := img.width
	h := img.height
	ss := 0
	if x < 0 {
		if x&7 != 0 {
			composeUnopt(dst, img, x, y, op)
			return nil
		}
		ss += (-x) >> 3
		w += x
		x = 0
	}
	if op == ComposeReplace && x&7 != 0 {
		composeUnopt(dst, img, x, y, op)
		return nil
	}
	if y < 0 {
		ss += -y * img.stride
		h += y
		y = 0
	}
	if x+w >= dst.width {
		w = dst.width - x
	}
	if y+h >= dst.height {
		h = dst.height - y
	}
	if w <= 0 || h <= 0 {
		return nil
	}

	leftbyte := x >> 3
	rightbyte := (x + w - 1) >> 3
	shift := uint(x & 7)

	dd := y*dst.stride + leftbyte
	if leftbyte > dst.stride || y+h > dst.height || (y+h-1)*dst.stride+rightbyte >= len(dst.data) {
		return fmt.Errorf("%w: compose would write past the destination buffer", ErrMalformed)
	}

	s := img.data
	d := dst.data
	if op == ComposeReplace {
		if leftbyte == rightbyte {
			mask := topBits(w)
			dmask := ^(mask >> shift)
			for j := 0; j < h; j++ {
				d[dd] = d[dd]&dmask | (s[ss]&mask)>>shift
				dd += dst.stride
				ss += img.stride
			}
			return nil
		}
		rightmask := composeRightMask(w)
		n := rightbyte - leftbyte
		for j := 0; j < h; j++ {
			copy(d[dd:dd+n], s[ss:ss+n])
			d[dd+n] = d[dd+n]&^rightmask | s[ss+n]&rightmask
			dd += dst.stride
			ss += img.stride
		}
		return nil
	}

	switch {
	case leftbyte == rightbyte:
		mask := topBits(w)
		for j := 0; j < h; j++ {
			d[dd] |= (s[ss] & mask) >> shift
			dd += dst.stride
			ss += img.stride
		}
	case shift == 0:
		rightmask := composeRightMask(w)
		n := rightbyte - leftbyte
		for j := 0; j < h; j++ {
			for i := 0; i < n; i++ {
				d[dd+i] |= s[ss+i]
			}
			d[dd+n] |= s[ss+n] & rightmask
			dd += dst.stride
			ss += img.stride
		}
	default:
		overlap := (w+7)>>3 < ((x+w+7)>>3)-(x>>3)
		mask := byte(0xff) << shift
		var rightmask byte
		if overlap {
			rightmask = topBits((x+w)&7) >> (8 - shift)
		} else {
			rightmask = topBits(w & 7)
		}
		for j := 0; j < h; j++ {
			di, si := dd, ss
			d[di] |= (s[si] & mask) >> shift
			di++
			for i := leftbyte; i < rightbyte-1; i++ {
				d[di] |= (s[si] &^ mask) << (8 - shift)
				si++
				d[di] |= (s[si] & mask) >> shift
				di++
			}
			if overlap {
				d[di] |= (s[si] & rightmask) << (8 - shift)
			} else {
				d[di] |= (s[si]&^mask)<<(8-shift) | (s[si+1]&rightmask)>>shift
			}
			dd += dst.stride
			ss += img.stride
		}
	}
	return nil
}

// composeRightMask keeps the leading w%8 bits of the final byte of a run,
// or the whole byte when w is a multiple of 8.
func composeRightMask(w int) byte {
	if w&7 == 0 {
		return 0xff
	}
	return topBits(w & 7)
}

// topBits returns a byte with its n most significant bits set, 0 <= n <= 8.
func topBits(n int) byte {
	v := uint16(0xff00)
	return byte(v >> uint(n))
}

// composeUnopt is the pixel-by-pixel compositor every operator can use.
func composeUnopt(dst, src *Image, x, y int, op ComposeOp) {
	sw, sh := src.width, src.height
	sx, sy := 0, 0
	if x < 0 {
		sx -= x
		sw += x
		x = 0
	}
	if y < 0 {
		sy -= y
		sh += y
		y = 0
	}
	if x+sw >= dst.width {
		sw = dst.width - x
	}
	if y+sh >= dst.height {
		sh = dst.height - y
	}
	for j := 0; j < sh; j++ {
		srcLine := src.data[(sy+j)*src.stride:]
		dstLine := dst.data[(y+j)*dst.stride:]
		for i := 0; i < sw; i++ {
			sp := readBit(srcLine, sx+i)
			dx := x + i
			writeBit(dstLine, dx, applyCompose(op, readBit(dstLine, dx), sp))
		}
	}
}

func readBit(line []byte, x int) int {
	return int(line[x>>3]>>(7-(x&7))) & 1
}

func writeBit(line []byte, x int, value int) {
	bit := uint(7 - (x & 7))
	line[x>>3] = line[x>>3]&^(1<<bit) | byte(value&1)<<bit
}

func applyCompose(op ComposeOp, dst, src int) int {
	switch op {
	case ComposeOR:
		return dst | src
	case ComposeAND:
		return dst & src
	case ComposeXOR:
		return dst ^ src
	case ComposeXNOR:
		return 1 ^ dst ^ src
	default:
		return src
	}
}
