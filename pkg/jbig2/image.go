package jbig2

import (
	"fmt"
	"image"
	"image/color"

	"github.com/jdeng/jbig2regions/internal/jbig2"
)

// ComposeOp selects how a bitmap is combined with the one beneath it.
type ComposeOp int

const (
	ComposeOR      = ComposeOp(jbig2.ComposeOR)
	ComposeAND     = ComposeOp(jbig2.ComposeAND)
	ComposeXOR     = ComposeOp(jbig2.ComposeXOR)
	ComposeXNOR    = ComposeOp(jbig2.ComposeXNOR)
	ComposeReplace = ComposeOp(jbig2.ComposeReplace)
)

func (op ComposeOp) String() string {
	return jbig2.ComposeOp(op).String()
}

// Image represents a decoded JBIG2 bitmap. A set pixel is black.
type Image struct {
	img *jbig2.Image
}

// NewImage allocates a blank w x h bitmap.
func NewImage(w, h int) (*Image, error) {
	img, err := jbig2.NewImage(w, h)
	if err != nil {
		return nil, err
	}
	return &Image{img: img}, nil
}

// Width returns the image width in pixels.
func (img *Image) Width() int {
	if img == nil || img.img == nil {
		return 0
	}
	return img.img.Width()
}

// Height returns the image height in pixels.
func (img *Image) Height() int {
	if img == nil || img.img == nil {
		return 0
	}
	return img.img.Height()
}

// Stride returns the number of bytes per row in Data.
func (img *Image) Stride() int {
	if img == nil || img.img == nil {
		return 0
	}
	return img.img.Stride()
}

// Data returns the packed rows, most significant bit first.
func (img *Image) Data() []byte {
	if img == nil || img.img == nil {
		return nil
	}
	return img.img.Data()
}

// Pixel returns the bit at (x, y), 0 outside the image.
func (img *Image) Pixel(x, y int) int {
	if img == nil {
		return 0
	}
	return img.img.GetPixel(x, y)
}

// SetPixel stores v at (x, y). Writes outside the image are ignored.
func (img *Image) SetPixel(x, y, v int) {
	if img == nil {
		return
	}
	img.img.SetPixel(x, y, v)
}

// ComposeFrom combines src into img with its top left corner at (x, y).
// Parts of src outside img are clipped.
func (img *Image) ComposeFrom(x, y int, src *Image, op ComposeOp) error {
	if img == nil || img.img == nil || src == nil || src.img == nil {
		return fmt.Errorf("%w: compose with a nil image", ErrMalformed)
	}
	return img.img.ComposeFrom(x, y, src.img, jbig2.ComposeOp(op))
}

// Gray renders the bitmap as 8-bit grayscale, set pixels black.
func (img *Image) Gray() *image.Gray {
	w, h := img.Width(), img.Height()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(255)
			if img.img.GetPixel(x, y) != 0 {
				v = 0
			}
			out.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return out
}
