package jbig2

import "fmt"

// GRRDProc holds the parameters of one generic refinement region decode.
// The region is predicted from Reference, offset by (DX, DY).
type GRRDProc struct {
	GRTemplate uint8
	TPGRON     bool
	DX         int
	DY         int
	Reference  *Image
	GRAT       [4]int8
}

// RefinementStatsSize returns the number of arithmetic contexts template uses.
func RefinementStatsSize(template uint8) int {
	if template == 0 {
		return 1 << 13
	}
	return 1 << 10
}

// NewRefinementStats allocates a zeroed context table for template.
func NewRefinementStats(template uint8) []ArithContext {
	return make([]ArithContext, RefinementStatsSize(template))
}

// typicalRefinementContexts are the SLTP contexts of each template.
var typicalRefinementContexts = [2]uint32{0x100, 0x040}

type refinementVariant int

const (
	refinement0Nominal refinementVariant = iota
	refinement0Generic
	refinement1
)

func (v refinementVariant) String() string {
	return [...]string{"template0 nominal", "template0 generic", "template1"}[v]
}

// Context bits that move along the row by shifting, and the bits that are
// sampled afresh at every pixel. Together with bit 0 they cover the context.
var (
	refinementKeep = [...]uint32{
		refinement0Nominal: 1<<2 | 1<<3 | 1<<5 | 1<<6 | 1<<8 | 1<<9 | 1<<11 | 1<<12,
		refinement0Generic: 1<<2 | 1<<5 | 1<<6 | 1<<8 | 1<<9 | 1<<11,
		refinement1:        1<<2 | 1<<3 | 1<<5 | 1<<7 | 1<<8,
	}
	refinementStep = [...]uint32{
		refinement0Nominal: 1<<1 | 1<<4 | 1<<7 | 1<<10,
		refinement0Generic: 1<<1 | 1<<3 | 1<<4 | 1<<7 | 1<<10 | 1<<12,
		refinement1:        1<<1 | 1<<4 | 1<<6 | 1<<9,
	}
)

func (p *GRRDProc) variant() refinementVariant {
	if p.GRTemplate != 0 {
		return refinement1
	}
	if p.GRAT == [4]int8{-1, -1, -1, -1} {
		return refinement0Nominal
	}
	return refinement0Generic
}

// byteAligned reports whether reference bytes line up with region bytes, so
// rows can be decoded from whole bytes of both bitmaps.
func (p *GRRDProc) byteAligned(v refinementVariant) bool {
	return p.DX&7 == 0 && v != refinement0Generic
}

func (p *GRRDProc) validate(decoder BitDecoder, stats []ArithContext, img *Image) error {
	if decoder == nil {
		return fmt.Errorf("%w: refinement region requires an arithmetic decoder", ErrMalformed)
	}
	if img == nil || img.data == nil {
		return fmt.Errorf("%w: refinement region requires a destination image", ErrMalformed)
	}
	if p.Reference == nil || p.Reference.data == nil {
		return fmt.Errorf("%w: refinement region has no reference bitmap", ErrMalformed)
	}
	if p.GRTemplate > 1 {
		return fmt.Errorf("%w: refinement region template %d", ErrMalformed, p.GRTemplate)
	}
	if need := RefinementStatsSize(p.GRTemplate); len(stats) < need {
		return fmt.Errorf("%w: context table holds %d entries, template %d needs %d", ErrMalformed, len(stats), p.GRTemplate, need)
	}
	return nil
}

// Decode refines img, which must be freshly allocated, from p.Reference using
// the context table stats.
func (p *GRRDProc) Decode(decoder BitDecoder, stats []ArithContext, img *Image) error {
	if err := p.validate(decoder, stats, img); err != nil {
		return err
	}
	v := p.variant()
	return p.decodeRegion(v, p.byteAligned(v), decoder, stats, img)
}

func (p *GRRDProc) decodeRegion(v refinementVariant, bytes bool, decoder BitDecoder, stats []ArithContext, img *Image) error {
	ltp := false
	for y := 0; y < img.height; y++ {
		if p.TPGRON {
			bit, err := decoder.Decode(&stats[typicalRefinementContexts[p.GRTemplate]])
			if err != nil {
				return err
			}
			if bit != 0 {
				ltp = !ltp
			}
			if ltp {
				if err := p.decodeTypicalRow(v, decoder, stats, img, y); err != nil {
					return err
				}
				continue
			}
		}
		var err error
		if bytes {
			err = p.decodeRowBytes(v, decoder, stats, img, y)
		} else {
			err = p.decodeRow(v, decoder, stats, img, y)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// decodeRow slides the context along row y, sampling only the pixels that
// enter it at each step.
func (p *GRRDProc) decodeRow(v refinementVariant, decoder BitDecoder, stats []ArithContext, img *Image, y int) error {
	row := img.Line(y)
	keep := refinementKeep[v]
	cx := p.context(img, 0, y) &^ refinementStep[v]
	for x := 0; x < img.width; x++ {
		cx |= p.entering(v, img, x, y)
		bit, err := decoder.Decode(&stats[cx])
		if err != nil {
			return err
		}
		writeBit(row, x, bit)
		cx = (cx<<1)&keep | uint32(bit)
	}
	return nil
}

// entering samples the context pixels of (x, y) that refinementStep marks
// as fresh for v.
func (p *GRRDProc) entering(v refinementVariant, img *Image, x, y int) uint32 {
	ref := p.Reference
	rx, ry := x-p.DX, y-p.DY
	switch v {
	case refinement0Nominal:
		return img.bit(x+1, y-1)<<1 | ref.bit(rx+1, ry+1)<<4 | ref.bit(rx+1, ry)<<7 | ref.bit(rx+1, ry-1)<<10
	case refinement0Generic:
		g := p.GRAT
		return img.bit(x+1, y-1)<<1 | img.bit(x+int(g[0]), y+int(g[1]))<<3 |
			ref.bit(rx+1, ry+1)<<4 | ref.bit(rx+1, ry)<<7 | ref.bit(rx+1, ry-1)<<10 |
			ref.bit(rx+int(g[2]), ry+int(g[3]))<<12
	default:
		return img.bit(x+1, y-1)<<1 | ref.bit(rx+1, ry+1)<<4 | ref.bit(rx+1, ry)<<6 | ref.bit(rx, ry-1)<<9
	}
}

// decodeRowBytes is decodeRow for byte aligned references. Each output byte
// is assembled in a register and stored once.
func (p *GRRDProc) decodeRowBytes(v refinementVariant, decoder BitDecoder, stats []ArithContext, img *Image, y int) error {
	ref := p.Reference
	row := img.Line(y)
	keep := refinementKeep[v]
	cx := p.context(img, 0, y) &^ refinementStep[v]
	ry := y - p.DY
	shift := p.DX >> 3
	// Pixel x sits at bit 15-xm of a window holding the current byte and
	// the next one. Template 1 samples the row above the reference at x,
	// everything else enters at x+1.
	refShift := [2]uint{7, 6}[p.GRTemplate]
	upShift := [2]uint{10, 9}[p.GRTemplate]
	upLead := [2]int{1, 0}[p.GRTemplate]
	for b := 0; b < img.stride; b++ {
		above := img.window(y-1, b)
		rAbove := ref.window(ry-1, b-shift)
		rRow := ref.window(ry, b-shift)
		rBelow := ref.window(ry+1, b-shift)

		var result byte
		minor := min(8, img.width-b<<3)
		for xm := 0; xm < minor; xm++ {
			s := uint(14 - xm)
			cx |= (above>>s)&1<<1 | (rBelow>>s)&1<<4 | (rRow>>s)&1<<refShift |
				(rAbove>>uint(15-xm-upLead))&1<<upShift
			bit, err := decoder.Decode(&stats[cx])
			if err != nil {
				return err
			}
			result |= byte(bit) << uint(7-xm)
			cx = (cx<<1)&keep | uint32(bit)
		}
		row[b] = result
	}
	return nil
}

// decodeTypicalRow decodes row y of a typical prediction run. Pixels whose
// reference neighbourhood is uniform take the reference value without
// consuming a decision. Both the context and the 3x3 neighbourhood slide
// along the row.
func (p *GRRDProc) decodeTypicalRow(v refinementVariant, decoder BitDecoder, stats []ArithContext, img *Image, y int) error {
	row := img.Line(y)
	keep := refinementKeep[v]
	cx := p.context(img, 0, y) &^ refinementStep[v]
	rx := -p.DX
	nb := p.neighbourhoodColumn(rx-1, y)<<3 | p.neighbourhoodColumn(rx, y)
	for x := 0; x < img.width; x++ {
		nb = (nb<<3)&0x1ff | p.neighbourhoodColumn(x-p.DX+1, y)
		cx |= p.entering(v, img, x, y)
		var bit int
		switch nb {
		case 0:
		case 0x1ff:
			bit = 1
		default:
			var err error
			if bit, err = decoder.Decode(&stats[cx]); err != nil {
				return err
			}
		}
		writeBit(row, x, bit)
		cx = (cx<<1)&keep | uint32(bit)
	}
	return nil
}

// neighbourhoodColumn packs reference column rx at rows above, at and below
// the one under region row y into three bits.
func (p *GRRDProc) neighbourhoodColumn(rx, y int) uint32 {
	ref := p.Reference
	ry := y - p.DY
	return ref.bit(rx, ry-1) | ref.bit(rx, ry)<<1 | ref.bit(rx, ry+1)<<2
}

// implicitValue reports the reference pixel under (x, y) when it and its
// eight neighbours all agree.
func (p *GRRDProc) implicitValue(x, y int) (int, bool) {
	ref := p.Reference
	rx, ry := x-p.DX, y-p.DY
	m := ref.GetPixel(rx, ry)
	for j := -1; j <= 1; j++ {
		for i := -1; i <= 1; i++ {
			if ref.GetPixel(rx+i, ry+j) != m {
				return 0, false
			}
		}
	}
	return m, true
}

// context builds the full refinement context of pixel (x, y) from img and
// the reference.
func (p *GRRDProc) context(img *Image, x, y int) uint32 {
	ref := p.Reference
	rx, ry := x-p.DX, y-p.DY
	if p.GRTemplate != 0 {
		return img.bit(x-1, y) | img.bit(x+1, y-1)<<1 | img.bit(x, y-1)<<2 | img.bit(x-1, y-1)<<3 |
			ref.bit(rx+1, ry+1)<<4 | ref.bit(rx, ry+1)<<5 |
			ref.bit(rx+1, ry)<<6 | ref.bit(rx, ry)<<7 | ref.bit(rx-1, ry)<<8 |
			ref.bit(rx, ry-1)<<9
	}
	g := p.GRAT
	return img.bit(x-1, y) | img.bit(x+1, y-1)<<1 | img.bit(x, y-1)<<2 |
		img.bit(x+int(g[0]), y+int(g[1]))<<3 |
		ref.bit(rx+1, ry+1)<<4 | ref.bit(rx, ry+1)<<5 | ref.bit(rx-1, ry+1)<<6 |
		ref.bit(rx+1, ry)<<7 | ref.bit(rx, ry)<<8 | ref.bit(rx-1, ry)<<9 |
		ref.bit(rx+1, ry-1)<<10 | ref.bit(rx, ry-1)<<11 |
		ref.bit(rx+int(g[2]), ry+int(g[3]))<<12
}

// window returns bytes b and b+1 of row y as a 16 bit value. Bytes outside
// the image and padding bits past the width read as zero.
func (img *Image) window(y, b int) uint32 {
	return img.rowByte(y, b)<<8 | img.rowByte(y, b+1)
}

func (img *Image) rowByte(y, b int) uint32 {
	if y < 0 || y >= img.height || b < 0 || b >= img.stride {
		return 0
	}
	v := img.data[y*img.stride+b]
	if b == img.stride-1 {
		v &= byte(0xff) << uint((-img.width)&7)
	}
	return uint32(v)
}
