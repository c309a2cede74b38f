package jbig2

import (
	"fmt"
)

// GRDProc holds the parameters of one generic region decode.
type GRDProc struct {
	MMR        bool
	TPGDON     bool
	GBTemplate uint8
	GBAt       [8]int8
	// DataLength is the size of the coded data backing the region. It feeds
	// the oversized-region guard in CheckRegionSize.
	DataLength int
}

// GenericStatsSize returns the number of arithmetic contexts template uses.
func GenericStatsSize(template uint8) int {
	switch template {
	case 0:
		return 1 << 16
	case 1:
		return 1 << 13
	default:
		return 1 << 10
	}
}

// NewGenericStats allocates a zeroed context table for template.
func NewGenericStats(template uint8) []ArithContext {
	return make([]ArithContext, GenericStatsSize(template))
}

// CheckRegionSize rejects regions whose bitmap dwarfs the coded data meant to
// describe it. bytes is stride*height of the region.
func CheckRegionSize(bytes int64, dataLength int) error {
	if bytes > 1<<24 && int64(dataLength) < bytes/256 {
		return fmt.Errorf("%w: region is far larger than data provided (%d << %d)", ErrMalformed, dataLength, bytes)
	}
	return nil
}

var nominalGBAt = [4][8]int8{
	{3, -1, -3, -1, 2, -2, -2, -2},
	{3, -1},
	{2, -1},
	{2, -1},
}

// typicalGenericContexts are the SLTP contexts of each template.
var typicalGenericContexts = [4]uint32{0x9b25, 0x0795, 0x00e5, 0x0195}

type genericVariant int

const (
	template0Nominal genericVariant = iota
	template0Generic
	template1Nominal
	template1Generic
	template2Nominal
	template2a
	template2Generic
	template3Nominal
	template3Generic
)

func (v genericVariant) String() string {
	return [...]string{
		"template0 nominal", "template0 generic",
		"template1 nominal", "template1 generic",
		"template2 nominal", "template2a", "template2 generic",
		"template3 nominal", "template3 generic",
	}[v]
}

func (p *GRDProc) variant() genericVariant {
	at := p.GBAt
	switch p.GBTemplate {
	case 0:
		if at == nominalGBAt[0] {
			return template0Nominal
		}
		return template0Generic
	case 1:
		if at[0] == 3 && at[1] == -1 {
			return template1Nominal
		}
		return template1Generic
	case 2:
		switch {
		case at[0] == 2 && at[1] == -1:
			return template2Nominal
		case at[0] == 3 && at[1] == -1:
			return template2a
		}
		return template2Generic
	default:
		if at[0] == 2 && at[1] == -1 {
			return template3Nominal
		}
		return template3Generic
	}
}

// DecodeArith decodes img.Width() x img.Height() pixels into img, which must
// be freshly allocated, using the context table stats. Any decoder failure
// aborts the region.
func (p *GRDProc) DecodeArith(decoder BitDecoder, stats []ArithContext, img *Image) error {
	if decoder == nil {
		return fmt.Errorf("%w: generic region requires an arithmetic decoder", ErrMalformed)
	}
	if img == nil || img.data == nil {
		return fmt.Errorf("%w: generic region requires a destination image", ErrMalformed)
	}
	if p.MMR {
		return fmt.Errorf("%w: MMR coded generic region (template %d)", ErrNotImplemented, p.GBTemplate)
	}
	if p.GBTemplate > 3 {
		return fmt.Errorf("%w: generic region template %d", ErrMalformed, p.GBTemplate)
	}
	if need := GenericStatsSize(p.GBTemplate); len(stats) < need {
		return fmt.Errorf("%w: context table holds %d entries, template %d needs %d", ErrMalformed, len(stats), p.GBTemplate, need)
	}
	if err := CheckRegionSize(int64(img.stride)*int64(img.height), p.DataLength); err != nil {
		return err
	}
	return p.decodeVariant(p.variant(), decoder, stats, img)
}

func (p *GRDProc) decodeVariant(v genericVariant, decoder BitDecoder, stats []ArithContext, img *Image) error {
	switch v {
	case template0Generic:
		return p.decodeTemplate0Generic(decoder, stats, img)
	case template1Generic:
		return p.decodeTemplate1Generic(decoder, stats, img)
	case template2Generic:
		return p.decodeTemplate2Generic(decoder, stats, img)
	case template3Generic:
		return p.decodeTemplate3Generic(decoder, stats, img)
	default:
		return p.decodeNominal(decoder, stats, img, &nominalLayouts[v])
	}
}

// typicalRow decodes the SLTP bit ahead of row y and, while LTP is set,
// reproduces the row above. It reports whether row y is complete.
func (p *GRDProc) typicalRow(decoder BitDecoder, stats []ArithContext, img *Image, y int, ltp *bool) (bool, error) {
	if !p.TPGDON {
		return false, nil
	}
	bit, err := decoder.Decode(&stats[typicalGenericContexts[p.GBTemplate]])
	if err != nil {
		return false, err
	}
	if bit != 0 {
		*ltp = !*ltp
	}
	if *ltp {
		img.copyPrevRow(y)
		return true, nil
	}
	return false, nil
}

// context builds the full context of pixel (x, y) for the region template.
// The variant decoders reproduce it incrementally.
func (p *GRDProc) context(img *Image, x, y int) uint32 {
	at := p.GBAt
	b := func(dx, dy int) uint32 { return img.bit(x+dx, y+dy) }
	switch p.GBTemplate {
	case 0:
		return b(-1, 0) | b(-2, 0)<<1 | b(-3, 0)<<2 | b(-4, 0)<<3 | b(int(at[0]), int(at[1]))<<4 |
			b(2, -1)<<5 | b(1, -1)<<6 | b(0, -1)<<7 | b(-1, -1)<<8 | b(-2, -1)<<9 |
			b(int(at[2]), int(at[3]))<<10 | b(int(at[4]), int(at[5]))<<11 |
			b(1, -2)<<12 | b(0, -2)<<13 | b(-1, -2)<<14 | b(int(at[6]), int(at[7]))<<15
	case 1:
		return b(-1, 0) | b(-2, 0)<<1 | b(-3, 0)<<2 | b(int(at[0]), int(at[1]))<<3 |
			b(2, -1)<<4 | b(1, -1)<<5 | b(0, -1)<<6 | b(-1, -1)<<7 | b(-2, -1)<<8 |
			b(2, -2)<<9 | b(1, -2)<<10 | b(0, -2)<<11 | b(-1, -2)<<12
	case 2:
		return b(-1, 0) | b(-2, 0)<<1 | b(int(at[0]), int(at[1]))<<2 |
			b(1, -1)<<3 | b(0, -1)<<4 | b(-1, -1)<<5 | b(-2, -1)<<6 |
			b(1, -2)<<7 | b(0, -2)<<8 | b(-1, -2)<<9
	default:
		return b(-1, 0) | b(-2, 0)<<1 | b(-3, 0)<<2 | b(-4, 0)<<3 | b(int(at[0]), int(at[1]))<<4 |
			b(1, -1)<<5 | b(0, -1)<<6 | b(-1, -1)<<7 | b(-2, -1)<<8 | b(-3, -1)<<9
	}
}

// bit is GetPixel for context assembly.
func (img *Image) bit(x, y int) uint32 {
	return uint32(img.GetPixel(x, y))
}
