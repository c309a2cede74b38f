package jbig2

import "fmt"

// EncodeGenericRegion arithmetic codes img as a generic region under p and
// returns the terminated code stream. Decoding it with p.DecodeArith and a
// fresh context table reproduces img.
func EncodeGenericRegion(p *GRDProc, img *Image) ([]byte, error) {
	if img == nil || img.data == nil {
		return nil, fmt.Errorf("%w: nothing to encode", ErrMalformed)
	}
	if p.MMR {
		return nil, fmt.Errorf("%w: MMR coded generic region", ErrNotImplemented)
	}
	if p.GBTemplate > 3 {
		return nil, fmt.Errorf("%w: generic region template %d", ErrMalformed, p.GBTemplate)
	}
	enc := NewArithEncoder()
	stats := NewGenericStats(p.GBTemplate)
	ltp := false
	for y := 0; y < img.height; y++ {
		if p.TPGDON {
			typical := img.rowEqualsPrev(y)
			bit := 0
			if typical != ltp {
				bit = 1
			}
			enc.Encode(&stats[typicalGenericContexts[p.GBTemplate]], bit)
			ltp = typical
			if ltp {
				continue
			}
		}
		for x := 0; x < img.width; x++ {
			enc.Encode(&stats[p.context(img, x, y)], img.GetPixel(x, y))
		}
	}
	return enc.Flush(), nil
}

// EncodeRefinementRegion arithmetic codes img as a refinement of
// p.Reference and returns the terminated code stream.
func EncodeRefinementRegion(p *GRRDProc, img *Image) ([]byte, error) {
	if img == nil || img.data == nil {
		return nil, fmt.Errorf("%w: nothing to encode", ErrMalformed)
	}
	if p.Reference == nil || p.Reference.data == nil {
		return nil, fmt.Errorf("%w: refinement region has no reference bitmap", ErrMalformed)
	}
	if p.GRTemplate > 1 {
		return nil, fmt.Errorf("%w: refinement region template %d", ErrMalformed, p.GRTemplate)
	}
	enc := NewArithEncoder()
	stats := NewRefinementStats(p.GRTemplate)
	ltp := false
	for y := 0; y < img.height; y++ {
		if p.TPGRON {
			typical := p.rowPredicted(img, y)
			bit := 0
			if typical != ltp {
				bit = 1
			}
			enc.Encode(&stats[typicalRefinementContexts[p.GRTemplate]], bit)
			ltp = typical
		}
		for x := 0; x < img.width; x++ {
			if ltp {
				if _, ok := p.implicitValue(x, y); ok {
					continue
				}
			}
			enc.Encode(&stats[p.context(img, x, y)], img.GetPixel(x, y))
		}
	}
	return enc.Flush(), nil
}

// rowEqualsPrev reports whether row y repeats the row above it. The row
// above row 0 is blank.
func (img *Image) rowEqualsPrev(y int) bool {
	for x := 0; x < img.width; x++ {
		if img.GetPixel(x, y) != img.GetPixel(x, y-1) {
			return false
		}
	}
	return true
}

// rowPredicted reports whether every pixel of row y with a uniform
// reference neighbourhood matches the reference.
func (p *GRRDProc) rowPredicted(img *Image, y int) bool {
	for x := 0; x < img.width; x++ {
		if v, ok := p.implicitValue(x, y); ok && img.GetPixel(x, y) != v {
			return false
		}
	}
	return true
}
