package jbig2

import (
	"fmt"

	"github.com/jdeng/jbig2regions/internal/jbig2"
)

// GenericParams are the coding parameters of a generic region.
type GenericParams struct {
	Template uint8
	TPGDON   bool
	// AT holds the adaptive template pixels as x, y pairs. Template 0 uses
	// all four, the others only the first.
	AT [8]int8
}

// NominalGenericParams returns the parameters with the default adaptive
// pixels for template.
func NominalGenericParams(template uint8) GenericParams {
	p := GenericParams{Template: template}
	switch template {
	case 0:
		p.AT = [8]int8{3, -1, -3, -1, 2, -2, -2, -2}
	case 1:
		p.AT = [8]int8{3, -1}
	default:
		p.AT = [8]int8{2, -1}
	}
	return p
}

func (p GenericParams) proc(dataLength int) *jbig2.GRDProc {
	return &jbig2.GRDProc{
		GBTemplate: p.Template,
		TPGDON:     p.TPGDON,
		GBAt:       p.AT,
		DataLength: dataLength,
	}
}

// RefinementParams are the coding parameters of a refinement region.
type RefinementParams struct {
	Template uint8
	TPGRON   bool
	// DX and DY offset the reference bitmap against the region.
	DX, DY int
	// AT holds the two template 0 adaptive pixels, region first.
	AT [4]int8
}

// NominalRefinementParams returns the parameters with the default adaptive
// pixels for template.
func NominalRefinementParams(template uint8) RefinementParams {
	return RefinementParams{Template: template, AT: [4]int8{-1, -1, -1, -1}}
}

func (p RefinementParams) proc(ref *Image) *jbig2.GRRDProc {
	proc := &jbig2.GRRDProc{
		GRTemplate: p.Template,
		TPGRON:     p.TPGRON,
		DX:         p.DX,
		DY:         p.DY,
		GRAT:       p.AT,
	}
	if ref != nil {
		proc.Reference = ref.img
	}
	return proc
}

// DecodeGenericRegion decodes a width x height arithmetic coded generic
// region from data.
func DecodeGenericRegion(p GenericParams, width, height int, data []byte) (*Image, error) {
	proc := p.proc(len(data))
	stride := int64(width-1)>>3 + 1
	if width > 0 && height > 0 {
		if err := jbig2.CheckRegionSize(stride*int64(height), len(data)); err != nil {
			return nil, err
		}
	}
	img, err := jbig2.NewImage(width, height)
	if err != nil {
		return nil, err
	}
	dec := jbig2.NewArithDecoder(jbig2.NewBitStream(data, 0))
	if err := proc.DecodeArith(dec, jbig2.NewGenericStats(p.Template), img); err != nil {
		img.Release()
		return nil, fmt.Errorf("generic region: %w", err)
	}
	return &Image{img: img}, nil
}

// DecodeRefinementRegion decodes a width x height refinement of ref from
// data.
func DecodeRefinementRegion(p RefinementParams, ref *Image, width, height int, data []byte) (*Image, error) {
	img, err := jbig2.NewImage(width, height)
	if err != nil {
		return nil, err
	}
	dec := jbig2.NewArithDecoder(jbig2.NewBitStream(data, 0))
	if err := p.proc(ref).Decode(dec, jbig2.NewRefinementStats(p.Template), img); err != nil {
		img.Release()
		return nil, fmt.Errorf("refinement region: %w", err)
	}
	return &Image{img: img}, nil
}

// EncodeGenericRegion arithmetic codes img so DecodeGenericRegion with the
// same parameters reproduces it.
func EncodeGenericRegion(p GenericParams, img *Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nothing to encode", ErrMalformed)
	}
	return jbig2.EncodeGenericRegion(p.proc(0), img.img)
}

// EncodeRefinementRegion codes img as a refinement of ref.
func EncodeRefinementRegion(p RefinementParams, ref, img *Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nothing to encode", ErrMalformed)
	}
	return jbig2.EncodeRefinementRegion(p.proc(ref), img.img)
}
