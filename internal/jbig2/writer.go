package jbig2

import (
	"encoding/binary"
	"fmt"
)

// StreamWriter assembles a sequential JBIG2 stream one segment at a time.
// Segments are numbered from zero in the order they are written and belong
// to the page opened by the latest PageInfo call.
type StreamWriter struct {
	segments   []byte
	next       uint32
	page       uint32
	fileHeader bool
}

// NewStreamWriter returns an empty writer. With fileHeader set, Bytes
// prefixes the stream with a sequential file header.
func NewStreamWriter(fileHeader bool) *StreamWriter {
	return &StreamWriter{fileHeader: fileHeader}
}

// Segment appends a segment of type t with the given data and returns its
// number.
func (w *StreamWriter) Segment(t uint8, refs []uint32, data []byte) uint32 {
	seg := &Segment{
		Number:                   w.next,
		Flags:                    SegmentFlags(0).WithType(t),
		ReferredToSegmentNumbers: refs,
		PageAssociation:          w.page,
		DataLength:               uint32(len(data)),
	}
	if t == segmentTypeEndOfFile {
		seg.PageAssociation = 0
	}
	w.segments = seg.appendHeader(w.segments)
	w.segments = append(w.segments, data...)
	w.next++
	return seg.Number
}

// PageInfo opens a new page.
func (w *StreamWriter) PageInfo(info PageInfo) uint32 {
	w.page++
	return w.Segment(segmentTypePageInfo, nil, info.appendTo(nil))
}

// GenericRegion arithmetic codes img and appends it as a generic region
// segment. An intermediate region is kept for a later refinement instead of
// being drawn on the page.
func (w *StreamWriter) GenericRegion(ri RegionInfo, p *GRDProc, img *Image, intermediate bool) (uint32, error) {
	coded, err := EncodeGenericRegion(p, img)
	if err != nil {
		return 0, err
	}
	ri.Width, ri.Height = uint32(img.Width()), uint32(img.Height())
	data := ri.appendTo(nil)
	flags := p.GBTemplate << 1
	if p.TPGDON {
		flags |= 0x08
	}
	data = append(data, flags)
	n := 2
	if p.GBTemplate == 0 {
		n = 8
	}
	for _, at := range p.GBAt[:n] {
		data = append(data, byte(at))
	}
	data = append(data, coded...)

	t := uint8(segmentTypeGenericRegionImmediate)
	if intermediate {
		t = segmentTypeGenericRegion
	}
	return w.Segment(t, nil, data), nil
}

// RefinementRegion codes img as a refinement of p.Reference and appends it.
// The decoder finds the reference in refs, or on the page under the region
// when refs is empty, so p.Reference must match what it will find there.
func (w *StreamWriter) RefinementRegion(ri RegionInfo, p *GRRDProc, img *Image, refs []uint32, intermediate bool) (uint32, error) {
	if p.DX != 0 || p.DY != 0 {
		return 0, fmt.Errorf("%w: refinement region segments carry no reference offset", ErrUnsupported)
	}
	coded, err := EncodeRefinementRegion(p, img)
	if err != nil {
		return 0, err
	}
	ri.Width, ri.Height = uint32(img.Width()), uint32(img.Height())
	data := ri.appendTo(nil)
	flags := p.GRTemplate & 0x01
	if p.TPGRON {
		flags |= 0x02
	}
	data = append(data, flags)
	if p.GRTemplate == 0 {
		for _, at := range p.GRAT {
			data = append(data, byte(at))
		}
	}
	data = append(data, coded...)

	t := uint8(segmentTypeRefinementRegionImmediate)
	if intermediate {
		t = segmentTypeRefinementRegion
	}
	return w.Segment(t, refs, data), nil
}

// EndOfStripe marks row as the last row of the current stripe.
func (w *StreamWriter) EndOfStripe(row uint32) uint32 {
	return w.Segment(segmentTypeEndOfStripe, nil, binary.BigEndian.AppendUint32(nil, row))
}

// EndOfPage closes the current page.
func (w *StreamWriter) EndOfPage() uint32 {
	return w.Segment(segmentTypeEndOfPage, nil, nil)
}

// EndOfFile terminates the stream.
func (w *StreamWriter) EndOfFile() uint32 {
	return w.Segment(segmentTypeEndOfFile, nil, nil)
}

// Bytes returns the stream written so far.
func (w *StreamWriter) Bytes() []byte {
	if !w.fileHeader {
		return append([]byte(nil), w.segments...)
	}
	out := appendFileHeader(make([]byte, 0, 13+len(w.segments)), w.page)
	return append(out, w.segments...)
}
