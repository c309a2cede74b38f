package jbig2

import "encoding/binary"

const unboundedPageHeight = ^uint32(0)

const pageInfoSize = 19

// PageInfo is the page information segment (7.4.8).
type PageInfo struct {
	Width             uint32
	Height            uint32
	ResolutionX       uint32
	ResolutionY       uint32
	Flags             uint8
	DefaultPixelValue bool
	Striped           bool
	MaxStripeSize     uint16
}

// EffectiveHeight reports the height to allocate up front. Pages of unknown
// height start one stripe tall.
func (p PageInfo) EffectiveHeight() uint32 {
	if p.Height == unboundedPageHeight {
		return uint32(p.MaxStripeSize)
	}
	return p.Height
}

// ShouldTreatAsStriped reports whether the page grows as regions and
// stripes arrive below its current bottom edge.
func (p PageInfo) ShouldTreatAsStriped() bool {
	return p.Striped && p.Height == unboundedPageHeight
}

func parsePageInfo(s *BitStream) (*PageInfo, error) {
	info := &PageInfo{}
	var err error
	if info.Width, err = s.ReadUint32(); err != nil {
		return nil, err
	}
	if info.Height, err = s.ReadUint32(); err != nil {
		return nil, err
	}
	if info.ResolutionX, err = s.ReadUint32(); err != nil {
		return nil, err
	}
	if info.ResolutionY, err = s.ReadUint32(); err != nil {
		return nil, err
	}
	if info.Flags, err = s.ReadByte(); err != nil {
		return nil, err
	}
	strip, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	info.DefaultPixelValue = info.Flags&0x04 != 0
	info.Striped = strip&0x8000 != 0
	info.MaxStripeSize = strip & 0x7fff
	return info, nil
}

func (p PageInfo) appendTo(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, p.Width)
	dst = binary.BigEndian.AppendUint32(dst, p.Height)
	dst = binary.BigEndian.AppendUint32(dst, p.ResolutionX)
	dst = binary.BigEndian.AppendUint32(dst, p.ResolutionY)
	flags := p.Flags &^ 0x04
	if p.DefaultPixelValue {
		flags |= 0x04
	}
	dst = append(dst, flags)
	strip := p.MaxStripeSize & 0x7fff
	if p.Striped {
		strip |= 0x8000
	}
	return binary.BigEndian.AppendUint16(dst, strip)
}

func (c *Context) parsePageInfoSegment(seg *Segment, s *BitStream) error {
	if seg.DataLength < pageInfoSize {
		return c.report.Fatal(seg.Number, ErrMalformed, "page information segment too short (%d bytes)", seg.DataLength)
	}
	info, err := parsePageInfo(s)
	if err != nil {
		return c.report.Fatal(seg.Number, err, "failed to read page information")
	}
	if info.Height == unboundedPageHeight && !info.Striped {
		c.report.Warnf(seg.Number, "page height is unknown but the page is not striped, growing it anyway")
		info.Striped = true
	}
	if info.Height == unboundedPageHeight && info.MaxStripeSize == 0 {
		return c.report.Fatal(seg.Number, ErrMalformed, "page of unknown height has zero stripe size")
	}
	c.report.Infof(seg.Number, "page %dx%d, resolution %dx%d, default pixel %v, striped %v (max stripe %d)",
		info.Width, info.Height, info.ResolutionX, info.ResolutionY, info.DefaultPixelValue, info.Striped, info.MaxStripeSize)

	if c.page != nil {
		c.report.Warnf(seg.Number, "replacing page before end of page")
		c.page.Release()
		c.page = nil
	}
	page, err := NewImage(int(info.Width), int(info.EffectiveHeight()))
	if err != nil {
		return c.report.Fatal(seg.Number, err, "failed to allocate page image")
	}
	page.Clear(info.DefaultPixelValue)
	c.pageInfos = append(c.pageInfos, info)
	c.page = page
	c.endRow = 0
	c.inPage = true
	return nil
}

// endOfStripe records the last row of the stripe and, on pages of unknown
// height, grows the page down to it.
func (c *Context) endOfStripe(seg *Segment, s *BitStream) error {
	row, err := s.ReadUint32()
	if err != nil {
		return c.report.Fatal(seg.Number, err, "failed to read end of stripe row")
	}
	if row < c.endRow {
		c.report.Warnf(seg.Number, "end of stripe row %d precedes previous stripe end %d", row, c.endRow)
	}
	c.endRow = row
	c.report.Debugf(seg.Number, "end of stripe at row %d", row)
	return c.ensurePageHeight(int64(row) + 1)
}

// composeRegion draws img on the page at the region's position with its
// combination operator.
func (c *Context) composeRegion(seg *Segment, ri RegionInfo, img *Image) error {
	if c.page == nil || c.page.data == nil {
		return c.report.Fatal(seg.Number, ErrMalformed, "no page to draw %s on", segmentTypeName(seg.Flags.Type()))
	}
	if err := c.ensurePageHeight(int64(ri.Y) + int64(img.Height())); err != nil {
		return err
	}
	c.report.Debugf(seg.Number, "composing %dx%d region onto page at (%d, %d) with %v",
		img.Width(), img.Height(), ri.X, ri.Y, ri.Op())
	if err := c.page.ComposeFrom(int(ri.X), int(ri.Y), img, ri.Op()); err != nil {
		return c.report.Fatal(seg.Number, err, "failed to compose region onto page")
	}
	return nil
}

func (c *Context) ensurePageHeight(target int64) error {
	if c.page == nil || target <= int64(c.page.Height()) {
		return nil
	}
	info := c.latestPageInfo()
	if info == nil || !info.ShouldTreatAsStriped() {
		return nil
	}
	old := c.page.Height()
	if err := c.page.Resize(c.page.Width(), int(target)); err != nil {
		return err
	}
	c.page.fillRows(old, int(target), info.DefaultPixelValue)
	return nil
}

func (c *Context) latestPageInfo() *PageInfo {
	if len(c.pageInfos) == 0 {
		return nil
	}
	return c.pageInfos[len(c.pageInfos)-1]
}
