package jbig2

import (
	"fmt"
)

// DecodeResult reports how far DecodeSequential got.
type DecodeResult int

const (
	DecodeResultSuccess DecodeResult = iota
	DecodeResultFailure
	DecodeResultEndReached
)

// CodecStatus tracks the progress of a whole decode.
type CodecStatus int

const (
	CodecStatusReady CodecStatus = iota
	CodecStatusToBeContinued
	CodecStatusFinished
	CodecStatusError
)

// PauseIndicator is polled between segments. Returning true suspends the
// decode until Continue is called.
type PauseIndicator interface {
	ShouldPause() bool
}

// Context walks the segments of one JBIG2 stream, decodes the regions it
// supports and assembles them on the page.
type Context struct {
	stream        *BitStream
	globalContext *Context
	segments      []*Segment
	pageInfos     []*PageInfo
	page          *Image
	fileHeader    *FileHeader
	isGlobal      bool
	globalsDone   bool
	inPage        bool
	endRow        uint32
	processing    CodecStatus
	report        *Reporter
}

// CreateContext prepares a context over srcData, with an optional stream of
// global segments shared between pages. A nil reporter discards diagnostics.
func CreateContext(globalData []byte, globalKey uint64, srcData []byte, srcKey uint64, report *Reporter) (*Context, error) {
	if report == nil {
		report = NewReporter(nil)
	}
	ctx, err := newContext(srcData, srcKey, report, false)
	if err != nil {
		return nil, err
	}
	if len(globalData) > 0 {
		ctx.globalContext, err = newContext(globalData, globalKey, report, true)
		if err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

func newContext(data []byte, key uint64, report *Reporter, isGlobal bool) (*Context, error) {
	trimmed, header, err := stripJBIG2FileHeader(data)
	if err != nil {
		return nil, err
	}
	if header != nil && !header.Sequential() {
		return nil, fmt.Errorf("%w: random-access file organisation", ErrNotImplemented)
	}
	return &Context{
		stream:     NewBitStream(trimmed, key),
		fileHeader: header,
		isGlobal:   isGlobal,
		report:     report,
	}, nil
}

// DecodeSequential parses and decodes segments until the end of the page,
// the end of the stream, or a pause request.
func (c *Context) DecodeSequential(pause PauseIndicator) (DecodeResult, error) {
	if c.stream == nil || c.stream.BytesLeft() == 0 {
		return DecodeResultEndReached, nil
	}
	if !c.globalsDone {
		c.globalsDone = true
		if err := c.decodeGlobals(pause); err != nil {
			return DecodeResultFailure, err
		}
	}

	for c.stream.BytesLeft() >= JBIG2MinSegmentSize {
		seg, err := parseSegmentHeader(c.stream)
		if err != nil {
			c.processing = CodecStatusError
			return DecodeResultFailure, wrapRegionError("segment header", c.nextSegmentNumber(), err)
		}
		c.report.Debugf(seg.Number, "%s segment, %d bytes, page %d, refers to %v",
			segmentTypeName(seg.Flags.Type()), seg.DataLength, seg.PageAssociation, seg.ReferredToSegmentNumbers)
		c.segments = append(c.segments, seg)

		if seg.DataLength == unknownDataLength {
			seg.State = SegmentStateError
			c.processing = CodecStatusError
			return DecodeResultFailure, c.report.Fatal(seg.Number, ErrNotImplemented,
				"%s with unknown data length", segmentTypeName(seg.Flags.Type()))
		}
		data, complete := c.stream.Span(seg.DataOffset, seg.DataLength)
		if !complete {
			c.report.Warnf(seg.Number, "segment data truncated to %d of %d bytes", len(data), seg.DataLength)
		}

		res, err := c.parseSegmentData(seg, data)
		if err != nil {
			seg.State = SegmentStateError
			c.processing = CodecStatusError
			return DecodeResultFailure, wrapRegionError(segmentTypeName(seg.Flags.Type()), seg.Number, err)
		}
		c.stream.SetOffset(seg.DataOffset)
		c.stream.AddOffset(seg.DataLength)
		if res == DecodeResultEndReached {
			return DecodeResultEndReached, nil
		}
		if c.stream.BytesLeft() > 0 && c.page != nil && pause != nil && pause.ShouldPause() {
			c.processing = CodecStatusToBeContinued
			return DecodeResultSuccess, nil
		}
	}
	return DecodeResultSuccess, nil
}

func (c *Context) nextSegmentNumber() uint32 {
	if len(c.segments) == 0 {
		return 0
	}
	return c.segments[len(c.segments)-1].Number + 1
}

func (c *Context) decodeGlobals(pause PauseIndicator) error {
	if c.globalContext == nil {
		return nil
	}
	if _, err := c.globalContext.DecodeSequential(nil); err != nil {
		c.processing = CodecStatusError
		return err
	}
	return nil
}

func (c *Context) parseSegmentData(seg *Segment, data []byte) (DecodeResult, error) {
	s := NewBitStream(data, seg.Key)
	t := seg.Flags.Type()
	var err error
	switch t {
	case segmentTypeGenericRegion, segmentTypeGenericRegionImmediate, segmentTypeGenericRegionImmediateLossless:
		if err = c.requirePage(seg); err == nil {
			err = c.parseGenericRegionSegment(seg, s)
		}
	case segmentTypeRefinementRegion, segmentTypeRefinementRegionImmediate, segmentTypeRefinementRegionImmediateLossless:
		if err = c.requirePage(seg); err == nil {
			err = c.parseRefinementRegionSegment(seg, s)
		}
	case segmentTypePageInfo:
		err = c.parsePageInfoSegment(seg, s)
	case segmentTypeEndOfPage:
		c.report.Infof(seg.Number, "end of page")
		c.inPage = false
		seg.State = SegmentStateParseComplete
		return DecodeResultEndReached, nil
	case segmentTypeEndOfStripe:
		err = c.endOfStripe(seg, s)
	case segmentTypeEndOfFile:
		c.report.Infof(seg.Number, "end of file")
		seg.State = SegmentStateParseComplete
		return DecodeResultEndReached, nil
	default:
		c.report.Warnf(seg.Number, "skipping unsupported %s segment", segmentTypeName(t))
		seg.State = SegmentStateSkipped
		return DecodeResultSuccess, nil
	}
	if err != nil {
		return DecodeResultFailure, err
	}
	seg.State = SegmentStateParseComplete
	return DecodeResultSuccess, nil
}

func (c *Context) requirePage(seg *Segment) error {
	if c.inPage && c.page != nil {
		return nil
	}
	return c.report.Fatal(seg.Number, ErrMalformed, "%s outside page context", segmentTypeName(seg.Flags.Type()))
}

// parseGenericRegionSegment handles segment types 36, 38 and 39 (7.4.6).
func (c *Context) parseGenericRegionSegment(seg *Segment, s *BitStream) error {
	ri, err := parseRegionInfo(s)
	if err != nil {
		return c.report.Fatal(seg.Number, err, "generic region segment too short")
	}
	flags, err := s.ReadByte()
	if err != nil {
		return c.report.Fatal(seg.Number, err, "generic region segment too short")
	}
	proc := &GRDProc{
		MMR:        flags&0x01 != 0,
		GBTemplate: (flags >> 1) & 0x03,
		TPGDON:     flags&0x08 != 0,
	}
	c.report.Infof(seg.Number, "generic region: %v, flags %02x", ri, flags)
	if flags&0xe0 != 0 {
		c.report.Warnf(seg.Number, "reserved generic region flag bits are non-zero")
	}
	if flags&0x10 != 0 {
		return c.report.Fatal(seg.Number, ErrNotImplemented, "extended template generic region")
	}
	if proc.MMR {
		return c.report.Fatal(seg.Number, ErrNotImplemented, "MMR coded generic region")
	}

	n := 2
	if proc.GBTemplate == 0 {
		n = 8
	}
	for i := 0; i < n; i++ {
		if proc.GBAt[i], err = s.ReadInt8(); err != nil {
			return c.report.Fatal(seg.Number, err, "generic region segment too short for AT pixels")
		}
	}
	coded := s.Pointer()
	proc.DataLength = len(coded)

	if ri.Width == 0 || ri.Height == 0 {
		return c.report.Fatal(seg.Number, ErrMalformed, "generic region has no pixels (%v)", ri)
	}
	stride := int64(ri.Width-1)>>3 + 1
	if err := CheckRegionSize(stride*int64(ri.Height), proc.DataLength); err != nil {
		return c.report.Fatal(seg.Number, err, "refusing to allocate generic region")
	}
	img, err := NewImage(int(ri.Width), int(ri.Height))
	if err != nil {
		return c.report.Fatal(seg.Number, err, "failed to allocate generic region image")
	}
	c.report.Debugf(seg.Number, "decoding %v generic region, TPGDON %v", proc.variant(), proc.TPGDON)

	decoder := NewArithDecoder(NewBitStream(coded, seg.Key))
	if err := proc.DecodeArith(decoder, NewGenericStats(proc.GBTemplate), img); err != nil {
		img.Release()
		return c.report.Fatal(seg.Number, err, "failed to decode generic region")
	}
	return c.storeRegion(seg, ri, img)
}

// parseRefinementRegionSegment handles segment types 40, 42 and 43 (7.4.7).
func (c *Context) parseRefinementRegionSegment(seg *Segment, s *BitStream) error {
	ri, err := parseRegionInfo(s)
	if err != nil {
		return c.report.Fatal(seg.Number, err, "refinement region segment too short")
	}
	flags, err := s.ReadByte()
	if err != nil {
		return c.report.Fatal(seg.Number, err, "refinement region segment too short")
	}
	proc := &GRRDProc{
		GRTemplate: flags & 0x01,
		TPGRON:     flags&0x02 != 0,
	}
	c.report.Infof(seg.Number, "refinement region: %v, flags %02x", ri, flags)
	if flags&0xfc != 0 {
		c.report.Warnf(seg.Number, "reserved refinement region flag bits are non-zero")
	}
	if proc.GRTemplate == 0 {
		for i := range proc.GRAT {
			if proc.GRAT[i], err = s.ReadInt8(); err != nil {
				return c.report.Fatal(seg.Number, err, "refinement region segment too short for AT pixels")
			}
		}
	}
	if ri.Width == 0 || ri.Height == 0 {
		return c.report.Fatal(seg.Number, ErrMalformed, "refinement region has no pixels (%v)", ri)
	}

	ref, err := c.referenceBitmap(seg, ri)
	if err != nil {
		return err
	}
	defer ref.Release()
	proc.Reference = ref

	img, err := NewImage(int(ri.Width), int(ri.Height))
	if err != nil {
		return c.report.Fatal(seg.Number, err, "failed to allocate refinement region image")
	}
	c.report.Debugf(seg.Number, "decoding %v refinement region, TPGRON %v", proc.variant(), proc.TPGRON)

	decoder := NewArithDecoder(NewBitStream(s.Pointer(), seg.Key))
	if err := proc.Decode(decoder, NewRefinementStats(proc.GRTemplate), img); err != nil {
		img.Release()
		return c.report.Fatal(seg.Number, err, "failed to decode refinement region")
	}
	return c.storeRegion(seg, ri, img)
}

// referenceBitmap returns the bitmap a refinement region refines, owned by
// the caller. A referred intermediate region hands its result over and
// keeps nothing; without referred segments the page under the region is
// used.
func (c *Context) referenceBitmap(seg *Segment, ri RegionInfo) (*Image, error) {
	if len(seg.ReferredToSegmentNumbers) > 0 {
		for _, number := range seg.ReferredToSegmentNumbers {
			candidate := c.findSegmentByNumber(number)
			if candidate == nil {
				c.report.Warnf(seg.Number, "could not find referred to segment %d", number)
				continue
			}
			if !isIntermediateRegion(candidate.Flags.Type()) || candidate.Image == nil {
				continue
			}
			ref := candidate.Image
			candidate.Image = nil
			candidate.ResultType = ResultTypeVoid
			c.report.Debugf(seg.Number, "found reference bitmap in segment %d", candidate.Number)
			return ref, nil
		}
		return nil, c.report.Fatal(seg.Number, ErrMalformed, "could not find reference bitmap")
	}
	return c.pageReference(seg, ri)
}

// pageReference returns the page area beneath ri. A region covering the
// whole page shares the page buffer.
func (c *Context) pageReference(seg *Segment, ri RegionInfo) (*Image, error) {
	page := c.page
	if ri.X == 0 && ri.Y == 0 && int64(ri.Width) == int64(page.Width()) && int64(ri.Height) == int64(page.Height()) {
		return page.Clone(), nil
	}
	ref, err := NewImage(int(ri.Width), int(ri.Height))
	if err != nil {
		return nil, c.report.Fatal(seg.Number, err, "failed to allocate reference bitmap")
	}
	if err := ref.ComposeFrom(-int(ri.X), -int(ri.Y), page, ComposeReplace); err != nil {
		ref.Release()
		return nil, c.report.Fatal(seg.Number, err, "failed to copy page area for reference bitmap")
	}
	return ref, nil
}

// storeRegion keeps the result of an intermediate region on its segment and
// draws every other region on the page.
func (c *Context) storeRegion(seg *Segment, ri RegionInfo, img *Image) error {
	seg.ResultType = ResultTypeImage
	if isIntermediateRegion(seg.Flags.Type()) {
		seg.Image = img
		return nil
	}
	defer img.Release()
	return c.composeRegion(seg, ri, img)
}

func (c *Context) findSegmentByNumber(number uint32) *Segment {
	if c.globalContext != nil {
		if seg := c.globalContext.findSegmentByNumber(number); seg != nil {
			return seg
		}
	}
	for _, seg := range c.segments {
		if seg.Number == number {
			return seg
		}
	}
	return nil
}

// Continue resumes decoding after a pause request.
func (c *Context) Continue(pause PauseIndicator) (bool, error) {
	c.processing = CodecStatusReady
	_, err := c.DecodeSequential(pause)
	if err != nil {
		c.processing = CodecStatusError
		return false, err
	}
	if c.processing == CodecStatusToBeContinued {
		return true, nil
	}
	c.processing = CodecStatusFinished
	return true, nil
}

// ProcessingStatus reports the current codec status for the context.
func (c *Context) ProcessingStatus() CodecStatus {
	return c.processing
}

// PageImage returns the current page image, if any.
func (c *Context) PageImage() *Image {
	return c.page
}

// Segments returns the segments parsed so far.
func (c *Context) Segments() []*Segment {
	return c.segments
}

// PageInfos exposes the page information segments seen so far.
func (c *Context) PageInfos() []*PageInfo {
	return c.pageInfos
}

// FileHeader returns the stripped file header, or nil for embedded streams.
func (c *Context) FileHeader() *FileHeader {
	return c.fileHeader
}
