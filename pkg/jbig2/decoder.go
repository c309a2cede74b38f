package jbig2

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jdeng/jbig2regions/internal/jbig2"
)

// Errors returned by the decoder. Match them with errors.Is.
var (
	ErrAllocation     = jbig2.ErrAllocation
	ErrMalformed      = jbig2.ErrMalformed
	ErrCoderExhausted = jbig2.ErrCoderExhausted
	ErrNotImplemented = jbig2.ErrNotImplemented
	ErrUnsupported    = jbig2.ErrUnsupported
)

// Options configures JBIG2 decoding behavior.
type Options struct {
	// GlobalData provides optional global segment data for the decoding context.
	GlobalData []byte
	// GlobalKey identifies the global data stream.
	GlobalKey uint64
	// SrcData contains the main JBIG2 data to decode.
	SrcData []byte
	// SrcKey identifies the source data stream.
	SrcKey uint64
	// Logger receives per-segment diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Decoder manages the JBIG2 decoding process.
type Decoder struct {
	decoder *jbig2.Decoder
}

// New creates a new JBIG2 decoder with the provided options.
func New(opts Options) (*Decoder, error) {
	if len(opts.SrcData) == 0 {
		return nil, errors.New("jbig2: empty source data")
	}

	internalDecoder, err := jbig2.NewDecoder(jbig2.DecoderOptions{
		GlobalData: opts.GlobalData,
		GlobalKey:  opts.GlobalKey,
		SrcData:    opts.SrcData,
		SrcKey:     opts.SrcKey,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Decoder{decoder: internalDecoder}, nil
}

// DecodeAll processes segments up to the end of the first page.
func (d *Decoder) DecodeAll() error {
	return d.decoder.DecodeAll()
}

// PauseIndicator is polled between segments; returning true suspends
// decoding until Continue.
type PauseIndicator = jbig2.PauseIndicator

// DecodeWithPause processes segments until the page ends or pause asks to stop.
// It reports whether the end of the page or stream was reached.
func (d *Decoder) DecodeWithPause(pause PauseIndicator) (bool, error) {
	res, err := d.decoder.DecodeWithPause(pause)
	return res == jbig2.DecodeResultEndReached, err
}

// Continue resumes decoding after a pause.
func (d *Decoder) Continue(pause PauseIndicator) (bool, error) {
	return d.decoder.Continue(pause)
}

// GetPageImage returns the current decoded page image.
func (d *Decoder) GetPageImage() *Image {
	internalImg := d.decoder.GetPageImage()
	if internalImg == nil {
		return nil
	}
	return &Image{img: internalImg}
}

// GetPageInfo returns the page information of the current page.
func (d *Decoder) GetPageInfo() (PageInfo, bool) {
	info := d.decoder.GetPageInfo()
	if info == nil {
		return PageInfo{}, false
	}
	return PageInfo{
		Width:             info.Width,
		Height:            info.Height,
		ResolutionX:       info.ResolutionX,
		ResolutionY:       info.ResolutionY,
		DefaultPixelValue: info.DefaultPixelValue,
		Striped:           info.Striped,
		MaxStripeSize:     info.MaxStripeSize,
	}, true
}

// GetProcessingStatus returns the current codec processing status.
func (d *Decoder) GetProcessingStatus() CodecStatus {
	return CodecStatus(d.decoder.GetProcessingStatus())
}

// GetSegments returns all decoded segments.
func (d *Decoder) GetSegments() []*Segment {
	internalSegments := d.decoder.GetSegments()
	segments := make([]*Segment, len(internalSegments))
	for i, seg := range internalSegments {
		segments[i] = &Segment{seg: seg}
	}
	return segments
}

// PageInfo describes a page as announced by its page information segment.
type PageInfo struct {
	Width             uint32
	Height            uint32
	ResolutionX       uint32
	ResolutionY       uint32
	DefaultPixelValue bool
	Striped           bool
	MaxStripeSize     uint16
}

// CodecStatus represents the current state of the decoder.
type CodecStatus int

const (
	// CodecStatusReady indicates the decoder is ready to process data.
	CodecStatusReady CodecStatus = iota
	// CodecStatusToBeContinued indicates processing was paused and can be resumed.
	CodecStatusToBeContinued
	// CodecStatusFinished indicates processing has completed successfully.
	CodecStatusFinished
	// CodecStatusError indicates an error occurred during processing.
	CodecStatusError
)

func (status CodecStatus) String() string {
	switch status {
	case CodecStatusReady:
		return "Ready"
	case CodecStatusToBeContinued:
		return "ToBeContinued"
	case CodecStatusFinished:
		return "Finished"
	case CodecStatusError:
		return "Error"
	default:
		return fmt.Sprintf("CodecStatus(%d)", int(status))
	}
}

// Segment represents a decoded JBIG2 segment.
type Segment struct {
	seg *jbig2.Segment
}

// Number returns the segment number.
func (seg *Segment) Number() uint32 {
	if seg == nil || seg.seg == nil {
		return 0
	}
	return seg.seg.Number
}

// Type returns the segment type.
func (seg *Segment) Type() uint8 {
	if seg == nil || seg.seg == nil {
		return 0
	}
	return seg.seg.Flags.Type()
}

// DataLength returns the length of the segment data.
func (seg *Segment) DataLength() uint32 {
	if seg == nil || seg.seg == nil {
		return 0
	}
	return seg.seg.DataLength
}

// Skipped reports whether the segment was passed over because its type is
// not decoded.
func (seg *Segment) Skipped() bool {
	return seg != nil && seg.seg != nil && seg.seg.State == jbig2.SegmentStateSkipped
}

// ResultType returns the type of result this segment produced.
func (seg *Segment) ResultType() ResultType {
	if seg == nil || seg.seg == nil {
		return ResultTypeVoid
	}
	return ResultType(seg.seg.ResultType)
}

// Image returns the retained region of an intermediate region segment. It
// is nil once a refinement region has consumed it.
func (seg *Segment) Image() *Image {
	if seg == nil || seg.seg == nil || seg.seg.Image == nil {
		return nil
	}
	return &Image{img: seg.seg.Image}
}

// ResultType identifies what kind of result payload a segment produced.
type ResultType int

const (
	// ResultTypeVoid indicates the segment produced no result.
	ResultTypeVoid ResultType = iota
	// ResultTypeImage indicates the segment produced an image.
	ResultTypeImage
)

func (rt ResultType) String() string {
	switch rt {
	case ResultTypeVoid:
		return "Void"
	case ResultTypeImage:
		return "Image"
	default:
		return fmt.Sprintf("ResultType(%d)", int(rt))
	}
}
