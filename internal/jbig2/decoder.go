package jbig2

import (
	"errors"
	"log/slog"
)

// DecoderOptions configures JBIG2 decoding behavior.
type DecoderOptions struct {
	// GlobalData provides optional global segment data for the decoding context.
	GlobalData []byte
	// GlobalKey identifies the global data stream.
	GlobalKey uint64
	// SrcData contains the main JBIG2 data to decode.
	SrcData []byte
	// SrcKey identifies the source data stream.
	SrcKey uint64
	// Logger receives decode diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Decoder manages the JBIG2 decoding process.
type Decoder struct {
	ctx *Context
}

// NewDecoder creates a new JBIG2 decoder with the provided options.
func NewDecoder(opts DecoderOptions) (*Decoder, error) {
	if len(opts.SrcData) == 0 {
		return nil, errors.New("jbig2: empty source data")
	}

	ctx, err := CreateContext(opts.GlobalData, opts.GlobalKey, opts.SrcData, opts.SrcKey, NewReporter(opts.Logger))
	if err != nil {
		return nil, err
	}

	return &Decoder{ctx: ctx}, nil
}

// DecodeAll processes segments up to the end of the first page.
func (d *Decoder) DecodeAll() error {
	_, err := d.ctx.DecodeSequential(nil)
	if err != nil {
		return err
	}
	d.ctx.processing = CodecStatusFinished
	return nil
}

// DecodeWithPause processes segments, stopping whenever pause asks to.
func (d *Decoder) DecodeWithPause(pause PauseIndicator) (DecodeResult, error) {
	return d.ctx.DecodeSequential(pause)
}

// Continue resumes decoding after a pause.
func (d *Decoder) Continue(pause PauseIndicator) (bool, error) {
	return d.ctx.Continue(pause)
}

// GetPageImage returns the current decoded page image.
func (d *Decoder) GetPageImage() *Image {
	return d.ctx.PageImage()
}

// GetPageInfo returns the information segment of the current page.
func (d *Decoder) GetPageInfo() *PageInfo {
	return d.ctx.latestPageInfo()
}

// GetProcessingStatus returns the current codec processing status.
func (d *Decoder) GetProcessingStatus() CodecStatus {
	return d.ctx.ProcessingStatus()
}

// GetSegments returns all decoded segments.
func (d *Decoder) GetSegments() []*Segment {
	return d.ctx.Segments()
}
