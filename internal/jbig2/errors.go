package jbig2

import (
	"errors"
	"fmt"
)

// Errors reported by the region decoders. Callers match them with errors.Is;
// every decode failure is wrapped in a *RegionError carrying the segment.
var (
	ErrAllocation     = errors.New("jbig2: allocation failed")
	ErrMalformed      = errors.New("jbig2: malformed data")
	ErrCoderExhausted = errors.New("jbig2: arithmetic decoder exhausted")
	ErrNotImplemented = errors.New("jbig2: not implemented")
	ErrUnsupported    = errors.New("jbig2: unsupported operation")
)

// RegionError records the operation and segment a decode failure belongs to.
type RegionError struct {
	Op      string
	Segment uint32
	Err     error
}

func (e *RegionError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("segment %d: %v", e.Segment, e.Err)
	}
	return fmt.Sprintf("%s (segment %d): %v", e.Op, e.Segment, e.Err)
}

func (e *RegionError) Unwrap() error { return e.Err }

// wrapRegionError attaches op and segment to err. Errors that already carry a
// segment are returned unchanged.
func wrapRegionError(op string, segment uint32, err error) error {
	if err == nil {
		return nil
	}
	var re *RegionError
	if errors.As(err, &re) {
		return err
	}
	return &RegionError{Op: op, Segment: segment, Err: err}
}
