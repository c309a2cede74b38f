package jbig2

import (
	"encoding/binary"
	"fmt"
)

// Segment type tags.
const (
	segmentTypeSymbolDict                        = 0
	segmentTypeTextRegion                        = 4
	segmentTypeTextRegionImmediate               = 6
	segmentTypeTextRegionImmediateLossless       = 7
	segmentTypePatternDict                       = 16
	segmentTypeHalftoneRegion                    = 20
	segmentTypeHalftoneRegionImmediate           = 22
	segmentTypeHalftoneRegionImmediateLossless   = 23
	segmentTypeGenericRegion                     = 36
	segmentTypeGenericRegionImmediate            = 38
	segmentTypeGenericRegionImmediateLossless    = 39
	segmentTypeRefinementRegion                  = 40
	segmentTypeRefinementRegionImmediate         = 42
	segmentTypeRefinementRegionImmediateLossless = 43
	segmentTypePageInfo                          = 48
	segmentTypeEndOfPage                         = 49
	segmentTypeEndOfStripe                       = 50
	segmentTypeEndOfFile                         = 51
	segmentTypeProfiles                          = 52
	segmentTypeTables                            = 53
	segmentTypeColorPalette                      = 54
	segmentTypeExtension                         = 62
)

// JBIG2MinSegmentSize is the smallest possible segment header.
const JBIG2MinSegmentSize = 11

// JBig2MaxReferredSegmentCount bounds the referred-to segment list.
const JBig2MaxReferredSegmentCount = 64

// unknownDataLength marks a segment whose length is only found by scanning
// its data for an end marker.
const unknownDataLength = 0xffffffff

// SegmentState enumerates the parsing lifecycle for a JBIG2 segment.
type SegmentState int

const (
	SegmentStateHeaderUnparsed SegmentState = iota
	SegmentStateDataUnparsed
	SegmentStateParseComplete
	SegmentStateSkipped
	SegmentStateError
)

// ResultType identifies what kind of result payload a segment produced.
type ResultType int

const (
	ResultTypeVoid ResultType = iota
	ResultTypeImage
)

// SegmentFlags is the segment header flag byte.
type SegmentFlags uint8

const (
	segmentFlagTypeMask              = 0x3f
	segmentFlagPageAssociationSize   = 0x40
	segmentFlagDeferredNonRetainMask = 0x80
)

// Raw exposes the underlying flag byte.
func (f SegmentFlags) Raw() uint8 { return uint8(f) }

// Type returns the 6-bit segment type identifier.
func (f SegmentFlags) Type() uint8 { return uint8(f) & segmentFlagTypeMask }

// HasLongPageAssociation indicates whether the page association field is 4 bytes instead of 1.
func (f SegmentFlags) HasLongPageAssociation() bool {
	return f&segmentFlagPageAssociationSize != 0
}

// DeferredNonRetain reports the deferred non-retain bit.
func (f SegmentFlags) DeferredNonRetain() bool {
	return f&segmentFlagDeferredNonRetainMask != 0
}

// WithType returns a copy of f with the type bits replaced.
func (f SegmentFlags) WithType(t uint8) SegmentFlags {
	return (f &^ segmentFlagTypeMask) | SegmentFlags(t&segmentFlagTypeMask)
}

// WithLongPageAssociation toggles the long page association bit.
func (f SegmentFlags) WithLongPageAssociation(long bool) SegmentFlags {
	if long {
		return f | segmentFlagPageAssociationSize
	}
	return f &^ segmentFlagPageAssociationSize
}

// WithDeferredNonRetain toggles the deferred non-retain bit.
func (f SegmentFlags) WithDeferredNonRetain(deferred bool) SegmentFlags {
	if deferred {
		return f | segmentFlagDeferredNonRetainMask
	}
	return f &^ segmentFlagDeferredNonRetainMask
}

// Segment is one parsed segment header plus the result it produced.
type Segment struct {
	Number                   uint32
	Flags                    SegmentFlags
	ReferredToSegmentNumbers []uint32
	PageAssociation          uint32
	DataLength               uint32
	HeaderLength             uint32
	DataOffset               uint32
	Key                      uint64
	State                    SegmentState
	ResultType               ResultType
	// Image holds the result of an intermediate region until a refinement
	// region takes it over.
	Image *Image
}

// isIntermediateRegion reports whether the segment type stores its region
// for a later refinement instead of drawing it on the page.
func isIntermediateRegion(t uint8) bool {
	switch t {
	case segmentTypeTextRegion, segmentTypeHalftoneRegion,
		segmentTypeGenericRegion, segmentTypeRefinementRegion:
		return true
	}
	return false
}

// segmentTypeName names t for diagnostics.
func segmentTypeName(t uint8) string {
	switch t {
	case segmentTypeSymbolDict:
		return "symbol dictionary"
	case segmentTypeTextRegion, segmentTypeTextRegionImmediate, segmentTypeTextRegionImmediateLossless:
		return "text region"
	case segmentTypePatternDict:
		return "pattern dictionary"
	case segmentTypeHalftoneRegion, segmentTypeHalftoneRegionImmediate, segmentTypeHalftoneRegionImmediateLossless:
		return "halftone region"
	case segmentTypeGenericRegion, segmentTypeGenericRegionImmediate, segmentTypeGenericRegionImmediateLossless:
		return "generic region"
	case segmentTypeRefinementRegion, segmentTypeRefinementRegionImmediate, segmentTypeRefinementRegionImmediateLossless:
		return "refinement region"
	case segmentTypePageInfo:
		return "page information"
	case segmentTypeEndOfPage:
		return "end of page"
	case segmentTypeEndOfStripe:
		return "end of stripe"
	case segmentTypeEndOfFile:
		return "end of file"
	case segmentTypeProfiles:
		return "profiles"
	case segmentTypeTables:
		return "tables"
	case segmentTypeColorPalette:
		return "color palette"
	case segmentTypeExtension:
		return "extension"
	default:
		return fmt.Sprintf("segment type %d", t)
	}
}

// segmentNumberSize is the width of a referred-to segment number in the
// header of segment number.
func segmentNumberSize(number uint32) int {
	if number > 65536 {
		return 4
	}
	if number > 256 {
		return 2
	}
	return 1
}

// parseSegmentHeader reads one segment header (7.2) from s.
func parseSegmentHeader(s *BitStream) (*Segment, error) {
	start := s.Offset()
	seg := &Segment{}
	number, err := s.ReadUint32()
	if err != nil {
		return nil, err
	}
	seg.Number = number
	flagByte, err := s.ReadByte()
	if err != nil {
		return nil, err
	}
	seg.Flags = SegmentFlags(flagByte)
	count, err := readReferredSegmentCount(s)
	if err != nil {
		return nil, err
	}
	seg.ReferredToSegmentNumbers = make([]uint32, count)
	for i := range seg.ReferredToSegmentNumbers {
		var ref uint32
		switch segmentNumberSize(seg.Number) {
		case 1:
			b, err := s.ReadByte()
			if err != nil {
				return nil, err
			}
			ref = uint32(b)
		case 2:
			val, err := s.ReadUint16()
			if err != nil {
				return nil, err
			}
			ref = uint32(val)
		default:
			ref, err = s.ReadUint32()
			if err != nil {
				return nil, err
			}
		}
		if ref >= seg.Number {
			return nil, fmt.Errorf("%w: segment %d refers to later segment %d", ErrMalformed, seg.Number, ref)
		}
		seg.ReferredToSegmentNumbers[i] = ref
	}
	if seg.Flags.HasLongPageAssociation() {
		seg.PageAssociation, err = s.ReadUint32()
	} else {
		var b byte
		b, err = s.ReadByte()
		seg.PageAssociation = uint32(b)
	}
	if err != nil {
		return nil, err
	}
	seg.DataLength, err = s.ReadUint32()
	if err != nil {
		return nil, err
	}
	seg.Key = s.Key()
	seg.DataOffset = s.Offset()
	seg.HeaderLength = seg.DataOffset - start
	seg.State = SegmentStateDataUnparsed
	return seg, nil
}

// readReferredSegmentCount reads the count and retention flags. The long
// form is followed by one retention bit per referred segment plus one.
func readReferredSegmentCount(s *BitStream) (int, error) {
	cur := s.CurByte()
	if cur>>5 != 7 {
		s.IncByte()
		return int(cur >> 5), nil
	}
	val, err := s.ReadUint32()
	if err != nil {
		return 0, err
	}
	count := int(val & 0x1fffffff)
	if count > JBig2MaxReferredSegmentCount {
		return 0, fmt.Errorf("%w: referred segment count %d out of range", ErrMalformed, count)
	}
	retain := uint32(count+8) / 8
	if s.BytesLeft() < retain {
		return 0, fmt.Errorf("%w: truncated retention flags", ErrMalformed)
	}
	s.AddOffset(retain)
	return count, nil
}

// appendHeader serialises the header of seg. Retention flags are written
// as zero.
func (seg *Segment) appendHeader(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seg.Number)
	flags := seg.Flags.WithLongPageAssociation(seg.PageAssociation > 0xff)
	dst = append(dst, flags.Raw())
	count := len(seg.ReferredToSegmentNumbers)
	if count <= 4 {
		dst = append(dst, byte(count<<5))
	} else {
		dst = binary.BigEndian.AppendUint32(dst, 7<<29|uint32(count))
		dst = append(dst, make([]byte, (count+8)/8)...)
	}
	for _, ref := range seg.ReferredToSegmentNumbers {
		switch segmentNumberSize(seg.Number) {
		case 1:
			dst = append(dst, byte(ref))
		case 2:
			dst = binary.BigEndian.AppendUint16(dst, uint16(ref))
		default:
			dst = binary.BigEndian.AppendUint32(dst, ref)
		}
	}
	if flags.HasLongPageAssociation() {
		dst = binary.BigEndian.AppendUint32(dst, seg.PageAssociation)
	} else {
		dst = append(dst, byte(seg.PageAssociation))
	}
	return binary.BigEndian.AppendUint32(dst, seg.DataLength)
}
