package jbig2

import (
	"encoding/binary"
	"fmt"
)

// regionInfoSize is the length of the region segment information field.
const regionInfoSize = 17

// RegionInfo is the region segment information field (7.4.1) that opens
// every region segment.
type RegionInfo struct {
	Width  uint32
	Height uint32
	X      uint32
	Y      uint32
	Flags  uint8
}

// Op returns the combination operator used to draw the region on the page.
func (ri RegionInfo) Op() ComposeOp { return ComposeOp(ri.Flags & 0x07) }

func (ri RegionInfo) String() string {
	return fmt.Sprintf("%dx%d @ (%d, %d) op %v", ri.Width, ri.Height, ri.X, ri.Y, ri.Op())
}

func parseRegionInfo(s *BitStream) (RegionInfo, error) {
	var ri RegionInfo
	var err error
	if ri.Width, err = s.ReadUint32(); err != nil {
		return ri, err
	}
	if ri.Height, err = s.ReadUint32(); err != nil {
		return ri, err
	}
	if ri.X, err = s.ReadUint32(); err != nil {
		return ri, err
	}
	if ri.Y, err = s.ReadUint32(); err != nil {
		return ri, err
	}
	ri.Flags, err = s.ReadByte()
	return ri, err
}

func (ri RegionInfo) appendTo(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, ri.Width)
	dst = binary.BigEndian.AppendUint32(dst, ri.Height)
	dst = binary.BigEndian.AppendUint32(dst, ri.X)
	dst = binary.BigEndian.AppendUint32(dst, ri.Y)
	return append(dst, ri.Flags)
}
