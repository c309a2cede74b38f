package jbig2

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

var jbig2FileSignature = []byte{0x97, 0x4a, 0x42, 0x32, 0x0d, 0x0a, 0x1a, 0x0a}

const (
	fileFlagSequential     = 0x01
	fileFlagUnknownPageNum = 0x02
)

// FileHeader captures the parsed JBIG2 file header fields.
type FileHeader struct {
	Flags      uint8
	NumPages   uint32
	HasNumPage bool
}

// Sequential reports whether segment headers are interleaved with their
// data. Random-access files group all headers first.
func (h *FileHeader) Sequential() bool {
	return h.Flags&fileFlagSequential != 0
}

// stripJBIG2FileHeader removes the JBIG2 file header if present. JBIG2 files
// begin with an 8-byte signature followed by a flags byte and, unless the
// page count is unknown, a big-endian number-of-pages field. Embedded
// streams carry no header and are returned unchanged.
func stripJBIG2FileHeader(data []byte) ([]byte, *FileHeader, error) {
	if len(data) < len(jbig2FileSignature) {
		return data, nil, nil
	}
	if !bytes.Equal(data[:len(jbig2FileSignature)], jbig2FileSignature) {
		return data, nil, nil
	}
	if len(data) < len(jbig2FileSignature)+1 {
		return nil, nil, fmt.Errorf("%w: truncated file header, need at least %d bytes", ErrMalformed, len(jbig2FileSignature)+1)
	}
	flags := data[8]
	offset := len(jbig2FileSignature) + 1
	header := &FileHeader{Flags: flags}
	if flags&fileFlagUnknownPageNum == 0 {
		if len(data) < offset+4 {
			return nil, nil, fmt.Errorf("%w: truncated file header, missing page count", ErrMalformed)
		}
		header.NumPages = binary.BigEndian.Uint32(data[offset : offset+4])
		header.HasNumPage = true
		offset += 4
	}
	return data[offset:], header, nil
}

// appendFileHeader writes a sequential file header for pages pages.
func appendFileHeader(dst []byte, pages uint32) []byte {
	dst = append(dst, jbig2FileSignature...)
	dst = append(dst, fileFlagSequential)
	return binary.BigEndian.AppendUint32(dst, pages)
}
