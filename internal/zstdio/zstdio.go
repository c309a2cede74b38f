// Package zstdio reads and writes JBIG2 streams stored zstd-compressed on
// disk.
package zstdio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Ext is the file extension of compressed streams.
const Ext = ".zst"

var magic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	// ErrCorrupt is returned when a zstd frame does not decode.
	ErrCorrupt = errors.New("zstdio: corrupt frame")

	errEncoderUnavailable = errors.New("zstdio: encoder unavailable")
	errDecoderUnavailable = errors.New("zstdio: decoder unavailable")
)

var encPool = sync.Pool{
	New: func() any {
		enc, _ := zstd.NewWriter(nil)
		return enc
	},
}

var decPool = sync.Pool{
	New: func() any {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	},
}

// IsCompressed reports whether data starts with a zstd frame.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Compress returns data as a single zstd frame.
func Compress(data []byte) ([]byte, error) {
	enc, ok := encPool.Get().(*zstd.Encoder)
	if !ok || enc == nil {
		return nil, errEncoderUnavailable
	}
	defer encPool.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

// Decompress inflates data when it is zstd-compressed and returns it
// unchanged otherwise.
func Decompress(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}
	dec, ok := decPool.Get().(*zstd.Decoder)
	if !ok || dec == nil {
		return nil, errDecoderUnavailable
	}
	defer decPool.Put(dec)
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return out, nil
}

// ReadFile reads name and inflates it if it is compressed.
func ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Decompress(data)
}

// WriteFile writes data to name, compressing it when name ends in Ext.
func WriteFile(name string, data []byte) error {
	if strings.HasSuffix(name, Ext) {
		var err error
		if data, err = Compress(data); err != nil {
			return err
		}
	}
	return os.WriteFile(name, data, 0o644)
}

// TrimExt strips a trailing Ext from name.
func TrimExt(name string) string {
	return strings.TrimSuffix(name, Ext)
}
