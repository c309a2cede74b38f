package zstdio

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte{0x97, 0x4a, 0x42, 0x32, 0x0d, 0x0a, 0x1a, 0x0a}, 64)
	packed, err := Compress(data)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if !IsCompressed(packed) || len(packed) >= len(data) {
		t.Fatalf("compressed %d bytes into %d", len(data), len(packed))
	}
	got, err := Decompress(packed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round trip changed the data")
	}
}

func TestDecompressPassesPlainData(t *testing.T) {
	data := []byte{0, 0, 0, 1, 48}
	got, err := Decompress(data)
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("plain data: got % x, %v", got, err)
	}
	if _, err := Decompress(append(append([]byte{}, magic...), 0xff, 0xff)); !errors.Is(err, ErrCorrupt) {
		t.Errorf("corrupt frame: got %v, want ErrCorrupt", err)
	}
}

func TestDecompressConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		data := bytes.Repeat([]byte{byte(i), 0x4a}, 100+i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			packed, err := Compress(data)
			if err != nil {
				t.Errorf("Compress failed: %v", err)
				return
			}
			if got, err := Decompress(packed); err != nil || !bytes.Equal(got, data) {
				t.Errorf("round trip %d: %v", i, err)
			}
		}()
	}
	wg.Wait()
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	data := []byte("jbig2 stream")
	for _, name := range []string{"a.jb2", "a.jb2" + Ext} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, data); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", name, err)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if IsCompressed(raw) != (filepath.Ext(name) == Ext) {
			t.Errorf("%s: compressed on disk = %v", name, IsCompressed(raw))
		}
		got, err := ReadFile(path)
		if err != nil || !bytes.Equal(got, data) {
			t.Errorf("%s: ReadFile = %q, %v", name, got, err)
		}
	}
	if TrimExt("page.jb2"+Ext) != "page.jb2" {
		t.Error("TrimExt left the extension")
	}
}
