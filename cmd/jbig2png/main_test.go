package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/jdeng/jbig2regions/internal/jbig2"
	"github.com/jdeng/jbig2regions/internal/zstdio"
)

func writeTestStream(t *testing.T, dir string) string {
	t.Helper()
	img, err := jbig2.NewImage(6, 4)
	if err != nil {
		t.Fatal(err)
	}
	for x := 0; x < 6; x++ {
		img.SetPixel(x, 1, 1)
	}
	w := jbig2.NewStreamWriter(true)
	w.PageInfo(jbig2.PageInfo{Width: 10, Height: 8})
	p := &jbig2.GRDProc{GBTemplate: 1, GBAt: [8]int8{3, -1}}
	if _, err := w.GenericRegion(jbig2.RegionInfo{X: 2, Y: 2}, p, img, false); err != nil {
		t.Fatal(err)
	}
	w.Segment(0, nil, []byte{0, 0}) // a symbol dictionary is skipped
	w.EndOfPage()
	w.EndOfFile()

	path := filepath.Join(dir, "page.jb2")
	if err := os.WriteFile(path, w.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunWritesPNG(t *testing.T) {
	dir := t.TempDir()
	input := writeTestStream(t, dir)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-input", input}, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v\n%s", err, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "Found 4 segments") || !strings.Contains(out, "Result=Skipped") {
		t.Errorf("unexpected segment listing:\n%s", out)
	}
	if !strings.Contains(stderr.String(), "skipping unsupported symbol dictionary segment") {
		t.Errorf("skip warning missing from stderr:\n%s", stderr.String())
	}

	f, err := os.Open(filepath.Join(dir, "page.png"))
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 10 || b.Dy() != 8 {
		t.Fatalf("PNG is %v", b)
	}
	if r, _, _, _ := img.At(4, 3).RGBA(); r != 0 {
		t.Errorf("set pixel rendered with red %d, want black", r)
	}
	if r, _, _, _ := img.At(4, 2).RGBA(); r != 0xffff {
		t.Errorf("clear pixel rendered with red %d, want white", r)
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "bad.jb2")
	if err := os.WriteFile(garbage, []byte{0, 0, 0, 0, 38, 0, 1, 0, 0, 0, 4, 1, 2, 3, 4}, 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		args []string
	}{
		{"no input", nil},
		{"missing file", []string{"-input", filepath.Join(dir, "missing.jb2")}},
		{"missing globals", []string{"-input", garbage, "-global", filepath.Join(dir, "missing.glb")}},
		{"undecodable", []string{"-input", garbage}},
		{"bad flag", []string{"-nope"}},
		{"unknown format", []string{"-input", garbage, "-format", "gif"}},
	}
	for _, test := range tests {
		var stdout, stderr bytes.Buffer
		if err := run(test.args, &stdout, &stderr); err == nil {
			t.Errorf("%s: expected an error", test.name)
		}
	}
}

func TestRunCompressedInputToTIFF(t *testing.T) {
	dir := t.TempDir()
	plain := writeTestStream(t, dir)
	data, err := os.ReadFile(plain)
	if err != nil {
		t.Fatal(err)
	}
	input := filepath.Join(dir, "scan.jb2"+zstdio.Ext)
	if err := zstdio.WriteFile(input, data); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-input", input, "-format", "tiff"}, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v\n%s", err, stderr.String())
	}
	f, err := os.Open(filepath.Join(dir, "scan.tiff"))
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		t.Fatalf("tiff.Decode failed: %v", err)
	}
	if r, _, _, _ := img.At(7, 3).RGBA(); r != 0 {
		t.Errorf("set pixel rendered with red %d, want black", r)
	}
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		format, output, want string
	}{
		{"", "", "png"},
		{"", "page.BMP", "bmp"},
		{"", "page.tif", "tiff"},
		{"png", "page.tif", "png"},
	}
	for _, test := range tests {
		if got, err := outputFormat(test.format, test.output); err != nil || got != test.want {
			t.Errorf("outputFormat(%q, %q) = %q, %v; want %q", test.format, test.output, got, err, test.want)
		}
	}
}
