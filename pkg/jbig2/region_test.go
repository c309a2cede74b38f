package jbig2

import (
	"bytes"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"github.com/jdeng/jbig2regions/internal/jbig2"
)

func randomImage(t *testing.T, rng *rand.Rand, w, h int) *Image {
	t.Helper()
	img, err := NewImage(w, h)
	if err != nil {
		t.Fatalf("NewImage(%d, %d) failed: %v", w, h, err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if rng.Intn(3) == 0 {
				img.SetPixel(x, y, 1)
			}
		}
	}
	return img
}

func sameImage(a, b *Image) bool {
	if a.Width() != b.Width() || a.Height() != b.Height() {
		return false
	}
	for y := 0; y < a.Height(); y++ {
		for x := 0; x < a.Width(); x++ {
			if a.Pixel(x, y) != b.Pixel(x, y) {
				return false
			}
		}
	}
	return true
}

func TestGenericRegionHelpersRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for template := uint8(0); template < 4; template++ {
		for _, tpgdon := range []bool{false, true} {
			p := NominalGenericParams(template)
			p.TPGDON = tpgdon
			src := randomImage(t, rng, 37, 11)
			data, err := EncodeGenericRegion(p, src)
			if err != nil {
				t.Fatalf("template %d: encode failed: %v", template, err)
			}
			got, err := DecodeGenericRegion(p, 37, 11, data)
			if err != nil {
				t.Fatalf("template %d: decode failed: %v", template, err)
			}
			if !sameImage(src, got) {
				t.Errorf("template %d TPGDON %v: decoded region differs", template, tpgdon)
			}
		}
	}
}

func TestRefinementRegionHelpersRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	ref := randomImage(t, rng, 40, 9)
	for template := uint8(0); template < 2; template++ {
		p := NominalRefinementParams(template)
		p.TPGRON = true
		src := randomImage(t, rng, 40, 9)
		data, err := EncodeRefinementRegion(p, ref, src)
		if err != nil {
			t.Fatalf("template %d: encode failed: %v", template, err)
		}
		got, err := DecodeRefinementRegion(p, ref, 40, 9, data)
		if err != nil {
			t.Fatalf("template %d: decode failed: %v", template, err)
		}
		if !sameImage(src, got) {
			t.Errorf("template %d: decoded refinement differs", template)
		}
	}
}

func TestDecodeRefinementRegionWithoutReference(t *testing.T) {
	_, err := DecodeRefinementRegion(NominalRefinementParams(1), nil, 8, 8, []byte{0xff, 0xac})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeGenericRegionRejectsOversizedRegion(t *testing.T) {
	_, err := DecodeGenericRegion(NominalGenericParams(0), 1<<16, 1<<12, []byte{0})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecoderDecodesSynthesizedPage(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	region := randomImage(t, rng, 24, 6)

	w := jbig2.NewStreamWriter(true)
	w.PageInfo(jbig2.PageInfo{Width: 32, Height: 16})
	p := NominalGenericParams(1)
	if _, err := w.GenericRegion(jbig2.RegionInfo{X: 8, Y: 5}, p.proc(0), region.img, false); err != nil {
		t.Fatalf("GenericRegion failed: %v", err)
	}
	w.EndOfPage()
	w.EndOfFile()

	var logs bytes.Buffer
	dec, err := New(Options{
		SrcData: w.Bytes(),
		Logger:  slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := dec.DecodeAll(); err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}
	if status := dec.GetProcessingStatus(); status != CodecStatusFinished {
		t.Errorf("status = %v, want Finished", status)
	}
	info, ok := dec.GetPageInfo()
	if !ok || info.Width != 32 || info.Height != 16 {
		t.Fatalf("GetPageInfo() = %+v, %v", info, ok)
	}
	page := dec.GetPageImage()
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			want := region.Pixel(x-8, y-5)
			if got := page.Pixel(x, y); got != want {
				t.Fatalf("page pixel (%d, %d) = %d, want %d", x, y, got, want)
			}
		}
	}
	if segs := dec.GetSegments(); len(segs) != 3 {
		t.Errorf("expected 3 segments, got %d", len(segs))
	}
	if !strings.Contains(logs.String(), "segment=1") {
		t.Errorf("expected per-segment diagnostics, got %q", logs.String())
	}
}

func TestImageGray(t *testing.T) {
	img, err := NewImage(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	img.SetPixel(1, 1, 1)
	gray := img.Gray()
	if gray.GrayAt(1, 1).Y != 0 {
		t.Errorf("set pixel should render black")
	}
	if gray.GrayAt(0, 0).Y != 255 {
		t.Errorf("clear pixel should render white")
	}
}

func TestComposeDecodedRegions(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	generic := randomImage(t, rng, 21, 7)
	gp := NominalGenericParams(1)
	data, err := EncodeGenericRegion(gp, generic)
	if err != nil {
		t.Fatal(err)
	}
	region, err := DecodeGenericRegion(gp, 21, 7, data)
	if err != nil {
		t.Fatal(err)
	}
	rp := NominalRefinementParams(0)
	refined := randomImage(t, rng, 21, 7)
	if data, err = EncodeRefinementRegion(rp, region, refined); err != nil {
		t.Fatal(err)
	}
	refinedRegion, err := DecodeRefinementRegion(rp, region, 21, 7, data)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		op   ComposeOp
		want func(d, s int) int
	}{
		{ComposeOR, func(d, s int) int { return d | s }},
		{ComposeAND, func(d, s int) int { return d & s }},
		{ComposeXOR, func(d, s int) int { return d ^ s }},
		{ComposeXNOR, func(d, s int) int { return 1 ^ d ^ s }},
		{ComposeReplace, func(d, s int) int { return s }},
	}
	for _, test := range tests {
		page := randomImage(t, rng, 40, 16)
		before, err := NewImage(40, 16)
		if err != nil {
			t.Fatal(err)
		}
		for y := 0; y < 16; y++ {
			for x := 0; x < 40; x++ {
				before.SetPixel(x, y, page.Pixel(x, y))
			}
		}
		if err := page.ComposeFrom(3, 2, region, test.op); err != nil {
			t.Fatalf("%v: ComposeFrom failed: %v", test.op, err)
		}
		if err := page.ComposeFrom(25, 12, refinedRegion, test.op); err != nil {
			t.Fatalf("%v: ComposeFrom failed: %v", test.op, err)
		}
		for y := 0; y < 16; y++ {
			for x := 0; x < 40; x++ {
				want := before.Pixel(x, y)
				if x >= 3 && x < 24 && y >= 2 && y < 9 {
					want = test.want(want, region.Pixel(x-3, y-2))
				}
				if x >= 25 && y >= 12 {
					want = test.want(want, refinedRegion.Pixel(x-25, y-12))
				}
				if got := page.Pixel(x, y); got != want {
					t.Fatalf("%v: pixel (%d,%d) = %d, want %d", test.op, x, y, got, want)
				}
			}
		}
	}

	page, err := NewImage(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := page.ComposeFrom(0, 0, nil, ComposeOR); !errors.Is(err, ErrMalformed) {
		t.Errorf("nil source: got %v", err)
	}
	if err := page.ComposeFrom(0, 0, region, ComposeOp(9)); !errors.Is(err, ErrMalformed) {
		t.Errorf("unknown operator: got %v", err)
	}
	if got := ComposeXNOR.String(); got != "XNOR" {
		t.Errorf("ComposeXNOR.String() = %q", got)
	}
}
