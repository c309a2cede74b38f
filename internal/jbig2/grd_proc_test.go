package jbig2

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

// failingDecoder yields zeros for n decisions and then fails.
type failingDecoder struct {
	n   int
	err error
}

func (d *failingDecoder) Decode(*ArithContext) (int, error) {
	if d.n == 0 {
		return 0, d.err
	}
	d.n--
	return 0, nil
}

var (
	goldenGenericRows = []string{
		"10110011100011110",
		"01101100011100001",
		"11111000001111100",
	}
	goldenGenericPacked = []byte{0xb3, 0x8f, 0x00, 0x6c, 0x70, 0x80, 0xf8, 0x3e, 0x00}
	// Coded by EncodeGenericRegion and checked against an independent decoder.
	goldenGenericData = []byte{0xb4, 0x53, 0x00, 0x1e, 0x1b, 0xb7, 0x23, 0xff, 0xac}
)

func decodeGeneric(t *testing.T, p *GRDProc, w, h int, data []byte) *Image {
	t.Helper()
	img := mustImage(t, w, h)
	dec := NewArithDecoder(NewBitStream(data, 0))
	if err := p.DecodeArith(dec, NewGenericStats(p.GBTemplate), img); err != nil {
		t.Fatalf("%v: DecodeArith failed: %v", p.variant(), err)
	}
	return img
}

func TestGenericRegionGoldenDecode(t *testing.T) {
	p := &GRDProc{GBAt: nominalGBAt[0], DataLength: len(goldenGenericData)}
	img := decodeGeneric(t, p, 17, 3, goldenGenericData)
	if got := img.Data()[:9]; !bytes.Equal(got, goldenGenericPacked) {
		t.Fatalf("packed rows = % x, want % x", got, goldenGenericPacked)
	}
}

func TestGenericRegionGoldenEncode(t *testing.T) {
	p := &GRDProc{GBAt: nominalGBAt[0]}
	got, err := EncodeGenericRegion(p, imageFromRows(t, goldenGenericRows...))
	if err != nil {
		t.Fatalf("EncodeGenericRegion failed: %v", err)
	}
	if !bytes.Equal(got, goldenGenericData) {
		t.Fatalf("coded data = % x, want % x", got, goldenGenericData)
	}
}

// randomCausalAT places adaptive pixels anywhere already decoded.
func randomCausalAT(rng *rand.Rand) [8]int8 {
	var at [8]int8
	for i := 0; i < 8; i += 2 {
		dy := -rng.Intn(4)
		dx := rng.Intn(16) - 8
		if dy == 0 {
			dx = -1 - rng.Intn(8)
		}
		at[i], at[i+1] = int8(dx), int8(dy)
	}
	return at
}

func TestGenericRegionRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for template := uint8(0); template < 4; template++ {
		ats := [][8]int8{nominalGBAt[template], randomCausalAT(rng), randomCausalAT(rng)}
		if template == 2 {
			ats = append(ats, [8]int8{3, -1})
		}
		for _, at := range ats {
			for _, tpgdon := range []bool{false, true} {
				for _, w := range []int{1, 7, 8, 9, 31, 64, 71} {
					p := &GRDProc{GBTemplate: template, GBAt: at, TPGDON: tpgdon}
					src := randomImage(t, rng, w, 9)
					if tpgdon {
						// Repeated rows exercise the typical prediction run.
						src.copyPrevRow(3)
						src.copyPrevRow(4)
						src.copyPrevRow(0)
					}
					data, err := EncodeGenericRegion(p, src)
					if err != nil {
						t.Fatalf("encode failed: %v", err)
					}
					got := decodeGeneric(t, p, w, 9, data)
					if !samePixels(got, src) {
						t.Fatalf("%v AT %v TPGDON %v width %d: decoded region differs", p.variant(), at, tpgdon, w)
					}
				}
			}
		}
	}
}

func TestGenericNominalMatchesGenericPath(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	generic := [4]genericVariant{template0Generic, template1Generic, template2Generic, template3Generic}
	for template := uint8(0); template < 4; template++ {
		ats := [][8]int8{nominalGBAt[template]}
		if template == 2 {
			ats = append(ats, [8]int8{3, -1})
		}
		for _, at := range ats {
			p := &GRDProc{GBTemplate: template, GBAt: at, TPGDON: true}
			src := randomImage(t, rng, 45, 12)
			data, err := EncodeGenericRegion(p, src)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			fast := decodeGeneric(t, p, 45, 12, data)
			slow := mustImage(t, 45, 12)
			dec := NewArithDecoder(NewBitStream(data, 0))
			if err := p.decodeVariant(generic[template], dec, NewGenericStats(template), slow); err != nil {
				t.Fatalf("generic path failed: %v", err)
			}
			if !samePixels(fast, slow) {
				t.Errorf("%v and %v disagree", p.variant(), generic[template])
			}
		}
	}
}

func TestGenericRegionVariantSelection(t *testing.T) {
	tests := []struct {
		template uint8
		at       [8]int8
		want     genericVariant
	}{
		{0, nominalGBAt[0], template0Nominal},
		{0, [8]int8{3, -1, -3, -1, 2, -2, -2, -3}, template0Generic},
		{1, [8]int8{3, -1}, template1Nominal},
		{1, [8]int8{-2, -1}, template1Generic},
		{2, [8]int8{2, -1}, template2Nominal},
		{2, [8]int8{3, -1}, template2a},
		{2, [8]int8{-3, 0}, template2Generic},
		{3, [8]int8{2, -1}, template3Nominal},
		{3, [8]int8{-5, -2}, template3Generic},
	}
	for _, test := range tests {
		p := &GRDProc{GBTemplate: test.template, GBAt: test.at}
		if got := p.variant(); got != test.want {
			t.Errorf("template %d AT %v: got %v, want %v", test.template, test.at, got, test.want)
		}
	}
}

func TestGenericRegionTypicalPrediction(t *testing.T) {
	// A blank region under TPGDON is one SLTP decision per row.
	p := &GRDProc{GBTemplate: 3, GBAt: nominalGBAt[3], TPGDON: true}
	src := mustImage(t, 200, 50)
	data, err := EncodeGenericRegion(p, src)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) > 16 {
		t.Errorf("blank region took %d bytes", len(data))
	}
	got := decodeGeneric(t, p, 200, 50, data)
	if !samePixels(got, src) {
		t.Error("blank region decoded with set pixels")
	}
}

// encodeGenericNoTypicalRows codes img with an SLTP decision of 0 ahead of
// every row, so a TPGDON decoder must decode every pixel.
func encodeGenericNoTypicalRows(p *GRDProc, img *Image) []byte {
	enc := NewArithEncoder()
	stats := NewGenericStats(p.GBTemplate)
	for y := 0; y < img.Height(); y++ {
		enc.Encode(&stats[typicalGenericContexts[p.GBTemplate]], 0)
		for x := 0; x < img.Width(); x++ {
			enc.Encode(&stats[p.context(img, x, y)], img.GetPixel(x, y))
		}
	}
	return enc.Flush()
}

func TestGenericTypicalPredictionOffMatchesPlainDecode(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	tests := []struct {
		template uint8
		at       [8]int8
	}{
		{0, nominalGBAt[0]},
		{0, [8]int8{-2, 0, 4, -1, -5, -2, 1, -3}},
		{1, nominalGBAt[1]},
		{2, nominalGBAt[2]},
		{2, [8]int8{3, -1}},
		{3, nominalGBAt[3]},
		{3, [8]int8{-4, -1}},
	}
	for _, test := range tests {
		for _, w := range []int{5, 16, 37} {
			src := randomImage(t, rng, w, 10)
			// Repeated rows would be typical; the stream never says so.
			src.copyPrevRow(2)
			src.copyPrevRow(6)
			plain := &GRDProc{GBTemplate: test.template, GBAt: test.at}
			data, err := EncodeGenericRegion(plain, src)
			if err != nil {
				t.Fatal(err)
			}
			want := decodeGeneric(t, plain, w, 10, data)

			tp := &GRDProc{GBTemplate: test.template, GBAt: test.at, TPGDON: true}
			got := decodeGeneric(t, tp, w, 10, encodeGenericNoTypicalRows(tp, src))
			if !samePixels(got, want) || !samePixels(got, src) {
				t.Errorf("%v AT %v width %d: TPGDON with no typical rows differs from the plain decode", tp.variant(), test.at, w)
			}
		}
	}
}

func TestGenericRegionErrors(t *testing.T) {
	img := mustImage(t, 16, 4)
	dec := NewArithDecoder(NewBitStream([]byte{0xff, 0xac}, 0))
	tests := []struct {
		name  string
		p     *GRDProc
		dec   BitDecoder
		stats []ArithContext
		img   *Image
		want  error
	}{
		{"no decoder", &GRDProc{}, nil, NewGenericStats(0), img, ErrMalformed},
		{"no image", &GRDProc{}, dec, NewGenericStats(0), nil, ErrMalformed},
		{"mmr", &GRDProc{MMR: true}, dec, NewGenericStats(0), img, ErrNotImplemented},
		{"bad template", &GRDProc{GBTemplate: 4}, dec, NewGenericStats(0), img, ErrMalformed},
		{"short stats", &GRDProc{GBTemplate: 0}, dec, NewGenericStats(1), img, ErrMalformed},
		{"decoder failure", &GRDProc{GBAt: nominalGBAt[0]}, &failingDecoder{n: 20, err: ErrCoderExhausted}, NewGenericStats(0), img, ErrCoderExhausted},
		{"generic path failure", &GRDProc{GBTemplate: 1}, &failingDecoder{n: 3, err: ErrCoderExhausted}, NewGenericStats(1), img, ErrCoderExhausted},
		{"typical failure", &GRDProc{GBTemplate: 2, TPGDON: true}, &failingDecoder{err: ErrCoderExhausted}, NewGenericStats(2), img, ErrCoderExhausted},
	}
	for _, test := range tests {
		if err := test.p.DecodeArith(test.dec, test.stats, test.img); !errors.Is(err, test.want) {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, err)
		}
	}
}

func TestCheckRegionSize(t *testing.T) {
	if err := CheckRegionSize(1<<24, 0); err != nil {
		t.Errorf("region at the limit should pass, got %v", err)
	}
	if err := CheckRegionSize(1<<24+256, 1<<17); err != nil {
		t.Errorf("region with enough data should pass, got %v", err)
	}
	if err := CheckRegionSize(1<<25, 1<<17-1); !errors.Is(err, ErrMalformed) {
		t.Errorf("oversized region should fail with ErrMalformed, got %v", err)
	}

	// The guard runs before any decision is read.
	p := &GRDProc{GBAt: nominalGBAt[0], DataLength: 10}
	img := mustImage(t, 1<<16, 2049)
	if err := p.DecodeArith(&failingDecoder{err: errors.New("decoder touched")}, NewGenericStats(0), img); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed from the size guard, got %v", err)
	}
}

func TestEncodeGenericRegionErrors(t *testing.T) {
	img := mustImage(t, 4, 4)
	if _, err := EncodeGenericRegion(&GRDProc{MMR: true}, img); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("MMR: expected ErrNotImplemented, got %v", err)
	}
	if _, err := EncodeGenericRegion(&GRDProc{GBTemplate: 5}, img); !errors.Is(err, ErrMalformed) {
		t.Errorf("template 5: expected ErrMalformed, got %v", err)
	}
	if _, err := EncodeGenericRegion(&GRDProc{}, nil); !errors.Is(err, ErrMalformed) {
		t.Errorf("nil image: expected ErrMalformed, got %v", err)
	}
}
