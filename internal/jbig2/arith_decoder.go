package jbig2

import "fmt"

const defaultAValue = 0x8000

// BitDecoder yields one adaptively coded bit per call. The region decoders
// only see this interface; ArithDecoder is the production implementation.
type BitDecoder interface {
	Decode(cx *ArithContext) (int, error)
}

// arithQe is one row of the probability estimation table (Table E.1) shared
// by the arithmetic decoder and encoder.
type arithQe struct {
	qe      uint16
	nmps    uint8
	nlps    uint8
	switchM bool
}

var arithQeTable = [...]arithQe{
	/*  0 */ {0x5601, 1, 1, true},
	/*  1 */ {0x3401, 2, 6, false},
	/*  2 */ {0x1801, 3, 9, false},
	/*  3 */ {0x0ac1, 4, 12, false},
	/*  4 */ {0x0521, 5, 29, false},
	/*  5 */ {0x0221, 38, 33, false},
	/*  6 */ {0x5601, 7, 6, true},
	/*  7 */ {0x5401, 8, 14, false},
	/*  8 */ {0x4801, 9, 14, false},
	/*  9 */ {0x3801, 10, 14, false},
	/* 10 */ {0x3001, 11, 17, false},
	/* 11 */ {0x2401, 12, 18, false},
	/* 12 */ {0x1c01, 13, 20, false},
	/* 13 */ {0x1601, 29, 21, false},
	/* 14 */ {0x5601, 15, 14, true},
	/* 15 */ {0x5401, 16, 14, false},
	/* 16 */ {0x5101, 17, 15, false},
	/* 17 */ {0x4801, 18, 16, false},
	/* 18 */ {0x3801, 19, 17, false},
	/* 19 */ {0x3401, 20, 18, false},
	/* 20 */ {0x3001, 21, 19, false},
	/* 21 */ {0x2801, 22, 19, false},
	/* 22 */ {0x2401, 23, 20, false},
	/* 23 */ {0x2201, 24, 21, false},
	/* 24 */ {0x1c01, 25, 22, false},
	/* 25 */ {0x1801, 26, 23, false},
	/* 26 */ {0x1601, 27, 24, false},
	/* 27 */ {0x1401, 28, 25, false},
	/* 28 */ {0x1201, 29, 26, false},
	/* 29 */ {0x1101, 30, 27, false},
	/* 30 */ {0x0ac1, 31, 28, false},
	/* 31 */ {0x09c1, 32, 29, false},
	/* 32 */ {0x08a1, 33, 30, false},
	/* 33 */ {0x0521, 34, 31, false},
	/* 34 */ {0x0441, 35, 32, false},
	/* 35 */ {0x02a1, 36, 33, false},
	/* 36 */ {0x0221, 37, 34, false},
	/* 37 */ {0x0141, 38, 35, false},
	/* 38 */ {0x0111, 39, 36, false},
	/* 39 */ {0x0085, 40, 37, false},
	/* 40 */ {0x0049, 41, 38, false},
	/* 41 */ {0x0025, 42, 39, false},
	/* 42 */ {0x0015, 43, 40, false},
	/* 43 */ {0x0009, 44, 41, false},
	/* 44 */ {0x0005, 45, 42, false},
	/* 45 */ {0x0001, 45, 43, false},
	/* 46 */ {0x5601, 46, 46, false},
}

// ArithContext stores the adaptive probability state of one coding context.
// The zero value is state 0 with MPS 0.
type ArithContext struct {
	mps bool
	i   uint8
}

// Index returns the current state index.
func (cx *ArithContext) Index() uint8 { return cx.i }

// MPS returns the most probable symbol for the context.
func (cx *ArithContext) MPS() int {
	if cx.mps {
		return 1
	}
	return 0
}

// exchange moves cx to its next state after a decision that was, or was
// not, the less probable symbol and returns the decoded bit.
func (cx *ArithContext) exchange(qe arithQe, lps bool) int {
	bit := cx.MPS()
	if !lps {
		cx.i = qe.nmps
		return bit
	}
	if qe.switchM {
		cx.mps = !cx.mps
	}
	cx.i = qe.nlps
	return 1 - bit
}

// ArithDecoder is the MQ binary arithmetic decoder of Annex E, using the
// inverted code register of the software conventions. Reading past the end
// of the data feeds 0xFF bytes; the decoder reports ErrCoderExhausted once a
// marker has been met three times.
type ArithDecoder struct {
	stream  *BitStream
	b       uint8
	c       uint32
	a       uint32
	ct      uint32
	markers uint8
	done    bool
}

// NewArithDecoder runs INITDEC at the current byte of stream.
func NewArithDecoder(stream *BitStream) *ArithDecoder {
	d := &ArithDecoder{stream: stream, b: stream.CurByteArith()}
	d.c = uint32(d.b^0xff) << 16
	d.byteIn()
	d.c <<= 7
	d.ct -= min(d.ct, 7)
	d.a = defaultAValue
	return d
}

// Decode consumes the next decision coded in context cx.
func (d *ArithDecoder) Decode(cx *ArithContext) (int, error) {
	if d.done {
		return 0, ErrCoderExhausted
	}
	if int(cx.i) >= len(arithQeTable) {
		return 0, fmt.Errorf("%w: arithmetic context state %d out of range", ErrMalformed, cx.i)
	}

	qe := arithQeTable[cx.i]
	q := uint32(qe.qe)
	d.a -= q
	if d.c>>16 >= d.a {
		d.c -= d.a << 16
		bit := cx.exchange(qe, d.a >= q)
		d.a = q
		d.renormalize()
		return bit, nil
	}
	if d.a&defaultAValue != 0 {
		return cx.MPS(), nil
	}
	bit := cx.exchange(qe, d.a < q)
	d.renormalize()
	return bit, nil
}

// IsComplete reports whether the decoder has run out of data.
func (d *ArithDecoder) IsComplete() bool { return d.done }

func (d *ArithDecoder) byteIn() {
	if d.b != 0xff {
		d.stream.IncByte()
		d.b = d.stream.CurByteArith()
		d.c += 0xff00 - uint32(d.b)<<8
		d.ct = 8
		return
	}
	next := d.stream.NextByteArith()
	if next <= 0x8f {
		d.stream.IncByte()
		d.b = next
		d.c += 0xfe00 - uint32(d.b)<<9
		d.ct = 7
		return
	}
	// Marker: the position stays put and 1-bits are fed from here on.
	d.ct = 8
	d.markers++
	if d.markers == 3 {
		d.done = true
	}
}

func (d *ArithDecoder) renormalize() {
	for {
		if d.ct == 0 {
			d.byteIn()
		}
		d.a <<= 1
		d.c <<= 1
		d.ct--
		if d.a&defaultAValue != 0 {
			return
		}
	}
}
