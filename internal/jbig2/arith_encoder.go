package jbig2

// ArithEncoder is the MQ arithmetic encoder matching ArithDecoder. It shares
// the probability table and ArithContext state machine with the decoder, so
// a context table driven through Encode evolves exactly as the decoder's
// copy does while reading the result back.
type ArithEncoder struct {
	a   uint32
	c   uint32
	ct  int
	buf []byte
}

// NewArithEncoder returns an encoder ready for the first symbol.
func NewArithEncoder() *ArithEncoder {
	return &ArithEncoder{a: defaultAValue, ct: 12}
}

// Encode codes bit (0 or 1) under cx.
func (enc *ArithEncoder) Encode(cx *ArithContext, bit int) {
	qe := arithQeTable[cx.i]
	q := uint32(qe.qe)
	enc.a -= q
	if bit&1 == cx.MPS() {
		if enc.a&defaultAValue != 0 {
			enc.c += q
			return
		}
		if enc.a < q {
			enc.a = q
		} else {
			enc.c += q
		}
		cx.i = qe.nmps
		enc.renorm()
		return
	}
	if enc.a < q {
		enc.c += q
	} else {
		enc.a = q
	}
	if qe.switchM {
		cx.mps = !cx.mps
	}
	cx.i = qe.nlps
	enc.renorm()
}

func (enc *ArithEncoder) renorm() {
	for {
		enc.a <<= 1
		enc.c <<= 1
		enc.ct--
		if enc.ct == 0 {
			enc.byteOut()
		}
		if enc.a&defaultAValue != 0 {
			return
		}
	}
}

func (enc *ArithEncoder) byteOut() {
	if len(enc.buf) == 0 {
		enc.emit8()
		return
	}
	last := len(enc.buf) - 1
	if enc.buf[last] == 0xFF {
		enc.emit7()
		return
	}
	if enc.c < 0x8000000 {
		enc.emit8()
		return
	}
	enc.buf[last]++
	if enc.buf[last] == 0xFF {
		enc.c &= 0x7FFFFFF
		enc.emit7()
		return
	}
	enc.emit8()
}

func (enc *ArithEncoder) emit8() {
	enc.buf = append(enc.buf, byte(enc.c>>19))
	enc.c &= 0x7FFFF
	enc.ct = 8
}

// emit7 follows a 0xFF byte; the stuffed zero bit keeps the pair from
// reading as a marker.
func (enc *ArithEncoder) emit7() {
	enc.buf = append(enc.buf, byte(enc.c>>20))
	enc.c &= 0xFFFFF
	enc.ct = 7
}

// Flush terminates the code stream and returns it, ending with the 0xFFAC
// marker. The encoder must not be used afterwards.
func (enc *ArithEncoder) Flush() []byte {
	temp := enc.c + enc.a
	enc.c |= 0xFFFF
	if enc.c >= temp {
		enc.c -= 0x8000
	}
	enc.c <<= uint(enc.ct)
	enc.byteOut()
	enc.c <<= uint(enc.ct)
	enc.byteOut()
	if len(enc.buf) == 0 || enc.buf[len(enc.buf)-1] != 0xFF {
		enc.buf = append(enc.buf, 0xFF)
	}
	return append(enc.buf, 0xAC)
}
