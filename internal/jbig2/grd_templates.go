package jbig2

// nominalLayout describes how a template with its AT pixels in the nominal
// position slides its context across whole bytes of the two rows above.
// m1 and m2 hold rows y-1 and y-2; the bytes of row y-2 are pre-shifted left
// by m2Align so a single shift serves both rows.
type nominalLayout struct {
	m2Align uint
	m1Shift uint
	m1Mask  uint32
	m2Shift uint
	m2Mask  uint32
	atShift uint
	atMask  uint32

	keep   uint32
	base   int
	m1Bit  uint32
	m2Bit  uint32
	atBase int
	atBit  uint32
}

var nominalLayouts = [...]nominalLayout{
	template0Nominal: {m2Align: 6, m1Mask: 0x7f0, m2Mask: 0xf800, keep: 0x7bf7, base: 7, m1Bit: 0x010, m2Bit: 0x800},
	template1Nominal: {m2Align: 5, m1Shift: 1, m1Mask: 0x1f8, m2Shift: 1, m2Mask: 0x1e00, keep: 0xefb, base: 8, m1Bit: 0x008, m2Bit: 0x200},
	template2Nominal: {m2Align: 4, m1Shift: 3, m1Mask: 0x07c, m2Shift: 3, m2Mask: 0x380, keep: 0x1bd, base: 10, m1Bit: 0x004, m2Bit: 0x080},
	// (3,-1) lands one pixel past the contiguous run of row y-1.
	template2a: {m2Align: 4, m1Shift: 3, m1Mask: 0x078, atShift: 2, atMask: 0x004, m2Shift: 3, m2Mask: 0x380,
		keep: 0x1b9, base: 10, m1Bit: 0x008, m2Bit: 0x080, atBase: 9, atBit: 0x004},
	template3Nominal: {m1Shift: 1, m1Mask: 0x3f0, keep: 0x1f7, base: 8, m1Bit: 0x010},
}

// decodeNominal decodes eight pixels per output byte, sliding the context
// along the bytes of the previous rows instead of sampling each neighbour.
// Rows are written whole, which keeps the padding bits of each row clear.
func (p *GRDProc) decodeNominal(decoder BitDecoder, stats []ArithContext, img *Image, l *nominalLayout) error {
	gbw, gbh, stride := img.width, img.height, img.stride
	data := img.data
	ltp := false
	for y := 0; y < gbh; y++ {
		done, err := p.typicalRow(decoder, stats, img, y, &ltp)
		if err != nil {
			return err
		}
		if done {
			continue
		}

		line := y * stride
		var m1, m2 uint32
		if y >= 1 {
			m1 = uint32(data[line-stride])
		}
		if y >= 2 && l.m2Mask != 0 {
			m2 = uint32(data[line-2*stride]) << l.m2Align
		}
		cx := (m1>>l.m1Shift)&l.m1Mask | (m1>>l.atShift)&l.atMask | (m2>>l.m2Shift)&l.m2Mask

		for x := 0; x < gbw; x += 8 {
			next := line + x>>3 + 1
			if y >= 1 {
				m1 <<= 8
				if x+8 < gbw {
					m1 |= uint32(data[next-stride])
				}
			}
			if y >= 2 && l.m2Mask != 0 {
				m2 <<= 8
				if x+8 < gbw {
					m2 |= uint32(data[next-2*stride]) << l.m2Align
				}
			}

			var result byte
			minor := min(8, gbw-x)
			for xm := 0; xm < minor; xm++ {
				bit, err := decoder.Decode(&stats[cx])
				if err != nil {
					return err
				}
				result |= byte(bit) << uint(7-xm)
				cx = (cx&l.keep)<<1 | uint32(bit) |
					(m1>>uint(l.base-xm))&l.m1Bit |
					(m2>>uint(l.base-xm))&l.m2Bit
				if l.atBit != 0 {
					cx |= (m1 >> uint(l.atBase-xm)) & l.atBit
				}
			}
			data[next-1] = result
		}
	}
	return nil
}

func (p *GRDProc) decodeTemplate0Generic(decoder BitDecoder, stats []ArithContext, img *Image) error {
	gbw, gbh, stride := img.width, img.height, img.stride
	data := img.data
	at := p.GBAt
	wmask := byte(0xff) << uint((-gbw)&7)
	ltp := false
	for y := 0; y < gbh; y++ {
		done, err := p.typicalRow(decoder, stats, img, y, &ltp)
		if err != nil {
			return err
		}
		if done {
			continue
		}

		line := y * stride
		var m1, m2 uint32
		if y >= 1 {
			m1 = uint32(data[line-stride])
		}
		if y >= 2 {
			m2 = uint32(data[line-2*stride]) << 6
		}
		// (0,-1) (+1,-1) (+2,-1) to bits 7 6 5, (0,-2) (+1,-2) to bits 13 12
		cx := m1&0x0e0 | m2&0x3000

		data[line+(gbw>>3)] &= wmask

		for x, px := 0, line; x < gbw; x, px = x+8, px+1 {
			if y >= 1 {
				m1 <<= 8
				if x+8 < gbw {
					m1 |= uint32(data[px-stride+1])
				}
			}
			if y >= 2 {
				m2 <<= 8
				if x+8 < gbw {
					m2 |= uint32(data[px-2*stride+1]) << 6
				}
			}

			var result byte
			mask := byte(0x7f)
			minor := min(8, gbw-x)
			for xm := 0; xm < minor; xm, mask = xm+1, mask>>1 {
				cur := x + xm
				cx |= img.bit(cur+int(at[0]), y+int(at[1]))<<4 |
					img.bit(cur+int(at[2]), y+int(at[3]))<<10 |
					img.bit(cur+int(at[4]), y+int(at[5]))<<11 |
					img.bit(cur+int(at[6]), y+int(at[7]))<<15
				bit, err := decoder.Decode(&stats[cx])
				if err != nil {
					return err
				}
				result |= byte(bit) << uint(7-xm)
				// AT pixels may sit in the current row, so publish each bit.
				data[px] = data[px]&mask | result
				cx = (cx<<1)&0x63ce | uint32(bit) |
					(m1>>uint(7-xm))&0x020 |
					(m2>>uint(7-xm))&0x1000
			}
		}
	}
	return nil
}

func (p *GRDProc) decodeTemplate1Generic(decoder BitDecoder, stats []ArithContext, img *Image) error {
	const keep = 1<<1 | 1<<2 | 1<<5 | 1<<6 | 1<<7 | 1<<8 | 1<<10 | 1<<11 | 1<<12
	xoff, yoff := int(p.GBAt[0]), int(p.GBAt[1])
	ltp := false
	for y := 0; y < img.height; y++ {
		done, err := p.typicalRow(decoder, stats, img, y, &ltp)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		row := img.Line(y)
		cx := img.bit(-1, y) | img.bit(-2, y)<<1 | img.bit(-3, y)<<2 |
			img.bit(1, y-1)<<5 | img.bit(0, y-1)<<6 | img.bit(-1, y-1)<<7 | img.bit(-2, y-1)<<8 |
			img.bit(1, y-2)<<10 | img.bit(0, y-2)<<11 | img.bit(-1, y-2)<<12
		for x := 0; x < img.width; x++ {
			cx |= img.bit(x+xoff, y+yoff)<<3 | img.bit(x+2, y-1)<<4 | img.bit(x+2, y-2)<<9
			bit, err := decoder.Decode(&stats[cx])
			if err != nil {
				return err
			}
			writeBit(row, x, bit)
			cx = (cx<<1)&keep | uint32(bit)
		}
	}
	return nil
}

func (p *GRDProc) decodeTemplate2Generic(decoder BitDecoder, stats []ArithContext, img *Image) error {
	const keep = 1<<1 | 1<<4 | 1<<5 | 1<<6 | 1<<8 | 1<<9
	xoff, yoff := int(p.GBAt[0]), int(p.GBAt[1])
	ltp := false
	for y := 0; y < img.height; y++ {
		done, err := p.typicalRow(decoder, stats, img, y, &ltp)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		row := img.Line(y)
		cx := img.bit(-1, y) | img.bit(-2, y)<<1 |
			img.bit(0, y-1)<<4 | img.bit(-1, y-1)<<5 | img.bit(-2, y-1)<<6 |
			img.bit(0, y-2)<<8 | img.bit(-1, y-2)<<9
		for x := 0; x < img.width; x++ {
			cx |= img.bit(x+xoff, y+yoff)<<2 | img.bit(x+1, y-1)<<3 | img.bit(x+1, y-2)<<7
			bit, err := decoder.Decode(&stats[cx])
			if err != nil {
				return err
			}
			writeBit(row, x, bit)
			cx = (cx<<1)&keep | uint32(bit)
		}
	}
	return nil
}

func (p *GRDProc) decodeTemplate3Generic(decoder BitDecoder, stats []ArithContext, img *Image) error {
	gbw, gbh, stride := img.width, img.height, img.stride
	data := img.data
	xoff, yoff := int(p.GBAt[0]), int(p.GBAt[1])
	wmask := byte(0xff) << uint((-gbw)&7)
	// Only an AT pixel up to seven places left on the current row can land
	// in the byte still being assembled.
	flush := yoff == 0 && xoff < 0 && xoff >= -7
	ltp := false
	for y := 0; y < gbh; y++ {
		done, err := p.typicalRow(decoder, stats, img, y, &ltp)
		if err != nil {
			return err
		}
		if done {
			continue
		}

		line := y * stride
		var m1 uint32
		if y >= 1 {
			m1 = uint32(data[line-stride])
		}
		cx := (m1 >> 1) & 0x3e0

		data[line+(gbw>>3)] &= wmask

		for x, px := 0, line; x < gbw; x, px = x+8, px+1 {
			if y >= 1 {
				m1 <<= 8
				if x+8 < gbw {
					m1 |= uint32(data[px-stride+1])
				}
			}
			var result byte
			mask := byte(0x7f)
			minor := min(8, gbw-x)
			for xm := 0; xm < minor; xm, mask = xm+1, mask>>1 {
				cx |= img.bit(x+xm+xoff, y+yoff) << 4
				bit, err := decoder.Decode(&stats[cx])
				if err != nil {
					return err
				}
				result |= byte(bit) << uint(7-xm)
				if flush {
					data[px] = data[px]&mask | result
				}
				cx = (cx&0x1e7)<<1 | uint32(bit) | (m1>>uint(8-xm))&0x020
			}
			if !flush {
				data[px] = result
			}
		}
	}
	return nil
}
