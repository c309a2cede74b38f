package main

import (
	"fmt"
	"os"

	"github.com/jdeng/jbig2regions/internal/jbig2"
	"github.com/jdeng/jbig2regions/internal/zstdio"
)

const (
	pageWidth  = 100
	pageHeight = 100
)

// drawRing sets the pixels of a ring centred in img.
func drawRing(img *jbig2.Image, inner, outer int) {
	cx, cy := img.Width()/2, img.Height()/2
	for y := 0; y < img.Height(); y++ {
		for x := 0; x < img.Width(); x++ {
			d := (x-cx)*(x-cx) + (y-cy)*(y-cy)
			if d >= inner*inner && d <= outer*outer {
				img.SetPixel(x, y, 1)
			}
		}
	}
}

// createTestJBIG2 builds a one page file: a coarse ring coded as an
// intermediate generic region, refined into a sharper ring that is drawn on
// the page, plus a checkerboard placed directly with TPGDON.
func createTestJBIG2() ([]byte, error) {
	w := jbig2.NewStreamWriter(true)
	w.PageInfo(jbig2.PageInfo{Width: pageWidth, Height: pageHeight})

	coarse, err := jbig2.NewImage(48, 48)
	if err != nil {
		return nil, err
	}
	drawRing(coarse, 14, 20)
	sharp, err := jbig2.NewImage(48, 48)
	if err != nil {
		return nil, err
	}
	drawRing(sharp, 16, 19)

	generic := &jbig2.GRDProc{GBTemplate: 0, GBAt: [8]int8{3, -1, -3, -1, 2, -2, -2, -2}}
	ri := jbig2.RegionInfo{X: 8, Y: 8}
	coarseNumber, err := w.GenericRegion(ri, generic, coarse, true)
	if err != nil {
		return nil, fmt.Errorf("coding generic region: %w", err)
	}
	refine := &jbig2.GRRDProc{GRTemplate: 0, TPGRON: true, Reference: coarse, GRAT: [4]int8{-1, -1, -1, -1}}
	if _, err := w.RefinementRegion(ri, refine, sharp, []uint32{coarseNumber}, false); err != nil {
		return nil, fmt.Errorf("coding refinement region: %w", err)
	}

	board, err := jbig2.NewImage(32, 32)
	if err != nil {
		return nil, err
	}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if (x/8+y/8)%2 == 0 {
				board.SetPixel(x, y, 1)
			}
		}
	}
	tp := &jbig2.GRDProc{GBTemplate: 2, TPGDON: true, GBAt: [8]int8{2, -1}}
	if _, err := w.GenericRegion(jbig2.RegionInfo{X: 64, Y: 64}, tp, board, false); err != nil {
		return nil, fmt.Errorf("coding checkerboard: %w", err)
	}

	w.EndOfPage()
	w.EndOfFile()
	return w.Bytes(), nil
}

func main() {
	if len(os.Args) != 2 {
		fmt.Println("Usage: create-test-jbig2 <output-file>[" + zstdio.Ext + "]")
		os.Exit(1)
	}

	filename := os.Args[1]
	data, err := createTestJBIG2()
	if err == nil {
		err = zstdio.WriteFile(filename, data)
	}
	if err != nil {
		fmt.Printf("Error creating test JBIG2 file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created test JBIG2 file: %s\n", filename)
}
