package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/jdeng/jbig2regions/internal/zstdio"
	jbig2 "github.com/jdeng/jbig2regions/pkg/jbig2"
)

// encoders maps an output format to its image encoder.
var encoders = map[string]func(io.Writer, image.Image) error{
	"png": png.Encode,
	"bmp": bmp.Encode,
	"tiff": func(w io.Writer, m image.Image) error {
		return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
	},
}

// outputFormat picks the format from -format, then the output extension.
func outputFormat(format, output string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".bmp":
			format = "bmp"
		case ".tif", ".tiff":
			format = "tiff"
		default:
			format = "png"
		}
	}
	if _, ok := encoders[format]; !ok {
		return "", fmt.Errorf("unknown output format %q", format)
	}
	return format, nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

// run decodes the first page of -input and writes it as an image. Inputs
// may be zstd-compressed. Progress goes to stdout, decoder diagnostics to
// stderr.
func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("jbig2png", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inputFile := fs.String("input", "", "Input JBIG2 file")
	globalFile := fs.String("global", "", "Optional JBIG2 globals stream extracted from PDF")
	outputFile := fs.String("output", "", "Output image file (optional, defaults to input filename with the format's extension)")
	format := fs.String("format", "", "Output format: png, tiff or bmp (default from the output extension, else png)")
	verbose := fs.Bool("v", false, "Log per-segment diagnostics to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inputFile == "" {
		return errors.New("input file is required, use -input")
	}

	data, err := zstdio.ReadFile(*inputFile)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	var globals []byte
	if *globalFile != "" {
		if globals, err = zstdio.ReadFile(*globalFile); err != nil {
			return fmt.Errorf("reading globals: %w", err)
		}
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	decoder, err := jbig2.New(jbig2.Options{
		GlobalData: globals,
		SrcData:    data,
		Logger:     slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	if err := decoder.DecodeAll(); err != nil {
		return fmt.Errorf("decoding %s: %w", *inputFile, err)
	}

	segments := decoder.GetSegments()
	fmt.Fprintf(stdout, "Found %d segments in JBIG2 file:\n", len(segments))
	for i, seg := range segments {
		state := seg.ResultType().String()
		if seg.Skipped() {
			state = "Skipped"
		}
		fmt.Fprintf(stdout, "  Segment %d: Number=%d, Type=%d, Result=%s, DataLength=%d\n",
			i, seg.Number(), seg.Type(), state, seg.DataLength())
	}

	img := decoder.GetPageImage()
	if img == nil {
		return errors.New("no page found in JBIG2 file")
	}
	if info, ok := decoder.GetPageInfo(); ok && info.Striped {
		fmt.Fprintf(stdout, "Striped page, %d rows decoded\n", img.Height())
	}

	output := *outputFile
	kind, err := outputFormat(*format, output)
	if err != nil {
		return err
	}
	if output == "" {
		base := zstdio.TrimExt(*inputFile)
		output = strings.TrimSuffix(base, filepath.Ext(base)) + "." + kind
	}
	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := encoders[kind](file, img.Gray()); err != nil {
		file.Close()
		return fmt.Errorf("encoding %s: %w", kind, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}

	fmt.Fprintf(stdout, "Converted %s to %s (%dx%d pixels)\n", *inputFile, output, img.Width(), img.Height())
	return nil
}
