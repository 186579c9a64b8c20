// cmd/test-convert runs one local file through the thumbnail extractors
// without the broker, store or bucket.
//
// Usage:
//
//	./test-convert -input clip.mp4 -output thumb.png
//	./test-convert -input song.mp3 -v
//	./test-convert -input art.gif -size 300
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/tendant/nft-enricher/internal/converters"
	"github.com/tendant/nft-enricher/internal/img"
)

func main() {
	input := flag.String("input", "", "Input file path (required)")
	output := flag.String("output", "", "Output thumbnail path (default: input_thumb.png)")
	size := flag.Int("size", 600, "Thumbnail size (width/height in pixels)")
	timeout := flag.Int("timeout", 60, "Conversion timeout in seconds")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	if *input == "" {
		fmt.Println("Error: -input flag is required")
		flag.Usage()
		os.Exit(1)
	}
	inputInfo, err := os.Stat(*input)
	if err != nil {
		log.Fatalf("❌ Input file not found: %s", *input)
	}
	if *output == "" {
		*output = defaultOutput(*input)
	}

	mime, err := mimetype.DetectFile(*input)
	if err != nil {
		log.Fatalf("❌ Failed to detect file type: %v", err)
	}
	if *verbose {
		fmt.Printf("📄 Input: %s (%s)\n", *input, humanize.Bytes(uint64(inputInfo.Size())))
		fmt.Printf("🔍 MIME type: %s\n", mime.String())
	}

	runner := converters.NewRunner(1)
	defer runner.Close()
	ffmpeg := converters.NewFFmpegConverter(runner)
	if err := ffmpeg.Available(); err != nil && *verbose {
		fmt.Printf("⚠️  %v\n", err)
	}

	extractors := img.NewExtractors(*size, *size, ffmpeg, ffmpeg)
	extractor, kind, err := extractors.Get(mime.String())
	if err != nil {
		log.Fatalf("❌ %v\n\nSupported kinds: image/*, video/*, audio/*", err)
	}
	if *verbose {
		fmt.Printf("🔧 Using extractor: %s (%s)\n", extractor.Name(), kind)
	}

	src, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("❌ Failed to read input: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
	defer cancel()

	arena, err := img.NewArena("", "test-convert")
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer arena.Close()

	fmt.Printf("\n🎨 Generating thumbnail...\n")
	start := time.Now()
	thumb, err := extractor.Extract(ctx, arena, src)
	if err != nil {
		arena.Close()
		log.Fatalf("❌ Conversion failed: %v", err)
	}
	duration := time.Since(start)

	if err := os.WriteFile(*output, thumb, 0o644); err != nil {
		arena.Close()
		log.Fatalf("❌ Failed to write output: %v", err)
	}

	fmt.Printf("\n✅ Conversion successful!\n")
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("📁 Output: %s\n", *output)
	fmt.Printf("📏 Size: %s\n", humanize.Bytes(uint64(len(thumb))))
	fmt.Printf("⏱️  Time: %v\n", duration.Round(time.Millisecond))
	fmt.Println()
}

func defaultOutput(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_thumb.png"
}
