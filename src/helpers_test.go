package main

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	jis "github.com/dsoprea/go-jpeg-image-structure/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// fixedFonts always returns the built-in bitmap face
type fixedFonts struct{}

func (fixedFonts) Face(string, int) font.Face { return basicfont.Face7x13 }

// gradientImage returns a w×h image with smoothly varying pixels
func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 90,
				A: 255,
			})
		}
	}
	return img
}

// testJPEG encodes a gradient image without any metadata segments
func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradientImage(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

// writeTestFile writes data to dir/name and returns the path
func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// withExif splices a serialised table into a test JPEG
func withExif(t *testing.T, data []byte, table *TagTable) []byte {
	t.Helper()
	block, err := table.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	out, err := spliceExif(data, block)
	if err != nil {
		t.Fatalf("splice: %v", err)
	}
	return out
}

// newTable returns an empty big-endian tag table
func newTable(t *testing.T) *TagTable {
	t.Helper()
	table, err := NewTagTable(binary.BigEndian)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	return table
}

// must fails the test on a tag edit error
func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

// scanData returns everything from the first SOS segment on
func scanData(t *testing.T, data []byte) []byte {
	t.Helper()
	sl, err := parseJPEG(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	segments := sl.Segments()
	for i, s := range segments {
		if s.MarkerId == markerSOS {
			var buf bytes.Buffer
			if err := jis.NewSegmentList(segments[i:]).Write(&buf); err != nil {
				t.Fatalf("write: %v", err)
			}
			return buf.Bytes()
		}
	}
	t.Fatalf("no SOS segment")
	return nil
}
