package main

import (
	"image"
	"image/color"
	"testing"
)

func TestApplyOrientation(t *testing.T) {
	red := color.NRGBA{255, 0, 0, 255}
	blue := color.NRGBA{0, 0, 255, 255}
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, red)
	src.SetNRGBA(1, 0, blue)

	tests := []struct {
		orientation int
		w, h        int
		first       color.NRGBA
		rotated     bool
	}{
		{1, 2, 1, red, false},
		{0, 2, 1, red, false},
		{2, 2, 1, blue, true},
		{3, 2, 1, blue, true},
		{4, 2, 1, red, true},
		{5, 1, 2, red, true},
		{6, 1, 2, red, true},
		{7, 1, 2, blue, true},
		{8, 1, 2, blue, true},
	}

	for _, tt := range tests {
		got, rotated := applyOrientation(src, tt.orientation)
		if rotated != tt.rotated {
			t.Errorf("orientation %d: rotated = %v", tt.orientation, rotated)
		}
		if got.Bounds().Dx() != tt.w || got.Bounds().Dy() != tt.h {
			t.Errorf("orientation %d: size = %v", tt.orientation, got.Bounds().Size())
		}
		if c := got.NRGBAAt(0, 0); c != tt.first {
			t.Errorf("orientation %d: first pixel = %v, want %v", tt.orientation, c, tt.first)
		}
	}
}

func TestReadOrientation(t *testing.T) {
	plain := testJPEG(t, 8, 8)
	if got := readOrientation(plain); got != 1 {
		t.Errorf("no EXIF: orientation = %d, want 1", got)
	}

	table := newTable(t)
	must(t, table.SetShort(GroupPrimary, tagOrientation, 8))
	if got := readOrientation(withExif(t, plain, table)); got != 8 {
		t.Errorf("orientation = %d, want 8", got)
	}

	must(t, table.SetShort(GroupPrimary, tagOrientation, 12))
	if got := readOrientation(withExif(t, plain, table)); got != 1 {
		t.Errorf("out-of-range orientation = %d, want 1", got)
	}
}

func TestLoadSourceCarriesMetadata(t *testing.T) {
	profile := []byte("fake icc profile bytes")
	data, err := encodeJPEG(gradientImage(12, 6), nil, profile)
	if err != nil {
		t.Fatal(err)
	}
	table := newTable(t)
	must(t, table.SetASCII(GroupPrimary, tagModel, "Yashica T4"))
	path := writeTestFile(t, t.TempDir(), "in.jpg", withExif(t, data, table))

	src, err := loadSource(path)
	if err != nil {
		t.Fatalf("loadSource: %v", err)
	}
	if src.Image.Bounds().Dx() != 12 || src.Image.Bounds().Dy() != 6 {
		t.Errorf("decoded size = %v", src.Image.Bounds())
	}
	if string(src.ICC) != string(profile) {
		t.Errorf("ICC = %q", src.ICC)
	}
	if got, _ := parsedTable(t, src.Exif).ASCII(GroupPrimary, tagModel); got != "Yashica T4" {
		t.Errorf("model = %q", got)
	}

	bad := writeTestFile(t, t.TempDir(), "bad.jpg", []byte("not a jpeg"))
	if _, err := loadSource(bad); err == nil {
		t.Errorf("loadSource accepted garbage")
	}
}
