package main

import (
	"path/filepath"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

func TestFontResolverFallsBackToGoMono(t *testing.T) {
	dir := t.TempDir()
	broken := writeTestFile(t, dir, "broken.ttf", []byte("not a font"))
	r := &fileFontResolver{
		candidates: []string{broken, filepath.Join(dir, "missing.ttf")},
		faces:      make(map[faceKey]font.Face),
	}

	face := r.Face("", 40)
	if face == basicfont.Face7x13 {
		t.Fatalf("fell through to the bitmap face")
	}
	if h := face.Metrics().Height.Ceil(); h < 30 {
		t.Errorf("face height = %d at size 40", h)
	}
	if again := r.Face("", 40); again != face {
		t.Errorf("face not cached")
	}
	if other := r.Face("", 20); other == face {
		t.Errorf("sizes share a face")
	}

	// An explicit unusable path falls back the same way
	if r.Face(broken, 40) != face {
		t.Errorf("explicit broken font not skipped")
	}
}

func TestResolveFontName(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "E1234.ttf")
	if got := resolveFontName(abs); got != abs {
		t.Errorf("absolute path rewritten to %s", got)
	}
	if got := resolveFontName("fonts/x.ttf"); got != "fonts/x.ttf" {
		t.Errorf("relative path rewritten to %s", got)
	}
	if got := resolveFontName("no-such-font-anywhere.ttf"); got != "no-such-font-anywhere.ttf" {
		t.Errorf("unknown name resolved to %s", got)
	}
}
