package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
)

// FontResolver returns a face able to rasterise stamp text at a pixel size.
// Implementations never fail; they fall back to a built-in face.
type FontResolver interface {
	Face(path string, size int) font.Face
}

// defaultFontName is looked up in a fonts/ directory beside the executable
const defaultFontName = "E1234.ttf"

// platformFonts are tried in order when no usable font was configured
var platformFonts = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSansMono.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/Library/Fonts/Menlo.ttc",
	"/System/Library/Fonts/Menlo.ttc",
	"/Library/Fonts/Andale Mono.ttf",
	`C:\Windows\Fonts\consola.ttf`,
	`C:\Windows\Fonts\consolab.ttf`,
}

type faceKey struct {
	path string
	size int
}

// fileFontResolver resolves faces from font files and caches parsed faces
type fileFontResolver struct {
	defaultPath string
	candidates  []string

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

// NewFontResolver returns the resolver used for stamping
func NewFontResolver() FontResolver {
	defaultPath := ""
	if exe, err := os.Executable(); err == nil {
		defaultPath = filepath.Join(filepath.Dir(exe), "fonts", defaultFontName)
	}
	return &fileFontResolver{
		defaultPath: defaultPath,
		candidates:  platformFonts,
		faces:       make(map[faceKey]font.Face),
	}
}

// Face walks explicit path, default font, platform fonts, embedded Go Mono,
// then the fixed 7x13 bitmap face
func (r *fileFontResolver) Face(path string, size int) font.Face {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tried []string
	if path != "" {
		tried = append(tried, resolveFontName(path))
	} else if r.defaultPath != "" {
		tried = append(tried, r.defaultPath)
	}
	tried = append(tried, r.candidates...)

	for _, p := range tried {
		if face, ok := r.faces[faceKey{p, size}]; ok {
			return face
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		face, err := loadFontFace(p, size)
		if err != nil {
			log.Debug().Err(err).Str("font", p).Msg("skipping unusable font")
			continue
		}
		r.faces[faceKey{p, size}] = face
		return face
	}

	key := faceKey{"gomono", size}
	if face, ok := r.faces[key]; ok {
		return face
	}
	if f, err := opentype.Parse(gomono.TTF); err == nil {
		if face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: float64(size), DPI: 72, Hinting: font.HintingNone}); err == nil {
			r.faces[key] = face
			return face
		}
	}
	return basicfont.Face7x13
}

// loadFontFace parses a TrueType/OpenType file or the first font of a collection
func loadFontFace(path string, size int) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f *opentype.Font
	if strings.EqualFold(filepath.Ext(path), ".ttc") {
		coll, err := opentype.ParseCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parse collection: %w", err)
		}
		if f, err = coll.Font(0); err != nil {
			return nil, fmt.Errorf("collection font: %w", err)
		}
	} else if f, err = opentype.Parse(data); err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}

	return opentype.NewFace(f, &opentype.FaceOptions{Size: float64(size), DPI: 72, Hinting: font.HintingNone})
}

// resolveFontName turns a bare file name into a path inside a system font directory
func resolveFontName(name string) string {
	if filepath.IsAbs(name) || filepath.Base(name) != name {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}

	var dirs []string
	switch runtime.GOOS {
	case "windows":
		dirs = []string{`C:\Windows\Fonts`}
	case "darwin":
		dirs = []string{"/System/Library/Fonts", "/Library/Fonts", filepath.Join(os.Getenv("HOME"), "Library/Fonts")}
	default:
		dirs = []string{"/usr/share/fonts", "/usr/local/share/fonts", filepath.Join(os.Getenv("HOME"), ".fonts")}
	}

	lower := strings.ToLower(name)
	for _, d := range dirs {
		entries, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if strings.ToLower(e.Name()) == lower {
				return filepath.Join(d, e.Name())
			}
		}
	}
	return name
}
