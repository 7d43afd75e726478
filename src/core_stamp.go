package main

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

var ErrEmptyStampText = errors.New("stamp text renders no visible glyphs")

// stampColor is the warm orange of a film camera's date imprint
var stampColor = color.NRGBA{R: 255, G: 110, B: 40, A: 255}

// StampText formats a timestamp as 'YY MM DD or YYYY MM DD
func StampText(ts time.Time, format StampFormat) string {
	if format == StampLongYear {
		return ts.Format("2006 01 02")
	}
	return "'" + ts.Format("06 01 02")
}

// layoutStamp sizes the font and margin from the shorter image side
func layoutStamp(bounds image.Rectangle, spec StampSpec) (fontSize, margin int) {
	base := min(bounds.Dx(), bounds.Dy())
	margin = max(int(float64(base)*0.02), 12)
	fontSize = max(int(float64(base)*spec.FontRatio), 18)
	return fontSize, margin
}

// RenderStamp burns text into a copy of img and returns it together with the
// rectangle of pixels that may differ from the input
func RenderStamp(img image.Image, text string, spec StampSpec, fonts FontResolver) (*image.NRGBA, image.Rectangle, error) {
	dst := imaging.Clone(img)
	bounds := dst.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	fontSize, margin := layoutStamp(bounds, spec)
	face := fonts.Face(spec.FontPath, fontSize)

	// Tight ink box relative to the drawing origin
	ink, _ := font.BoundString(face, text)
	inkMin := image.Pt(ink.Min.X.Floor(), ink.Min.Y.Floor())
	inkMax := image.Pt(ink.Max.X.Ceil(), ink.Max.Y.Ceil())
	textW, textH := inkMax.X-inkMin.X, inkMax.Y-inkMin.Y
	if textW <= 0 || textH <= 0 {
		return nil, image.Rectangle{}, ErrEmptyStampText
	}

	blurPad := max(int(float64(fontSize)*0.3), 6)
	x := width - margin - textW + spec.OffsetX
	y := height - margin - textH + spec.OffsetY
	patch := image.Rect(x, y, x+textW, y+textH).Inset(-blurPad).Intersect(bounds)
	if patch.Empty() {
		return dst, image.Rectangle{}, nil
	}

	pw, ph := patch.Dx(), patch.Dy()

	// Glyph mask in patch-local coordinates, ink box landing on (x, y)
	mask := image.NewAlpha(image.Rect(0, 0, pw, ph))
	drawer := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(x-patch.Min.X-inkMin.X, y-patch.Min.Y-inkMin.Y),
	}
	drawer.DrawString(text)

	blur := spec.BlurStrength
	glow := imaging.Blur(alphaAsGray(mask), math.Max(float64(fontSize)*0.18*blur, 1))

	basePatch := imaging.Crop(dst, patch)
	blurred := imaging.Blur(basePatch, math.Max(float64(fontSize)*0.12*blur, 1))

	out := image.NewNRGBA(image.Rect(0, 0, pw, ph))
	for py := 0; py < ph; py++ {
		for px := 0; px < pw; px++ {
			i := py*out.Stride + px*4
			g := float64(glow.Pix[py*glow.Stride+px*4]) / 255
			a := float64(mask.Pix[py*mask.Stride+px]) / 255
			for c := 0; c < 3; c++ {
				base := float64(basePatch.Pix[i+c])
				softened := base + (float64(blurred.Pix[i+c])-base)*g
				layer := float64(channel(stampColor, c)) * a
				screened := softened + layer - softened*layer/255
				out.Pix[i+c] = clampByte(softened + (screened-softened)*g)
			}
			out.Pix[i+3] = basePatch.Pix[i+3]
		}
	}

	draw.Draw(dst, patch, out, image.Point{}, draw.Src)
	return dst, patch, nil
}

// alphaAsGray views an alpha mask as a grayscale image sharing its pixels
func alphaAsGray(m *image.Alpha) *image.Gray {
	return &image.Gray{Pix: m.Pix, Stride: m.Stride, Rect: m.Rect}
}

func channel(c color.NRGBA, i int) uint8 {
	switch i {
	case 0:
		return c.R
	case 1:
		return c.G
	default:
		return c.B
	}
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
