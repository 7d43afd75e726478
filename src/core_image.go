package main

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/jpegli"
	"github.com/rwcarlsen/goexif/exif"
)

// outputJPEGQuality is the encoder quality for re-encoded (stamped) output
const outputJPEGQuality = 95

// sourceImage is a decoded input photograph plus the metadata carried to the output
type sourceImage struct {
	Raw         []byte
	Image       image.Image
	Orientation int
	Exif        []byte // APP1 payload including "Exif\0\0", nil if absent
	ICC         []byte // reassembled ICC profile, nil if absent
}

// readSource reads a JPEG and extracts its metadata segments without decoding pixels
func readSource(path string) (*sourceImage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	sl, err := parseJPEG(raw)
	if err != nil {
		return nil, err
	}
	return &sourceImage{
		Raw:         raw,
		Orientation: readOrientation(raw),
		Exif:        exifPayload(sl),
		ICC:         iccProfile(sl),
	}, nil
}

// loadSource reads and fully decodes a JPEG
func loadSource(path string) (*sourceImage, error) {
	src, err := readSource(path)
	if err != nil {
		return nil, err
	}
	img, err := jpeg.Decode(bytes.NewReader(src.Raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	src.Image = img
	return src, nil
}

// readOrientation returns the EXIF orientation, 1 when absent or unreadable
func readOrientation(raw []byte) int {
	x, err := exif.Decode(bytes.NewReader(raw))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// applyOrientation transposes img so it displays upright. The bool reports
// whether any transform was applied.
func applyOrientation(img image.Image, orientation int) (*image.NRGBA, bool) {
	switch orientation {
	case 2:
		return imaging.FlipH(img), true
	case 3:
		return imaging.Rotate180(img), true
	case 4:
		return imaging.FlipV(img), true
	case 5:
		return imaging.Transpose(img), true
	case 6:
		return imaging.Rotate270(img), true
	case 7:
		return imaging.Transverse(img), true
	case 8:
		return imaging.Rotate90(img), true
	default:
		return imaging.Clone(img), false
	}
}

// encodeJPEG encodes img at output quality with full-resolution chroma and
// inserts the EXIF block and ICC profile
func encodeJPEG(img image.Image, exifBlock, icc []byte) ([]byte, error) {
	var buf bytes.Buffer
	err := jpegli.Encode(&buf, img, &jpegli.EncodingOptions{
		Quality:           outputJPEGQuality,
		ChromaSubsampling: image.YCbCrSubsampleRatio444,
	})
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	sl, err := parseJPEG(buf.Bytes())
	if err != nil {
		return nil, err
	}
	sl, err = withMetadata(sl, exifBlock, icc)
	if err != nil {
		return nil, err
	}
	return writeJPEG(sl)
}
