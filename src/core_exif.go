package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

var (
	ErrExifNotFound = errors.New("exif data not found")
	ErrInvalidExif  = errors.New("invalid exif data")
	ErrExifTooLarge = errors.New("exif block exceeds the 64 KiB APP1 limit")
)

const exifHeader = "Exif\x00\x00"

// IFD0 tags
const (
	tagImageDescription = 0x010E
	tagMake             = 0x010F
	tagModel            = 0x0110
	tagOrientation      = 0x0112
	tagDateTime         = 0x0132
	tagExifIFDPointer   = 0x8769
	tagGPSIFDPointer    = 0x8825
	tagXPKeywords       = 0x9C9E
)

// Exif sub-IFD tags
const (
	tagDateTimeOriginal  = 0x9003
	tagDateTimeDigitized = 0x9004
	tagUserComment       = 0x9286
	tagLensModel         = 0xA434
)

// GPS sub-IFD tags
const (
	tagGPSVersionID       = 0x0000
	tagGPSLatitudeRef     = 0x0001
	tagGPSLatitude        = 0x0002
	tagGPSLongitudeRef    = 0x0003
	tagGPSLongitude       = 0x0004
	tagGPSAreaInformation = 0x001C
)

// IFDGroup names one of the tag tables of an EXIF block
type IFDGroup int

const (
	GroupPrimary IFDGroup = iota
	GroupExif
	GroupGPS
)

func (g IFDGroup) String() string {
	return [...]string{"0th", "Exif", "GPS"}[g]
}

// path is the go-exif IFD path of the group
func (g IFDGroup) path() string {
	return [...]string{"IFD", "IFD/Exif", "IFD/GPSInfo"}[g]
}

// pointer is the IFD0 tag linking to the group's sub-IFD
func (g IFDGroup) pointer() uint16 {
	return [...]uint16{0, tagExifIFDPointer, tagGPSIFDPointer}[g]
}

// TagTable is an editable EXIF block. Tags are held in a go-exif builder
// chain, so entries this program never touches (maker notes, interop,
// the IFD1 thumbnail) are carried through unchanged.
type TagTable struct {
	root  *exif.IfdBuilder
	order binary.ByteOrder
}

// exifIndexes returns a fresh IFD mapping and tag index. Each table gets
// its own pair since worker goroutines edit tables concurrently.
func exifIndexes() (*exifcommon.IfdMapping, *exif.TagIndex, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, nil, fmt.Errorf("ifd mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	if err := exif.LoadStandardTags(ti); err != nil {
		return nil, nil, fmt.Errorf("tag index: %w", err)
	}
	return im, ti, nil
}

// NewTagTable returns an empty table in the given byte order
func NewTagTable(order binary.ByteOrder) (*TagTable, error) {
	im, ti, err := exifIndexes()
	if err != nil {
		return nil, err
	}
	return &TagTable{
		root:  exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, order),
		order: order,
	}, nil
}

// ParseExif decodes an EXIF block. raw may be a JPEG file, an APP1
// payload starting with "Exif\0\0", or a bare TIFF structure.
func ParseExif(raw []byte) (table *TagTable, err error) {
	// go-exif reports some structural problems by panicking
	defer func() {
		if r := recover(); r != nil {
			table, err = nil, fmt.Errorf("%w: %v", ErrInvalidExif, r)
		}
	}()

	tiff, err := exif.SearchAndExtractExif(raw)
	if errors.Is(err, exif.ErrNoExif) {
		return nil, ErrExifNotFound
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExif, err)
	}

	im, ti, err := exifIndexes()
	if err != nil {
		return nil, err
	}
	eh, index, err := exif.Collect(im, ti, tiff)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExif, err)
	}
	return &TagTable{
		root:  exif.NewIfdBuilderFromExistingChain(index.RootIfd),
		order: eh.ByteOrder,
	}, nil
}

// ByteOrder reports the order the table is encoded in
func (t *TagTable) ByteOrder() binary.ByteOrder {
	return t.order
}

// builder returns the IFD of group g, creating it when missing
func (t *TagTable) builder(g IFDGroup) (*exif.IfdBuilder, error) {
	ib, err := exif.GetOrCreateIbFromRootIb(t.root, g.path())
	if err != nil {
		return nil, fmt.Errorf("%s ifd: %w", g, err)
	}
	return ib, nil
}

// lookup returns the IFD of group g, nil when the block has none
func (t *TagTable) lookup(g IFDGroup) *exif.IfdBuilder {
	if g == GroupPrimary {
		return t.root
	}
	bt, err := t.root.FindTag(g.pointer())
	if err != nil || !bt.Value().IsIb() {
		return nil
	}
	return bt.Value().Ib()
}

// SetASCII stores s as a NUL-terminated ASCII field
func (t *TagTable) SetASCII(g IFDGroup, tag uint16, s string) error {
	return t.setStandard(g, tag, s)
}

// SetShort stores a single SHORT
func (t *TagTable) SetShort(g IFDGroup, tag uint16, v uint16) error {
	return t.setStandard(g, tag, []uint16{v})
}

// SetRationals stores a RATIONAL array
func (t *TagTable) SetRationals(g IFDGroup, tag uint16, rs ...Rational) error {
	values := make([]exifcommon.Rational, len(rs))
	for i, r := range rs {
		values[i] = exifcommon.Rational{Numerator: r.Num, Denominator: r.Den}
	}
	return t.setStandard(g, tag, values)
}

func (t *TagTable) setStandard(g IFDGroup, tag uint16, value any) error {
	ib, err := t.builder(g)
	if err != nil {
		return err
	}
	if err := ib.SetStandard(tag, value); err != nil {
		return fmt.Errorf("set %s 0x%04X: %w", g, tag, err)
	}
	return nil
}

// SetBytes stores raw bytes with the given BYTE or UNDEFINED type. The
// bytes are written as-is, so UNDEFINED tags need no registered codec.
func (t *TagTable) SetBytes(g IFDGroup, tag uint16, typ exifcommon.TagTypePrimitive, b []byte) error {
	ib, err := t.builder(g)
	if err != nil {
		return err
	}
	value := exif.NewIfdBuilderTagValueFromBytes(append([]byte(nil), b...))
	if err := ib.Set(exif.NewBuilderTag(g.path(), tag, typ, value, t.order)); err != nil {
		return fmt.Errorf("set %s 0x%04X: %w", g, tag, err)
	}
	return nil
}

// Delete removes every occurrence of tag from group g
func (t *TagTable) Delete(g IFDGroup, tag uint16) {
	if ib := t.lookup(g); ib != nil {
		ib.DeleteAll(tag)
	}
}

// Has reports whether group g carries tag
func (t *TagTable) Has(g IFDGroup, tag uint16) bool {
	_, ok := t.Bytes(g, tag)
	return ok
}

// Bytes returns the raw encoded value of tag
func (t *TagTable) Bytes(g IFDGroup, tag uint16) ([]byte, bool) {
	ib := t.lookup(g)
	if ib == nil {
		return nil, false
	}
	bt, err := ib.FindTag(tag)
	if err != nil || !bt.Value().IsBytes() {
		return nil, false
	}
	return bt.Value().Bytes(), true
}

// ASCII returns an ASCII field without its terminator
func (t *TagTable) ASCII(g IFDGroup, tag uint16) (string, bool) {
	b, ok := t.Bytes(g, tag)
	if !ok {
		return "", false
	}
	return strings.TrimRight(string(b), "\x00"), true
}

// Short returns the first value of a SHORT field
func (t *TagTable) Short(g IFDGroup, tag uint16) (uint16, bool) {
	b, ok := t.Bytes(g, tag)
	if !ok {
		return 0, false
	}
	var p exifcommon.Parser
	values, err := p.ParseShorts(b, 1, t.order)
	if err != nil || len(values) == 0 {
		return 0, false
	}
	return values[0], true
}

// Rationals returns a RATIONAL array
func (t *TagTable) Rationals(g IFDGroup, tag uint16) ([]Rational, bool) {
	b, ok := t.Bytes(g, tag)
	if !ok || len(b) == 0 || len(b)%8 != 0 {
		return nil, false
	}
	var p exifcommon.Parser
	values, err := p.ParseRationals(b, uint32(len(b)/8), t.order)
	if err != nil {
		return nil, false
	}
	rs := make([]Rational, len(values))
	for i, v := range values {
		rs[i] = Rational{Num: v.Numerator, Den: v.Denominator}
	}
	return rs, true
}

// encodeTIFF serialises the builder chain without the APP1 header
func (t *TagTable) encodeTIFF() ([]byte, error) {
	tiff, err := exif.NewIfdByteEncoder().EncodeToExif(t.root)
	if err != nil {
		return nil, fmt.Errorf("encode exif: %w", err)
	}
	return tiff, nil
}

// Serialize encodes the table as an APP1 payload, "Exif\0\0" included
func (t *TagTable) Serialize() ([]byte, error) {
	tiff, err := t.encodeTIFF()
	if err != nil {
		return nil, err
	}
	block := append([]byte(exifHeader), tiff...)
	if len(block) > maxSegmentPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrExifTooLarge, len(block))
	}
	return block, nil
}

// clone deep-copies the table by re-encoding it, so merging never
// mutates the prior block
func (t *TagTable) clone() (*TagTable, error) {
	tiff, err := t.encodeTIFF()
	if err != nil {
		return nil, err
	}
	return ParseExif(tiff)
}
