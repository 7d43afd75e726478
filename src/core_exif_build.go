package main

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	exifcommon "github.com/dsoprea/go-exif/v3/common"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/unicode"
)

const exifDateTimeLayout = "2006:01:02 15:04:05"

// userCommentUnicode is the 8-byte character code prefix of a UTF-16 UserComment
var userCommentUnicode = []byte("UNICODE\x00")

// legacyMaxDenominator bounds the seconds fraction of hand-entered DMS
// coordinates so the result fits an unsigned 32-bit rational
const legacyMaxDenominator = 10_000_000

// PriorMetadata is the EXIF state of a photograph before a run touches it
type PriorMetadata interface {
	isPriorMetadata()
}

// NoPriorMetadata means the file had no EXIF block or an unreadable one
type NoPriorMetadata struct{}

// ParsedTable holds a successfully decoded EXIF block
type ParsedTable struct {
	Table *TagTable
}

func (NoPriorMetadata) isPriorMetadata() {}
func (ParsedTable) isPriorMetadata()     {}

// LoadExisting decodes raw EXIF bytes. Structural errors degrade to
// NoPriorMetadata and are never returned.
func LoadExisting(raw []byte) PriorMetadata {
	if len(raw) == 0 {
		return NoPriorMetadata{}
	}
	table, err := ParseExif(raw)
	if err != nil {
		log.Debug().Err(err).Msg("ignoring unreadable EXIF block")
		return NoPriorMetadata{}
	}
	return ParsedTable{Table: table}
}

// LegacyGPS is a coordinate pair entered directly as degrees/minutes/seconds
type LegacyGPS struct {
	Lat DMS
	Lon DMS
}

// ExifFields are the values a run writes into one photograph's EXIF block
type ExifFields struct {
	Timestamp   *time.Time
	FreeText    string
	CameraModel string
	Lens        string
	Location    string
	GPS         *LatLon
	LegacyGPS   *LegacyGPS
}

// BuildExif merges fields into the prior metadata and serialises the result
// as an APP1 payload
func BuildExif(prior PriorMetadata, fields ExifFields) ([]byte, error) {
	var table *TagTable
	var err error
	switch p := prior.(type) {
	case ParsedTable:
		table, err = p.Table.clone()
	default:
		table, err = NewTagTable(binary.BigEndian)
	}
	if err != nil {
		return nil, err
	}
	w := &tagWriter{table: table}

	if fields.Timestamp != nil {
		stamp := fields.Timestamp.Format(exifDateTimeLayout)
		w.ascii(GroupPrimary, tagDateTime, stamp)
		w.ascii(GroupExif, tagDateTimeOriginal, stamp)
		w.ascii(GroupExif, tagDateTimeDigitized, stamp)
	}

	if text := strings.TrimSpace(fields.FreeText); text != "" {
		utf16, err := encodeUTF16LE(text)
		if err != nil {
			return nil, fmt.Errorf("encode free text: %w", err)
		}
		w.ascii(GroupPrimary, tagImageDescription, text)
		w.bytes(GroupPrimary, tagXPKeywords, exifcommon.TypeByte, append(utf16, 0, 0))
		w.bytes(GroupExif, tagUserComment, exifcommon.TypeUndefined, append(append([]byte(nil), userCommentUnicode...), utf16...))
	}

	if model := strings.TrimSpace(fields.CameraModel); model != "" {
		w.ascii(GroupPrimary, tagModel, model)
	}
	if lens := strings.TrimSpace(fields.Lens); lens != "" {
		w.ascii(GroupExif, tagLensModel, lens)
	}

	location := strings.TrimSpace(fields.Location)
	switch {
	case fields.GPS != nil:
		lat, lon := fields.GPS.DMS()
		w.coordinates(
			lat.Ref, DMSToRational(lat.Deg, lat.Min, lat.Sec, GPSSecondsScale),
			lon.Ref, DMSToRational(lon.Deg, lon.Min, lon.Sec, GPSSecondsScale))
	case fields.LegacyGPS != nil:
		w.coordinates(
			fields.LegacyGPS.Lat.Ref, legacyRationals(fields.LegacyGPS.Lat),
			fields.LegacyGPS.Lon.Ref, legacyRationals(fields.LegacyGPS.Lon))
	case location != "":
		w.bytes(GroupGPS, tagGPSAreaInformation, exifcommon.TypeUndefined, []byte(location))
	}

	if w.err != nil {
		return nil, w.err
	}
	return table.Serialize()
}

// ResetOrientationToNormal rewrites the Orientation tag of a serialised
// block to 1. Used once the pixels themselves have been transposed.
func ResetOrientationToNormal(raw []byte) ([]byte, error) {
	table, err := ParseExif(raw)
	if err != nil {
		return nil, fmt.Errorf("reset orientation: %w", err)
	}
	if err := table.SetShort(GroupPrimary, tagOrientation, 1); err != nil {
		return nil, fmt.Errorf("reset orientation: %w", err)
	}
	return table.Serialize()
}

// tagWriter applies a run of edits and keeps the first error
type tagWriter struct {
	table *TagTable
	err   error
}

func (w *tagWriter) ascii(g IFDGroup, tag uint16, s string) {
	if w.err == nil {
		w.err = w.table.SetASCII(g, tag, s)
	}
}

func (w *tagWriter) bytes(g IFDGroup, tag uint16, typ exifcommon.TagTypePrimitive, b []byte) {
	if w.err == nil {
		w.err = w.table.SetBytes(g, tag, typ, b)
	}
}

func (w *tagWriter) rationals(g IFDGroup, tag uint16, rs [3]Rational) {
	if w.err == nil {
		w.err = w.table.SetRationals(g, tag, rs[:]...)
	}
}

// coordinates stores both axes and drops any textual area information
func (w *tagWriter) coordinates(latRef string, lat [3]Rational, lonRef string, lon [3]Rational) {
	if !w.table.Has(GroupGPS, tagGPSVersionID) {
		w.bytes(GroupGPS, tagGPSVersionID, exifcommon.TypeByte, []byte{2, 2, 0, 0})
	}
	w.ascii(GroupGPS, tagGPSLatitudeRef, latRef)
	w.rationals(GroupGPS, tagGPSLatitude, lat)
	w.ascii(GroupGPS, tagGPSLongitudeRef, lonRef)
	w.rationals(GroupGPS, tagGPSLongitude, lon)
	w.table.Delete(GroupGPS, tagGPSAreaInformation)
}

// legacyRationals encodes a hand-entered DMS axis, seconds as the closest bounded fraction
func legacyRationals(d DMS) [3]Rational {
	num, den := ToRational(d.Sec, legacyMaxDenominator)
	return [3]Rational{
		{Num: uint32(d.Deg), Den: 1},
		{Num: uint32(d.Min), Den: 1},
		{Num: uint32(num), Den: uint32(den)},
	}
}

func encodeUTF16LE(s string) ([]byte, error) {
	return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
}

func decodeUTF16LE(b []byte) (string, error) {
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// FreeText recovers the description, keywords and comment written by BuildExif
func (t *TagTable) FreeText() (description, keywords, comment string) {
	description, _ = t.ASCII(GroupPrimary, tagImageDescription)
	if raw, ok := t.Bytes(GroupPrimary, tagXPKeywords); ok {
		raw = trimUTF16Terminator(raw)
		keywords, _ = decodeUTF16LE(raw)
	}
	if raw, ok := t.Bytes(GroupExif, tagUserComment); ok && len(raw) >= len(userCommentUnicode) {
		if string(raw[:len(userCommentUnicode)]) == string(userCommentUnicode) {
			comment, _ = decodeUTF16LE(raw[len(userCommentUnicode):])
		} else {
			comment = strings.TrimRight(string(raw[len(userCommentUnicode):]), "\x00 ")
		}
	}
	return description, keywords, comment
}

func trimUTF16Terminator(b []byte) []byte {
	for len(b) >= 2 && b[len(b)-1] == 0 && b[len(b)-2] == 0 {
		b = b[:len(b)-2]
	}
	return b
}
