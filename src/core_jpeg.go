package main

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	jis "github.com/dsoprea/go-jpeg-image-structure/v2"
)

var (
	ErrNotJPEG       = errors.New("not a JPEG file")
	ErrTruncatedJPEG = errors.New("truncated JPEG file")
	ErrICCTooLarge   = errors.New("ICC profile needs more than 255 APP2 segments")
)

var (
	iccProfileHeader  = []byte("ICC_PROFILE\x00")
	exifSegmentHeader = []byte(exifHeader)
)

const (
	markerSOI  = 0xD8
	markerSOS  = 0xDA
	markerAPP0 = 0xE0
	markerAPP1 = 0xE1
	markerAPP2 = 0xE2
)

// maxSegmentPayload is the largest payload a length-prefixed segment can carry
const maxSegmentPayload = 0xFFFF - 2

// iccChunkPayload leaves room for the header, sequence number and chunk count
const iccChunkPayload = maxSegmentPayload - len(iccProfileHeader) - 2

// parseJPEG splits a JPEG file into its marker segments. The scan data is
// kept as opaque segments so writing the list back reproduces it exactly.
func parseJPEG(data []byte) (*jis.SegmentList, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, ErrNotJPEG
	}
	mc, err := jis.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedJPEG, err)
	}
	sl, ok := mc.(*jis.SegmentList)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected media context %T", ErrNotJPEG, mc)
	}
	for _, s := range sl.Segments() {
		if s.MarkerId == markerSOS {
			return sl, nil
		}
	}
	return nil, fmt.Errorf("%w: no image data", ErrTruncatedJPEG)
}

// writeJPEG serialises a segment list back into a file
func writeJPEG(sl *jis.SegmentList) ([]byte, error) {
	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return nil, fmt.Errorf("write jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// exifPayload returns the first EXIF APP1 payload including its header
func exifPayload(sl *jis.SegmentList) []byte {
	_, s, err := sl.FindExif()
	if err != nil {
		return nil
	}
	return s.Data
}

func isExifSegment(s *jis.Segment) bool {
	return s.MarkerId == markerAPP1 && bytes.HasPrefix(s.Data, exifSegmentHeader)
}

func isICCSegment(s *jis.Segment) bool {
	return s.MarkerId == markerAPP2 && bytes.HasPrefix(s.Data, iccProfileHeader) && len(s.Data) >= len(iccProfileHeader)+2
}

// iccProfile reassembles a chunked ICC profile, nil if there is none
func iccProfile(sl *jis.SegmentList) []byte {
	type chunk struct {
		seq  byte
		data []byte
	}
	var chunks []chunk
	for _, s := range sl.Segments() {
		if isICCSegment(s) {
			chunks = append(chunks, chunk{seq: s.Data[len(iccProfileHeader)], data: s.Data[len(iccProfileHeader)+2:]})
		}
	}
	if len(chunks) == 0 {
		return nil
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })

	var profile []byte
	for _, c := range chunks {
		profile = append(profile, c.data...)
	}
	return profile
}

// iccSegments splits a profile into numbered APP2 segments
func iccSegments(profile []byte) ([]*jis.Segment, error) {
	count := (len(profile) + iccChunkPayload - 1) / iccChunkPayload
	if count > 255 {
		return nil, fmt.Errorf("%w: %d bytes", ErrICCTooLarge, len(profile))
	}

	segments := make([]*jis.Segment, 0, count)
	for i := 0; i < count; i++ {
		end := min((i+1)*iccChunkPayload, len(profile))
		payload := make([]byte, 0, len(iccProfileHeader)+2+end-i*iccChunkPayload)
		payload = append(payload, iccProfileHeader...)
		payload = append(payload, byte(i+1), byte(count))
		payload = append(payload, profile[i*iccChunkPayload:end]...)
		segments = append(segments, &jis.Segment{MarkerId: markerAPP2, MarkerName: "APP2", Data: payload})
	}
	return segments, nil
}

// withMetadata replaces the EXIF segment with exif and, when icc is non-nil,
// the ICC chunks with icc. New segments go after SOI and any leading APP0.
func withMetadata(sl *jis.SegmentList, exif, icc []byte) (*jis.SegmentList, error) {
	if len(exif) > maxSegmentPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrExifTooLarge, len(exif))
	}

	var inserted []*jis.Segment
	if exif != nil {
		inserted = append(inserted, &jis.Segment{MarkerId: markerAPP1, MarkerName: "APP1", Data: exif})
	}
	if icc != nil {
		chunks, err := iccSegments(icc)
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, chunks...)
	}

	segments := sl.Segments()
	out := make([]*jis.Segment, 0, len(segments)+len(inserted))
	insertAt := 0
	for _, s := range segments {
		if exif != nil && isExifSegment(s) {
			continue
		}
		if icc != nil && isICCSegment(s) {
			continue
		}
		if (s.MarkerId == markerSOI || s.MarkerId == markerAPP0) && insertAt == len(out) {
			insertAt++
		}
		out = append(out, s)
	}

	out = append(out[:insertAt], append(inserted, out[insertAt:]...)...)
	return jis.NewSegmentList(out), nil
}

// spliceExif rebuilds a JPEG file with a new EXIF segment, leaving every
// other segment and the compressed image data byte-identical
func spliceExif(data, exif []byte) ([]byte, error) {
	sl, err := parseJPEG(data)
	if err != nil {
		return nil, err
	}
	sl, err = withMetadata(sl, exif, nil)
	if err != nil {
		return nil, err
	}
	return writeJPEG(sl)
}
