package main

import (
	"bytes"
	"errors"
	"image/jpeg"
	"testing"

	jis "github.com/dsoprea/go-jpeg-image-structure/v2"
)

func markers(sl *jis.SegmentList) []byte {
	var out []byte
	for _, s := range sl.Segments() {
		out = append(out, s.MarkerId)
	}
	return out
}

func TestSpliceExifKeepsImageData(t *testing.T) {
	orig := testJPEG(t, 32, 24)
	origList, err := parseJPEG(orig)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	table := newTable(t)
	must(t, table.SetASCII(GroupPrimary, tagModel, "Minolta X-700"))
	block, err := table.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	out, err := spliceExif(orig, block)
	if err != nil {
		t.Fatalf("spliceExif: %v", err)
	}
	if !bytes.Equal(scanData(t, out), scanData(t, orig)) {
		t.Errorf("entropy-coded data changed")
	}
	list, err := parseJPEG(out)
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if !bytes.Equal(exifPayload(list), block) {
		t.Errorf("EXIF payload not inserted verbatim")
	}

	// SOI, then the new APP1, then every original segment unchanged
	origSegments, segments := origList.Segments(), list.Segments()
	if len(segments) != len(origSegments)+1 {
		t.Fatalf("got %d segments, want %d", len(segments), len(origSegments)+1)
	}
	if segments[1].MarkerId != markerAPP1 {
		t.Errorf("segment 1 marker = 0x%02X", segments[1].MarkerId)
	}
	for i, s := range origSegments[1:] {
		if s.MarkerId != segments[i+2].MarkerId || !bytes.Equal(s.Data, segments[i+2].Data) {
			t.Errorf("segment %d changed", i+1)
		}
	}

	// Replacing again keeps exactly one EXIF segment
	must(t, table.SetASCII(GroupPrimary, tagModel, "Minolta X-500"))
	block2, err := table.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	out2, err := spliceExif(out, block2)
	if err != nil {
		t.Fatalf("second splice: %v", err)
	}
	list2, err := parseJPEG(out2)
	if err != nil {
		t.Fatal(err)
	}
	count := bytes.Count(markers(list2), []byte{markerAPP1})
	if count != 1 || !bytes.Equal(exifPayload(list2), block2) {
		t.Errorf("got %d APP1 segments after replacement", count)
	}
	if _, err := jpeg.Decode(bytes.NewReader(out2)); err != nil {
		t.Errorf("spliced file does not decode: %v", err)
	}
}

func TestWithMetadataInsertsAfterAPP0(t *testing.T) {
	sl := jis.NewSegmentList([]*jis.Segment{
		{MarkerId: markerSOI},
		{MarkerId: markerAPP0, Data: []byte("JFIF\x00")},
		{MarkerId: 0xDB, Data: []byte{0}},
		{MarkerId: markerAPP1, Data: []byte("Exif\x00\x00old")},
		{MarkerId: markerAPP1, Data: []byte("http://ns.adobe.com/xap/1.0/\x00")},
	})
	out, err := withMetadata(sl, []byte("Exif\x00\x00new"), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{markerSOI, markerAPP0, markerAPP1, 0xDB, markerAPP1}
	if got := markers(out); !bytes.Equal(got, want) {
		t.Fatalf("markers = % X, want % X", got, want)
	}
	segments := out.Segments()
	if string(segments[2].Data) != "Exif\x00\x00new" {
		t.Errorf("new EXIF not placed after APP0")
	}
	if !bytes.HasPrefix(segments[4].Data, []byte("http://ns.adobe.com")) {
		t.Errorf("XMP segment lost")
	}
}

func TestICCProfileRoundTrip(t *testing.T) {
	profile := make([]byte, 2*iccChunkPayload+1234)
	for i := range profile {
		profile[i] = byte(i * 7)
	}

	data, err := encodeJPEG(gradientImage(20, 10), nil, profile)
	if err != nil {
		t.Fatalf("encodeJPEG: %v", err)
	}
	sl, err := parseJPEG(data)
	if err != nil {
		t.Fatal(err)
	}

	chunks := 0
	for _, s := range sl.Segments() {
		if isICCSegment(s) {
			chunks++
			if got := s.Data[len(iccProfileHeader)+1]; got != 3 {
				t.Errorf("chunk count byte = %d, want 3", got)
			}
		}
	}
	if chunks != 3 {
		t.Errorf("got %d APP2 chunks, want 3", chunks)
	}
	if !bytes.Equal(iccProfile(sl), profile) {
		t.Errorf("reassembled profile differs")
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("output does not decode: %v", err)
	}
}

func TestEncodeJPEGFullChroma(t *testing.T) {
	data, err := encodeJPEG(gradientImage(64, 48), nil, nil)
	if err != nil {
		t.Fatalf("encodeJPEG: %v", err)
	}
	sl, err := parseJPEG(data)
	if err != nil {
		t.Fatal(err)
	}

	var frame []byte
	for _, s := range sl.Segments() {
		// SOF0, SOF1 or SOF2
		if s.MarkerId >= 0xC0 && s.MarkerId <= 0xC2 {
			frame = s.Data
			break
		}
	}
	// precision, height, width, component count, then id/sampling/table per component
	if len(frame) < 6 {
		t.Fatalf("no frame header found")
	}
	components := int(frame[5])
	if components != 3 || len(frame) < 6+3*components {
		t.Fatalf("frame header = % X", frame)
	}
	for i := 0; i < components; i++ {
		if sampling := frame[6+3*i+1]; sampling != 0x11 {
			t.Errorf("component %d sampling = 0x%02X, want 0x11", i, sampling)
		}
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("size = %v", b.Size())
	}
}

func TestICCProfileTooLarge(t *testing.T) {
	if _, err := iccSegments(make([]byte, 255*iccChunkPayload+1)); !errors.Is(err, ErrICCTooLarge) {
		t.Errorf("err = %v, want ErrICCTooLarge", err)
	}
}

func TestParseJPEGErrors(t *testing.T) {
	if _, err := parseJPEG([]byte("GIF89a")); !errors.Is(err, ErrNotJPEG) {
		t.Errorf("non-JPEG: err = %v", err)
	}

	data := testJPEG(t, 8, 8)
	// Cut inside the first segment's payload
	if _, err := parseJPEG(data[:8]); !errors.Is(err, ErrTruncatedJPEG) {
		t.Errorf("truncated: err = %v", err)
	}
}

func TestWithMetadataRejectsOversizedExif(t *testing.T) {
	sl := jis.NewSegmentList([]*jis.Segment{{MarkerId: markerSOI}})
	_, err := withMetadata(sl, make([]byte, maxSegmentPayload+1), nil)
	if !errors.Is(err, ErrExifTooLarge) {
		t.Errorf("err = %v, want ErrExifTooLarge", err)
	}
}
