package main

import (
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// ExistingMetadata is what a photograph already records before a run
type ExistingMetadata struct {
	Path        string
	DateTaken   *time.Time
	CameraMake  string
	CameraModel string
	Description string
	GPS         *LatLon
	Orientation int
	Err         error
}

// ReadExistingMetadata extracts EXIF fields of interest with goexif
func ReadExistingMetadata(path string) *ExistingMetadata {
	meta := &ExistingMetadata{Path: path, Orientation: 1}

	f, err := os.Open(path)
	if err != nil {
		meta.Err = err
		return meta
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		// No EXIF data or decode failed
		meta.Err = err
		return meta
	}

	// Capture time: DateTimeOriginal first, DateTime as fallback
	if tm, err := x.DateTime(); err == nil {
		naive := time.Date(tm.Year(), tm.Month(), tm.Day(), tm.Hour(), tm.Minute(), tm.Second(), 0, time.UTC)
		meta.DateTaken = &naive
	}

	meta.CameraMake = stringTag(x, exif.Make)
	meta.CameraModel = stringTag(x, exif.Model)
	meta.Description = stringTag(x, exif.ImageDescription)

	if lat, lon, err := x.LatLong(); err == nil {
		meta.GPS = &LatLon{Lat: lat, Lon: lon}
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if o, err := tag.Int(0); err == nil {
			meta.Orientation = o
		}
	}

	return meta
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
