package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// CalendarDate is a date without a time of day
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseCalendarDate parses a YYYY-MM-DD string
func ParseCalendarDate(s string) (CalendarDate, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return CalendarDate{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return CalendarDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Before reports whether d is an earlier calendar day than o
func (d CalendarDate) Before(o CalendarDate) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// Combine returns the wall-clock instant of tod on day d.
// Timestamps are naive: UTC is used only as a DST-free carrier.
func (d CalendarDate) Combine(tod TimeOfDay) time.Time {
	return time.Date(d.Year, d.Month, d.Day, tod.Hour, tod.Minute, 0, 0, time.UTC)
}

// TimeOfDay is the start-of-day value applied to every dated group
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an HH:MM string
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid start time %q (expected HH:MM): %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// LatLon is a position in decimal degrees
type LatLon struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// Validate checks the coordinate ranges
func (p LatLon) Validate() error {
	// written as negated ranges so NaN fails too
	if !(p.Lat >= -90 && p.Lat <= 90) {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Lat)
	}
	if !(p.Lon >= -180 && p.Lon <= 180) {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Lon)
	}
	return nil
}

// DMS derives the degree/minute/second form of both axes
func (p LatLon) DMS() (lat, lon DMS) {
	d, m, s := DecimalToDMS(p.Lat)
	lat = DMS{Deg: d, Min: m, Sec: s, Ref: LatitudeRef(p.Lat)}
	d, m, s = DecimalToDMS(p.Lon)
	lon = DMS{Deg: d, Min: m, Sec: s, Ref: LongitudeRef(p.Lon)}
	return lat, lon
}

// DMS is one axis in degrees/minutes/seconds plus hemisphere reference
type DMS struct {
	Deg int     `yaml:"deg"`
	Min int     `yaml:"min"`
	Sec float64 `yaml:"sec"`
	Ref string  `yaml:"ref"`
}

// Decimal converts the DMS value to signed decimal degrees
func (d DMS) Decimal() float64 {
	v := float64(d.Deg) + float64(d.Min)/60 + d.Sec/3600
	if d.Ref == "S" || d.Ref == "W" {
		return -v
	}
	return v
}

// validate checks field ranges; latitude selects the 90/N-S limits
func (d DMS) validate(latitude bool) error {
	maxDeg, refs := 180, "EW"
	if latitude {
		maxDeg, refs = 90, "NS"
	}
	if d.Ref == "" || len(d.Ref) != 1 || !strings.Contains(refs, d.Ref) {
		return fmt.Errorf("hemisphere reference %q must be one of %s", d.Ref, strings.Join(strings.Split(refs, ""), "/"))
	}
	if d.Deg < 0 || d.Deg > maxDeg {
		return fmt.Errorf("degrees %d out of range 0-%d", d.Deg, maxDeg)
	}
	if d.Min < 0 || d.Min > 59 {
		return fmt.Errorf("minutes %d out of range 0-59", d.Min)
	}
	if !(d.Sec >= 0 && d.Sec < 60) {
		return fmt.Errorf("seconds %v out of range [0, 60)", d.Sec)
	}
	return nil
}

// PhotoItem is one input file in the working set
type PhotoItem struct {
	Path     string
	Date     *CalendarDate
	Location string
	GPS      *LatLon

	// EnteredDMS keeps a DMS entry as typed so it can be written verbatim
	EnteredDMS *LegacyGPS
}

// Name returns the file's base name
func (p *PhotoItem) Name() string {
	return filepath.Base(p.Path)
}

// SetGPSFromDMS stores a DMS entry as the decimal source of truth
func (p *PhotoItem) SetGPSFromDMS(lat, lon DMS) error {
	lat.Ref = strings.ToUpper(strings.TrimSpace(lat.Ref))
	lon.Ref = strings.ToUpper(strings.TrimSpace(lon.Ref))
	if err := lat.validate(true); err != nil {
		return fmt.Errorf("latitude: %w", err)
	}
	if err := lon.validate(false); err != nil {
		return fmt.Errorf("longitude: %w", err)
	}
	p.GPS = &LatLon{Lat: lat.Decimal(), Lon: lon.Decimal()}
	p.EnteredDMS = &LegacyGPS{Lat: lat, Lon: lon}
	return nil
}

// AddItems appends paths not already in the set
func AddItems(items []*PhotoItem, paths ...string) []*PhotoItem {
	existing := make(map[string]bool, len(items))
	for _, it := range items {
		existing[it.Path] = true
	}
	for _, p := range paths {
		if existing[p] {
			continue
		}
		existing[p] = true
		items = append(items, &PhotoItem{Path: p})
	}
	return items
}

// RemoveItems drops the items at the given indices
func RemoveItems(items []*PhotoItem, indices ...int) []*PhotoItem {
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	kept := items[:0:0]
	for i, it := range items {
		if !drop[i] {
			kept = append(kept, it)
		}
	}
	return kept
}

// AssignDate sets the calendar date on every item
func AssignDate(items []*PhotoItem, date CalendarDate) {
	for _, it := range items {
		d := date
		it.Date = &d
	}
}

// AssignGPS sets the same decimal position on every item
func AssignGPS(items []*PhotoItem, pos LatLon) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	for _, it := range items {
		p := pos
		it.GPS = &p
		it.EnteredDMS = nil
	}
	return nil
}

// MetadataFields are applied uniformly to every photograph in a run
type MetadataFields struct {
	Film        string `yaml:"film"`
	CameraModel string `yaml:"camera_model"`
	Lens        string `yaml:"lens"`
}

// StampFormat selects how the stamp date is rendered
type StampFormat int

const (
	StampShortYear StampFormat = iota // 'YY MM DD
	StampLongYear                     // YYYY MM DD
)

func (f StampFormat) String() string {
	return [...]string{"'YY MM DD", "YYYY MM DD"}[f]
}

// ParseStampFormat accepts the labels used in config files and flags
func ParseStampFormat(s string) (StampFormat, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "'YY MM DD", "YY MM DD", "SHORT":
		return StampShortYear, nil
	case "YYYY MM DD", "LONG":
		return StampLongYear, nil
	}
	return StampShortYear, fmt.Errorf("unknown stamp format %q", s)
}

// StampSpec is the per-run visual configuration of the date stamp
type StampSpec struct {
	Format       StampFormat
	BlurStrength float64
	FontRatio    float64
	OffsetX      int
	OffsetY      int
	FontPath     string
}

// DefaultStampSpec mirrors the film-camera look the tool ships with
func DefaultStampSpec() StampSpec {
	return StampSpec{
		Format:       StampShortYear,
		BlurStrength: 0.15,
		FontRatio:    0.03,
		OffsetX:      -20,
		OffsetY:      -20,
	}
}

// Validate checks the stamp controls against their supported ranges
func (s StampSpec) Validate() error {
	if s.BlurStrength < 0.1 || s.BlurStrength > 1.0 {
		return fmt.Errorf("blur strength %v out of range 0.1-1.0", s.BlurStrength)
	}
	if s.FontRatio < 0.02 || s.FontRatio > 0.08 {
		return fmt.Errorf("font ratio %v out of range 0.02-0.08", s.FontRatio)
	}
	if s.OffsetX < -50 || s.OffsetX > 50 || s.OffsetY < -50 || s.OffsetY > 50 {
		return fmt.Errorf("offset (%d, %d) out of range -50..50", s.OffsetX, s.OffsetY)
	}
	return nil
}

// RunRequest carries everything one batch run needs
type RunRequest struct {
	Items           []*PhotoItem
	StartTime       *TimeOfDay
	Fields          MetadataFields
	Stamp           bool
	StampSpec       StampSpec
	OutputDir       string
	ContinueOnError bool
}

// ScanProgress tracks batch progress
type ScanProgress struct {
	TotalFiles     int
	ProcessedFiles int
	Failures       int
	CurrentFile    string
}

// Config holds application configuration
type Config struct {
	Paths         []string
	Recursive     bool
	JobFile       string
	JournalPath   string
	NoJournal     bool
	DryRun        bool
	DatesFromExif bool
	Workers       int
	LogLevel      string
}
