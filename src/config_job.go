package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// JobFile is a YAML run manifest. The same shape carries config defaults and
// command-line overrides, merged in that order before a request is built.
type JobFile struct {
	StartTime       string    `yaml:"start_time,omitempty"`
	Date            string    `yaml:"date,omitempty"`
	OutputDir       string    `yaml:"output_dir,omitempty"`
	Stamp           *bool     `yaml:"stamp,omitempty"`
	StampFormat     string    `yaml:"stamp_format,omitempty"`
	BlurStrength    float64   `yaml:"blur_strength,omitempty"`
	FontRatio       float64   `yaml:"font_ratio,omitempty"`
	OffsetX         *int      `yaml:"offset_x,omitempty"`
	OffsetY         *int      `yaml:"offset_y,omitempty"`
	FontPath        string    `yaml:"font_path,omitempty"`
	Film            string    `yaml:"film,omitempty"`
	CameraModel     string    `yaml:"camera_model,omitempty"`
	Lens            string    `yaml:"lens,omitempty"`
	Location        string    `yaml:"location,omitempty"`
	GPS             *LatLon   `yaml:"gps,omitempty"`
	ContinueOnError *bool     `yaml:"continue_on_error,omitempty"`
	Items           []JobItem `yaml:"items,omitempty"`
}

// JobItem is one photograph in a manifest
type JobItem struct {
	Path     string  `yaml:"path"`
	Date     string  `yaml:"date,omitempty"`
	Location string  `yaml:"location,omitempty"`
	GPS      *LatLon `yaml:"gps,omitempty"`
	LatDMS   *DMS    `yaml:"lat_dms,omitempty"`
	LonDMS   *DMS    `yaml:"lon_dms,omitempty"`
}

// loadJob reads a manifest; relative item paths are resolved against its directory
func loadJob(path string) (*JobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}

	var job JobFile
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse job %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range job.Items {
		if job.Items[i].Path != "" && !filepath.IsAbs(job.Items[i].Path) {
			job.Items[i].Path = filepath.Join(dir, job.Items[i].Path)
		}
	}
	if job.OutputDir != "" && !filepath.IsAbs(job.OutputDir) {
		job.OutputDir = filepath.Join(dir, job.OutputDir)
	}
	return &job, nil
}

// jobFromConfig turns config-file defaults into the base layer of a job
func jobFromConfig(cfg *ConfigFile) *JobFile {
	if cfg == nil {
		return &JobFile{}
	}
	job := &JobFile{
		StartTime:    cfg.StartTime,
		OutputDir:    cfg.OutputDir,
		StampFormat:  cfg.StampFormat,
		BlurStrength: cfg.BlurStrength,
		FontRatio:    cfg.FontRatio,
		OffsetX:      cfg.OffsetX,
		OffsetY:      cfg.OffsetY,
		FontPath:     cfg.FontPath,
		Film:         cfg.Film,
		CameraModel:  cfg.CameraModel,
		Lens:         cfg.Lens,
	}
	if cfg.ContinueOnError {
		v := true
		job.ContinueOnError = &v
	}
	return job
}

// Merge overlays every field set in o onto j. Items are appended.
func (j *JobFile) Merge(o *JobFile) {
	if o == nil {
		return
	}
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&j.StartTime, o.StartTime)
	setString(&j.Date, o.Date)
	setString(&j.OutputDir, o.OutputDir)
	setString(&j.StampFormat, o.StampFormat)
	setString(&j.FontPath, o.FontPath)
	setString(&j.Film, o.Film)
	setString(&j.CameraModel, o.CameraModel)
	setString(&j.Lens, o.Lens)
	setString(&j.Location, o.Location)
	if o.Stamp != nil {
		j.Stamp = o.Stamp
	}
	if o.BlurStrength != 0 {
		j.BlurStrength = o.BlurStrength
	}
	if o.FontRatio != 0 {
		j.FontRatio = o.FontRatio
	}
	if o.OffsetX != nil {
		j.OffsetX = o.OffsetX
	}
	if o.OffsetY != nil {
		j.OffsetY = o.OffsetY
	}
	if o.GPS != nil {
		j.GPS = o.GPS
	}
	if o.ContinueOnError != nil {
		j.ContinueOnError = o.ContinueOnError
	}
	j.Items = append(j.Items, o.Items...)
}

// Request parses and validates the job into a RunRequest. Every parse
// failure is a *RunError so nothing is written for a bad job.
func (j *JobFile) Request() (*RunRequest, error) {
	req := &RunRequest{
		OutputDir: strings.TrimSpace(j.OutputDir),
		Fields: MetadataFields{
			Film:        strings.TrimSpace(j.Film),
			CameraModel: strings.TrimSpace(j.CameraModel),
			Lens:        strings.TrimSpace(j.Lens),
		},
		Stamp:           j.Stamp != nil && *j.Stamp,
		ContinueOnError: j.ContinueOnError != nil && *j.ContinueOnError,
	}

	spec, err := (&ConfigFile{
		StampFormat:  j.StampFormat,
		BlurStrength: j.BlurStrength,
		FontRatio:    j.FontRatio,
		OffsetX:      j.OffsetX,
		OffsetY:      j.OffsetY,
		FontPath:     j.FontPath,
	}).StampSpec()
	if err != nil {
		return nil, &RunError{Field: "stamp", Err: err}
	}
	req.StampSpec = spec

	var defaultDate *CalendarDate
	if strings.TrimSpace(j.Date) != "" {
		d, err := ParseCalendarDate(j.Date)
		if err != nil {
			return nil, &RunError{Field: "date", Err: err}
		}
		defaultDate = &d
	}
	if j.GPS != nil {
		if err := j.GPS.Validate(); err != nil {
			return nil, &RunError{Field: "gps", Err: err}
		}
	}

	paths := make([]string, 0, len(j.Items))
	byPath := make(map[string]JobItem, len(j.Items))
	for _, ji := range j.Items {
		if strings.TrimSpace(ji.Path) == "" {
			return nil, &RunError{Field: "items", Err: fmt.Errorf("item without path")}
		}
		paths = append(paths, ji.Path)
		if _, seen := byPath[ji.Path]; !seen {
			byPath[ji.Path] = ji
		}
	}
	req.Items = AddItems(nil, paths...)

	for _, it := range req.Items {
		ji := byPath[it.Path]

		switch {
		case strings.TrimSpace(ji.Date) != "":
			d, err := ParseCalendarDate(ji.Date)
			if err != nil {
				return nil, &RunError{Field: "date " + it.Name(), Err: err}
			}
			it.Date = &d
		case defaultDate != nil:
			d := *defaultDate
			it.Date = &d
		}

		it.Location = strings.TrimSpace(ji.Location)
		if it.Location == "" {
			it.Location = strings.TrimSpace(j.Location)
		}

		switch {
		case ji.GPS != nil:
			if err := ji.GPS.Validate(); err != nil {
				return nil, &RunError{Field: "gps " + it.Name(), Err: err}
			}
			p := *ji.GPS
			it.GPS = &p
		case ji.LatDMS != nil || ji.LonDMS != nil:
			if ji.LatDMS == nil || ji.LonDMS == nil {
				return nil, &RunError{Field: "gps " + it.Name(), Err: fmt.Errorf("both lat_dms and lon_dms are required")}
			}
			if err := it.SetGPSFromDMS(*ji.LatDMS, *ji.LonDMS); err != nil {
				return nil, &RunError{Field: "gps " + it.Name(), Err: err}
			}
		case j.GPS != nil:
			p := *j.GPS
			it.GPS = &p
		}
	}

	// Start time is needed only when something is dated
	if strings.TrimSpace(j.StartTime) != "" || anyDated(req.Items) {
		raw := j.StartTime
		if strings.TrimSpace(raw) == "" {
			raw = "12:00"
		}
		tod, err := ParseTimeOfDay(raw)
		if err != nil {
			return nil, &RunError{Field: "start_time", Err: err}
		}
		req.StartTime = &tod
	}

	return req, nil
}

func anyDated(items []*PhotoItem) bool {
	for _, it := range items {
		if it.Date != nil {
			return true
		}
	}
	return false
}

// saveJob writes a manifest, used by --save-job to capture a CLI run
func saveJob(job *JobFile, path string) error {
	data, err := yaml.Marshal(job)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
