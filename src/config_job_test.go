package main

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

const sampleJob = `
start_time: "08:15"
date: 2024-03-01
output_dir: stamped
stamp: true
stamp_format: long
blur_strength: 0.4
film: Portra 400
camera_model: Nikon FM2
location: Porto
items:
  - path: b.jpg
  - path: a.jpg
    date: 2024-02-28
    gps: {lat: 41.1579, lon: -8.6291}
  - path: /abs/c.jpg
    lat_dms: {deg: 41, min: 9, sec: 28.4, ref: N}
    lon_dms: {deg: 8, min: 37, sec: 44.8, ref: W}
  - path: b.jpg
`

func TestLoadJobAndRequest(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "job.yaml", []byte(sampleJob))

	job, err := loadJob(path)
	if err != nil {
		t.Fatalf("loadJob: %v", err)
	}
	if job.Items[0].Path != filepath.Join(dir, "b.jpg") || job.Items[2].Path != "/abs/c.jpg" {
		t.Errorf("item paths = %v, %v", job.Items[0].Path, job.Items[2].Path)
	}
	if job.OutputDir != filepath.Join(dir, "stamped") {
		t.Errorf("output dir = %s", job.OutputDir)
	}

	req, err := job.Request()
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(req.Items) != 3 {
		t.Fatalf("got %d items, want 3 (duplicates dropped)", len(req.Items))
	}
	if !req.Stamp || req.StampSpec.Format != StampLongYear || req.StampSpec.BlurStrength != 0.4 {
		t.Errorf("stamp settings = %v %+v", req.Stamp, req.StampSpec)
	}
	if req.StartTime == nil || *req.StartTime != (TimeOfDay{Hour: 8, Minute: 15}) {
		t.Errorf("start time = %v", req.StartTime)
	}
	if req.Fields.Film != "Portra 400" || req.Fields.CameraModel != "Nikon FM2" {
		t.Errorf("fields = %+v", req.Fields)
	}

	b, a, c := req.Items[0], req.Items[1], req.Items[2]
	if *b.Date != (CalendarDate{2024, time.March, 1}) || b.Location != "Porto" || b.GPS != nil {
		t.Errorf("b = %+v", b)
	}
	if *a.Date != (CalendarDate{2024, time.February, 28}) || a.GPS == nil || a.GPS.Lat != 41.1579 {
		t.Errorf("a = %+v", a)
	}
	if c.GPS == nil || c.GPS.Lat < 41.157 || c.GPS.Lat > 41.158 || c.GPS.Lon > -8.62 {
		t.Errorf("c GPS = %+v", c.GPS)
	}
}

func TestJobRequestErrors(t *testing.T) {
	tests := []struct {
		name  string
		job   JobFile
		field string
	}{
		{"bad start time", JobFile{StartTime: "25:00", Items: []JobItem{{Path: "a.jpg"}}}, "start_time"},
		{"bad default date", JobFile{Date: "yesterday"}, "date"},
		{"bad item date", JobFile{Items: []JobItem{{Path: "a.jpg", Date: "2024-02-30"}}}, "date a.jpg"},
		{"gps range", JobFile{GPS: &LatLon{Lat: 0, Lon: 200}}, "gps"},
		{"item gps range", JobFile{Items: []JobItem{{Path: "a.jpg", GPS: &LatLon{Lat: -91}}}}, "gps a.jpg"},
		{"half dms", JobFile{Items: []JobItem{{Path: "a.jpg", LatDMS: &DMS{Deg: 1, Ref: "N"}}}}, "gps a.jpg"},
		{"dms minutes", JobFile{Items: []JobItem{{Path: "a.jpg", LatDMS: &DMS{Deg: 1, Min: 75, Ref: "N"}, LonDMS: &DMS{Ref: "E"}}}}, "gps a.jpg"},
		{"stamp format", JobFile{StampFormat: "DD/MM"}, "stamp"},
		{"blur range", JobFile{BlurStrength: 3}, "stamp"},
		{"empty path", JobFile{Items: []JobItem{{Path: " "}}}, "items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.job.Request()
			var runErr *RunError
			if !errors.As(err, &runErr) {
				t.Fatalf("err = %v, want *RunError", err)
			}
			if runErr.Field != tt.field {
				t.Errorf("field = %q, want %q", runErr.Field, tt.field)
			}
		})
	}
}

func TestJobRequestStartTimeDefaults(t *testing.T) {
	undated := JobFile{Items: []JobItem{{Path: "a.jpg"}}}
	req, err := undated.Request()
	if err != nil {
		t.Fatal(err)
	}
	if req.StartTime != nil {
		t.Errorf("undated job got start time %v", req.StartTime)
	}

	dated := JobFile{Date: "2024-01-01", Items: []JobItem{{Path: "a.jpg"}}}
	req, err = dated.Request()
	if err != nil {
		t.Fatal(err)
	}
	if req.StartTime == nil || *req.StartTime != (TimeOfDay{Hour: 12}) {
		t.Errorf("dated job start time = %v, want 12:00", req.StartTime)
	}
}

func TestJobMergeLayers(t *testing.T) {
	offset := -10
	cfg := &ConfigFile{CameraModel: "Config Cam", Lens: "Config Lens", FontRatio: 0.05, OffsetX: &offset, ContinueOnError: true}
	job := jobFromConfig(cfg)

	stamp := true
	noContinue := false
	job.Merge(&JobFile{CameraModel: "Manifest Cam", Items: []JobItem{{Path: "a.jpg"}}})
	job.Merge(&JobFile{Stamp: &stamp, ContinueOnError: &noContinue, Items: []JobItem{{Path: "b.jpg"}}})
	job.Merge(nil)

	if job.CameraModel != "Manifest Cam" || job.Lens != "Config Lens" {
		t.Errorf("camera/lens = %q/%q", job.CameraModel, job.Lens)
	}
	if job.Stamp == nil || !*job.Stamp || *job.ContinueOnError {
		t.Errorf("flags = %v/%v", job.Stamp, job.ContinueOnError)
	}
	if len(job.Items) != 2 {
		t.Errorf("items = %v", job.Items)
	}
	if *job.OffsetX != -10 || job.FontRatio != 0.05 {
		t.Errorf("stamp layout = %v/%v", *job.OffsetX, job.FontRatio)
	}

	if jobFromConfig(nil) == nil {
		t.Errorf("jobFromConfig(nil) returned nil")
	}
}

func TestSaveJobRoundTrip(t *testing.T) {
	dir := t.TempDir()
	stamp := true
	job := &JobFile{
		StartTime: "07:00",
		OutputDir: filepath.Join(dir, "out"),
		Stamp:     &stamp,
		Film:      "HP5",
		Items: []JobItem{
			{Path: filepath.Join(dir, "x.jpg"), Date: "2022-12-24", GPS: &LatLon{Lat: 1.5, Lon: 2.5}},
		},
	}
	path := filepath.Join(dir, "saved.yaml")
	if err := saveJob(job, path); err != nil {
		t.Fatalf("saveJob: %v", err)
	}

	loaded, err := loadJob(path)
	if err != nil {
		t.Fatalf("loadJob: %v", err)
	}
	if loaded.StartTime != "07:00" || loaded.Film != "HP5" || loaded.Stamp == nil || !*loaded.Stamp {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Items) != 1 || loaded.Items[0].Date != "2022-12-24" || *loaded.Items[0].GPS != (LatLon{1.5, 2.5}) {
		t.Errorf("items = %+v", loaded.Items)
	}
}
