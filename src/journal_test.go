package main

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestJournalRecordsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}

	req := &RunRequest{Stamp: true, OutputDir: "/out"}
	id, err := j.BeginRun(req, 2)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("run id = %q", id)
	}

	ts := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	ok := ItemResult{Item: &PhotoItem{Path: "/in/a.jpg"}, Timestamp: &ts, OutputPath: "/out/202403010900.jpg", Bytes: 1000}
	bad := ItemResult{Item: &PhotoItem{Path: "/in/b.jpg"}, Err: &ItemError{Name: "b.jpg", Err: ErrNoTimestamp}}
	for _, r := range []ItemResult{ok, bad} {
		if err := j.Record(id, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	summary := &RunSummary{RunID: id, Total: 2, Succeeded: 1, Failed: 1, BytesWritten: 1000}
	if err := j.FinishRun(summary); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := j.Record(id, ok); err == nil {
		t.Errorf("Record after Close succeeded")
	}

	j, err = OpenJournal(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()

	runs, err := j.History(10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != id || r.Total != 2 || r.Succeeded != 1 || r.Failed != 1 || !r.Stamp || r.OutputDir != "/out" || r.BytesWritten != 1000 {
		t.Errorf("run = %+v", r)
	}
	if r.FinishedAt == nil || r.Aborted {
		t.Errorf("run not finished cleanly: %+v", r)
	}

	items, err := j.Items(id)
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 2 || items[0].Path != "/in/a.jpg" || items[1].Path != "/in/b.jpg" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Timestamp == nil || !items[0].Timestamp.Equal(ts) || items[0].Error != "" {
		t.Errorf("first item = %+v", items[0])
	}
	if items[1].Timestamp != nil || items[1].Error == "" {
		t.Errorf("second item = %+v", items[1])
	}

	runsCount, itemsCount, failures := j.GetStats()
	if runsCount != 1 || itemsCount != 2 || failures != 1 {
		t.Errorf("stats = %d, %d, %d", runsCount, itemsCount, failures)
	}
}

func TestExecuteRunWritesJournal(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(filepath.Join(dir, "journal.db"))
	if err != nil {
		t.Fatal(err)
	}

	path := writeTestFile(t, dir, "a.jpg", testJPEG(t, 20, 20))
	missing := filepath.Join(dir, "gone.jpg")
	req := &RunRequest{
		Items:           []*PhotoItem{{Path: path}, {Path: missing}},
		Fields:          MetadataFields{CameraModel: "Rollei 35"},
		ContinueOnError: true,
	}
	summary, err := ExecuteRun(req, Schedule(req.Items, nil), fixedFonts{}, nil, j)
	if err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}
	if summary.RunID == "" || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	var itemErr *ItemError
	if !errors.As(summary.Results[1].Err, &itemErr) || itemErr.Path != missing {
		t.Errorf("missing file err = %v", summary.Results[1].Err)
	}
	j.Close()

	j, err = OpenJournal(filepath.Join(dir, "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	items, err := j.Items(summary.RunID)
	if err != nil || len(items) != 2 {
		t.Fatalf("items = %v, %v", items, err)
	}
	if items[0].OutputPath != path || items[1].Error == "" {
		t.Errorf("items = %+v", items)
	}
}
