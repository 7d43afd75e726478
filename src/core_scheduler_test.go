package main

import (
	"path/filepath"
	"testing"
	"time"
)

func datedItem(path string, d *CalendarDate) *PhotoItem {
	return &PhotoItem{Path: path, Date: d}
}

func TestScheduleAlphabeticalWithinDate(t *testing.T) {
	date := CalendarDate{Year: 2024, Month: time.March, Day: 1}
	items := []*PhotoItem{
		datedItem("/roll/c.jpg", &date),
		datedItem("/roll/a.jpg", &date),
		datedItem("/roll/b.jpg", &date),
	}
	start := TimeOfDay{Hour: 9}

	plan := Schedule(items, &start)

	want := map[string]string{
		"a.jpg": "2024-03-01 09:00",
		"b.jpg": "2024-03-01 09:01",
		"c.jpg": "2024-03-01 09:02",
	}
	order := []string{"a.jpg", "b.jpg", "c.jpg"}

	got := plan.Assignments()
	if len(got) != 3 {
		t.Fatalf("got %d assignments, want 3", len(got))
	}
	for i, a := range got {
		if a.Item.Name() != order[i] {
			t.Errorf("position %d = %s, want %s", i, a.Item.Name(), order[i])
		}
		if a.Timestamp == nil {
			t.Fatalf("%s has no timestamp", a.Item.Name())
		}
		if ts := a.Timestamp.Format("2006-01-02 15:04"); ts != want[a.Item.Name()] {
			t.Errorf("%s = %s, want %s", a.Item.Name(), ts, want[a.Item.Name()])
		}
	}
}

func TestScheduleUndatedLastAndMinuteSpacing(t *testing.T) {
	early := CalendarDate{Year: 1999, Month: time.December, Day: 31}
	late := CalendarDate{Year: 2024, Month: time.June, Day: 15}
	items := []*PhotoItem{
		datedItem("/x/Zeta.jpg", nil),
		datedItem("/x/b.JPG", &late),
		datedItem("/y/A.jpg", &late),
		datedItem("/x/alpha.jpg", nil),
		datedItem("/z/c.jpg", &early),
		datedItem("/x/d.jpg", &late),
	}
	start := TimeOfDay{Hour: 23, Minute: 59}

	plan := Schedule(items, &start)
	if len(plan.Groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(plan.Groups))
	}
	if plan.Groups[0].Date == nil || *plan.Groups[0].Date != early {
		t.Errorf("first group = %v, want %v", plan.Groups[0].Date, early)
	}
	if plan.Groups[1].Date == nil || *plan.Groups[1].Date != late {
		t.Errorf("second group = %v, want %v", plan.Groups[1].Date, late)
	}
	undated := plan.Groups[2]
	if undated.Date != nil {
		t.Fatalf("last group should be undated, got %v", undated.Date)
	}
	for _, a := range undated.Assignments {
		if a.Timestamp != nil {
			t.Errorf("undated %s got timestamp %v", a.Item.Name(), a.Timestamp)
		}
	}
	if names := []string{undated.Assignments[0].Item.Name(), undated.Assignments[1].Item.Name()}; names[0] != "alpha.jpg" || names[1] != "Zeta.jpg" {
		t.Errorf("undated order = %v, want [alpha.jpg Zeta.jpg]", names)
	}

	// Case-insensitive, directory-independent order; rolls past midnight
	g := plan.Groups[1].Assignments
	wantNames := []string{"A.jpg", "b.JPG", "d.jpg"}
	for i, a := range g {
		if a.Item.Name() != wantNames[i] {
			t.Errorf("group position %d = %s, want %s", i, a.Item.Name(), wantNames[i])
		}
		if i > 0 && a.Timestamp.Sub(*g[i-1].Timestamp) != time.Minute {
			t.Errorf("%s is %v after previous, want 1m", a.Item.Name(), a.Timestamp.Sub(*g[i-1].Timestamp))
		}
	}
	if got := g[2].Timestamp.Format("2006-01-02 15:04"); got != "2024-06-16 00:01" {
		t.Errorf("last timestamp = %s, want 2024-06-16 00:01", got)
	}
}

func TestScheduleStableOnEqualNames(t *testing.T) {
	date := CalendarDate{Year: 2024, Month: time.January, Day: 1}
	items := []*PhotoItem{
		datedItem(filepath.Join("one", "IMG.jpg"), &date),
		datedItem(filepath.Join("two", "img.jpg"), &date),
	}
	start := TimeOfDay{Hour: 12}

	got := Schedule(items, &start).Assignments()
	if got[0].Item != items[0] || got[1].Item != items[1] {
		t.Errorf("equal lowercased names must keep input order")
	}
}

func TestScheduleWithoutStartTime(t *testing.T) {
	date := CalendarDate{Year: 2024, Month: time.January, Day: 1}
	plan := Schedule([]*PhotoItem{datedItem("a.jpg", &date), datedItem("b.jpg", nil)}, nil)
	if plan.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", plan.Len())
	}
	for _, a := range plan.Assignments() {
		if a.Timestamp != nil {
			t.Errorf("%s got timestamp without a start time", a.Item.Name())
		}
	}
}

func TestOutputName(t *testing.T) {
	ts := time.Date(2024, time.March, 1, 9, 5, 0, 0, time.UTC)
	if got := OutputName(&ts); got != "202403010905.jpg" {
		t.Errorf("OutputName = %q", got)
	}
	if got := OutputName(nil); got != "exif.jpg" {
		t.Errorf("OutputName(nil) = %q", got)
	}
}
