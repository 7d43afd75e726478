package main

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Assignment pairs one photograph with its computed capture time.
// Timestamp is nil when the item gets no timestamp.
type Assignment struct {
	Item      *PhotoItem
	Timestamp *time.Time
}

// DateGroup holds the items sharing one assigned date; Date is nil for the undated group
type DateGroup struct {
	Date        *CalendarDate
	Assignments []Assignment
}

// Plan is the ordered output of the scheduler
type Plan struct {
	Groups []DateGroup
}

// Assignments flattens the plan in processing order
func (p *Plan) Assignments() []Assignment {
	var all []Assignment
	for _, g := range p.Groups {
		all = append(all, g.Assignments...)
	}
	return all
}

// Len returns the number of scheduled items
func (p *Plan) Len() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Assignments)
	}
	return n
}

// Schedule groups items by assigned date and spaces the items of each dated
// group one minute apart from start, in case-insensitive file name order.
// Undated items, or all items when start is nil, get no timestamp.
func Schedule(items []*PhotoItem, start *TimeOfDay) *Plan {
	byDate := make(map[CalendarDate][]*PhotoItem)
	var undated []*PhotoItem

	for _, it := range items {
		if it.Date == nil {
			undated = append(undated, it)
			continue
		}
		byDate[*it.Date] = append(byDate[*it.Date], it)
	}

	dates := make([]CalendarDate, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})

	plan := &Plan{}
	for _, d := range dates {
		date := d
		group := DateGroup{Date: &date}
		var base *time.Time
		if start != nil {
			t := date.Combine(*start)
			base = &t
		}
		for k, it := range sortByName(byDate[d]) {
			a := Assignment{Item: it}
			if base != nil {
				ts := base.Add(time.Duration(k) * time.Minute)
				a.Timestamp = &ts
			}
			group.Assignments = append(group.Assignments, a)
		}
		plan.Groups = append(plan.Groups, group)
	}

	// Undated items always come last
	if len(undated) > 0 {
		group := DateGroup{}
		for _, it := range sortByName(undated) {
			group.Assignments = append(group.Assignments, Assignment{Item: it})
		}
		plan.Groups = append(plan.Groups, group)
	}

	return plan
}

// sortByName orders items by lowercased base name, keeping input order on ties
func sortByName(items []*PhotoItem) []*PhotoItem {
	sorted := append([]*PhotoItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(filepath.Base(sorted[i].Path)) < strings.ToLower(filepath.Base(sorted[j].Path))
	})
	return sorted
}

// OutputName is the stamped-output base name for a timestamp
func OutputName(ts *time.Time) string {
	if ts == nil {
		return "exif.jpg"
	}
	return ts.Format("200601021504") + ".jpg"
}
