package domain

import (
	"fmt"
	"time"
)

// DateLayout is the ISO date format used for window bounds and exports.
const DateLayout = "2006-01-02"

// DateWindow selects records strictly between Start and End.
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateWindow builds a window from two dates, truncated to calendar days.
// No ordering is enforced; an inverted window selects nothing.
func NewDateWindow(start, end time.Time) DateWindow {
	return DateWindow{Start: DateOf(start), End: DateOf(end)}
}

// ParseDateWindow parses ISO start and end dates.
func ParseDateWindow(start, end string) (DateWindow, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateWindow{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateWindow{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	return NewDateWindow(s, e), nil
}

// Contains reports whether d lies strictly inside the window.
func (w DateWindow) Contains(d time.Time) bool {
	d = DateOf(d)
	return d.After(w.Start) && d.Before(w.End)
}

func (w DateWindow) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}

// FilterViralLoad returns the records collected strictly inside w, in source order.
func FilterViralLoad(ds ViralLoadDataset, w DateWindow) ViralLoadDataset {
	out := ViralLoadDataset{Columns: ds.Columns}
	for _, r := range ds.Records {
		if w.Contains(r.CollectionDate) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// FilterCases returns the records with symptom onset strictly inside w, in source order.
func FilterCases(ds CaseDataset, w DateWindow) CaseDataset {
	out := CaseDataset{Columns: ds.Columns}
	for _, r := range ds.Records {
		if w.Contains(r.SymptomDate) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}
