package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Source names used in errors, logs and metric labels.
const (
	SourceViralLoad = "viral_load"
	SourceCases     = "cases"
)

// dayFirstLayouts are tried in order. Go's "2" and "1" accept one or two digits,
// so "5/3/2020" and "05/03/2020" share a layout.
var dayFirstLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// NormalizeStats counts what happened to source rows during normalization.
type NormalizeStats struct {
	RowsRead        int `json:"rows_read"`
	Kept            int `json:"kept"`
	DroppedDate     int `json:"dropped_date"`
	DroppedFilter   int `json:"dropped_filter"`
	DroppedValue    int `json:"dropped_value"`
	MissingReadings int `json:"missing_readings"`
}

// ParseDayFirst parses a sheet date written day-first ("05/03/2020" is 5 March).
// The time of day, if any, is discarded and the result is midnight UTC.
func ParseDayFirst(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), true
		}
	}
	return time.Time{}, false
}

// DateOf truncates t to its calendar date at midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeViralLoad interprets the viral-load sheet: rows with a bad collection
// date are dropped, only rows for site are kept, and the viral load is coerced to
// a Reading (missing on failure, row kept).
func NormalizeViralLoad(t Table, site string) (ViralLoadDataset, NormalizeStats, error) {
	cols, err := columnIndex(SourceViralLoad, t.Header, ColCollectionDate, ColCollectionSite, ColViralLoadN1)
	if err != nil {
		return ViralLoadDataset{}, NormalizeStats{}, err
	}
	dateCol, siteCol, valueCol := cols[0], cols[1], cols[2]

	ds := ViralLoadDataset{Columns: t.Header}
	stats := NormalizeStats{RowsRead: len(t.Rows)}

	for i, row := range t.Rows {
		date, ok := ParseDayFirst(cell(row, dateCol))
		if !ok {
			stats.DroppedDate++
			continue
		}
		if cell(row, siteCol) != site {
			stats.DroppedFilter++
			continue
		}
		reading := parseReading(cell(row, valueCol))
		if !reading.Valid {
			stats.MissingReadings++
		}
		ds.Records = append(ds.Records, ViralLoadRecord{
			Index:          i,
			CollectionDate: date,
			CollectionSite: site,
			ViralLoadN1:    reading,
			Cells:          row,
		})
	}
	stats.Kept = len(ds.Records)
	return ds, stats, nil
}

// NormalizeCases interprets the daily case sheet: rows with a bad symptom date
// or case count are dropped and only rows for municipality are kept.
func NormalizeCases(t Table, municipality string) (CaseDataset, NormalizeStats, error) {
	cols, err := columnIndex(SourceCases, t.Header, ColSymptomDate, ColMunicipality, ColCaseCount)
	if err != nil {
		return CaseDataset{}, NormalizeStats{}, err
	}
	dateCol, cityCol, countCol := cols[0], cols[1], cols[2]

	ds := CaseDataset{Columns: t.Header}
	stats := NormalizeStats{RowsRead: len(t.Rows)}

	for _, row := range t.Rows {
		date, ok := ParseDayFirst(cell(row, dateCol))
		if !ok {
			stats.DroppedDate++
			continue
		}
		if cell(row, cityCol) != municipality {
			stats.DroppedFilter++
			continue
		}
		count, ok := parseCount(cell(row, countCol))
		if !ok {
			stats.DroppedValue++
			continue
		}
		ds.Records = append(ds.Records, CaseRecord{
			SymptomDate:  date,
			Municipality: municipality,
			CaseCount:    count,
		})
	}
	stats.Kept = len(ds.Records)
	return ds, stats, nil
}

// columnIndex resolves the positions of the named columns. Header cells are
// compared after trimming surrounding whitespace.
func columnIndex(source string, header []string, names ...string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	out := make([]int, len(names))
	var missing []string
	for i, name := range names {
		idx, ok := pos[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out[i] = idx
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Source: source, Missing: missing}
	}
	return out, nil
}

// cell returns row[i], or "" for short rows.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseReading coerces a viral-load cell. A single comma with no dot is the
// decimal separator unless exactly three digits follow it: "1,500" could be a
// thousands separator, so it is treated as missing. NaN and infinities count
// as missing.
func parseReading(s string) Reading {
	s = strings.TrimSpace(s)
	if s == "" {
		return Reading{}
	}
	if i := strings.IndexByte(s, ','); i >= 0 && !strings.Contains(s, ".") {
		frac := s[i+1:]
		if strings.Contains(frac, ",") || (len(frac) == 3 && isDigits(frac)) {
			return Reading{}
		}
		s = s[:i] + "." + frac
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Reading{}
	}
	return Some(v)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// parseCount parses a case count, accepting integral floats such as "12.0".
// Counts must lie in [0, math.MaxInt32].
func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > math.MaxInt32 {
			return 0, false
		}
		return n, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != math.Trunc(v) || v < 0 || v > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}
