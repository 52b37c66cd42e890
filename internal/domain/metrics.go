package domain

import (
	"cmp"
	"slices"

	"github.com/montanaflynn/stats"
)

// HistoryStatus tells whether the pair averages could be computed.
type HistoryStatus string

const (
	HistoryOK           HistoryStatus = "ok"
	HistoryInsufficient HistoryStatus = "insufficient_data"
)

// Metrics are the headline numbers shown above the chart.
type Metrics struct {
	LatestPairAverage   Reading       `json:"latest_pair_average"`
	PreviousPairAverage Reading       `json:"previous_pair_average"`
	Delta               Reading       `json:"delta"`
	DeltaInverse        bool          `json:"delta_inverse"`
	HistoryStatus       HistoryStatus `json:"history_status"`

	WindowMaxViralLoad Reading `json:"window_max_viral_load"`
	WindowMaxCaseCount Reading `json:"window_max_case_count"`
}

// PairAverages returns the mean of the two most recent non-missing viral loads
// and the mean of the two readings before them. Records are ordered by
// collection date; ties keep source order.
func PairAverages(records []ViralLoadRecord) (latest, previous float64, err error) {
	values := chronologicalReadings(records)
	n := len(values)
	if n < 4 {
		return 0, 0, ErrInsufficientHistory
	}
	if latest, err = stats.Mean(values[n-2:]); err != nil {
		return 0, 0, err
	}
	if previous, err = stats.Mean(values[n-4 : n-2]); err != nil {
		return 0, 0, err
	}
	return latest, previous, nil
}

// ComputeMetrics derives the dashboard metrics. history is the full normalized
// viral-load dataset; viral and cases are the windowed datasets.
func ComputeMetrics(history, viral ViralLoadDataset, cases CaseDataset) Metrics {
	m := Metrics{
		DeltaInverse:       true,
		HistoryStatus:      HistoryOK,
		WindowMaxViralLoad: MaxViralLoad(viral.Records),
		WindowMaxCaseCount: MaxCaseCount(cases.Records),
	}

	latest, previous, err := PairAverages(history.Records)
	if err != nil {
		m.HistoryStatus = HistoryInsufficient
		return m
	}
	m.LatestPairAverage = Some(latest)
	m.PreviousPairAverage = Some(previous)
	m.Delta = Some(latest - previous)
	return m
}

// MaxViralLoad returns the largest non-missing viral load, or an invalid
// Reading when there is none.
func MaxViralLoad(records []ViralLoadRecord) Reading {
	values := make(stats.Float64Data, 0, len(records))
	for _, r := range records {
		if r.ViralLoadN1.Valid {
			values = append(values, r.ViralLoadN1.Value)
		}
	}
	return maxOf(values)
}

// MaxCaseCount returns the largest case count, or an invalid Reading for an
// empty set.
func MaxCaseCount(records []CaseRecord) Reading {
	values := make(stats.Float64Data, 0, len(records))
	for _, r := range records {
		values = append(values, float64(r.CaseCount))
	}
	return maxOf(values)
}

func maxOf(values stats.Float64Data) Reading {
	v, err := stats.Max(values)
	if err != nil {
		return Reading{}
	}
	return Some(v)
}

func chronologicalReadings(records []ViralLoadRecord) stats.Float64Data {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b ViralLoadRecord) int {
		return cmp.Compare(a.CollectionDate.Unix(), b.CollectionDate.Unix())
	})

	values := make(stats.Float64Data, 0, len(sorted))
	for _, r := range sorted {
		if r.ViralLoadN1.Valid {
			values = append(values, r.ViralLoadN1.Value)
		}
	}
	return values
}
