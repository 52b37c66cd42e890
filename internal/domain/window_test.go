package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viralSeries(dates ...time.Time) ViralLoadDataset {
	ds := ViralLoadDataset{Columns: []string{ColCollectionDate, ColCollectionSite, ColViralLoadN1}}
	for i, d := range dates {
		ds.Records = append(ds.Records, ViralLoadRecord{
			Index:          i,
			CollectionDate: d,
			CollectionSite: testSite,
			ViralLoadN1:    Some(float64(100 * (i + 1))),
		})
	}
	return ds
}

func TestDateWindow_ExclusiveBounds(t *testing.T) {
	w := NewDateWindow(date(2021, time.January, 10), date(2021, time.January, 20))

	assert.False(t, w.Contains(date(2021, time.January, 10)), "start is exclusive")
	assert.True(t, w.Contains(date(2021, time.January, 11)))
	assert.True(t, w.Contains(date(2021, time.January, 19)))
	assert.False(t, w.Contains(date(2021, time.January, 20)), "end is exclusive")
	assert.False(t, w.Contains(date(2020, time.December, 31)))
}

func TestDateWindow_IgnoresTimeOfDay(t *testing.T) {
	w := NewDateWindow(
		time.Date(2021, time.January, 10, 23, 59, 0, 0, time.UTC),
		time.Date(2021, time.January, 12, 1, 0, 0, 0, time.UTC),
	)

	assert.Equal(t, date(2021, time.January, 10), w.Start)
	assert.True(t, w.Contains(time.Date(2021, time.January, 11, 18, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2021, time.January, 12, 0, 30, 0, 0, time.UTC)))
}

func TestFilterViralLoad(t *testing.T) {
	ds := viralSeries(
		date(2021, time.March, 1),
		date(2021, time.March, 8),
		date(2021, time.March, 15),
		date(2021, time.March, 22),
	)
	w := NewDateWindow(date(2021, time.March, 1), date(2021, time.March, 22))

	got := FilterViralLoad(ds, w)

	require.Len(t, got.Records, 2)
	assert.Equal(t, 1, got.Records[0].Index)
	assert.Equal(t, 2, got.Records[1].Index)
	assert.Equal(t, ds.Columns, got.Columns)
	for _, r := range got.Records {
		assert.True(t, r.CollectionDate.After(w.Start) && r.CollectionDate.Before(w.End))
	}
}

func TestFilterViralLoad_PreservesSourceOrder(t *testing.T) {
	ds := viralSeries(
		date(2021, time.March, 15),
		date(2021, time.March, 8),
		date(2021, time.March, 10),
	)
	got := FilterViralLoad(ds, NewDateWindow(date(2021, time.March, 1), date(2021, time.March, 31)))

	require.Len(t, got.Records, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{got.Records[0].Index, got.Records[1].Index, got.Records[2].Index})
}

func TestFilter_WindowOutsideData(t *testing.T) {
	ds := viralSeries(date(2021, time.March, 1), date(2021, time.March, 8))
	cases := CaseDataset{Records: []CaseRecord{{SymptomDate: date(2021, time.March, 2), CaseCount: 4}}}
	w := NewDateWindow(date(2030, time.January, 1), date(2030, time.December, 31))

	assert.Empty(t, FilterViralLoad(ds, w).Records)
	assert.Empty(t, FilterCases(cases, w).Records)
}

func TestFilter_InvertedWindow(t *testing.T) {
	ds := viralSeries(date(2021, time.March, 5))
	w := NewDateWindow(date(2021, time.March, 31), date(2021, time.March, 1))

	assert.Empty(t, FilterViralLoad(ds, w).Records)
}

func TestFilterCases(t *testing.T) {
	cases := CaseDataset{Records: []CaseRecord{
		{SymptomDate: date(2021, time.March, 1), CaseCount: 1},
		{SymptomDate: date(2021, time.March, 2), CaseCount: 2},
		{SymptomDate: date(2021, time.March, 3), CaseCount: 3},
	}}

	got := FilterCases(cases, NewDateWindow(date(2021, time.March, 1), date(2021, time.March, 3)))

	require.Len(t, got.Records, 1)
	assert.Equal(t, 2, got.Records[0].CaseCount)
}

func TestParseDateWindow(t *testing.T) {
	w, err := ParseDateWindow("2020-05-01", "2023-01-31")
	require.NoError(t, err)
	assert.Equal(t, date(2020, time.May, 1), w.Start)
	assert.Equal(t, date(2023, time.January, 31), w.End)
	assert.Equal(t, "2020-05-01..2023-01-31", w.String())

	_, err = ParseDateWindow("01/05/2020", "2023-01-31")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start")

	_, err = ParseDateWindow("2020-05-01", "amanhã")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end")
}
