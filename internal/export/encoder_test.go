package export

import (
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
	"github.com/couchcryptid/wastewater-dashboard/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testColumns = []string{"Data de coleta", "Local de coleta", "carga_viral_n1", "Observação"}

func testDataset() domain.ViralLoadDataset {
	return domain.ViralLoadDataset{
		Columns: testColumns,
		Records: []domain.ViralLoadRecord{
			{
				Index:          3,
				CollectionDate: time.Date(2023, time.March, 5, 0, 0, 0, 0, time.UTC),
				CollectionSite: "ETE Serraria",
				ViralLoadN1:    domain.Some(1500.5),
				Cells:          []string{"05/03/2023", "ETE Serraria", "1500,5", "coleta, composta"},
			},
			{
				Index:          7,
				CollectionDate: time.Date(2023, time.March, 12, 0, 0, 0, 0, time.UTC),
				CollectionSite: "ETE Serraria",
				ViralLoadN1:    domain.Reading{},
				Cells:          []string{"12/03/2023", "ETE Serraria", "ND"},
			},
		},
	}
}

func TestEncode(t *testing.T) {
	b, err := Encode(testDataset())
	require.NoError(t, err)

	want := ",Data de coleta,Local de coleta,carga_viral_n1,Observação\n" +
		"3,2023-03-05,ETE Serraria,1500.5,\"coleta, composta\"\n" +
		"7,2023-03-12,ETE Serraria,,\n"
	assert.Equal(t, want, string(b))
}

func TestEncode_EmptyDatasetIsHeaderOnly(t *testing.T) {
	b, err := Encode(domain.ViralLoadDataset{Columns: testColumns})
	require.NoError(t, err)
	assert.Equal(t, ",Data de coleta,Local de coleta,carga_viral_n1,Observação\n", string(b))
}

func TestEncoder_MemoizesIdenticalInput(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	enc := NewEncoder(4, metrics)

	first, err := enc.Encode(testDataset())
	require.NoError(t, err)
	second, err := enc.Encode(testDataset())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), enc.Conversions(), "second call must hit the cache")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ExportCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ExportCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ExportConversions))
}

func TestEncoder_DifferentInputRecomputes(t *testing.T) {
	enc := NewEncoder(4, observability.NewMetricsForTesting())

	_, err := enc.Encode(testDataset())
	require.NoError(t, err)

	changed := testDataset()
	changed.Records = changed.Records[:1]
	b, err := enc.Encode(changed)
	require.NoError(t, err)

	assert.Equal(t, int64(2), enc.Conversions())
	assert.NotContains(t, string(b), "2023-03-12")
}

func TestEncoder_EmptyDataset(t *testing.T) {
	enc := NewEncoder(4, observability.NewMetricsForTesting())

	b, err := enc.Encode(domain.ViralLoadDataset{Columns: testColumns})
	require.NoError(t, err)
	assert.Equal(t, ",Data de coleta,Local de coleta,carga_viral_n1,Observação\n", string(b))
}

func TestEncoder_ConcurrentCallsConvertOnce(t *testing.T) {
	enc := NewEncoder(4, observability.NewMetricsForTesting())
	ds := testDataset()

	var wg sync.WaitGroup
	results := make([][]byte, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := enc.Encode(ds)
			assert.NoError(t, err)
			results[i] = b
		}(i)
	}
	wg.Wait()

	for _, b := range results {
		assert.Equal(t, results[0], b)
	}
	assert.Equal(t, int64(1), enc.Conversions())
}
