// Package export serializes windowed viral-load data to the downloadable CSV.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
	"github.com/couchcryptid/wastewater-dashboard/internal/observability"
	"golang.org/x/sync/singleflight"
)

const (
	// FileName is the name offered to the browser for the download.
	FileName = "dados_carga_viral.csv"
	// ContentType is the media type of the export.
	ContentType = "text/csv; charset=utf-8"
)

// Encoder converts viral-load datasets to CSV, memoizing by content so an
// unchanged window is never serialized twice. Safe for concurrent use.
type Encoder struct {
	cache       *lruCache
	group       singleflight.Group
	conversions atomic.Int64
	metrics     *observability.Metrics
}

// NewEncoder creates an encoder that keeps up to maxEntries distinct exports.
func NewEncoder(maxEntries int, metrics *observability.Metrics) *Encoder {
	return &Encoder{
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Encode returns the CSV for ds. Identical content returns the cached bytes;
// concurrent calls for the same content share one conversion. Callers must not
// modify the returned slice.
func (e *Encoder) Encode(ds domain.ViralLoadDataset) ([]byte, error) {
	key := domain.Fingerprint(ds)
	if b, ok := e.cache.get(key); ok {
		e.metrics.ExportCache.WithLabelValues("hit").Inc()
		return b, nil
	}
	e.metrics.ExportCache.WithLabelValues("miss").Inc()

	v, err, _ := e.group.Do(key, func() (any, error) {
		if b, ok := e.cache.get(key); ok {
			return b, nil
		}
		b, err := Encode(ds)
		if err != nil {
			return nil, err
		}
		e.conversions.Add(1)
		e.metrics.ExportConversions.Inc()
		e.cache.put(key, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Conversions reports how many exports were serialized from scratch.
func (e *Encoder) Conversions() int64 {
	return e.conversions.Load()
}

// Encode serializes ds without caching. The first column is the record's row
// index in the source sheet under an empty header; the remaining columns follow
// the sheet, with the collection date as YYYY-MM-DD and the viral load as the
// coerced number (empty when missing).
func Encode(ds domain.ViralLoadDataset) ([]byte, error) {
	dateCol, valueCol := -1, -1
	for i, c := range ds.Columns {
		switch strings.TrimSpace(c) {
		case domain.ColCollectionDate:
			if dateCol < 0 {
				dateCol = i
			}
		case domain.ColViralLoadN1:
			if valueCol < 0 {
				valueCol = i
			}
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, 0, len(ds.Columns)+1)
	header = append(header, "")
	header = append(header, ds.Columns...)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(header))
	for _, r := range ds.Records {
		row[0] = strconv.Itoa(r.Index)
		for i := range ds.Columns {
			switch i {
			case dateCol:
				row[i+1] = r.CollectionDate.Format(domain.DateLayout)
			case valueCol:
				row[i+1] = r.ViralLoadN1.String()
			default:
				row[i+1] = cellAt(r.Cells, i)
			}
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", r.Index, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func cellAt(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return cells[i]
}
