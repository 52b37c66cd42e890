package sheets

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
)

const utf8BOM = "\ufeff"

// ParseCSV reads a sheet export: the first record is the header. Rows may have
// fewer or more fields than the header; normalization tolerates both.
func ParseCSV(r io.Reader) (domain.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return domain.Table{}, errors.New("empty sheet")
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("parse csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	table := domain.Table{Header: header}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Table{}, fmt.Errorf("parse csv: %w", err)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// FileSource reads a sheet export from disk. It lets the dashboard and the
// validator run against local copies of the published tabs.
type FileSource struct {
	Source string
	Path   string
}

// Fetch reads and parses the file, failing with a *domain.FetchError.
func (f FileSource) Fetch(_ context.Context) (domain.Table, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return domain.Table{}, &domain.FetchError{Source: f.Source, Err: err}
	}
	defer file.Close()

	table, err := ParseCSV(file)
	if err != nil {
		return domain.Table{}, &domain.FetchError{Source: f.Source, Err: fmt.Errorf("%s: %w", f.Path, err)}
	}
	return table, nil
}

// StaticSource serves a fixed table, or a fixed error.
type StaticSource struct {
	Table domain.Table
	Err   error
}

func (s StaticSource) Fetch(_ context.Context) (domain.Table, error) {
	if s.Err != nil {
		return domain.Table{}, s.Err
	}
	return s.Table, nil
}
