package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// Column names of the published sheets.
const (
	ColCollectionDate = "Data de coleta"
	ColCollectionSite = "Local de coleta"
	ColViralLoadN1    = "carga_viral_n1"

	ColSymptomDate  = "Data sintomas"
	ColMunicipality = "Município"
	ColCaseCount    = "Casos"
)

// Table is a fetched sheet before any interpretation: a header row and the
// data rows as raw strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// Reading is a float that may be absent, e.g. a viral load that failed coercion
// or a maximum over an empty set.
type Reading struct {
	Value float64
	Valid bool
}

// Some returns a valid Reading holding v.
func Some(v float64) Reading { return Reading{Value: v, Valid: true} }

// MarshalJSON encodes a missing reading as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON accepts a number or null.
func (r *Reading) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Reading{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Some(v)
	return nil
}

// String renders the value without trailing zeros, or "" when missing.
func (r Reading) String() string {
	if !r.Valid {
		return ""
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

// ViralLoadRecord is one wastewater sample from the target station.
type ViralLoadRecord struct {
	// Index is the zero-based data row of the record in the source sheet.
	Index          int       `json:"index"`
	CollectionDate time.Time `json:"collection_date"`
	CollectionSite string    `json:"collection_site"`
	ViralLoadN1    Reading   `json:"viral_load_n1"`

	// Cells is the untouched source row, aligned with the dataset columns.
	Cells []string `json:"-"`
}

// CaseRecord is the number of COVID-19 cases with symptom onset on a given day.
type CaseRecord struct {
	SymptomDate  time.Time `json:"symptom_date"`
	Municipality string    `json:"municipality"`
	CaseCount    int       `json:"case_count"`
}

// ViralLoadDataset is a normalized viral-load sheet in source order.
type ViralLoadDataset struct {
	Columns []string
	Records []ViralLoadRecord
}

// CaseDataset is a normalized case sheet in source order.
type CaseDataset struct {
	Columns []string
	Records []CaseRecord
}
