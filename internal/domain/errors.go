package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInsufficientHistory is returned when fewer than four non-missing viral-load
// readings exist, so the two pair averages cannot both be computed.
var ErrInsufficientHistory = errors.New("insufficient viral load history")

// FetchError reports that a source sheet could not be retrieved or parsed.
// Without both sheets the dashboard cannot be rendered.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SchemaError reports required columns missing from a fetched sheet.
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s sheet is missing columns: %s", e.Source, strings.Join(e.Missing, ", "))
}
