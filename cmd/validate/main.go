// Command validate checks local exports of the two published sheets before
// they are pointed at the dashboard. It verifies the required columns, reports
// how many rows survive normalization, checks that dates are in chronological
// order, and confirms there is enough history for the pair-average metric.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -viral-csv data/carga_viral.csv \
//	  -cases-csv data/casos.csv \
//	  -site "ETE Serraria" \
//	  -municipality "PORTO ALEGRE"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/wastewater-dashboard/internal/adapter/sheets"
	"github.com/couchcryptid/wastewater-dashboard/internal/config"
	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	viralCSV     string
	casesCSV     string
	site         string
	municipality string
}

func main() {
	var opts options
	flag.StringVar(&opts.viralCSV, "viral-csv", "", "path to the viral load sheet exported as CSV")
	flag.StringVar(&opts.casesCSV, "cases-csv", "", "path to the daily cases sheet exported as CSV")
	flag.StringVar(&opts.site, "site", config.DefaultCollectionSite, "collection site to keep")
	flag.StringVar(&opts.municipality, "municipality", config.DefaultMunicipality, "municipality to keep")
	flag.Parse()

	if opts.viralCSV == "" || opts.casesCSV == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(context.Background(), opts, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, opts options, out io.Writer) int {
	fmt.Fprintln(out, "=== Wastewater Sheet Validation ===")
	fmt.Fprintln(out)

	viralTable, err := sheets.FileSource{Source: domain.SourceViralLoad, Path: opts.viralCSV}.Fetch(ctx)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	casesTable, err := sheets.FileSource{Source: domain.SourceCases, Path: opts.casesCSV}.Fetch(ctx)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	schema := &phase{name: "Phase 1: Schema (required columns)"}
	viral, viralStats, err := domain.NormalizeViralLoad(viralTable, opts.site)
	if err != nil {
		schema.errorf("%v", err)
	}
	cases, caseStats, err := domain.NormalizeCases(casesTable, opts.municipality)
	if err != nil {
		schema.errorf("%v", err)
	}

	// Later phases are meaningless without the columns.
	phases := []*phase{schema}
	if schema.passed() {
		phases = append(phases,
			validateNormalization(opts, viralStats, caseStats),
			validateChronology(viral, cases),
			validateHistory(viral),
		)
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	if schema.passed() {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Viral load: %d rows read, %d kept, %d bad dates, %d other sites, %d missing readings\n",
			viralStats.RowsRead, viralStats.Kept, viralStats.DroppedDate, viralStats.DroppedFilter, viralStats.MissingReadings)
		fmt.Fprintf(out, "Cases:      %d rows read, %d kept, %d bad dates, %d other municipalities, %d bad counts\n",
			caseStats.RowsRead, caseStats.Kept, caseStats.DroppedDate, caseStats.DroppedFilter, caseStats.DroppedValue)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phase 2: Normalization ──
// Both sheets must keep at least one row for the configured site and city.

func validateNormalization(opts options, viral, cases domain.NormalizeStats) *phase {
	p := &phase{name: "Phase 2: Normalization (rows kept)"}
	if viral.Kept == 0 {
		p.errorf("viral load: no rows for site %q (%d rows read)", opts.site, viral.RowsRead)
	}
	if cases.Kept == 0 {
		p.errorf("cases: no rows for municipality %q (%d rows read)", opts.municipality, cases.RowsRead)
	}
	return p
}

// ── Phase 3: Chronology ──
// The sheets are appended to over time, so a date that goes backwards
// usually means a day and month were swapped when the row was typed.

func validateChronology(viral domain.ViralLoadDataset, cases domain.CaseDataset) *phase {
	p := &phase{name: "Phase 3: Chronology (dates non-decreasing)"}
	for i := 1; i < len(viral.Records); i++ {
		prev, cur := viral.Records[i-1], viral.Records[i]
		if cur.CollectionDate.Before(prev.CollectionDate) {
			p.errorf("viral load row %d: %s comes after %s",
				cur.Index+2, cur.CollectionDate.Format(domain.DateLayout), prev.CollectionDate.Format(domain.DateLayout))
		}
	}
	for i := 1; i < len(cases.Records); i++ {
		prev, cur := cases.Records[i-1].SymptomDate, cases.Records[i].SymptomDate
		if cur.Before(prev) {
			p.errorf("cases record %d: %s comes after %s",
				i+1, cur.Format(domain.DateLayout), prev.Format(domain.DateLayout))
		}
	}
	return p
}

// ── Phase 4: History ──

func validateHistory(viral domain.ViralLoadDataset) *phase {
	p := &phase{name: "Phase 4: History (pair averages)"}
	if _, _, err := domain.PairAverages(viral.Records); err != nil {
		if errors.Is(err, domain.ErrInsufficientHistory) {
			p.errorf("need at least 4 non-missing viral load readings: %v", err)
		} else {
			p.errorf("pair averages: %v", err)
		}
	}
	return p
}
