// Package domain models the wastewater surveillance data published by the
// Rio Grande do Sul state health surveillance center (CEVS) for the
// ETE Serraria sewage treatment station in Porto Alegre.
//
// # Data Sources
//
// Two tabs of a published Google Sheet are exported as CSV:
//
//	viral load  (gid=0)           "Data de coleta", "Local de coleta", "carga_viral_n1", ...
//	daily cases (gid=1012737506)  "Data sintomas", "Município", "Casos", ...
//
// Only the columns above are interpreted. Every other column is carried through
// untouched so the CSV export mirrors the published sheet.
//
// # Sheet Conventions
//
// Dates are written day-first, as is usual in Brazil:
//
//	"05/03/2020"  →  5 March 2020 (never 3 May)
//	"5/3/2020"    →  same date, single-digit fields are allowed
//	"05/03/2020 00:00:00" and ISO "2020-03-05" also appear in older rows.
//
// Rows with an unparseable date are dropped. Dates are normalized to midnight UTC
// so comparisons happen at calendar-day granularity.
//
// Viral load ("carga_viral_n1") is genome copies per liter. Blank cells, "ND"
// and other non-numeric markers become a missing [Reading]; the row is kept so
// counts stay intact, but missing values never take part in averages or maxima.
// A decimal comma ("1234,5") is accepted when the cell has no period.
//
// Case counts ("Casos") are integers. A row whose count does not parse is dropped.
//
// # Windows
//
// A [DateWindow] has exclusive bounds on both ends: a record dated exactly on the
// start or end date is outside the window. Inverted windows are not an error,
// they simply select nothing.
//
// # Metrics
//
// The headline metric compares the mean of the two most recent viral-load
// readings with the mean of the two before them. It is computed over the whole
// normalized history, not the selected window, and needs at least four
// non-missing readings (see [ErrInsufficientHistory]). An increase is
// unfavorable, so the delta is displayed with inverse colors.
package domain
