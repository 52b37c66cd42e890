// Package chartpng draws a domain.ChartSpec as a PNG image.
package chartpng

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when no series has a point to draw.
var ErrNoData = errors.New("chart has no data points")

const (
	width  = 1200
	height = 520
)

var (
	caseColor  = drawing.ColorFromHex("d62728")
	viralColor = drawing.ColorFromHex("1f77b4")
)

// Render writes the chart as a PNG. Missing readings are skipped. Bar series are
// drawn as markers without a connecting line.
func Render(w io.Writer, spec domain.ChartSpec) error {
	var series []chart.Series
	var minX, maxX time.Time

	for _, s := range spec.Series {
		ts := chart.TimeSeries{Name: s.Name, Style: seriesStyle(s)}
		if s.Axis == domain.AxisSecondary {
			ts.YAxis = chart.YAxisSecondary
		}
		for _, p := range s.Points {
			if !p.Y.Valid {
				continue
			}
			ts.XValues = append(ts.XValues, p.X)
			ts.YValues = append(ts.YValues, p.Y.Value)
			if minX.IsZero() || p.X.Before(minX) {
				minX = p.X
			}
			if p.X.After(maxX) {
				maxX = p.X
			}
		}
		if len(ts.XValues) > 0 {
			series = append(series, ts)
		}
	}
	if len(series) == 0 {
		return ErrNoData
	}

	// A single distinct date gives the x-axis no extent.
	if !maxX.After(minX) {
		minX = minX.AddDate(0, 0, -1)
		maxX = maxX.AddDate(0, 0, 1)
	}

	graph := chart.Chart{
		Title:  spec.Title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 60, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           spec.XAxis.Title,
			ValueFormatter: chart.TimeDateValueFormatter,
			Range: &chart.ContinuousRange{
				Min: chart.TimeToFloat64(minX),
				Max: chart.TimeToFloat64(maxX),
			},
		},
		YAxis: chart.YAxis{
			Name:  spec.PrimaryY.Title,
			Range: &chart.ContinuousRange{Min: spec.PrimaryY.Range[0], Max: spec.PrimaryY.Range[1]},
		},
		YAxisSecondary: chart.YAxis{
			Name:  spec.SecondaryY.Title,
			Range: &chart.ContinuousRange{Min: spec.SecondaryY.Range[0], Max: spec.SecondaryY.Range[1]},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func seriesStyle(s domain.Series) chart.Style {
	if s.Kind == domain.SeriesBar {
		return chart.Style{
			StrokeWidth: chart.Disabled,
			DotWidth:    5,
			DotColor:    viralColor,
		}
	}
	return chart.Style{
		StrokeWidth: 2,
		StrokeColor: caseColor,
	}
}
