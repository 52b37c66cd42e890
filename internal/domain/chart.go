package domain

import "time"

const (
	// ChartTitle is the static title of the combined chart.
	ChartTitle = "Casos diários de COVID e Carga Viral de SARS-CoV-2 no Esgoto na ETE Serraria, Porto Alegre, 2023"

	// axisPadding is added above the series maximum on both y-axes.
	axisPadding = 100
)

// SeriesKind selects how a series is drawn.
type SeriesKind string

const (
	SeriesLine SeriesKind = "line"
	SeriesBar  SeriesKind = "bar"
)

// AxisRef binds a series to one of the two y-axes.
type AxisRef string

const (
	AxisPrimary   AxisRef = "primary"
	AxisSecondary AxisRef = "secondary"
)

// Axis is an axis title and, for y-axes, its explicit display range.
type Axis struct {
	Title string     `json:"title"`
	Range [2]float64 `json:"range,omitzero"`
}

// Point is one x/y pair. Y is null for missing viral loads.
type Point struct {
	X time.Time `json:"x"`
	Y Reading   `json:"y"`
}

// Series is a named set of points drawn against one y-axis.
type Series struct {
	Name   string     `json:"name"`
	Kind   SeriesKind `json:"kind"`
	Axis   AxisRef    `json:"axis"`
	Points []Point    `json:"points"`
}

// ChartSpec describes the combined chart: viral load bars on the primary axis
// and daily cases as a line on the secondary axis, sharing the date x-axis.
type ChartSpec struct {
	Title      string   `json:"title"`
	XAxis      Axis     `json:"x_axis"`
	PrimaryY   Axis     `json:"primary_y"`
	SecondaryY Axis     `json:"secondary_y"`
	Series     []Series `json:"series"`
}

// BuildChart assembles the chart for windowed datasets. An empty window uses 0
// as the series maximum, so both axes span [0, 100].
func BuildChart(viral ViralLoadDataset, cases CaseDataset) ChartSpec {
	caseSeries := Series{Name: "Casos diários", Kind: SeriesLine, Axis: AxisSecondary, Points: make([]Point, 0, len(cases.Records))}
	for _, r := range cases.Records {
		caseSeries.Points = append(caseSeries.Points, Point{X: r.SymptomDate, Y: Some(float64(r.CaseCount))})
	}

	viralSeries := Series{Name: "Carga Viral no esgoto", Kind: SeriesBar, Axis: AxisPrimary, Points: make([]Point, 0, len(viral.Records))}
	for _, r := range viral.Records {
		viralSeries.Points = append(viralSeries.Points, Point{X: r.CollectionDate, Y: r.ViralLoadN1})
	}

	return ChartSpec{
		Title:      ChartTitle,
		XAxis:      Axis{Title: "Data"},
		PrimaryY:   Axis{Title: "Carga viral", Range: paddedRange(MaxViralLoad(viral.Records))},
		SecondaryY: Axis{Title: "Casos diários", Range: paddedRange(MaxCaseCount(cases.Records))},
		Series:     []Series{caseSeries, viralSeries},
	}
}

func paddedRange(peak Reading) [2]float64 {
	top := 0.0
	if peak.Valid {
		top = peak.Value
	}
	return [2]float64{0, top + axisPadding}
}
