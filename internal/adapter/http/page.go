package http

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"

	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
	"github.com/couchcryptid/wastewater-dashboard/internal/export"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// Metric values are shown as truncated integers with comma grouping, e.g. 12,345.
var numbers = message.NewPrinter(language.English)

const (
	pageTitle     = "Painel de Monitoramento Ambiental do SARS-CoV-2 no Rio Grande do Sul, Brasil"
	noData        = "sem dados"
	notEnoughData = "dados insuficientes"
)

type metricView struct {
	Label string
	Value string
	Delta string
	// Trend is "up", "down" or "flat"; empty when there is no delta.
	Trend string
	// Tone colors the delta: a rising viral load is bad news.
	Tone string
}

type pageView struct {
	Title     string
	Start     string
	End       string
	Error     string
	Metrics   []metricView
	HasChart  bool
	ChartURL  template.URL
	ExportURL template.URL
	FileName  string
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	view := pageView{
		Title:    pageTitle,
		Start:    r.URL.Query().Get("start"),
		End:      r.URL.Query().Get("end"),
		FileName: export.FileName,
	}

	d, status, err := s.buildFor(r)
	if err != nil {
		view.Error = err.Error()
		s.renderPage(w, r, status, view)
		return
	}

	view.Start = d.Window.Start.Format(domain.DateLayout)
	view.End = d.Window.End.Format(domain.DateLayout)
	query := url.Values{"start": {view.Start}, "end": {view.End}}.Encode()
	view.ChartURL = template.URL("/chart.png?" + query)                //nolint:gosec // built from validated dates
	view.ExportURL = template.URL("/" + export.FileName + "?" + query) //nolint:gosec // built from validated dates
	view.Metrics = metricViews(d.Metrics)
	view.HasChart = d.Metrics.WindowMaxViralLoad.Valid || d.Metrics.WindowMaxCaseCount.Valid

	s.renderPage(w, r, http.StatusOK, view)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, view pageView) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		s.logger.ErrorContext(r.Context(), "page render failed", "error", err)
		http.Error(w, "page render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes()) //nolint:errcheck // client disconnects are not actionable
}

func metricViews(m domain.Metrics) []metricView {
	average := metricView{Label: "Média da Carga Viral", Value: notEnoughData}
	if m.HistoryStatus == domain.HistoryOK {
		latest := int64(m.LatestPairAverage.Value)
		delta := latest - int64(m.PreviousPairAverage.Value)
		average.Value = formatInt(latest)
		average.Delta = formatInt(delta)
		average.Trend, average.Tone = trend(delta, m.DeltaInverse)
	}

	return []metricView{
		average,
		{Label: "Máximo carga viral", Value: formatReading(m.WindowMaxViralLoad)},
		{Label: "Maior número de casos", Value: formatReading(m.WindowMaxCaseCount)},
	}
}

func trend(delta int64, inverse bool) (direction, tone string) {
	if delta == 0 {
		return "flat", "neutral"
	}
	rising := delta > 0
	direction = "down"
	if rising {
		direction = "up"
	}
	if rising != inverse {
		return direction, "good"
	}
	return direction, "bad"
}

func formatReading(r domain.Reading) string {
	if !r.Valid {
		return noData
	}
	return formatInt(int64(r.Value))
}

func formatInt(v int64) string {
	return numbers.Sprintf("%d", v)
}
