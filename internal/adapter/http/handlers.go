package http

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wastewater-dashboard/internal/adapter/chartpng"
	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
	"github.com/couchcryptid/wastewater-dashboard/internal/export"
	"github.com/couchcryptid/wastewater-dashboard/internal/pipeline"
)

type statsResponse struct {
	ViralLoad domain.NormalizeStats `json:"viral_load"`
	Cases     domain.NormalizeStats `json:"cases"`
}

type dashboardResponse struct {
	Window  domain.DateWindow `json:"window"`
	Metrics domain.Metrics    `json:"metrics"`
	Chart   domain.ChartSpec  `json:"chart"`
	Stats   statsResponse     `json:"stats"`
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	d, status, err := s.buildFor(r)
	if err != nil {
		sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, dashboardResponse{
		Window:  d.Window,
		Metrics: d.Metrics,
		Chart:   d.Chart,
		Stats:   statsResponse{ViralLoad: d.ViralStats, Cases: d.CaseStats},
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	d, status, err := s.buildFor(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	var buf bytes.Buffer
	if err := chartpng.Render(&buf, d.Chart); err != nil {
		if errors.Is(err, chartpng.ErrNoData) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.logger.ErrorContext(r.Context(), "chart render failed", "error", err)
		http.Error(w, "chart render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes()) //nolint:errcheck // client disconnects are not actionable
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	d, status, err := s.buildFor(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Export)))
	w.Write(d.Export) //nolint:errcheck // client disconnects are not actionable
}

// buildFor parses the request window and builds the dashboard. On failure it
// returns the HTTP status the error maps to.
func (s *Server) buildFor(r *http.Request) (*pipeline.Dashboard, int, error) {
	window, err := s.parseWindow(r)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	d, err := s.dashboards.Build(r.Context(), window)
	if err != nil {
		return nil, statusFor(err), err
	}
	return d, http.StatusOK, nil
}

// parseWindow reads the start and end query parameters, falling back to the
// default window for whichever is absent.
func (s *Server) parseWindow(r *http.Request) (domain.DateWindow, error) {
	def := s.dashboards.DefaultWindow()
	q := r.URL.Query()

	start := q.Get("start")
	if start == "" {
		start = def.Start.Format(domain.DateLayout)
	}
	end := q.Get("end")
	if end == "" {
		end = def.End.Format(domain.DateLayout)
	}
	return domain.ParseDateWindow(start, end)
}

func statusFor(err error) int {
	var fetchErr *domain.FetchError
	var schemaErr *domain.SchemaError
	if errors.As(err, &fetchErr) || errors.As(err, &schemaErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
