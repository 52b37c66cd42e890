package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
	"github.com/couchcryptid/wastewater-dashboard/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Source fetches one raw sheet.
type Source interface {
	Fetch(ctx context.Context) (domain.Table, error)
}

// Exporter serializes the windowed viral-load data for download.
type Exporter interface {
	Encode(ds domain.ViralLoadDataset) ([]byte, error)
}

// Publisher forwards normalized viral-load records downstream.
type Publisher interface {
	PublishViralLoad(ctx context.Context, records []domain.ViralLoadRecord) error
}

// Dashboard is everything one page render needs.
type Dashboard struct {
	Window     domain.DateWindow     `json:"window"`
	Metrics    domain.Metrics        `json:"metrics"`
	Chart      domain.ChartSpec      `json:"chart"`
	ViralStats domain.NormalizeStats `json:"viral_load_stats"`
	CaseStats  domain.NormalizeStats `json:"case_stats"`
	Export     []byte                `json:"-"`
}

// Options configures a Pipeline. Publisher may be nil; when set, Run must be
// started for records to be published.
type Options struct {
	ViralLoad    Source
	Cases        Source
	Site         string
	Municipality string
	Exporter     Exporter
	Publisher    Publisher
	// PublishTimeout bounds one publish; DefaultPublishTimeout when zero.
	PublishTimeout time.Duration
	Clock          clockwork.Clock
	DefaultStart   time.Time
}

// Pipeline runs fetch, normalize, filter and the derived views for a window.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	viral        Source
	cases        Source
	site         string
	municipality string
	exporter     Exporter
	publisher    *asyncPublisher
	clock        clockwork.Clock
	defaultStart time.Time
	logger       *slog.Logger
	metrics      *observability.Metrics
	ready        atomic.Bool
}

// New creates a Pipeline from opts.
func New(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	start := opts.DefaultStart
	if start.IsZero() {
		start = domain.DefaultWindowStart
	}
	p := &Pipeline{
		viral:        opts.ViralLoad,
		cases:        opts.Cases,
		site:         opts.Site,
		municipality: opts.Municipality,
		exporter:     opts.Exporter,
		clock:        clock,
		defaultStart: start,
		logger:       logger,
		metrics:      metrics,
	}
	if opts.Publisher != nil {
		p.publisher = newAsyncPublisher(opts.Publisher, opts.PublishTimeout, logger, metrics)
	}
	return p
}

// DefaultWindow is the window used when the caller supplies no dates.
func (p *Pipeline) DefaultWindow() domain.DateWindow {
	return domain.DefaultWindow(p.clock, p.defaultStart)
}

// Run publishes built datasets in the background until ctx is cancelled.
// It returns immediately when no publisher is configured.
func (p *Pipeline) Run(ctx context.Context) {
	if p.publisher == nil {
		return
	}
	p.logger.Info("record publisher started")
	p.publisher.run(ctx)
	p.logger.Info("record publisher stopping", "reason", ctx.Err())
}

// CheckReadiness returns nil once a dashboard has been built successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no dashboard has been built yet")
	}
	return nil
}

// Build fetches both sheets and derives the dashboard for window. Fetch and
// schema failures are returned as *domain.FetchError and *domain.SchemaError.
func (p *Pipeline) Build(ctx context.Context, window domain.DateWindow) (*Dashboard, error) {
	start := p.clock.Now()

	d, err := p.build(ctx, window)
	p.metrics.Builds.WithLabelValues(buildOutcome(err)).Inc()
	if err != nil {
		p.logger.Error("dashboard build failed", "window", window.String(), "error", err)
		return nil, err
	}

	p.metrics.BuildDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)
	return d, nil
}

func (p *Pipeline) build(ctx context.Context, window domain.DateWindow) (*Dashboard, error) {
	viralTable, err := p.viral.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	casesTable, err := p.cases.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	history, viralStats, err := domain.NormalizeViralLoad(viralTable, p.site)
	if err != nil {
		return nil, err
	}
	p.recordStats(domain.SourceViralLoad, viralStats)

	allCases, caseStats, err := domain.NormalizeCases(casesTable, p.municipality)
	if err != nil {
		return nil, err
	}
	p.recordStats(domain.SourceCases, caseStats)

	viral := domain.FilterViralLoad(history, window)
	cases := domain.FilterCases(allCases, window)

	export, err := p.exporter.Encode(viral)
	if err != nil {
		return nil, err
	}

	metrics := domain.ComputeMetrics(history, viral, cases)
	if metrics.HistoryStatus == domain.HistoryInsufficient {
		p.logger.Warn("not enough viral load history for pair averages",
			"site", p.site, "records", len(history.Records))
	}

	p.logger.Info("dashboard built",
		"window", window.String(),
		"viral_load_records", len(viral.Records),
		"case_records", len(cases.Records),
		"history_status", string(metrics.HistoryStatus),
	)

	if p.publisher != nil {
		p.publisher.enqueue(history)
	}

	return &Dashboard{
		Window:     window,
		Metrics:    metrics,
		Chart:      domain.BuildChart(viral, cases),
		ViralStats: viralStats,
		CaseStats:  caseStats,
		Export:     export,
	}, nil
}

func (p *Pipeline) recordStats(source string, s domain.NormalizeStats) {
	rows := p.metrics.NormalizedRows
	rows.WithLabelValues(source, "kept").Add(float64(s.Kept))
	rows.WithLabelValues(source, "dropped_date").Add(float64(s.DroppedDate))
	rows.WithLabelValues(source, "dropped_filter").Add(float64(s.DroppedFilter))
	rows.WithLabelValues(source, "dropped_value").Add(float64(s.DroppedValue))
	rows.WithLabelValues(source, "missing_reading").Add(float64(s.MissingReadings))

	p.logger.Debug("sheet normalized",
		"source", source,
		"rows_read", s.RowsRead,
		"kept", s.Kept,
		"dropped_date", s.DroppedDate,
		"dropped_filter", s.DroppedFilter,
		"dropped_value", s.DroppedValue,
		"missing_readings", s.MissingReadings,
	)
}

func buildOutcome(err error) string {
	var fetchErr *domain.FetchError
	var schemaErr *domain.SchemaError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &fetchErr):
		return "fetch_error"
	case errors.As(err, &schemaErr):
		return "schema_error"
	default:
		return "error"
	}
}
