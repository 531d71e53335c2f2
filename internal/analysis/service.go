// Package analysis runs the read-only pipeline behind every consumer:
// store fetch, resampling, indicators, trend classification and horizon
// projection. Each call fetches its own Series; nothing is cached between
// calls.
package analysis

import (
	"context"
	"errors"
	"log"
	"time"

	"marketlens/internal/forecast"
	"marketlens/internal/indicator"
	"marketlens/internal/marketdata/resample"
	"marketlens/internal/metrics"
	"marketlens/internal/model"
	"marketlens/internal/trend"
)

// Options wires a Service. Store is required. Catalog defaults to Store when
// it implements model.Catalog. Models may be nil, in which case Predict
// always reports NotFound.
type Options struct {
	Store     model.SeriesStore
	Catalog   model.Catalog
	Models    forecast.Source
	Engine    *indicator.Engine
	Trend     *trend.Classifier
	Projector *forecast.Projector
	Metrics   *metrics.Metrics
}

// Service is safe for concurrent use: its collaborators are read-only.
type Service struct {
	store      model.SeriesStore
	catalog    model.Catalog
	models     forecast.Source
	engine     *indicator.Engine
	classifier *trend.Classifier
	projector  *forecast.Projector
	prom       *metrics.Metrics
}

// New creates a Service, filling unset collaborators with defaults.
func New(opts Options) *Service {
	svc := &Service{
		store:      opts.Store,
		catalog:    opts.Catalog,
		models:     opts.Models,
		engine:     opts.Engine,
		classifier: opts.Trend,
		projector:  opts.Projector,
		prom:       opts.Metrics,
	}
	if svc.catalog == nil {
		if c, ok := opts.Store.(model.Catalog); ok {
			svc.catalog = c
		}
	}
	if svc.engine == nil {
		svc.engine = indicator.NewEngine(indicator.DefaultConfig())
	}
	if svc.classifier == nil {
		svc.classifier = trend.NewClassifier()
	}
	if svc.projector == nil {
		svc.projector = forecast.NewProjector()
	}
	return svc
}

// Store returns the underlying series store.
func (svc *Service) Store() model.SeriesStore { return svc.store }

func (svc *Service) observe(op string, start time.Time) {
	if svc.prom != nil {
		svc.prom.ComputeDur.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// fetch loads the full history of symbol. Store failures other than
// NotFound are counted and returned as UpstreamError.
func (svc *Service) fetch(ctx context.Context, symbol string) (model.Series, error) {
	s, err := svc.store.Fetch(ctx, symbol, model.DateRange{})
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) && svc.prom != nil {
			svc.prom.StoreErrors.Inc()
		}
		return model.Series{}, model.Upstream("fetch "+model.NormalizeSymbol(symbol), err)
	}
	return s, nil
}

// Indicators returns one indicator row per resampled period of symbol.
func (svc *Service) Indicators(ctx context.Context, symbol string, tf model.Timeframe) ([]model.IndicatorRow, error) {
	defer svc.observe("indicators", time.Now())

	if _, err := resample.PolicyFor(tf); err != nil {
		return nil, err
	}
	s, err := svc.fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}
	rs, err := resample.Resample(s, tf)
	if err != nil {
		return nil, err
	}
	rows := svc.engine.Compute(rs)
	if svc.prom != nil {
		svc.prom.RowsServed.Add(float64(len(rows)))
	}
	return rows, nil
}

// Trend classifies symbol's full daily history.
func (svc *Service) Trend(ctx context.Context, symbol string) (model.TrendVerdict, error) {
	defer svc.observe("trend", time.Now())

	s, err := svc.fetch(ctx, symbol)
	if err != nil {
		return model.TrendVerdict{}, err
	}
	return svc.classifier.Classify(s)
}

// Predict projects every configured horizon for symbol. The model lookup
// runs first so a symbol without a model is NotFound even when its history
// is short.
func (svc *Service) Predict(ctx context.Context, symbol string) (model.PredictionReport, error) {
	defer svc.observe("predict", time.Now())

	sym := model.NormalizeSymbol(symbol)
	if svc.models == nil {
		return model.PredictionReport{}, model.NotFoundf("model for %s", sym)
	}
	pred, err := svc.models.Load(ctx, sym)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			svc.countPredictorError()
		}
		return model.PredictionReport{}, model.Upstream("load model "+sym, err)
	}

	s, err := svc.fetch(ctx, sym)
	if err != nil {
		return model.PredictionReport{}, err
	}
	report, err := svc.projector.Project(ctx, s, pred)
	if err != nil {
		var ue *model.UpstreamError
		if errors.As(err, &ue) {
			svc.countPredictorError()
		}
		return model.PredictionReport{}, err
	}
	report.Symbol = sym
	return report, nil
}

func (svc *Service) countPredictorError() {
	if svc.prom != nil {
		svc.prom.PredictorErrors.Inc()
	}
}

// Sweep classifies every symbol in symbols, or every stored symbol when
// symbols is empty. Per-symbol failures are recorded in the run, not
// returned.
func (svc *Service) Sweep(ctx context.Context, symbols []string) (model.SweepRun, error) {
	run := model.SweepRun{StartedAt: time.Now().UTC()}

	if len(symbols) == 0 {
		all, err := svc.store.Symbols(ctx)
		if err != nil {
			return run, model.Upstream("list symbols", err)
		}
		symbols = all
	}

	run.Results = make([]model.SweepResult, 0, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		res := model.SweepResult{Symbol: model.NormalizeSymbol(sym)}
		v, err := svc.Trend(ctx, sym)
		if err != nil {
			log.Printf("[analysis] sweep %s: %v", res.Symbol, err)
			res.Error = err.Error()
			run.Failures++
		} else {
			res.Verdict = v
		}
		run.Results = append(run.Results, res)
	}
	run.FinishedAt = time.Now().UTC()

	if svc.prom != nil {
		svc.prom.SweepsTotal.Inc()
		svc.prom.SweepFailures.Set(float64(run.Failures))
		svc.prom.SweepDur.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
		svc.prom.LastSweepSuccess.Set(float64(run.FinishedAt.Unix()))
	}
	log.Printf("[analysis] sweep finished: %d symbols, %d failures in %s",
		len(run.Results), run.Failures, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	return run, nil
}
