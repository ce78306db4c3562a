package balances

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/balanza-fin/balanza/internal/observability"
	"github.com/balanza-fin/balanza/internal/refdata"
)

// ChartLoader resolves the in-memory chart of accounts for a query.
type ChartLoader interface {
	LoadChart(ctx context.Context, chartUID uuid.UUID) (*refdata.Chart, error)
}

// UseCases is the entry point of the balance engine. It validates the query,
// consults the result cache, collapses concurrent identical computations and
// dispatches to the builder matching the report type.
type UseCases struct {
	logger    *slog.Logger
	charts    ChartLoader
	provider  PostingEntriesProvider
	valuator  *Valuator
	validator *Validator
	cache     ResultCache
	metrics   *observability.Metrics

	group singleflight.Group
}

// NewUseCases wires the engine. metrics may be nil.
func NewUseCases(logger *slog.Logger, charts ChartLoader, provider PostingEntriesProvider, valuator *Valuator, validator *Validator, cache ResultCache, metrics *observability.Metrics) *UseCases {
	if logger == nil {
		logger = slog.Default()
	}
	return &UseCases{
		logger:    logger,
		charts:    charts,
		provider:  provider,
		valuator:  valuator,
		validator: validator,
		cache:     cache,
		metrics:   metrics,
	}
}

// BuildReport computes the report described by the query, serving it from the
// result cache when the caller allows it. Identical concurrent queries share
// a single computation.
func (u *UseCases) BuildReport(ctx context.Context, q *Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	report := string(q.ReportType)

	key := q.CacheKey()
	if q.UseCache && u.cache != nil {
		if result, ok := u.cache.Get(ctx, key); ok {
			u.metrics.CacheHit(report)
			u.logger.Debug("balances: served from cache", "report", report, "key", key)
			return result, nil
		}
		u.metrics.CacheMiss(report)
	}

	value, err, shared := u.group.Do(key, func() (any, error) {
		start := time.Now()
		result, err := u.build(ctx, q)
		elapsed := time.Since(start)
		if err != nil {
			return nil, err
		}
		u.metrics.ObserveBuild(report, elapsed)
		u.logger.Info("balances: report built",
			"report", report,
			"entries", result.Len(),
			"elapsed", elapsed,
		)
		if q.UseCache && u.cache != nil {
			u.cache.Set(ctx, key, result)
		}
		return result, nil
	})
	if err != nil {
		if isValidationError(err) {
			u.metrics.ValidationFailure(report)
		}
		u.logger.Error("balances: report build failed", "report", report, "shared", shared, "error", err)
		return nil, err
	}
	return value.(*Result), nil
}

// BustCache drops every cached result. Callers invalidate after posting
// batches land.
func (u *UseCases) BustCache(ctx context.Context) {
	if u.cache != nil {
		u.cache.Bust(ctx)
	}
}

func isValidationError(err error) bool {
	var identity *IdentityError
	return errors.As(err, &identity)
}

// build resolves the chart and dispatches to the builder for the report type.
func (u *UseCases) build(ctx context.Context, q *Query) (*Result, error) {
	chart, err := u.charts.LoadChart(ctx, q.AccountsChartUID)
	if err != nil {
		return nil, fmt.Errorf("balances: load chart %s: %w", q.AccountsChartUID, err)
	}

	switch q.ReportType {
	case ReportBalanza, ReportGeneracionDeSaldos:
		return NewTraditionalBuilder(q, chart, u.provider, u.valuator, u.validator).Build(ctx)
	case ReportCascada:
		return NewCascadeBuilder(q, chart, u.provider, u.valuator, u.validator).Build(ctx)
	case ReportColumnasPorMoneda:
		return NewCurrencyColumnsBuilder(q, chart, u.provider, u.valuator).Build(ctx)
	case ReportComparativa:
		return NewComparativeBuilder(q, chart, u.provider, u.valuator, u.validator).Build(ctx)
	case ReportAnalitico:
		return NewAnalyticBuilder(q, chart, u.provider, u.valuator, u.validator, DefaultAnalyticConfig()).Build(ctx)
	case ReportSaldosPorCuenta, ReportSaldosPorAuxiliar:
		return NewExplorerBuilder(q, chart, u.provider, u.valuator, u.validator).Build(ctx)
	default:
		// Validate already rejected unknown types.
		return nil, fmt.Errorf("balances: unknown report type %q", q.ReportType)
	}
}
