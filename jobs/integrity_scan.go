package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/balanza-fin/balanza/internal/balances"
	jobmetrics "github.com/balanza-fin/balanza/internal/jobs"
	"github.com/balanza-fin/balanza/internal/refdata"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LedgerLister resolves the ledgers of a chart for the scan.
type LedgerLister interface {
	Ledgers(ctx context.Context, chartUID uuid.UUID) ([]refdata.Ledger, error)
}

// IntegrityScanJob rebuilds the previous day's trial balance per ledger and
// reports ledgers whose totals fail the balance-identity checks.
type IntegrityScanJob struct {
	UseCases *balances.UseCases
	Refdata  LedgerLister
	ChartUID uuid.UUID
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewIntegrityScanJob wires dependencies for the scan handler.
func NewIntegrityScanJob(useCases *balances.UseCases, lister LedgerLister, chartUID uuid.UUID, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{
		UseCases: useCases,
		Refdata:  lister,
		ChartUID: chartUID,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes balances:integrity tasks.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.UseCases == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	date, err := j.scanDate(payload)
	if err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskBalancesIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("date", date.Format("2006-01-02")))
	logger.Info("starting balance integrity scan")

	ledgers, err := j.Refdata.Ledgers(ctx, j.ChartUID)
	if err != nil {
		resultErr = err
		logger.Error("load ledgers", slog.Any("error", err))
		return resultErr
	}

	violations := 0
	for _, ledger := range ledgers {
		scanCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		err := j.scanLedger(scanCtx, ledger, date)
		cancel()
		if err == nil {
			continue
		}
		var identity *balances.IdentityError
		if errors.As(err, &identity) {
			violations++
			j.metrics().AddIntegrityViolations(ledger.Number, 1)
			logger.Error("ledger balances inconsistent",
				slog.String("ledger", ledger.Number), slog.Any("error", err))
			continue
		}
		resultErr = err
		logger.Error("scan ledger", slog.String("ledger", ledger.Number), slog.Any("error", err))
		return resultErr
	}

	if violations > 0 {
		resultErr = errors.New("integrity scan: ledgers with inconsistent balances")
	}
	logger.Info("completed balance integrity scan",
		slog.Int("ledgers", len(ledgers)), slog.Int("violations", violations))
	return resultErr
}

// scanLedger builds a validated trial balance for one ledger and day. The
// build fails with an IdentityError when any aggregation identity breaks.
func (j *IntegrityScanJob) scanLedger(ctx context.Context, ledger refdata.Ledger, date time.Time) error {
	q := &balances.Query{
		ReportType:       balances.ReportBalanza,
		AccountsChartUID: j.ChartUID,
		Ledgers:          []string{ledger.Number},
		InitialPeriod: balances.Period{
			FromDate: date,
			ToDate:   date,
		},
		BalancesType: balances.ModeWithCurrentBalanceOrMovements,
	}
	_, err := j.UseCases.BuildReport(ctx, q)
	return err
}

func (j *IntegrityScanJob) scanDate(payload IntegrityScanPayload) (time.Time, error) {
	if payload.Date == "" {
		now := j.now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1), nil
	}
	return time.Parse("2006-01-02", payload.Date)
}

func (j *IntegrityScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *IntegrityScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
