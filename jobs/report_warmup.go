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
)

// ReportWarmupJob pre-builds the configured reports for the month to date so
// the first interactive query of the day is served from the result cache.
type ReportWarmupJob struct {
	UseCases *balances.UseCases
	ChartUID uuid.UUID
	Reports  []balances.ReportType
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(useCases *balances.UseCases, chartUID uuid.UUID, reports []balances.ReportType, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	if len(reports) == 0 {
		reports = []balances.ReportType{balances.ReportBalanza, balances.ReportAnalitico}
	}
	return &ReportWarmupJob{
		UseCases: useCases,
		ChartUID: chartUID,
		Reports:  reports,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes balances:warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.UseCases == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload WarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	reports := j.Reports
	if len(payload.Reports) > 0 {
		reports = make([]balances.ReportType, 0, len(payload.Reports))
		for _, raw := range payload.Reports {
			report := balances.ReportType(raw)
			if !report.IsValid() {
				return asynq.SkipRetry
			}
			reports = append(reports, report)
		}
	}

	tracker := j.metrics().Track(TaskBalancesWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	logger := j.logger()
	logger.Info("starting report warmup", slog.Int("reports", len(reports)))

	warmed := 0
	for _, report := range reports {
		warmCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		err := j.warmReport(warmCtx, report, from, to)
		cancel()
		if err != nil {
			resultErr = err
			logger.Error("warm report", slog.String("report", string(report)), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed report warmup", slog.Int("warmed", warmed), slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *ReportWarmupJob) warmReport(ctx context.Context, report balances.ReportType, from, to time.Time) error {
	q := &balances.Query{
		ReportType:       report,
		AccountsChartUID: j.ChartUID,
		InitialPeriod: balances.Period{
			FromDate: from,
			ToDate:   to,
		},
		UseCache: true,
	}
	if report == balances.ReportComparativa {
		previous := from.AddDate(0, -1, 0)
		q.InitialPeriod = balances.Period{FromDate: previous, ToDate: from.AddDate(0, 0, -1)}
		q.FinalPeriod = &balances.Period{FromDate: from, ToDate: to}
	}
	_, err := j.UseCases.BuildReport(ctx, q)
	return err
}

func (j *ReportWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
