package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/balanza-fin/balanza/cmd/balanza/cli"
	"github.com/balanza-fin/balanza/internal/app"
	"github.com/balanza-fin/balanza/internal/balances"
	"github.com/balanza-fin/balanza/internal/platform/db"
	"github.com/balanza-fin/balanza/internal/refdata"
	"github.com/balanza-fin/balanza/jobs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "balanza:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		return fmt.Errorf("usage: balanza <report|jobs> [flags]")
	}

	switch os.Args[1] {
	case "report":
		return runReport(ctx, os.Args[2:])
	case "jobs":
		return runJobs(ctx, os.Args[2:])
	default:
		return fmt.Errorf("unknown command %q", os.Args[1])
	}
}

func runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	var opts cli.ReportOptions
	cli.RegisterReportFlags(fs, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg)

	if opts.FixturePath != "" {
		return runFixtureReport(ctx, logger, cfg, opts)
	}

	chartUID, err := uuid.Parse(opts.ChartUID)
	if err != nil {
		return fmt.Errorf("parse -chart: %w", err)
	}
	q, err := opts.BuildQuery(chartUID)
	if err != nil {
		return err
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := refdata.NewRepository(pool)
	valuator := balances.NewValuator(refdata.NewRateRepository(pool), balances.DefaultValuationConfig())
	validator := balances.NewValidator(decimal.NewFromInt(int64(cfg.ValidationTolerance)))
	useCases := balances.NewUseCases(logger, repo, balances.NewPGProvider(pool),
		valuator, validator, balances.NewMemoryCache(cfg.CacheTTL), nil)

	return cli.RunReport(ctx, os.Stdout, useCases, q)
}

func runFixtureReport(ctx context.Context, logger *slog.Logger, cfg *app.Config, opts cli.ReportOptions) error {
	fixture, err := cli.LoadFixture(opts.FixturePath)
	if err != nil {
		return err
	}
	chart, err := fixture.BuildChart()
	if err != nil {
		return err
	}
	rates, err := fixture.BuildRates()
	if err != nil {
		return err
	}

	chartUID := chart.UID
	if opts.ChartUID != "" {
		if chartUID, err = uuid.Parse(opts.ChartUID); err != nil {
			return fmt.Errorf("parse -chart: %w", err)
		}
	}
	q, err := opts.BuildQuery(chartUID)
	if err != nil {
		return err
	}

	valuator := balances.NewValuator(rates, balances.DefaultValuationConfig())
	validator := balances.NewValidator(decimal.NewFromInt(int64(cfg.ValidationTolerance)))
	useCases := balances.NewUseCases(logger, fixtureCharts{chart},
		cli.NewFixtureProvider(fixture, chart), valuator, validator,
		balances.NewMemoryCache(cfg.CacheTTL), nil)

	return cli.RunReport(ctx, os.Stdout, useCases, q)
}

// fixtureCharts serves the one fixture chart regardless of UID.
type fixtureCharts struct {
	chart *refdata.Chart
}

func (f fixtureCharts) LoadChart(context.Context, uuid.UUID) (*refdata.Chart, error) {
	return f.chart, nil
}

func runJobs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	trigger := fs.String("trigger", "", "enqueue a job by name ("+jobs.TaskBalancesIntegrity+", "+jobs.TaskBalancesWarmup+")")
	stats := fs.Bool("stats", false, "print queue statistics")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		_ = jobsCLI.Close()
	}()

	if *trigger != "" {
		info, err := jobsCLI.Trigger(ctx, *trigger)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", *trigger, info.ID, info.Queue)
		return nil
	}
	if *stats {
		queueStats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			queueStats.Queue, queueStats.Pending, queueStats.Active, queueStats.Scheduled, queueStats.Retry)
		return nil
	}
	return fmt.Errorf("jobs: nothing to do, pass -trigger or -stats")
}
