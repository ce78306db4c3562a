package cli

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balanza-fin/balanza/internal/balances"
	"github.com/balanza-fin/balanza/internal/refdata"
)

func loadTestFixture(t *testing.T) (*Fixture, *refdata.Chart) {
	t.Helper()
	fixture, err := LoadFixture("testdata/balanza.json")
	require.NoError(t, err)
	chart, err := fixture.BuildChart()
	require.NoError(t, err)
	return fixture, chart
}

type singleChart struct {
	chart *refdata.Chart
}

func (s singleChart) LoadChart(context.Context, uuid.UUID) (*refdata.Chart, error) {
	return s.chart, nil
}

func TestLoadFixtureMissingFile(t *testing.T) {
	_, err := LoadFixture("testdata/no-such-fixture.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read fixture")
}

func TestFixtureBuildsChartAndRates(t *testing.T) {
	fixture, chart := loadTestFixture(t)

	uid, err := fixture.ChartUID()
	require.NoError(t, err)
	assert.Equal(t, uid, chart.UID)

	caja, ok := chart.Account("1101")
	require.True(t, ok)
	assert.Equal(t, "Caja", caja.Name)
	assert.Equal(t, refdata.Deudora, caja.DebtorCreditor)

	rates, err := fixture.BuildRates()
	require.NoError(t, err)
	date := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	rate, err := rates.Rate(context.Background(), uuid.Nil, "USD", "MXN", date)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(17)), "rate = %s", rate)
}

func TestFixtureProviderHonoursFilters(t *testing.T) {
	fixture, chart := loadTestFixture(t)
	provider := NewFixtureProvider(fixture, chart)
	uid, err := fixture.ChartUID()
	require.NoError(t, err)

	q := &balances.Query{
		ReportType:       balances.ReportBalanza,
		AccountsChartUID: uid,
		Ledgers:          []string{"1"},
		Currencies:       []string{"MXN"},
	}
	entries, err := provider.PostingEntries(context.Background(), q, balances.Period{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "1", e.LedgerNumber)
		assert.Equal(t, "MXN", e.CurrencyCode)
	}

	// Chart enrichment fills name and nature from the account number.
	assert.Equal(t, "Caja", entries[0].AccountName)
	assert.Equal(t, refdata.Deudora, entries[0].DebtorCreditor)
}

func TestFixtureProviderBalancesMode(t *testing.T) {
	fixture, chart := loadTestFixture(t)
	provider := NewFixtureProvider(fixture, chart)
	uid, err := fixture.ChartUID()
	require.NoError(t, err)

	q := &balances.Query{
		ReportType:       balances.ReportBalanza,
		AccountsChartUID: uid,
		Ledgers:          []string{"1"},
		Currencies:       []string{"MXN"},
		BalancesType:     balances.ModeWithCurrentBalance,
	}
	entries, err := provider.PostingEntries(context.Background(), q, balances.Period{})
	require.NoError(t, err)
	require.Len(t, entries, 2, "the zero-balance Bancos row is dropped")
	for _, e := range entries {
		assert.False(t, e.CurrentBalance.IsZero())
	}
}

func TestFixtureProviderAccountFilter(t *testing.T) {
	fixture, chart := loadTestFixture(t)
	provider := NewFixtureProvider(fixture, chart)
	uid, err := fixture.ChartUID()
	require.NoError(t, err)

	q := &balances.Query{
		ReportType:       balances.ReportBalanza,
		AccountsChartUID: uid,
		Accounts:         []string{"11"},
	}
	entries, err := provider.PostingEntries(context.Background(), q, balances.Period{})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, "11", e.AccountNumber[:2])
	}
}

func TestBuildQueryFromFlags(t *testing.T) {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	var opts ReportOptions
	RegisterReportFlags(fs, &opts)
	require.NoError(t, fs.Parse([]string{
		"-type", "Balanza",
		"-from", "2024-01-01",
		"-to", "2024-01-31",
		"-ledgers", "1, 2",
		"-currencies", "MXN",
		"-level", "2",
		"-valuate-to", "MXN",
		"-average",
	}))

	uid := uuid.New()
	q, err := opts.BuildQuery(uid)
	require.NoError(t, err)
	assert.Equal(t, balances.ReportBalanza, q.ReportType)
	assert.Equal(t, uid, q.AccountsChartUID)
	assert.Equal(t, []string{"1", "2"}, q.Ledgers)
	assert.Equal(t, []string{"MXN"}, q.Currencies)
	assert.Equal(t, 2, q.Level)
	assert.True(t, q.WithAverageBalance)
	assert.Equal(t, "MXN", q.InitialPeriod.ValuateToCurrency)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), q.InitialPeriod.FromDate)
	assert.Equal(t, time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC), q.InitialPeriod.ToDate)
}

func TestBuildQueryRejectsBadDates(t *testing.T) {
	opts := ReportOptions{Type: "Balanza", From: "01/01/2024", To: "2024-01-31"}
	_, err := opts.BuildQuery(uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse -from")
}

func TestRunReportRendersBalanza(t *testing.T) {
	fixture, chart := loadTestFixture(t)
	rates, err := fixture.BuildRates()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	valuator := balances.NewValuator(rates, balances.DefaultValuationConfig())
	validator := balances.NewValidator(decimal.Decimal{})
	useCases := balances.NewUseCases(logger, singleChart{chart},
		NewFixtureProvider(fixture, chart), valuator, validator, nil, nil)

	q := &balances.Query{
		ReportType:       balances.ReportBalanza,
		AccountsChartUID: chart.UID,
		Ledgers:          []string{"1"},
		Currencies:       []string{"MXN"},
		InitialPeriod: balances.Period{
			FromDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			ToDate:   time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	var out bytes.Buffer
	require.NoError(t, RunReport(context.Background(), &out, useCases, q))

	rendered := out.String()
	assert.Contains(t, rendered, "CUENTA")
	assert.Contains(t, rendered, "Caja")
	assert.Contains(t, rendered, "Proveedores")
	assert.Contains(t, rendered, "1,000.00")
	assert.Contains(t, rendered, "TOTAL DEUDORAS")
	assert.Contains(t, rendered, "TOTAL MONEDA MXN")
	assert.Contains(t, rendered, "TOTAL CONSOLIDADO GENERAL")
}

func TestRenderAnalyticColumns(t *testing.T) {
	result := &balances.Result{
		AnalyticEntries: []*balances.AnalyticEntry{{
			ItemType:        balances.ItemEntry,
			AccountNumber:   "1101",
			AccountName:     "Caja",
			DomesticBalance: decimal.NewFromInt(1000),
			ForeignBalance:  decimal.NewFromInt(200),
			TotalBalance:    decimal.NewFromInt(1200),
		}},
	}

	var out bytes.Buffer
	Render(&out, result)

	rendered := out.String()
	assert.Contains(t, rendered, "MONEDA NACIONAL")
	assert.Contains(t, rendered, "MONEDA EXTRANJERA")
	assert.Contains(t, rendered, "1,200.00")
}
