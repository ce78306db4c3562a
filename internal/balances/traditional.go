package balances

import (
	"context"
	"fmt"
	"time"

	"github.com/balanza-fin/balanza/internal/refdata"
)

// TraditionalBuilder computes the traditional trial balance (Balanza and
// SaldosPorCuenta) and the raw balance set (GeneracionDeSaldos) other
// subsystems read back.
type TraditionalBuilder struct {
	query     *Query
	chart     *refdata.Chart
	provider  PostingEntriesProvider
	valuator  *Valuator
	validator *Validator
}

// NewTraditionalBuilder wires the builder for one computation.
func NewTraditionalBuilder(query *Query, chart *refdata.Chart, provider PostingEntriesProvider, valuator *Valuator, validator *Validator) *TraditionalBuilder {
	return &TraditionalBuilder{query: query, chart: chart, provider: provider, valuator: valuator, validator: validator}
}

// Build runs the fixed pipeline: fetch, valuate, round, aggregate parents,
// groups, debtor/creditor, currency, consolidated, restrict, validate.
func (b *TraditionalBuilder) Build(ctx context.Context) (*Result, error) {
	q := b.query
	period := b.valuator.cfg.AdjustPeriod(q.AccountsChartUID, q.InitialPeriod)

	postings, err := b.provider.PostingEntries(ctx, q, period)
	if err != nil {
		return nil, fmt.Errorf("balances: fetch posting entries: %w", err)
	}
	if len(postings) == 0 {
		return &Result{Query: q, Entries: []*Entry{}, BuiltAt: time.Now()}, nil
	}

	if err := b.valuator.Valuate(ctx, q, period, postings); err != nil {
		return nil, err
	}
	postings = b.valuator.ConsolidateToTargetCurrency(q, period, postings)

	helper := NewHelper(q, b.chart)
	helper.RoundEntries(postings)
	postings = helper.MergeSectorization(postings)

	summaries := helper.CalculatedParentAccounts(postings)
	entries := helper.CombineSummaryAndPostingEntries(summaries, postings)

	if q.ReportType == ReportGeneracionDeSaldos {
		entries = helper.RestrictLevels(entries)
		helper.DeriveAverageBalances(entries, period, false)
		return &Result{Query: q, Entries: entries, BuiltAt: time.Now()}, nil
	}

	groupTotals := helper.GenerateTotalGroupEntries(entries)
	entries = helper.CombineGroupTotalsAndEntries(entries, groupTotals.entries())

	dcTotals := helper.GenerateTotalDebtorCreditorEntries(groupTotals.entries())
	entries = helper.CombineDebtorCreditorAndEntries(entries, dcTotals.entries())

	currencyTotals := helper.GenerateTotalCurrencyEntries(dcTotals.entries())
	entries = helper.CombineCurrencyTotalsAndEntries(entries, currencyTotals.entries())

	if q.ShowCascadeBalances {
		ledgerTotals := helper.GenerateTotalConsolidatedByLedgerEntries(currencyTotals.entries())
		entries = helper.CombineConsolidatedByLedgerAndEntries(entries, ledgerTotals.entries())
	}

	grand := helper.GenerateTotalConsolidatedEntry(currencyTotals.entries())
	entries = helper.AppendConsolidatedEntry(entries, grand)

	entries = helper.RestrictLevels(entries)
	entries = helper.ReaggregateByAccount(entries)
	helper.DeriveAverageBalances(entries, period, false)

	if err := b.validator.EnsureIsValid(q, entries, postings); err != nil {
		return nil, err
	}
	return &Result{Query: q, Entries: entries, BuiltAt: time.Now()}, nil
}
