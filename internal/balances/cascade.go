package balances

import (
	"context"
	"fmt"
	"time"

	"github.com/balanza-fin/balanza/internal/refdata"
)

// CascadeBuilder computes the multi-ledger cascading balance: every summary
// level is additionally keyed by ledger, a "TOTAL CONSOLIDADO {ledger}" row
// closes each ledger, and average balances are always derived.
type CascadeBuilder struct {
	query     *Query
	chart     *refdata.Chart
	provider  PostingEntriesProvider
	valuator  *Valuator
	validator *Validator
}

// NewCascadeBuilder wires the builder for one computation. The query's
// cascade flag is forced on: this report shape has no consolidated variant.
func NewCascadeBuilder(query *Query, chart *refdata.Chart, provider PostingEntriesProvider, valuator *Valuator, validator *Validator) *CascadeBuilder {
	cascaded := *query
	cascaded.ShowCascadeBalances = true
	return &CascadeBuilder{query: &cascaded, chart: chart, provider: provider, valuator: valuator, validator: validator}
}

// Build runs the cascade pipeline.
func (b *CascadeBuilder) Build(ctx context.Context) (*Result, error) {
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

	groupTotals := helper.GenerateTotalGroupEntries(entries)
	entries = helper.CombineGroupTotalsAndEntries(entries, groupTotals.entries())

	dcTotals := helper.GenerateTotalDebtorCreditorEntries(groupTotals.entries())
	entries = helper.CombineDebtorCreditorAndEntries(entries, dcTotals.entries())

	currencyTotals := helper.GenerateTotalCurrencyEntries(dcTotals.entries())
	entries = helper.CombineCurrencyTotalsAndEntries(entries, currencyTotals.entries())

	ledgerTotals := helper.GenerateTotalConsolidatedByLedgerEntries(currencyTotals.entries())
	entries = helper.CombineConsolidatedByLedgerAndEntries(entries, ledgerTotals.entries())

	grand := helper.GenerateTotalConsolidatedEntry(currencyTotals.entries())
	entries = helper.AppendConsolidatedEntry(entries, grand)

	entries = helper.RestrictLevels(entries)
	helper.DeriveAverageBalances(entries, period, true)

	if err := b.validator.EnsureIsValid(q, entries, postings); err != nil {
		return nil, err
	}
	return &Result{Query: q, Entries: entries, BuiltAt: time.Now()}, nil
}
