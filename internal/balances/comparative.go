package balances

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/balanza-fin/balanza/internal/refdata"
)

// ComparativeEntry is one row of the comparative/valorized balance: the
// matched balances of both periods plus their variation, absolute and
// adjusted by each period's exchange rate.
type ComparativeEntry struct {
	ItemType ItemType

	LedgerID     int64
	LedgerNumber string
	CurrencyCode string

	AccountNumber          string
	AccountName            string
	AccountLevel           int
	SectorCode             string
	SubledgerAccountID     int64
	SubledgerAccountNumber string

	DebtorCreditor refdata.DebtorCreditor

	FirstTotalBalance  decimal.Decimal
	FirstExchangeRate  decimal.Decimal
	FirstValorized     decimal.Decimal
	SecondTotalBalance decimal.Decimal
	SecondExchangeRate decimal.Decimal
	SecondValorized    decimal.Decimal

	Variation     decimal.Decimal
	VariationByER decimal.Decimal
}

// ComparativeBuilder computes the comparative balance: the balance pipeline
// runs once per period and matching rows merge into a single comparative
// row.
type ComparativeBuilder struct {
	query     *Query
	chart     *refdata.Chart
	provider  PostingEntriesProvider
	valuator  *Valuator
	validator *Validator
}

// NewComparativeBuilder wires the builder for one computation.
func NewComparativeBuilder(query *Query, chart *refdata.Chart, provider PostingEntriesProvider, valuator *Valuator, validator *Validator) *ComparativeBuilder {
	return &ComparativeBuilder{query: query, chart: chart, provider: provider, valuator: valuator, validator: validator}
}

// Build computes both periods concurrently and merges them row by row.
func (b *ComparativeBuilder) Build(ctx context.Context) (*Result, error) {
	q := b.query
	if q.FinalPeriod == nil {
		return nil, fmt.Errorf("balances: comparative report requires a final period")
	}

	var first, second periodResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := b.buildPeriod(gctx, q.InitialPeriod)
		first = res
		return err
	})
	g.Go(func() error {
		res, err := b.buildPeriod(gctx, *q.FinalPeriod)
		second = res
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := b.merge(first, second)
	return &Result{Query: q, ComparativeEntries: rows, BuiltAt: time.Now()}, nil
}

// periodResult carries one period's combined entries plus the balance each
// entry held before valuation.
type periodResult struct {
	entries   []*Entry
	originals map[*Entry]decimal.Decimal
}

// buildPeriod runs the balance pipeline for a single period: fetch,
// valuate, round, parent aggregation, ordered combine.
func (b *ComparativeBuilder) buildPeriod(ctx context.Context, period Period) (periodResult, error) {
	q := b.query
	period = b.valuator.cfg.AdjustPeriod(q.AccountsChartUID, period)

	postings, err := b.provider.PostingEntries(ctx, q, period)
	if err != nil {
		return periodResult{}, fmt.Errorf("balances: fetch posting entries: %w", err)
	}

	helper := NewHelper(q, b.chart)
	helper.RoundEntries(postings)
	postings = helper.MergeSectorization(postings)

	summaries := helper.CalculatedParentAccounts(postings)
	entries := helper.CombineSummaryAndPostingEntries(summaries, postings)
	entries = helper.RestrictLevels(entries)

	originals := make(map[*Entry]decimal.Decimal, len(entries))
	for _, e := range entries {
		originals[e] = e.CurrentBalance
	}
	if err := b.valuator.Valuate(ctx, q, period, entries); err != nil {
		return periodResult{}, err
	}
	helper.RoundEntries(entries)
	return periodResult{entries: entries, originals: originals}, nil
}

func comparativeKeyFor(e *Entry) comparativeKey {
	return comparativeKey{
		LedgerID:           e.LedgerID,
		CurrencyCode:       e.CurrencyCode,
		AccountNumber:      e.AccountNumber,
		SectorCode:         e.SectorCode,
		SubledgerAccountID: e.SubledgerAccountID,
	}
}

// merge pairs rows of both periods by (ledger, currency, account, sector,
// subledger). Rows present in only one period keep a zero balance on the
// other side.
func (b *ComparativeBuilder) merge(first, second periodResult) []*ComparativeEntry {
	rows := make(map[comparativeKey]*ComparativeEntry)
	var order []comparativeKey

	rowFor := func(e *Entry) *ComparativeEntry {
		key := comparativeKeyFor(e)
		if row, ok := rows[key]; ok {
			return row
		}
		row := &ComparativeEntry{
			ItemType:               e.ItemType,
			LedgerID:               e.LedgerID,
			LedgerNumber:           e.LedgerNumber,
			CurrencyCode:           e.CurrencyCode,
			AccountNumber:          e.AccountNumber,
			AccountName:            e.AccountName,
			AccountLevel:           e.AccountLevel,
			SectorCode:             e.SectorCode,
			SubledgerAccountID:     e.SubledgerAccountID,
			SubledgerAccountNumber: e.SubledgerAccountNumber,
			DebtorCreditor:         e.DebtorCreditor,
		}
		rows[key] = row
		order = append(order, key)
		return row
	}

	for _, e := range first.entries {
		row := rowFor(e)
		row.FirstTotalBalance = first.originals[e]
		row.FirstExchangeRate = e.ExchangeRate
		row.FirstValorized = e.CurrentBalance
	}
	for _, e := range second.entries {
		row := rowFor(e)
		row.SecondTotalBalance = second.originals[e]
		row.SecondExchangeRate = e.ExchangeRate
		row.SecondValorized = e.CurrentBalance
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.LedgerID != b.LedgerID {
			return a.LedgerID < b.LedgerID
		}
		if a.CurrencyCode != b.CurrencyCode {
			return a.CurrencyCode < b.CurrencyCode
		}
		if a.AccountNumber != b.AccountNumber {
			return a.AccountNumber < b.AccountNumber
		}
		if a.SectorCode != b.SectorCode {
			return a.SectorCode < b.SectorCode
		}
		return a.SubledgerAccountID < b.SubledgerAccountID
	})

	out := make([]*ComparativeEntry, 0, len(order))
	for _, key := range order {
		row := rows[key]
		row.Variation = row.SecondTotalBalance.Sub(row.FirstTotalBalance)
		row.VariationByER = row.SecondValorized.Sub(row.FirstValorized)
		out = append(out, row)
	}
	return out
}
