package balances

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/balanza-fin/balanza/internal/refdata"
)

// ExplorerBuilder produces the balance-explorer reports: detail rows grouped
// under a header per account, with a total row per account and currency.
// It never appends the group/debtor-creditor/consolidated totals ladder and
// skips balance validation; the explorer is a drill-down view, not a
// statement.
type ExplorerBuilder struct {
	query     *Query
	chart     *refdata.Chart
	provider  PostingEntriesProvider
	valuator  *Valuator
	validator *Validator
}

// NewExplorerBuilder wires the builder for one computation.
func NewExplorerBuilder(query *Query, chart *refdata.Chart, provider PostingEntriesProvider, valuator *Valuator, validator *Validator) *ExplorerBuilder {
	return &ExplorerBuilder{query: query, chart: chart, provider: provider, valuator: valuator, validator: validator}
}

// Build fetches the detail rows and lays them out per account.
func (b *ExplorerBuilder) Build(ctx context.Context) (*Result, error) {
	q := b.query
	if q.ReportType == ReportSaldosPorAuxiliar && !q.WithSubledgerAccount {
		// The per-subledger explorer always carries the subledger detail.
		copied := *q
		copied.WithSubledgerAccount = true
		q = &copied
	}
	period := b.valuator.cfg.AdjustPeriod(q.AccountsChartUID, q.InitialPeriod)

	postings, err := b.provider.PostingEntries(ctx, q, period)
	if err != nil {
		return nil, fmt.Errorf("balances: fetch posting entries: %w", err)
	}
	if len(postings) == 0 {
		return &Result{Query: b.query, Entries: nil, BuiltAt: time.Now()}, nil
	}
	if err := b.valuator.Valuate(ctx, q, period, postings); err != nil {
		return nil, err
	}

	helper := NewHelper(q, b.chart)
	helper.RoundEntries(postings)
	postings = helper.MergeSectorization(postings)
	sortForLayout(postings)
	if q.WithAverageBalance {
		helper.DeriveAverageBalances(postings, period, false)
	}

	entries := b.layout(postings)
	if err := b.validator.EnsureExplorerIsValid(q, entries); err != nil {
		return nil, err
	}
	return &Result{Query: b.query, Entries: entries, BuiltAt: time.Now()}, nil
}

// sortForLayout orders the detail account-major so every account's rows are
// contiguous regardless of currency. The statement reports sort currency
// first; the explorer groups by account instead.
func sortForLayout(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.LedgerNumber != b.LedgerNumber {
			return a.LedgerNumber < b.LedgerNumber
		}
		if a.AccountNumber != b.AccountNumber {
			return a.AccountNumber < b.AccountNumber
		}
		if a.CurrencyCode != b.CurrencyCode {
			return a.CurrencyCode < b.CurrencyCode
		}
		if a.SectorCode != b.SectorCode {
			return a.SectorCode < b.SectorCode
		}
		return a.SubledgerAccountNumber < b.SubledgerAccountNumber
	})
}

// layout walks the sorted detail once, emitting a header when the account
// changes and a per-currency total when the (account, currency) pair closes.
func (b *ExplorerBuilder) layout(postings []*Entry) []*Entry {
	out := make([]*Entry, 0, len(postings)*2)
	totals := newBucket[accountTotalKey]()

	var lastAccount string
	for _, e := range postings {
		if e.AccountNumber != lastAccount {
			out = append(out, totals.entries()...)
			totals = newBucket[accountTotalKey]()
			out = append(out, b.headerFor(e))
			lastAccount = e.AccountNumber
		}
		out = append(out, e)
		key := accountTotalKey{AccountNumber: e.AccountNumber, CurrencyCode: e.CurrencyCode}
		totals.generateOrIncrease(key, e, func(total *Entry) {
			total.ItemType = ItemTotalCurrency
			total.AccountName = fmt.Sprintf("TOTAL %s %s", e.AccountNumber, e.CurrencyCode)
			total.SectorCode = refdata.SectorNone
			total.SubledgerAccountID = 0
			total.SubledgerAccountNumber = ""
		})
	}
	return append(out, totals.entries()...)
}

func (b *ExplorerBuilder) headerFor(e *Entry) *Entry {
	header := &Entry{
		ItemType:      ItemHeader,
		LedgerID:      e.LedgerID,
		LedgerNumber:  e.LedgerNumber,
		AccountNumber: e.AccountNumber,
		AccountName:   e.AccountName,
		AccountLevel:  e.AccountLevel,
	}
	if account, ok := b.chart.Account(e.AccountNumber); ok {
		header.AccountName = account.Name
		header.AccountLevel = account.Level
		header.DebtorCreditor = account.DebtorCreditor
	}
	return header
}
