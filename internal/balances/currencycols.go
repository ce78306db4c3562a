package balances

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/balanza-fin/balanza/internal/refdata"
)

// CurrencyColumnsEntry is one row of the currency-columnar balance: a
// single account with one column per hard currency. The column set is fixed
// at configuration time, so the fields are typed instead of a dynamic bag.
type CurrencyColumnsEntry struct {
	ItemType ItemType

	AccountNumber  string
	AccountName    string
	AccountLevel   int
	DebtorCreditor refdata.DebtorCreditor

	DomesticBalance decimal.Decimal
	DollarBalance   decimal.Decimal
	YenBalance      decimal.Decimal
	EuroBalance     decimal.Decimal
	UdisBalance     decimal.Decimal

	ExchangeRate    decimal.Decimal
	ValorizedDollar decimal.Decimal
	ValorizedYen    decimal.Decimal
	ValorizedEuro   decimal.Decimal
	ValorizedUdis   decimal.Decimal
	TotalValorized  decimal.Decimal
}

func (e *CurrencyColumnsEntry) addColumn(currencyCode string, balance, valorized decimal.Decimal) {
	switch currencyCode {
	case refdata.CurrencyDomestic:
		e.DomesticBalance = e.DomesticBalance.Add(balance)
	case refdata.CurrencyDollar:
		e.DollarBalance = e.DollarBalance.Add(balance)
		e.ValorizedDollar = e.ValorizedDollar.Add(valorized)
	case refdata.CurrencyYen:
		e.YenBalance = e.YenBalance.Add(balance)
		e.ValorizedYen = e.ValorizedYen.Add(valorized)
	case refdata.CurrencyEuro:
		e.EuroBalance = e.EuroBalance.Add(balance)
		e.ValorizedEuro = e.ValorizedEuro.Add(valorized)
	case refdata.CurrencyUDI:
		e.UdisBalance = e.UdisBalance.Add(balance)
		e.ValorizedUdis = e.ValorizedUdis.Add(valorized)
	}
	e.TotalValorized = e.TotalValorized.Add(valorized)
}

// CurrencyColumnsBuilder computes the balance laid out with one column per
// hard currency (BalanzaEnColumnasPorMoneda).
type CurrencyColumnsBuilder struct {
	query    *Query
	chart    *refdata.Chart
	provider PostingEntriesProvider
	valuator *Valuator
}

// NewCurrencyColumnsBuilder wires the builder for one computation.
func NewCurrencyColumnsBuilder(query *Query, chart *refdata.Chart, provider PostingEntriesProvider, valuator *Valuator) *CurrencyColumnsBuilder {
	return &CurrencyColumnsBuilder{query: query, chart: chart, provider: provider, valuator: valuator}
}

// Build fetches and valuates the posting entries, rolls parents up, and
// pivots each account's currencies into columns.
func (b *CurrencyColumnsBuilder) Build(ctx context.Context) (*Result, error) {
	q := b.query
	period := b.valuator.cfg.AdjustPeriod(q.AccountsChartUID, q.InitialPeriod)

	postings, err := b.provider.PostingEntries(ctx, q, period)
	if err != nil {
		return nil, fmt.Errorf("balances: fetch posting entries: %w", err)
	}
	if len(postings) == 0 {
		return &Result{Query: q, CurrencyEntries: []*CurrencyColumnsEntry{}, BuiltAt: time.Now()}, nil
	}

	// The original-currency balance is pivoted into its column; the
	// valuated amount feeds the per-row and total valorized figures.
	originals := make(map[*Entry]decimal.Decimal, len(postings))
	for _, e := range postings {
		originals[e] = e.CurrentBalance
	}
	if err := b.valuator.Valuate(ctx, q, period, postings); err != nil {
		return nil, err
	}

	helper := NewHelper(q, b.chart)
	helper.RoundEntries(postings)

	rows := make(map[string]*CurrencyColumnsEntry)
	var order []string
	for _, e := range postings {
		row, ok := rows[e.AccountNumber]
		if !ok {
			row = &CurrencyColumnsEntry{
				ItemType:       ItemEntry,
				AccountNumber:  e.AccountNumber,
				AccountName:    e.AccountName,
				AccountLevel:   e.AccountLevel,
				DebtorCreditor: e.DebtorCreditor,
				ExchangeRate:   e.ExchangeRate,
			}
			rows[e.AccountNumber] = row
			order = append(order, e.AccountNumber)
		}
		row.addColumn(e.CurrencyCode, originals[e].Round(2), e.CurrentBalance)
	}
	sort.Strings(order)

	out := make([]*CurrencyColumnsEntry, 0, len(order)+1)
	total := &CurrencyColumnsEntry{ItemType: ItemTotalConsolidated, AccountName: "TOTAL CONSOLIDADO GENERAL"}
	for _, number := range order {
		row := rows[number]
		if q.Level > 0 && row.AccountLevel > q.Level {
			continue
		}
		out = append(out, row)
		total.DomesticBalance = total.DomesticBalance.Add(row.DomesticBalance)
		total.DollarBalance = total.DollarBalance.Add(row.DollarBalance)
		total.YenBalance = total.YenBalance.Add(row.YenBalance)
		total.EuroBalance = total.EuroBalance.Add(row.EuroBalance)
		total.UdisBalance = total.UdisBalance.Add(row.UdisBalance)
		total.TotalValorized = total.TotalValorized.Add(row.TotalValorized)
	}
	if len(out) > 0 {
		out = append(out, total)
	}
	return &Result{Query: q, CurrencyEntries: out, BuiltAt: time.Now()}, nil
}
