package balances

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/balanza-fin/balanza/internal/refdata"
)

// AnalyticConfig carries the chart-specific constants of the analytic
// report. The excluded prefixes and the domestic-currency set are tied to a
// concrete deployment's chart of accounts, so they are configuration.
type AnalyticConfig struct {
	DomesticCurrencies []string
	ExcludedPrefixes   []string
	ExcludedSuffixes   []string
}

// DefaultAnalyticConfig returns the constants as shipped.
func DefaultAnalyticConfig() AnalyticConfig {
	return AnalyticConfig{
		DomesticCurrencies: []string{refdata.CurrencyDomestic, refdata.CurrencyUDI},
		ExcludedPrefixes:   []string{"1503", "50", "90", "91", "92", "93", "94", "95", "96", "97"},
		ExcludedSuffixes:   []string{"-00"},
	}
}

func (c AnalyticConfig) isDomestic(currencyCode string) bool {
	for _, code := range c.DomesticCurrencies {
		if code == currencyCode {
			return true
		}
	}
	return false
}

func (c AnalyticConfig) isExcluded(accountNumber string) bool {
	for _, prefix := range c.ExcludedPrefixes {
		if strings.HasPrefix(accountNumber, prefix) {
			return true
		}
	}
	for _, suffix := range c.ExcludedSuffixes {
		if strings.HasSuffix(accountNumber, suffix) {
			return true
		}
	}
	return false
}

// AnalyticEntry is one two-column row of the analytic balance: the account's
// domestic-currency balance, its foreign-currency balance, and their sum.
type AnalyticEntry struct {
	ItemType ItemType

	LedgerID     int64
	LedgerNumber string
	LedgerName   string

	AccountNumber string
	AccountName   string
	AccountLevel  int
	GroupNumber   string
	SectorCode    string

	DebtorCreditor refdata.DebtorCreditor

	DomesticBalance decimal.Decimal
	ForeignBalance  decimal.Decimal
	TotalBalance    decimal.Decimal
}

func (e *AnalyticEntry) sum(src *AnalyticEntry) {
	e.DomesticBalance = e.DomesticBalance.Add(src.DomesticBalance)
	e.ForeignBalance = e.ForeignBalance.Add(src.ForeignBalance)
	e.TotalBalance = e.TotalBalance.Add(src.TotalBalance)
}

type analyticKey struct {
	LedgerID       int64
	AccountNumber  string
	SectorCode     string
	DebtorCreditor refdata.DebtorCreditor
}

type analyticBucket struct {
	order []analyticKey
	items map[analyticKey]*AnalyticEntry
}

func newAnalyticBucket() *analyticBucket {
	return &analyticBucket{items: make(map[analyticKey]*AnalyticEntry)}
}

func (b *analyticBucket) add(key analyticKey, src *AnalyticEntry, init func(*AnalyticEntry)) {
	if existing, ok := b.items[key]; ok {
		existing.sum(src)
		return
	}
	derived := *src
	if init != nil {
		init(&derived)
	}
	b.items[key] = &derived
	b.order = append(b.order, key)
}

func (b *analyticBucket) entries() []*AnalyticEntry {
	out := make([]*AnalyticEntry, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, b.items[key])
	}
	return out
}

// AnalyticBuilder computes the two-column domestic/foreign analytic balance
// (AnaliticoDeCuentas).
type AnalyticBuilder struct {
	query     *Query
	chart     *refdata.Chart
	provider  PostingEntriesProvider
	valuator  *Valuator
	validator *Validator
	cfg       AnalyticConfig
}

// NewAnalyticBuilder wires the builder for one computation.
func NewAnalyticBuilder(query *Query, chart *refdata.Chart, provider PostingEntriesProvider, valuator *Valuator, validator *Validator, cfg AnalyticConfig) *AnalyticBuilder {
	if len(cfg.DomesticCurrencies) == 0 {
		cfg = DefaultAnalyticConfig()
	}
	return &AnalyticBuilder{query: query, chart: chart, provider: provider, valuator: valuator, validator: validator, cfg: cfg}
}

// Build runs the analytic pipeline.
func (b *AnalyticBuilder) Build(ctx context.Context) (*Result, error) {
	q := b.query
	period := b.valuator.cfg.AdjustPeriod(q.AccountsChartUID, q.InitialPeriod)

	postings, err := b.provider.PostingEntries(ctx, q, period)
	if err != nil {
		return nil, fmt.Errorf("balances: fetch posting entries: %w", err)
	}
	if len(postings) == 0 {
		return &Result{Query: q, AnalyticEntries: []*AnalyticEntry{}, BuiltAt: time.Now()}, nil
	}

	helper := NewHelper(q, b.chart)
	summaries := helper.CalculatedParentAccounts(postings)
	entries := helper.CombineSummaryAndPostingEntries(summaries, postings)

	if err := b.valuator.Valuate(ctx, q, period, entries); err != nil {
		return nil, err
	}
	helper.RoundEntries(entries)
	entries = helper.MergeSectorization(entries)

	entries = b.removeExcludedAccounts(entries)
	entries = helper.RestrictLevels(entries)

	rows := b.mergeTwoColumns(entries)
	rows = b.appendGroupTotals(rows)
	rows = b.appendDebtorCreditorTotals(rows)
	rows = b.appendGrandTotal(rows)

	if err := b.validator.EnsureAnalyticIsValid(rows); err != nil {
		return nil, err
	}
	return &Result{Query: q, AnalyticEntries: rows, BuiltAt: time.Now()}, nil
}

func (b *AnalyticBuilder) removeExcludedAccounts(entries []*Entry) []*Entry {
	kept := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if b.cfg.isExcluded(e.AccountNumber) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// mergeTwoColumns buckets rows by (ledger, account, sector) and routes each
// currency's balance into the domestic or foreign column. Pesos and UDIs
// merge into the single sector-00 row of sectorized accounts.
func (b *AnalyticBuilder) mergeTwoColumns(entries []*Entry) []*AnalyticEntry {
	merged := newAnalyticBucket()
	for _, e := range entries {
		if e.HasParentPostingEntry {
			continue
		}
		row := &AnalyticEntry{
			ItemType:       e.ItemType,
			LedgerID:       e.LedgerID,
			LedgerNumber:   e.LedgerNumber,
			LedgerName:     e.LedgerName,
			AccountNumber:  e.AccountNumber,
			AccountName:    e.AccountName,
			AccountLevel:   e.AccountLevel,
			GroupNumber:    e.GroupNumber,
			SectorCode:     e.SectorCode,
			DebtorCreditor: e.DebtorCreditor,
		}
		if b.cfg.isDomestic(e.CurrencyCode) {
			row.DomesticBalance = e.CurrentBalance
			row.SectorCode = refdata.SectorNone
		} else {
			row.ForeignBalance = e.CurrentBalance
		}
		row.TotalBalance = e.CurrentBalance
		key := analyticKey{
			AccountNumber:  row.AccountNumber,
			SectorCode:     row.SectorCode,
			DebtorCreditor: row.DebtorCreditor,
		}
		if b.query.ShowCascadeBalances {
			key.LedgerID = row.LedgerID
		}
		merged.add(key, row, nil)
	}
	return merged.entries()
}

func (b *AnalyticBuilder) appendGroupTotals(rows []*AnalyticEntry) []*AnalyticEntry {
	totals := newAnalyticBucket()
	for _, row := range rows {
		if row.AccountLevel > 1 {
			continue
		}
		itemType := ItemTotalGroupDebtor
		if row.DebtorCreditor == refdata.Acreedora {
			itemType = ItemTotalGroupCreditor
		}
		key := analyticKey{AccountNumber: row.GroupNumber, DebtorCreditor: row.DebtorCreditor}
		if b.query.ShowCascadeBalances {
			key.LedgerID = row.LedgerID
		}
		groupNumber := row.GroupNumber
		totals.add(key, row, func(derived *AnalyticEntry) {
			derived.ItemType = itemType
			derived.AccountNumber = groupNumber
			derived.AccountName = fmt.Sprintf("TOTAL GRUPO %s", groupNumber)
			derived.AccountLevel = 0
			derived.SectorCode = refdata.SectorNone
		})
	}
	out := make([]*AnalyticEntry, 0, len(rows)+len(totals.order))
	for _, total := range totals.entries() {
		matched := make([]*AnalyticEntry, 0, len(rows))
		for _, row := range rows {
			if row.GroupNumber == total.AccountNumber && row.DebtorCreditor == total.DebtorCreditor &&
				(!b.query.ShowCascadeBalances || row.LedgerID == total.LedgerID) {
				matched = append(matched, row)
			}
		}
		// A group that matched no rows keeps no orphan subtotal.
		if len(matched) == 0 {
			continue
		}
		out = append(out, matched...)
		out = append(out, total)
	}
	return out
}

func (b *AnalyticBuilder) appendDebtorCreditorTotals(rows []*AnalyticEntry) []*AnalyticEntry {
	totals := newAnalyticBucket()
	for _, row := range rows {
		if row.ItemType != ItemTotalGroupDebtor && row.ItemType != ItemTotalGroupCreditor {
			continue
		}
		itemType, name := ItemTotalDebtor, "TOTAL DEUDORAS"
		if row.DebtorCreditor == refdata.Acreedora {
			itemType, name = ItemTotalCreditor, "TOTAL ACREEDORAS"
		}
		key := analyticKey{DebtorCreditor: row.DebtorCreditor}
		if b.query.ShowCascadeBalances {
			key.LedgerID = row.LedgerID
		}
		totals.add(key, row, func(derived *AnalyticEntry) {
			derived.ItemType = itemType
			derived.AccountNumber = ""
			derived.AccountName = name
			derived.GroupNumber = ""
		})
	}
	out := append([]*AnalyticEntry(nil), rows...)
	for _, total := range totals.entries() {
		// Creditor totals present sign-flipped, matching the statement
		// reports.
		if total.ItemType == ItemTotalCreditor {
			total.DomesticBalance = total.DomesticBalance.Neg()
			total.ForeignBalance = total.ForeignBalance.Neg()
			total.TotalBalance = total.TotalBalance.Neg()
		}
		out = append(out, total)
	}
	return out
}

func (b *AnalyticBuilder) appendGrandTotal(rows []*AnalyticEntry) []*AnalyticEntry {
	var grand *AnalyticEntry
	for _, row := range rows {
		if row.ItemType != ItemTotalDebtor && row.ItemType != ItemTotalCreditor {
			continue
		}
		contribution := *row
		if row.ItemType == ItemTotalCreditor {
			contribution.DomesticBalance = contribution.DomesticBalance.Neg()
			contribution.ForeignBalance = contribution.ForeignBalance.Neg()
			contribution.TotalBalance = contribution.TotalBalance.Neg()
		}
		if grand == nil {
			grand = &contribution
			grand.ItemType = ItemTotalConsolidated
			grand.AccountNumber = ""
			grand.AccountName = "TOTAL CONSOLIDADO GENERAL"
			grand.DebtorCreditor = refdata.Deudora
			continue
		}
		grand.sum(&contribution)
	}
	if grand == nil {
		return rows
	}
	return append(rows, grand)
}
