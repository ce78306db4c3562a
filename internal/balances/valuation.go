package balances

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/balanza-fin/balanza/internal/refdata"
)

// ValuationConfig carries deployment-specific valuation behaviour. The IFRS
// chart loaded its initial balances on Jan 2 2022 instead of Jan 1, so
// queries starting on the original date shift by one day for that chart
// only. This is a preserved historical artifact, not a general rule.
type ValuationConfig struct {
	IFRSChartUID           uuid.UUID
	IFRSOriginalStartDate  time.Time
	IFRSShiftedStartDate   time.Time
	DefaultRateTypeUID     uuid.UUID
	DefaultValuateCurrency string
}

// DefaultValuationConfig returns the IFRS start-date rule as shipped.
func DefaultValuationConfig() ValuationConfig {
	return ValuationConfig{
		IFRSOriginalStartDate:  time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC),
		IFRSShiftedStartDate:   time.Date(2022, time.January, 2, 0, 0, 0, 0, time.UTC),
		DefaultValuateCurrency: refdata.CurrencyDomestic,
	}
}

// AdjustPeriod applies the IFRS start-date shift when the query targets the
// IFRS chart and starts on the affected date.
func (c ValuationConfig) AdjustPeriod(chartUID uuid.UUID, p Period) Period {
	if c.IFRSChartUID != uuid.Nil && chartUID == c.IFRSChartUID && p.FromDate.Equal(c.IFRSOriginalStartDate) {
		p.FromDate = c.IFRSShiftedStartDate
	}
	return p
}

// Valuator applies exchange rates to posting entries and optionally merges
// them into a single target-currency entry per account.
type Valuator struct {
	rates refdata.RateProvider
	cfg   ValuationConfig
}

// NewValuator constructs the valuation subsystem.
func NewValuator(rates refdata.RateProvider, cfg ValuationConfig) *Valuator {
	return &Valuator{rates: rates, cfg: cfg}
}

// effectivePeriod resolves the valuation parameters, falling back to the
// configured defaults when the query asked for default valuation.
func (v *Valuator) effectivePeriod(q *Query, p Period) Period {
	if !p.HasValuation() && q.UseDefaultValuation {
		p.ValuateToCurrency = v.cfg.DefaultValuateCurrency
		p.ExchangeRateTypeUID = v.cfg.DefaultRateTypeUID
	}
	if p.ExchangeRateDate.IsZero() {
		p.ExchangeRateDate = p.ToDate
	}
	return p
}

// Valuate multiplies each non-target-currency entry's balances by the
// exchange rate for (rate type, from currency, target currency, date). The
// entry keeps its original currency label; the applied rate is recorded on
// the row. Entries already in the target currency are untouched.
func (v *Valuator) Valuate(ctx context.Context, q *Query, p Period, entries []*Entry) error {
	p = v.effectivePeriod(q, p)
	if !p.HasValuation() {
		return nil
	}
	target := p.ValuateToCurrency
	for _, e := range entries {
		if e.CurrencyCode == target {
			e.ExchangeRate = decimal.NewFromInt(1)
			continue
		}
		rate, err := v.rates.Rate(ctx, p.ExchangeRateTypeUID, e.CurrencyCode, target, p.ExchangeRateDate)
		if err != nil {
			return fmt.Errorf("balances: valuate %s: %w", e.AccountNumber, err)
		}
		e.ExchangeRate = rate
		e.InitialBalance = e.InitialBalance.Mul(rate)
		e.Debit = e.Debit.Mul(rate)
		e.Credit = e.Credit.Mul(rate)
		e.CurrentBalance = e.CurrentBalance.Mul(rate)
		e.AverageBalance = e.AverageBalance.Mul(rate)
	}
	return nil
}

// ConsolidateToTargetCurrency merges valuated entries into a single entry
// per (account, sector, ledger), or per subledger account when the query
// splits by auxiliary, relabelled with the target currency. Uses the same
// accumulate-or-create pattern as every other summary level.
func (v *Valuator) ConsolidateToTargetCurrency(q *Query, p Period, entries []*Entry) []*Entry {
	p = v.effectivePeriod(q, p)
	if !q.ConsolidateBalancesToTargetCurrency || !p.HasValuation() {
		return entries
	}
	target := p.ValuateToCurrency
	merged := newBucket[summaryKey]()
	for _, e := range entries {
		key := summaryKey{
			LedgerID:      e.LedgerID,
			CurrencyCode:  target,
			AccountNumber: e.AccountNumber,
			SectorCode:    e.SectorCode,
		}
		if q.WithSubledgerAccount {
			key.SubledgerAccountID = e.SubledgerAccountID
		}
		merged.generateOrIncrease(key, e, func(derived *Entry) {
			derived.CurrencyCode = target
			derived.CurrencyName = ""
		})
	}
	return merged.entries()
}
