package balances

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/balanza-fin/balanza/internal/refdata"
)

// IdentityError reports a failed balance-identity check.
type IdentityError struct {
	err error
}

func (e *IdentityError) Error() string { return e.err.Error() }

func (e *IdentityError) Unwrap() error { return e.err }

func identityErrorf(format string, args ...any) error {
	return &IdentityError{err: fmt.Errorf(format, args...)}
}

// Validator runs the post-hoc balance-identity checks. A failed check is a
// hard error: it means the posting data or an aggregation step produced an
// inconsistent report, never a condition to degrade around.
type Validator struct {
	tolerance decimal.Decimal
}

// NewValidator constructs the validator with the configured tolerance in
// currency units.
func NewValidator(tolerance decimal.Decimal) *Validator {
	if tolerance.IsZero() {
		tolerance = decimal.NewFromInt(10)
	}
	return &Validator{tolerance: tolerance}
}

// requiresValidation lists the report types whose results are gated.
func requiresValidation(t ReportType) bool {
	switch t {
	case ReportBalanza, ReportCascada, ReportSaldosPorCuenta, ReportAnalitico:
		return true
	}
	return false
}

// EnsureIsValid asserts, within the tolerance, that every aggregation
// boundary conserves balances: postings vs group totals, group totals vs
// nature totals, nature totals vs currency totals, and currency totals vs
// the grand consolidated row.
func (v *Validator) EnsureIsValid(q *Query, allEntries, postingEntries []*Entry) error {
	if !requiresValidation(q.ReportType) {
		return nil
	}
	if err := v.ensureGroupTotals(q, allEntries, postingEntries); err != nil {
		return err
	}
	if err := v.ensureDebtorCreditorTotals(q, allEntries); err != nil {
		return err
	}
	if err := v.ensureCurrencyTotals(q, allEntries); err != nil {
		return err
	}
	return v.ensureConsolidatedTotal(allEntries)
}

func (v *Validator) withinTolerance(expected, actual decimal.Decimal) bool {
	return expected.Sub(actual).Abs().LessThanOrEqual(v.tolerance)
}

// EnsureExplorerIsValid checks the explorer layout: every per-account
// currency total must equal the sum of the detail rows it closes.
func (v *Validator) EnsureExplorerIsValid(q *Query, entries []*Entry) error {
	if !requiresValidation(q.ReportType) {
		return nil
	}
	for _, total := range entries {
		if total.ItemType != ItemTotalCurrency {
			continue
		}
		expected := decimal.Zero
		for _, e := range entries {
			if e.ItemType != ItemEntry {
				continue
			}
			if e.AccountNumber != total.AccountNumber || e.CurrencyCode != total.CurrencyCode {
				continue
			}
			expected = expected.Add(e.CurrentBalance)
		}
		if !v.withinTolerance(expected, total.CurrentBalance) {
			return identityErrorf("balances: account %s currency %s total %s does not match detail sum %s",
				total.AccountNumber, total.CurrencyCode, total.CurrentBalance, expected)
		}
	}
	return nil
}

// EnsureAnalyticIsValid runs the identity checks over the analytic report's
// two-column rows: each group total must equal the sum of its account rows,
// and the grand total must equal debtor totals minus creditor totals.
func (v *Validator) EnsureAnalyticIsValid(rows []*AnalyticEntry) error {
	for _, total := range rows {
		if total.ItemType != ItemTotalGroupDebtor && total.ItemType != ItemTotalGroupCreditor {
			continue
		}
		expected := decimal.Zero
		for _, row := range rows {
			if row.ItemType.IsTotal() || row.AccountLevel > 1 {
				continue
			}
			if row.GroupNumber != total.AccountNumber || row.DebtorCreditor != total.DebtorCreditor {
				continue
			}
			expected = expected.Add(row.TotalBalance)
		}
		if !v.withinTolerance(expected, total.TotalBalance) {
			return identityErrorf("balances: analytic group total %s is %s but account rows sum %s",
				total.AccountNumber, total.TotalBalance.StringFixed(2), expected.StringFixed(2))
		}
	}
	var grand *AnalyticEntry
	expected := decimal.Zero
	for _, row := range rows {
		switch row.ItemType {
		case ItemTotalDebtor:
			expected = expected.Add(row.TotalBalance)
		case ItemTotalCreditor:
			expected = expected.Sub(row.TotalBalance)
		case ItemTotalConsolidated:
			grand = row
		}
	}
	if grand != nil && !v.withinTolerance(expected, grand.TotalBalance) {
		return identityErrorf("balances: analytic grand total is %s but debtor/creditor totals net %s",
			grand.TotalBalance.StringFixed(2), expected.StringFixed(2))
	}
	return nil
}

// ensureGroupTotals checks that each "TOTAL GRUPO" row equals the algebraic
// sum of the posting entries of its (group, currency, nature) bucket.
func (v *Validator) ensureGroupTotals(q *Query, allEntries, postingEntries []*Entry) error {
	for _, total := range allEntries {
		if total.ItemType != ItemTotalGroupDebtor && total.ItemType != ItemTotalGroupCreditor {
			continue
		}
		expected := decimal.Zero
		for _, e := range postingEntries {
			if e.GroupNumber != total.GroupNumber || e.CurrencyCode != total.CurrencyCode {
				continue
			}
			if e.DebtorCreditor != total.DebtorCreditor {
				continue
			}
			if (q.ShowCascadeBalances || q.WithSubledgerAccount) && e.LedgerID != total.LedgerID {
				continue
			}
			expected = expected.Add(e.CurrentBalance)
		}
		if !v.withinTolerance(expected, total.CurrentBalance) {
			return identityErrorf("balances: group total %s (%s, %s) is %s but posting entries sum %s",
				total.GroupNumber, total.CurrencyCode, total.DebtorCreditor,
				total.CurrentBalance.StringFixed(2), expected.StringFixed(2))
		}
	}
	return nil
}

// ensureDebtorCreditorTotals checks nature totals against their group
// totals. Creditor rows are presented sign-flipped, so the expected value of
// a creditor total is the negated sum of its creditor group totals.
func (v *Validator) ensureDebtorCreditorTotals(q *Query, allEntries []*Entry) error {
	for _, total := range allEntries {
		if total.ItemType != ItemTotalDebtor && total.ItemType != ItemTotalCreditor {
			continue
		}
		expected := decimal.Zero
		for _, e := range allEntries {
			if e.ItemType != ItemTotalGroupDebtor && e.ItemType != ItemTotalGroupCreditor {
				continue
			}
			if e.CurrencyCode != total.CurrencyCode {
				continue
			}
			if q.ShowCascadeBalances && e.LedgerID != total.LedgerID {
				continue
			}
			nature := ItemTotalDebtor
			if e.DebtorCreditor == refdata.Acreedora {
				nature = ItemTotalCreditor
			}
			if nature != total.ItemType {
				continue
			}
			expected = expected.Add(e.CurrentBalance)
		}
		if total.ItemType == ItemTotalCreditor {
			expected = expected.Neg()
		}
		if !v.withinTolerance(expected, total.CurrentBalance) {
			return identityErrorf("balances: %s total for %s is %s but group totals sum %s",
				total.ItemType, total.CurrencyCode,
				total.CurrentBalance.StringFixed(2), expected.StringFixed(2))
		}
	}
	return nil
}

// ensureCurrencyTotals checks each "TOTAL MONEDA" row against the debtor
// total minus the (flipped) creditor total of the currency.
func (v *Validator) ensureCurrencyTotals(q *Query, allEntries []*Entry) error {
	for _, total := range allEntries {
		if total.ItemType != ItemTotalCurrency {
			continue
		}
		expected := decimal.Zero
		for _, e := range allEntries {
			if e.CurrencyCode != total.CurrencyCode {
				continue
			}
			if q.ShowCascadeBalances && e.LedgerID != total.LedgerID {
				continue
			}
			switch e.ItemType {
			case ItemTotalDebtor:
				expected = expected.Add(e.CurrentBalance)
			case ItemTotalCreditor:
				expected = expected.Sub(e.CurrentBalance)
			}
		}
		if !v.withinTolerance(expected, total.CurrentBalance) {
			return identityErrorf("balances: currency total %s is %s but debtor/creditor totals net %s",
				total.CurrencyCode, total.CurrentBalance.StringFixed(2), expected.StringFixed(2))
		}
	}
	return nil
}

// ensureConsolidatedTotal checks the grand consolidated row against the sum
// of every currency total.
func (v *Validator) ensureConsolidatedTotal(allEntries []*Entry) error {
	var consolidated *Entry
	expected := decimal.Zero
	for _, e := range allEntries {
		switch e.ItemType {
		case ItemTotalCurrency:
			expected = expected.Add(e.CurrentBalance)
		case ItemTotalConsolidated:
			consolidated = e
		}
	}
	if consolidated == nil {
		return nil
	}
	if !v.withinTolerance(expected, consolidated.CurrentBalance) {
		return identityErrorf("balances: consolidated total is %s but currency totals sum %s",
			consolidated.CurrentBalance.StringFixed(2), expected.StringFixed(2))
	}
	return nil
}
