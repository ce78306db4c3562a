package balances

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/balanza-fin/balanza/internal/refdata"
)

// ItemType tags each row of a result with the aggregation level it belongs
// to. Posting entries keep ItemEntry; every derived row carries a distinct
// tag so consumers can tell detail from subtotal rows apart.
type ItemType string

const (
	// ItemEntry is a posting entry as fetched from the provider.
	ItemEntry ItemType = "Entry"
	// ItemSummary is a derived parent-account roll-up.
	ItemSummary ItemType = "Summary"
	// ItemHeader is a per-account header row produced by the balance explorer.
	ItemHeader ItemType = "Header"
	// ItemTotalGroupDebtor is a "TOTAL GRUPO" row for a debtor group.
	ItemTotalGroupDebtor ItemType = "BalanceTotalGroupDebtor"
	// ItemTotalGroupCreditor is a "TOTAL GRUPO" row for a creditor group.
	ItemTotalGroupCreditor ItemType = "BalanceTotalGroupCreditor"
	// ItemTotalDebtor is the "TOTAL DEUDORAS" row for one currency.
	ItemTotalDebtor ItemType = "BalanceTotalDebtor"
	// ItemTotalCreditor is the "TOTAL ACREEDORAS" row for one currency.
	ItemTotalCreditor ItemType = "BalanceTotalCreditor"
	// ItemTotalCurrency is the "TOTAL MONEDA" row.
	ItemTotalCurrency ItemType = "BalanceTotalCurrency"
	// ItemTotalConsolidatedByLedger is the per-ledger consolidated row in
	// cascade mode.
	ItemTotalConsolidatedByLedger ItemType = "BalanceTotalConsolidatedByLedger"
	// ItemTotalConsolidated is the single grand consolidated row.
	ItemTotalConsolidated ItemType = "BalanceTotalConsolidated"
)

// IsTotal reports whether the item type is any subtotal row.
func (t ItemType) IsTotal() bool {
	switch t {
	case ItemTotalGroupDebtor, ItemTotalGroupCreditor, ItemTotalDebtor, ItemTotalCreditor,
		ItemTotalCurrency, ItemTotalConsolidatedByLedger, ItemTotalConsolidated:
		return true
	}
	return false
}

// Entry is one balance row: either a posting entry for a concrete
// (ledger, currency, account, sector, subledger) tuple or a derived
// summary/total row tagged by ItemType. The engine never mutates posting
// entries in place; derived rows are copies.
type Entry struct {
	ItemType ItemType

	LedgerID     int64
	LedgerNumber string
	LedgerName   string

	CurrencyCode string
	CurrencyName string

	AccountNumber string
	AccountName   string
	AccountLevel  int
	GroupNumber   string
	GroupName     string

	SectorCode             string
	SubledgerAccountID     int64
	SubledgerAccountNumber string

	DebtorCreditor refdata.DebtorCreditor

	InitialBalance decimal.Decimal
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	CurrentBalance decimal.Decimal
	AverageBalance decimal.Decimal

	ExchangeRate       decimal.Decimal
	SecondExchangeRate decimal.Decimal

	LastChangeDate time.Time

	// HasParentPostingEntry marks posting entries whose own account also
	// appears as a parent summary, so group totals do not count the balance
	// twice. IsParentPostingEntry marks the matching summary.
	HasParentPostingEntry bool
	IsParentPostingEntry  bool
}

// Clone returns a derived copy of the entry. Callers override the fields
// that identify the target aggregation level.
func (e *Entry) Clone() *Entry {
	clone := *e
	return &clone
}

// Sum adds the balances of src into e and keeps the most recent last-change
// date. This is the increase half of the accumulate-or-create operation.
func (e *Entry) Sum(src *Entry) {
	e.InitialBalance = e.InitialBalance.Add(src.InitialBalance)
	e.Debit = e.Debit.Add(src.Debit)
	e.Credit = e.Credit.Add(src.Credit)
	e.CurrentBalance = e.CurrentBalance.Add(src.CurrentBalance)
	e.AverageBalance = e.AverageBalance.Add(src.AverageBalance)
	if src.LastChangeDate.After(e.LastChangeDate) {
		e.LastChangeDate = src.LastChangeDate
	}
}

// Negate flips the sign of every balance field. Creditor totals are negated
// before they are folded into currency totals.
func (e *Entry) Negate() {
	e.InitialBalance = e.InitialBalance.Neg()
	e.Debit = e.Debit.Neg()
	e.Credit = e.Credit.Neg()
	e.CurrentBalance = e.CurrentBalance.Neg()
	e.AverageBalance = e.AverageBalance.Neg()
}

// Round truncates every balance field to two decimal places.
func (e *Entry) Round() {
	e.InitialBalance = e.InitialBalance.Round(2)
	e.Debit = e.Debit.Round(2)
	e.Credit = e.Credit.Round(2)
	e.CurrentBalance = e.CurrentBalance.Round(2)
	e.AverageBalance = e.AverageBalance.Round(2)
}

// HasBalanceOrMovements reports whether any balance or movement field is
// non-zero. Used by the zero-balance inclusion policy.
func (e *Entry) HasBalanceOrMovements() bool {
	return !e.CurrentBalance.IsZero() || !e.Debit.IsZero() || !e.Credit.IsZero()
}
