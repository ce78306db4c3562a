package balances

import "github.com/balanza-fin/balanza/internal/refdata"

// Aggregation keys are explicit struct types with structural equality. Two
// entries share a bucket for a level if and only if their key values are
// equal; forgetting a field here mis-aggregates money, which is why the keys
// are types instead of concatenated strings.

// summaryKey buckets parent-account summaries. LedgerID is zero when the
// report consolidates across ledgers, and SubledgerAccountID is zero unless
// the query splits by subledger account.
type summaryKey struct {
	LedgerID           int64
	CurrencyCode       string
	AccountNumber      string
	SectorCode         string
	SubledgerAccountID int64
}

// groupTotalKey buckets "TOTAL GRUPO" rows.
type groupTotalKey struct {
	LedgerID       int64
	CurrencyCode   string
	DebtorCreditor refdata.DebtorCreditor
	GroupNumber    string
}

// debtorCreditorKey buckets "TOTAL DEUDORAS"/"TOTAL ACREEDORAS" rows.
type debtorCreditorKey struct {
	LedgerID       int64
	CurrencyCode   string
	DebtorCreditor refdata.DebtorCreditor
}

// currencyTotalKey buckets "TOTAL MONEDA" rows.
type currencyTotalKey struct {
	LedgerID     int64
	CurrencyCode string
}

// ledgerTotalKey buckets "TOTAL CONSOLIDADO" rows in cascade mode.
type ledgerTotalKey struct {
	LedgerID int64
}

// accountTotalKey buckets per-account/currency totals in the balance
// explorer.
type accountTotalKey struct {
	AccountNumber string
	CurrencyCode  string
}

// comparativeKey matches rows across the two periods of a comparative
// balance.
type comparativeKey struct {
	LedgerID           int64
	CurrencyCode       string
	AccountNumber      string
	SectorCode         string
	SubledgerAccountID int64
}

func (q *Query) summaryKeyFor(e *Entry) summaryKey {
	key := summaryKey{
		CurrencyCode:  e.CurrencyCode,
		AccountNumber: e.AccountNumber,
		SectorCode:    e.SectorCode,
	}
	if q.ShowCascadeBalances {
		key.LedgerID = e.LedgerID
	}
	if q.WithSubledgerAccount {
		key.SubledgerAccountID = e.SubledgerAccountID
	}
	return key
}

func (q *Query) groupTotalKeyFor(e *Entry) groupTotalKey {
	key := groupTotalKey{
		CurrencyCode:   e.CurrencyCode,
		DebtorCreditor: e.DebtorCreditor,
		GroupNumber:    e.GroupNumber,
	}
	// Ledger is part of the key only when the report breaks balances down
	// per ledger.
	if q.ShowCascadeBalances || q.WithSubledgerAccount {
		key.LedgerID = e.LedgerID
	}
	return key
}

func (q *Query) debtorCreditorKeyFor(e *Entry) debtorCreditorKey {
	key := debtorCreditorKey{
		CurrencyCode:   e.CurrencyCode,
		DebtorCreditor: e.DebtorCreditor,
	}
	if q.ShowCascadeBalances {
		key.LedgerID = e.LedgerID
	}
	return key
}

func (q *Query) currencyTotalKeyFor(e *Entry) currencyTotalKey {
	key := currencyTotalKey{CurrencyCode: e.CurrencyCode}
	if q.ShowCascadeBalances {
		key.LedgerID = e.LedgerID
	}
	return key
}
