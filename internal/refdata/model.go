package refdata

import (
	"time"

	"github.com/google/uuid"
)

// DebtorCreditor enumerates the accounting nature of an account.
type DebtorCreditor string

const (
	// Deudora marks accounts whose balance grows with debits.
	Deudora DebtorCreditor = "Deudora"
	// Acreedora marks accounts whose balance grows with credits.
	Acreedora DebtorCreditor = "Acreedora"
)

// Ledger models a bookkeeping ledger (contabilidad) within an accounts chart.
type Ledger struct {
	ID       int64
	UID      uuid.UUID
	Number   string
	Name     string
	Currency string
}

// Currency models a currency usable in posting entries.
type Currency struct {
	ID   int64
	UID  uuid.UUID
	Code string
	Name string
}

// Well-known currency codes used by the currency-columnar report.
const (
	CurrencyDomestic = "MXN"
	CurrencyDollar   = "USD"
	CurrencyYen      = "JPY"
	CurrencyEuro     = "EUR"
	CurrencyUDI      = "UDI"
)

// Sector models a regulatory sector classification for a balance.
type Sector struct {
	Code string
	Name string
}

// SectorNone is the code assigned to non-sectorized balances.
const SectorNone = "00"

// Account models a chart-of-accounts node. Parent navigation is resolved by
// the Chart arena, not by the account itself.
type Account struct {
	Number         string
	Name           string
	Level          int
	ParentNumber   string
	GroupNumber    string
	GroupName      string
	DebtorCreditor DebtorCreditor
	StartDate      time.Time
	EndDate        time.Time
}

// HasParent reports whether the account hangs below another account.
func (a Account) HasParent() bool {
	return a.ParentNumber != "" && a.ParentNumber != a.Number
}

// SubledgerAccount models an auxiliary account nested under a standard account.
type SubledgerAccount struct {
	ID       int64
	Number   string
	Name     string
	LedgerID int64
}
