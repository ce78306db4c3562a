package balances

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/balanza-fin/balanza/internal/refdata"
)

func TestValidatorToleranceBoundary(t *testing.T) {
	validator := NewValidator(decimal.NewFromInt(10))
	q := testQuery(ReportBalanza)

	postings := []*Entry{{
		ItemType:       ItemEntry,
		CurrencyCode:   "MXN",
		GroupNumber:    "11",
		DebtorCreditor: refdata.Deudora,
		CurrentBalance: dec("1000"),
	}}
	total := &Entry{
		ItemType:       ItemTotalGroupDebtor,
		CurrencyCode:   "MXN",
		GroupNumber:    "11",
		DebtorCreditor: refdata.Deudora,
		CurrentBalance: dec("1010"),
	}

	// A drift of exactly the tolerance passes.
	if err := validator.EnsureIsValid(q, []*Entry{total}, postings); err != nil {
		t.Fatalf("expected drift of 10 inside tolerance, got %v", err)
	}

	total.CurrentBalance = dec("1010.01")
	err := validator.EnsureIsValid(q, []*Entry{total}, postings)
	if err == nil {
		t.Fatalf("expected drift above tolerance to fail")
	}
	var identity *IdentityError
	if !errors.As(err, &identity) {
		t.Fatalf("expected an IdentityError, got %T", err)
	}
}

func TestValidatorSkipsUnvalidatedReports(t *testing.T) {
	validator := NewValidator(decimal.NewFromInt(10))
	q := testQuery(ReportGeneracionDeSaldos)

	// Grossly inconsistent rows, but the raw balance set is never gated.
	total := &Entry{
		ItemType:       ItemTotalGroupDebtor,
		CurrencyCode:   "MXN",
		GroupNumber:    "11",
		DebtorCreditor: refdata.Deudora,
		CurrentBalance: dec("999999"),
	}
	if err := validator.EnsureIsValid(q, []*Entry{total}, nil); err != nil {
		t.Fatalf("expected no validation for %s, got %v", q.ReportType, err)
	}
}

func TestValidatorDefaultsTolerance(t *testing.T) {
	validator := NewValidator(decimal.Decimal{})
	if !validator.tolerance.Equal(dec("10")) {
		t.Fatalf("expected default tolerance 10 got %s", validator.tolerance)
	}
}

func TestValidatorCreditorTotalsExpectFlippedSign(t *testing.T) {
	validator := NewValidator(decimal.NewFromInt(10))
	q := testQuery(ReportBalanza)

	postings := []*Entry{{
		ItemType:       ItemEntry,
		CurrencyCode:   "MXN",
		GroupNumber:    "21",
		DebtorCreditor: refdata.Acreedora,
		CurrentBalance: dec("-1000"),
	}}
	groupTotal := &Entry{
		ItemType:       ItemTotalGroupCreditor,
		CurrencyCode:   "MXN",
		GroupNumber:    "21",
		DebtorCreditor: refdata.Acreedora,
		CurrentBalance: dec("-1000"),
	}
	flipped := &Entry{
		ItemType:       ItemTotalCreditor,
		CurrencyCode:   "MXN",
		CurrentBalance: dec("1000"),
	}
	if err := validator.EnsureIsValid(q, []*Entry{groupTotal, flipped}, postings); err != nil {
		t.Fatalf("flipped creditor total must validate, got %v", err)
	}

	unflipped := &Entry{
		ItemType:       ItemTotalCreditor,
		CurrencyCode:   "MXN",
		CurrentBalance: dec("-1000"),
	}
	if err := validator.EnsureIsValid(q, []*Entry{groupTotal, unflipped}, postings); err == nil {
		t.Fatalf("expected the unflipped creditor total to fail")
	}
}

func TestValidatorConsolidatedTotal(t *testing.T) {
	validator := NewValidator(decimal.NewFromInt(10))
	q := testQuery(ReportBalanza)

	postings := []*Entry{
		{ItemType: ItemEntry, CurrencyCode: "MXN", GroupNumber: "11", DebtorCreditor: refdata.Deudora, CurrentBalance: dec("100")},
		{ItemType: ItemEntry, CurrencyCode: "USD", GroupNumber: "11", DebtorCreditor: refdata.Deudora, CurrentBalance: dec("50")},
	}
	entries := []*Entry{
		{ItemType: ItemTotalGroupDebtor, CurrencyCode: "MXN", GroupNumber: "11", DebtorCreditor: refdata.Deudora, CurrentBalance: dec("100")},
		{ItemType: ItemTotalGroupDebtor, CurrencyCode: "USD", GroupNumber: "11", DebtorCreditor: refdata.Deudora, CurrentBalance: dec("50")},
		{ItemType: ItemTotalDebtor, CurrencyCode: "MXN", CurrentBalance: dec("100")},
		{ItemType: ItemTotalDebtor, CurrencyCode: "USD", CurrentBalance: dec("50")},
		{ItemType: ItemTotalCurrency, CurrencyCode: "MXN", CurrentBalance: dec("100")},
		{ItemType: ItemTotalCurrency, CurrencyCode: "USD", CurrentBalance: dec("50")},
		{ItemType: ItemTotalConsolidated, CurrentBalance: dec("500")},
	}
	if err := validator.EnsureIsValid(q, entries, postings); err == nil {
		t.Fatalf("expected the consolidated mismatch to fail")
	}

	entries[6].CurrentBalance = dec("150")
	if err := validator.EnsureIsValid(q, entries, postings); err != nil {
		t.Fatalf("expected the consolidated total to validate, got %v", err)
	}
}

func TestExplorerValidationComparesTotalsToDetail(t *testing.T) {
	validator := NewValidator(decimal.NewFromInt(10))
	q := testQuery(ReportSaldosPorCuenta)

	entries := []*Entry{
		{ItemType: ItemEntry, AccountNumber: "1101", CurrencyCode: "MXN", CurrentBalance: dec("500")},
		{ItemType: ItemTotalCurrency, AccountNumber: "1101", CurrencyCode: "MXN", CurrentBalance: dec("900")},
	}
	err := validator.EnsureExplorerIsValid(q, entries)
	var identity *IdentityError
	if !errors.As(err, &identity) {
		t.Fatalf("expected an IdentityError, got %v", err)
	}

	entries[1].CurrentBalance = dec("500")
	if err := validator.EnsureExplorerIsValid(q, entries); err != nil {
		t.Fatalf("expected the explorer layout to validate, got %v", err)
	}
}

func TestIdentityErrorUnwraps(t *testing.T) {
	err := identityErrorf("balances: drift of %s", dec("12"))
	var identity *IdentityError
	if !errors.As(err, &identity) {
		t.Fatalf("identityErrorf must produce an IdentityError")
	}
	if identity.Unwrap() == nil {
		t.Fatalf("the wrapped cause must be reachable")
	}
}
