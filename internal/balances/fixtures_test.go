package balances

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/balanza-fin/balanza/internal/refdata"
)

var testChartUID = uuid.MustParse("3f0a8f1c-9f6d-4f2a-8de2-5b7c1a2d9e41")

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func newTestChart(t *testing.T) *refdata.Chart {
	t.Helper()
	accounts := []refdata.Account{
		{Number: "1101", Name: "Caja", DebtorCreditor: refdata.Deudora, GroupName: "ACTIVO CIRCULANTE"},
		{Number: "1101-01", Name: "Caja chica", DebtorCreditor: refdata.Deudora, GroupName: "ACTIVO CIRCULANTE"},
		{Number: "1102", Name: "Bancos", DebtorCreditor: refdata.Deudora, GroupName: "ACTIVO CIRCULANTE"},
		{Number: "1102-00", Name: "Bancos moneda nacional", DebtorCreditor: refdata.Deudora, GroupName: "ACTIVO CIRCULANTE"},
		{Number: "1503", Name: "Inversiones permanentes", DebtorCreditor: refdata.Deudora, GroupName: "ACTIVO FIJO"},
		{Number: "2101", Name: "Proveedores", DebtorCreditor: refdata.Acreedora, GroupName: "PASIVO"},
	}
	chart, err := refdata.NewChart(testChartUID, "Catalogo fiscal", "-", accounts)
	if err != nil {
		t.Fatalf("NewChart returned error: %v", err)
	}
	return chart
}

// posting builds one posting entry enriched from the chart, on ledger 1.
func posting(t *testing.T, chart *refdata.Chart, accountNumber, currency, debit, credit string) *Entry {
	t.Helper()
	account, ok := chart.Account(accountNumber)
	if !ok {
		t.Fatalf("account %s not in test chart", accountNumber)
	}
	debitDec, creditDec := dec(debit), dec(credit)
	return &Entry{
		ItemType:       ItemEntry,
		LedgerID:       1,
		LedgerNumber:   "01",
		LedgerName:     "Central",
		CurrencyCode:   currency,
		CurrencyName:   currency,
		AccountNumber:  account.Number,
		AccountName:    account.Name,
		AccountLevel:   account.Level,
		GroupNumber:    account.GroupNumber,
		GroupName:      account.GroupName,
		SectorCode:     refdata.SectorNone,
		DebtorCreditor: account.DebtorCreditor,
		Debit:          debitDec,
		Credit:         creditDec,
		CurrentBalance: debitDec.Sub(creditDec),
	}
}

func onLedger(e *Entry, id int64, number, name string) *Entry {
	e.LedgerID = id
	e.LedgerNumber = number
	e.LedgerName = name
	return e
}

func onSector(e *Entry, sector string) *Entry {
	e.SectorCode = sector
	return e
}

// stubProvider serves cloned copies of a fixed entry list so the builders'
// in-place mutations never leak between calls.
type stubProvider struct {
	entries []*Entry
	err     error
	calls   int
	lastQ   *Query
}

func (s *stubProvider) PostingEntries(_ context.Context, q *Query, _ Period) ([]*Entry, error) {
	s.calls++
	s.lastQ = q
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out, nil
}

func testPeriod() Period {
	return Period{
		FromDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		ToDate:   time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
	}
}

func testQuery(reportType ReportType) *Query {
	return &Query{
		ReportType:       reportType,
		AccountsChartUID: testChartUID,
		InitialPeriod:    testPeriod(),
	}
}

func testValuator() *Valuator {
	return NewValuator(refdata.NewStaticRates(nil), DefaultValuationConfig())
}

func testValuatorWithRates(quotes []refdata.ExchangeRate) *Valuator {
	return NewValuator(refdata.NewStaticRates(quotes), DefaultValuationConfig())
}

func testValidator() *Validator {
	return NewValidator(decimal.Decimal{})
}

func entryByName(entries []*Entry, name string) *Entry {
	for _, e := range entries {
		if e.AccountName == name {
			return e
		}
	}
	return nil
}

func entriesOfType(entries []*Entry, itemType ItemType) []*Entry {
	var out []*Entry
	for _, e := range entries {
		if e.ItemType == itemType {
			out = append(out, e)
		}
	}
	return out
}
