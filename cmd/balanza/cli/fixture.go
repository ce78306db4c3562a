package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/balanza-fin/balanza/internal/balances"
	"github.com/balanza-fin/balanza/internal/refdata"
)

// Fixture is a self-contained data set for running reports without a
// database: a chart of accounts, optional exchange-rate quotes and the
// posting-entry balances.
type Fixture struct {
	Chart   fixtureChart   `json:"chart"`
	Rates   []fixtureRate  `json:"rates,omitempty"`
	Entries []fixtureEntry `json:"entries"`
}

type fixtureChart struct {
	UID       string           `json:"uid"`
	Name      string           `json:"name"`
	Separator string           `json:"separator"`
	Accounts  []fixtureAccount `json:"accounts"`
}

type fixtureAccount struct {
	Number         string `json:"number"`
	Name           string `json:"name"`
	DebtorCreditor string `json:"debtorCreditor"`
	GroupName      string `json:"groupName,omitempty"`
}

type fixtureRate struct {
	RateType string `json:"rateType,omitempty"`
	From     string `json:"from"`
	To       string `json:"to"`
	Date     string `json:"date"`
	Value    string `json:"value"`
}

type fixtureEntry struct {
	LedgerID       int64  `json:"ledgerID"`
	LedgerNumber   string `json:"ledgerNumber"`
	CurrencyCode   string `json:"currencyCode"`
	AccountNumber  string `json:"accountNumber"`
	SectorCode     string `json:"sectorCode,omitempty"`
	InitialBalance string `json:"initialBalance,omitempty"`
	Debit          string `json:"debit,omitempty"`
	Credit         string `json:"credit,omitempty"`
	CurrentBalance string `json:"currentBalance"`
	LastChangeDate string `json:"lastChangeDate,omitempty"`
}

// LoadFixture parses the fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cli: read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("cli: parse fixture: %w", err)
	}
	return &f, nil
}

// ChartUID returns the fixture chart identifier.
func (f *Fixture) ChartUID() (uuid.UUID, error) {
	return uuid.Parse(f.Chart.UID)
}

// BuildChart materializes the chart arena.
func (f *Fixture) BuildChart() (*refdata.Chart, error) {
	uid, err := f.ChartUID()
	if err != nil {
		return nil, fmt.Errorf("cli: fixture chart uid: %w", err)
	}
	accounts := make([]refdata.Account, 0, len(f.Chart.Accounts))
	for _, a := range f.Chart.Accounts {
		accounts = append(accounts, refdata.Account{
			Number:         a.Number,
			Name:           a.Name,
			GroupName:      a.GroupName,
			DebtorCreditor: refdata.DebtorCreditor(a.DebtorCreditor),
		})
	}
	chart, err := refdata.NewChart(uid, f.Chart.Name, f.Chart.Separator, accounts)
	if err != nil {
		return nil, fmt.Errorf("cli: build fixture chart: %w", err)
	}
	return chart, nil
}

// BuildRates materializes the static rate provider.
func (f *Fixture) BuildRates() (*refdata.StaticRates, error) {
	quotes := make([]refdata.ExchangeRate, 0, len(f.Rates))
	for _, r := range f.Rates {
		value, err := decimal.NewFromString(r.Value)
		if err != nil {
			return nil, fmt.Errorf("cli: fixture rate %s->%s: %w", r.From, r.To, err)
		}
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return nil, fmt.Errorf("cli: fixture rate date %q: %w", r.Date, err)
		}
		quote := refdata.ExchangeRate{FromCurrency: r.From, ToCurrency: r.To, Date: date, Value: value}
		if r.RateType != "" {
			uid, err := uuid.Parse(r.RateType)
			if err != nil {
				return nil, fmt.Errorf("cli: fixture rate type %q: %w", r.RateType, err)
			}
			quote.RateTypeUID = uid
		}
		quotes = append(quotes, quote)
	}
	return refdata.NewStaticRates(quotes), nil
}

// FixtureProvider serves the fixture's posting entries, honouring the query
// filters the same way the SQL provider would.
type FixtureProvider struct {
	fixture *Fixture
	chart   *refdata.Chart
}

// NewFixtureProvider constructs the provider.
func NewFixtureProvider(fixture *Fixture, chart *refdata.Chart) *FixtureProvider {
	return &FixtureProvider{fixture: fixture, chart: chart}
}

// PostingEntries implements balances.PostingEntriesProvider.
func (p *FixtureProvider) PostingEntries(_ context.Context, q *balances.Query, _ balances.Period) ([]*balances.Entry, error) {
	var entries []*balances.Entry
	for _, raw := range p.fixture.Entries {
		if !matchesList(q.Ledgers, raw.LedgerNumber) ||
			!matchesList(q.Currencies, raw.CurrencyCode) ||
			!matchesList(q.Sectors, raw.SectorCode) {
			continue
		}
		if !q.MatchesAccountFilters(raw.AccountNumber) {
			continue
		}
		e, err := p.toEntry(raw)
		if err != nil {
			return nil, err
		}
		if !includeByMode(q.Mode(), e) {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (p *FixtureProvider) toEntry(raw fixtureEntry) (*balances.Entry, error) {
	e := &balances.Entry{
		ItemType:      balances.ItemEntry,
		LedgerID:      raw.LedgerID,
		LedgerNumber:  raw.LedgerNumber,
		CurrencyCode:  raw.CurrencyCode,
		AccountNumber: raw.AccountNumber,
		SectorCode:    raw.SectorCode,
	}
	if e.SectorCode == "" {
		e.SectorCode = refdata.SectorNone
	}
	if account, ok := p.chart.Account(raw.AccountNumber); ok {
		e.AccountName = account.Name
		e.AccountLevel = account.Level
		e.GroupNumber = account.GroupNumber
		e.GroupName = account.GroupName
		e.DebtorCreditor = account.DebtorCreditor
	}
	var err error
	if e.InitialBalance, err = parseAmount(raw.InitialBalance); err != nil {
		return nil, err
	}
	if e.Debit, err = parseAmount(raw.Debit); err != nil {
		return nil, err
	}
	if e.Credit, err = parseAmount(raw.Credit); err != nil {
		return nil, err
	}
	if e.CurrentBalance, err = parseAmount(raw.CurrentBalance); err != nil {
		return nil, err
	}
	if raw.LastChangeDate != "" {
		if e.LastChangeDate, err = time.Parse("2006-01-02", raw.LastChangeDate); err != nil {
			return nil, fmt.Errorf("cli: fixture last change date %q: %w", raw.LastChangeDate, err)
		}
	}
	return e, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cli: fixture amount %q: %w", raw, err)
	}
	return value, nil
}

func matchesList(filter []string, value string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, v := range filter {
		if v == value {
			return true
		}
	}
	return false
}

func includeByMode(mode balances.BalancesMode, e *balances.Entry) bool {
	switch mode {
	case balances.ModeWithCurrentBalance:
		return !e.CurrentBalance.IsZero()
	case balances.ModeWithCurrentBalanceOrMovements:
		return e.HasBalanceOrMovements()
	case balances.ModeWithMovements:
		return !e.Debit.IsZero() || !e.Credit.IsZero()
	}
	return true
}
