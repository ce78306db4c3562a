package balances

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrialBalanceDto is the envelope handed to downstream consumers: the
// originating query, the column layout of the report shape and the rows.
// Rows is one of []*EntryDto, []*AnalyticEntry, []*CurrencyColumnsEntry or
// []*ComparativeEntry depending on the report type.
type TrialBalanceDto struct {
	Query   *Query    `json:"query"`
	Columns []string  `json:"columns"`
	Rows    any       `json:"rows"`
	BuiltAt time.Time `json:"builtAt"`
}

// EntryDto is the flat row shape of the single-balance-column reports.
type EntryDto struct {
	ItemType ItemType `json:"itemType"`

	LedgerNumber string `json:"ledgerNumber,omitempty"`
	LedgerName   string `json:"ledgerName,omitempty"`
	CurrencyCode string `json:"currencyCode,omitempty"`
	CurrencyName string `json:"currencyName,omitempty"`

	AccountNumber string `json:"accountNumber,omitempty"`
	AccountName   string `json:"accountName"`
	AccountLevel  int    `json:"accountLevel,omitempty"`

	SectorCode             string `json:"sectorCode,omitempty"`
	SubledgerAccountNumber string `json:"subledgerAccountNumber,omitempty"`

	InitialBalance decimal.Decimal `json:"initialBalance"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	AverageBalance decimal.Decimal `json:"averageBalance"`

	ExchangeRate decimal.Decimal `json:"exchangeRate"`

	LastChangeDate time.Time `json:"lastChangeDate,omitempty"`
}

var (
	entryColumns = []string{
		"itemType", "ledgerNumber", "currencyCode", "accountNumber", "accountName",
		"sectorCode", "initialBalance", "debit", "credit", "currentBalance",
	}
	analyticColumns = []string{
		"itemType", "accountNumber", "accountName", "domesticBalance", "foreignBalance", "totalBalance",
	}
	currencyColumns = []string{
		"itemType", "accountNumber", "accountName",
		"domestic", "dollar", "yen", "euro", "udis",
		"valorizedDollar", "valorizedYen", "valorizedEuro", "valorizedUdis", "totalValorized",
	}
	comparativeColumns = []string{
		"itemType", "accountNumber", "accountName",
		"firstTotalBalance", "firstExchangeRate", "firstValorized",
		"secondTotalBalance", "secondExchangeRate", "secondValorized",
		"variation", "variationByER",
	}
)

// ToDto flattens a result into the transfer envelope.
func (r *Result) ToDto() *TrialBalanceDto {
	dto := &TrialBalanceDto{Query: r.Query, BuiltAt: r.BuiltAt}
	switch {
	case len(r.AnalyticEntries) > 0:
		dto.Columns = analyticColumns
		dto.Rows = r.AnalyticEntries
	case len(r.CurrencyEntries) > 0:
		dto.Columns = currencyColumns
		dto.Rows = r.CurrencyEntries
	case len(r.ComparativeEntries) > 0:
		dto.Columns = comparativeColumns
		dto.Rows = r.ComparativeEntries
	default:
		columns := entryColumns
		if r.Query != nil && r.Query.WithAverageBalance {
			columns = append(append([]string(nil), columns...), "averageBalance")
		}
		if r.Query != nil && r.Query.WithSubledgerAccount {
			columns = append(append([]string(nil), columns...), "subledgerAccountNumber")
		}
		dto.Columns = columns
		rows := make([]*EntryDto, 0, len(r.Entries))
		for _, e := range r.Entries {
			rows = append(rows, entryToDto(e))
		}
		dto.Rows = rows
	}
	return dto
}

func entryToDto(e *Entry) *EntryDto {
	return &EntryDto{
		ItemType:               e.ItemType,
		LedgerNumber:           e.LedgerNumber,
		LedgerName:             e.LedgerName,
		CurrencyCode:           e.CurrencyCode,
		CurrencyName:           e.CurrencyName,
		AccountNumber:          e.AccountNumber,
		AccountName:            e.AccountName,
		AccountLevel:           e.AccountLevel,
		SectorCode:             e.SectorCode,
		SubledgerAccountNumber: e.SubledgerAccountNumber,
		InitialBalance:         e.InitialBalance,
		Debit:                  e.Debit,
		Credit:                 e.Credit,
		CurrentBalance:         e.CurrentBalance,
		AverageBalance:         e.AverageBalance,
		ExchangeRate:           e.ExchangeRate,
		LastChangeDate:         e.LastChangeDate,
	}
}
