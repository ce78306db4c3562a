package balances

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/balanza-fin/balanza/internal/refdata"
)

// PGProvider reads aggregated posting-entry balances from Postgres. It is
// the production PostingEntriesProvider; the balance fact table carries one
// row per posting with its running balance fields.
type PGProvider struct {
	db *pgxpool.Pool
}

// NewPGProvider constructs the provider over a shared pool.
func NewPGProvider(db *pgxpool.Pool) *PGProvider {
	return &PGProvider{db: db}
}

// PostingEntries implements PostingEntriesProvider. The query fragments
// derived from the report flags select the grouping granularity and the
// zero-balance inclusion predicate.
func (p *PGProvider) PostingEntries(ctx context.Context, q *Query, period Period) ([]*Entry, error) {
	clauses, err := q.BuildClauses()
	if err != nil {
		return nil, err
	}

	sql, args := buildPostingEntriesSQL(q, period, clauses)
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("balances: query posting entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanPostingEntry(rows, q)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("balances: iterate posting entries: %w", err)
	}
	return entries, nil
}

func buildPostingEntriesSQL(q *Query, period Period, clauses Clauses) (string, []any) {
	groupCols := []string{
		"b.ledger_id", "l.number", "l.name", "b.currency_code", "cur.name",
		"b.account_number", "a.name", "a.group_number", "a.group_name",
		"a.debtor_creditor", "b.sector_code",
	}
	if q.WithSubledgerAccount {
		groupCols = append(groupCols, "b.subledger_account_id", "sa.number")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(groupCols, ", "))
	sb.WriteString(`,
  SUM(b.initial_balance), SUM(b.debit), SUM(b.credit), SUM(b.current_balance),
  MAX(b.last_change_date)
FROM posting_balances b
JOIN ledgers l ON l.id = b.ledger_id
JOIN accounts a ON a.chart_uid = l.chart_uid AND a.number = b.account_number
JOIN currencies cur ON cur.code = b.currency_code`)
	if q.WithSubledgerAccount {
		sb.WriteString("\nLEFT JOIN subledger_accounts sa ON sa.id = b.subledger_account_id")
	}

	args := []any{q.AccountsChartUID, period.FromDate, period.ToDate}
	sb.WriteString("\nWHERE l.chart_uid = $1 AND b.posting_date BETWEEN $2 AND $3")
	if len(clauses.Ledgers) > 0 {
		args = append(args, clauses.Ledgers)
		fmt.Fprintf(&sb, "\n  AND l.number = ANY($%d)", len(args))
	}
	if len(clauses.Currencies) > 0 {
		args = append(args, clauses.Currencies)
		fmt.Fprintf(&sb, "\n  AND b.currency_code = ANY($%d)", len(args))
	}
	if len(clauses.Sectors) > 0 {
		args = append(args, clauses.Sectors)
		fmt.Fprintf(&sb, "\n  AND b.sector_code = ANY($%d)", len(args))
	}
	if clauses.AccountFilter != "" {
		sb.WriteString("\n  AND ")
		sb.WriteString(strings.ReplaceAll(clauses.AccountFilter, "account_number", "b.account_number"))
	}

	sb.WriteString("\nGROUP BY ")
	sb.WriteString(strings.Join(groupCols, ", "))
	if clauses.Where != "" {
		sb.WriteString("\nHAVING ")
		sb.WriteString(rewriteHaving(clauses.Where))
	}
	sb.WriteString("\nORDER BY b.ledger_id, b.currency_code, b.account_number, b.sector_code")
	if q.WithSubledgerAccount {
		sb.WriteString(", b.subledger_account_id")
	}
	return sb.String(), args
}

// rewriteHaving maps the zero-balance predicate onto the aggregates.
func rewriteHaving(where string) string {
	replacer := strings.NewReplacer(
		"current_balance", "SUM(b.current_balance)",
		"debit", "SUM(b.debit)",
		"credit", "SUM(b.credit)",
	)
	return replacer.Replace(where)
}

func scanPostingEntry(rows pgx.Rows, q *Query) (*Entry, error) {
	e := &Entry{ItemType: ItemEntry}
	var (
		groupName                       *string
		subledgerID                     *int64
		subledgerNum                    *string
		lastChangeDate                  *time.Time
		initial, debit, credit, current decimal.Decimal
	)
	dest := []any{
		&e.LedgerID, &e.LedgerNumber, &e.LedgerName, &e.CurrencyCode, &e.CurrencyName,
		&e.AccountNumber, &e.AccountName, &e.GroupNumber, &groupName,
		&e.DebtorCreditor, &e.SectorCode,
	}
	if q.WithSubledgerAccount {
		dest = append(dest, &subledgerID, &subledgerNum)
	}
	dest = append(dest, &initial, &debit, &credit, &current, &lastChangeDate)
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("balances: scan posting entry: %w", err)
	}
	if groupName != nil {
		e.GroupName = *groupName
	}
	if subledgerID != nil {
		e.SubledgerAccountID = *subledgerID
	}
	if subledgerNum != nil {
		e.SubledgerAccountNumber = *subledgerNum
	}
	if lastChangeDate != nil {
		e.LastChangeDate = *lastChangeDate
	}
	if e.SectorCode == "" {
		e.SectorCode = refdata.SectorNone
	}
	e.InitialBalance = initial
	e.Debit = debit
	e.Credit = credit
	e.CurrentBalance = current
	return e, nil
}
