package refdata

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balanza-fin/balanza/internal/platform/db"
)

// Repository loads reference data (charts, ledgers, currencies, sectors,
// subledger accounts) from Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// LoadChart fetches the chart header and every account in one
// repeatable-read snapshot, so the arena never mixes accounts from a chart
// edited mid-load, and builds the arena.
func (r *Repository) LoadChart(ctx context.Context, chartUID uuid.UUID) (*Chart, error) {
	var chart *Chart
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var name, separator string
		if err := tx.QueryRow(ctx,
			`SELECT name, separator FROM accounts_charts WHERE uid = $1`, chartUID,
		).Scan(&name, &separator); err != nil {
			return fmt.Errorf("refdata: load chart %s: %w", chartUID, err)
		}

		rows, err := tx.Query(ctx,
			`SELECT number, name, role_group_number, role_group_name, debtor_creditor, start_date, end_date
			 FROM standard_accounts WHERE chart_uid = $1 ORDER BY number`, chartUID)
		if err != nil {
			return fmt.Errorf("refdata: load accounts for chart %s: %w", chartUID, err)
		}
		defer rows.Close()

		var accounts []Account
		for rows.Next() {
			var acct Account
			if err := rows.Scan(&acct.Number, &acct.Name, &acct.GroupNumber, &acct.GroupName,
				&acct.DebtorCreditor, &acct.StartDate, &acct.EndDate); err != nil {
				return fmt.Errorf("refdata: scan account: %w", err)
			}
			accounts = append(accounts, acct)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("refdata: iterate accounts: %w", err)
		}
		chart, err = NewChart(chartUID, name, separator, accounts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chart, nil
}

// Ledgers fetches the ledgers attached to the chart.
func (r *Repository) Ledgers(ctx context.Context, chartUID uuid.UUID) ([]Ledger, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, uid, number, name, base_currency FROM ledgers WHERE chart_uid = $1 ORDER BY number`, chartUID)
	if err != nil {
		return nil, fmt.Errorf("refdata: load ledgers: %w", err)
	}
	defer rows.Close()

	var ledgers []Ledger
	for rows.Next() {
		var l Ledger
		if err := rows.Scan(&l.ID, &l.UID, &l.Number, &l.Name, &l.Currency); err != nil {
			return nil, fmt.Errorf("refdata: scan ledger: %w", err)
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, rows.Err()
}

// Currencies fetches the currency catalogue.
func (r *Repository) Currencies(ctx context.Context) ([]Currency, error) {
	rows, err := r.db.Query(ctx, `SELECT id, uid, code, name FROM currencies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("refdata: load currencies: %w", err)
	}
	defer rows.Close()

	var currencies []Currency
	for rows.Next() {
		var c Currency
		if err := rows.Scan(&c.ID, &c.UID, &c.Code, &c.Name); err != nil {
			return nil, fmt.Errorf("refdata: scan currency: %w", err)
		}
		currencies = append(currencies, c)
	}
	return currencies, rows.Err()
}

// SubledgerAccounts fetches the auxiliary accounts of a ledger.
func (r *Repository) SubledgerAccounts(ctx context.Context, ledgerID int64) ([]SubledgerAccount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, number, name, ledger_id FROM subledger_accounts WHERE ledger_id = $1 ORDER BY number`, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("refdata: load subledger accounts: %w", err)
	}
	defer rows.Close()

	var accounts []SubledgerAccount
	for rows.Next() {
		var a SubledgerAccount
		if err := rows.Scan(&a.ID, &a.Number, &a.Name, &a.LedgerID); err != nil {
			return nil, fmt.Errorf("refdata: scan subledger account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
