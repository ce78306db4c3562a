package balances

import (
	"context"
	"fmt"
	"strings"
)

// Clauses carries the query fragments handed to the posting-entries
// provider. The engine never builds SQL; it states which fields, filters,
// grouping keys and ordering the storage layer must honour, and the backing
// implementation translates them. The list filters stay as values so the
// adapter can bind them as parameters instead of splicing them into the
// statement.
type Clauses struct {
	Fields         []string
	Grouping       []string
	Ordering       []string
	Ledgers        []string
	Currencies     []string
	Sectors        []string
	AccountFilter  string
	Where          string
	AverageBalance bool
}

// PostingEntriesProvider returns the raw posting-entry balances matching a
// query period. It is the only storage dependency of the engine; the SQL
// stored-procedure semantics live behind this port.
type PostingEntriesProvider interface {
	PostingEntries(ctx context.Context, q *Query, p Period) ([]*Entry, error)
}

// BuildClauses derives the provider fragments from the query: grouping keys
// per report flags, the zero-balance inclusion predicate, and the account
// filters (exact list, prefix/range, from-to bounds).
func (q *Query) BuildClauses() (Clauses, error) {
	c := Clauses{
		Fields: []string{
			"ledger_id", "currency_code", "account_number", "sector_code",
			"initial_balance", "debit", "credit", "current_balance", "last_change_date",
		},
		Grouping: []string{"ledger_id", "currency_code", "account_number", "sector_code"},
		Ordering: []string{"ledger_id", "currency_code", "account_number", "sector_code"},
	}
	if q.WithSubledgerAccount {
		c.Fields = append(c.Fields, "subledger_account_id", "subledger_account_number")
		c.Grouping = append(c.Grouping, "subledger_account_id")
		c.Ordering = append(c.Ordering, "subledger_account_id")
	}
	if q.WithAverageBalance {
		c.AverageBalance = true
	}

	switch q.Mode() {
	case ModeAllAccounts:
		c.Where = ""
	case ModeWithCurrentBalance:
		c.Where = "current_balance <> 0"
	case ModeWithCurrentBalanceOrMovements:
		c.Where = "current_balance <> 0 OR debit <> 0 OR credit <> 0"
	case ModeWithMovements:
		c.Where = "debit <> 0 OR credit <> 0"
	default:
		return Clauses{}, fmt.Errorf("balances: unknown balances type %q", q.BalancesType)
	}

	c.Ledgers = q.Ledgers
	c.Currencies = q.Currencies
	c.Sectors = q.Sectors

	accountFilter, err := q.buildAccountFilter()
	if err != nil {
		return Clauses{}, err
	}
	c.AccountFilter = accountFilter
	return c, nil
}

func (q *Query) buildAccountFilter() (string, error) {
	var parts []string
	for _, raw := range q.Accounts {
		r, err := ParseAccountRange(raw)
		if err != nil {
			return "", err
		}
		if r.High == "" {
			parts = append(parts, fmt.Sprintf("account_number LIKE '%s%%'", r.Low))
		} else {
			parts = append(parts, fmt.Sprintf("(account_number >= '%s' AND (account_number <= '%s' OR account_number LIKE '%s%%'))", r.Low, r.High, r.High))
		}
	}
	if q.FromAccount != "" {
		parts = append(parts, fmt.Sprintf("account_number >= '%s'", q.FromAccount))
	}
	if q.ToAccount != "" {
		parts = append(parts, fmt.Sprintf("(account_number <= '%s' OR account_number LIKE '%s%%')", q.ToAccount, q.ToAccount))
	}
	return strings.Join(parts, " AND "), nil
}

// MatchesAccountFilters applies the parsed account filters in memory. The
// pg adapter pushes them into the query; fixture providers call this
// instead.
func (q *Query) MatchesAccountFilters(accountNumber string) bool {
	if q.FromAccount != "" && accountNumber < q.FromAccount {
		return false
	}
	if q.ToAccount != "" && accountNumber > q.ToAccount && !strings.HasPrefix(accountNumber, q.ToAccount) {
		return false
	}
	if len(q.Accounts) == 0 {
		return true
	}
	for _, raw := range q.Accounts {
		r, err := ParseAccountRange(raw)
		if err != nil {
			continue
		}
		if r.Matches(accountNumber) {
			return true
		}
	}
	return false
}
