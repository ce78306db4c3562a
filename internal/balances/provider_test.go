package balances

import (
	"strings"
	"testing"
)

func TestBuildClausesDefaults(t *testing.T) {
	q := testQuery(ReportBalanza)
	c, err := q.BuildClauses()
	if err != nil {
		t.Fatalf("BuildClauses returned error: %v", err)
	}
	if c.Where != "" {
		t.Fatalf("expected no inclusion predicate for all accounts, got %q", c.Where)
	}
	if len(c.Grouping) != 4 {
		t.Fatalf("expected 4 grouping keys got %v", c.Grouping)
	}
	for _, field := range c.Fields {
		if strings.HasPrefix(field, "subledger") {
			t.Fatalf("subledger fields must only appear on request")
		}
	}
}

func TestBuildClausesInclusionModes(t *testing.T) {
	cases := map[BalancesMode]string{
		ModeWithCurrentBalance:            "current_balance <> 0",
		ModeWithCurrentBalanceOrMovements: "current_balance <> 0 OR debit <> 0 OR credit <> 0",
		ModeWithMovements:                 "debit <> 0 OR credit <> 0",
	}
	for mode, want := range cases {
		q := testQuery(ReportBalanza)
		q.BalancesType = mode
		c, err := q.BuildClauses()
		if err != nil {
			t.Fatalf("BuildClauses(%s) returned error: %v", mode, err)
		}
		if c.Where != want {
			t.Fatalf("mode %s: expected %q got %q", mode, want, c.Where)
		}
	}

	q := testQuery(ReportBalanza)
	q.BalancesType = BalancesMode("Everything")
	if _, err := q.BuildClauses(); err == nil {
		t.Fatalf("expected an error for an unknown balances mode")
	}
}

func TestBuildClausesSubledgerDetail(t *testing.T) {
	q := testQuery(ReportSaldosPorAuxiliar)
	q.WithSubledgerAccount = true
	c, err := q.BuildClauses()
	if err != nil {
		t.Fatalf("BuildClauses returned error: %v", err)
	}
	if c.Grouping[len(c.Grouping)-1] != "subledger_account_id" {
		t.Fatalf("expected subledger grouping, got %v", c.Grouping)
	}
}

func TestBuildClausesFilters(t *testing.T) {
	q := testQuery(ReportBalanza)
	q.Ledgers = []string{"1", "2"}
	q.Currencies = []string{"MXN"}
	c, err := q.BuildClauses()
	if err != nil {
		t.Fatalf("BuildClauses returned error: %v", err)
	}
	if len(c.Ledgers) != 2 || c.Ledgers[0] != "1" || c.Ledgers[1] != "2" {
		t.Fatalf("unexpected ledger filter %v", c.Ledgers)
	}
	if len(c.Currencies) != 1 || c.Currencies[0] != "MXN" {
		t.Fatalf("unexpected currency filter %v", c.Currencies)
	}
	if len(c.Sectors) != 0 {
		t.Fatalf("expected no sector filter, got %v", c.Sectors)
	}
}

func TestPostingEntriesSQLBindsFilters(t *testing.T) {
	q := testQuery(ReportBalanza)
	q.Ledgers = []string{"01", "02"}
	q.Currencies = []string{"MXN"}
	q.Sectors = []string{"41"}
	c, err := q.BuildClauses()
	if err != nil {
		t.Fatalf("BuildClauses returned error: %v", err)
	}

	sql, args := buildPostingEntriesSQL(q, testPeriod(), c)
	if !strings.Contains(sql, "l.number = ANY($4)") ||
		!strings.Contains(sql, "b.currency_code = ANY($5)") ||
		!strings.Contains(sql, "b.sector_code = ANY($6)") {
		t.Fatalf("expected bound filter placeholders, got:\n%s", sql)
	}
	// Filter values travel as parameters, never spliced into the text.
	if strings.Contains(sql, "01") || strings.Contains(sql, "MXN") || strings.Contains(sql, "41") {
		t.Fatalf("filter values leaked into the statement:\n%s", sql)
	}
	if len(args) != 6 {
		t.Fatalf("expected 6 args got %d", len(args))
	}
	ledgers, ok := args[3].([]string)
	if !ok || len(ledgers) != 2 || ledgers[0] != "01" {
		t.Fatalf("expected ledger numbers as a bound slice, got %v", args[3])
	}
}

func TestBuildClausesAccountFilter(t *testing.T) {
	q := testQuery(ReportBalanza)
	q.Accounts = []string{"1101", "1200 - 1299"}
	q.FromAccount = "1000"
	c, err := q.BuildClauses()
	if err != nil {
		t.Fatalf("BuildClauses returned error: %v", err)
	}
	if !strings.Contains(c.AccountFilter, "account_number LIKE '1101%'") {
		t.Fatalf("expected a prefix predicate, got %q", c.AccountFilter)
	}
	if !strings.Contains(c.AccountFilter, "account_number >= '1200'") {
		t.Fatalf("expected a range predicate, got %q", c.AccountFilter)
	}
	if !strings.Contains(c.AccountFilter, "account_number >= '1000'") {
		t.Fatalf("expected the from-account bound, got %q", c.AccountFilter)
	}

	q.Accounts = []string{"bad!"}
	if _, err := q.BuildClauses(); err == nil {
		t.Fatalf("expected an error for a malformed account filter")
	}
}

func TestMatchesAccountFilters(t *testing.T) {
	q := testQuery(ReportBalanza)
	q.Accounts = []string{"1101", "1200 - 1299"}
	if !q.MatchesAccountFilters("1101-02") {
		t.Fatalf("expected 1101-02 to match the prefix filter")
	}
	if !q.MatchesAccountFilters("1250") {
		t.Fatalf("expected 1250 to match the range filter")
	}
	if q.MatchesAccountFilters("2101") {
		t.Fatalf("expected 2101 outside every filter")
	}

	bounded := testQuery(ReportBalanza)
	bounded.FromAccount = "1100"
	bounded.ToAccount = "1199"
	if !bounded.MatchesAccountFilters("1150") {
		t.Fatalf("expected 1150 inside the bounds")
	}
	if bounded.MatchesAccountFilters("1200") {
		t.Fatalf("expected 1200 above the upper bound")
	}
}
