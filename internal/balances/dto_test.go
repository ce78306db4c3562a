package balances

import (
	"testing"
	"time"
)

func TestToDtoEntryColumns(t *testing.T) {
	chart := newTestChart(t)
	result := &Result{
		Query:   testQuery(ReportBalanza),
		Entries: []*Entry{posting(t, chart, "1101", "MXN", "1000", "0")},
		BuiltAt: time.Now(),
	}
	dto := result.ToDto()
	if dto.Columns[len(dto.Columns)-1] != "currentBalance" {
		t.Fatalf("unexpected base columns %v", dto.Columns)
	}
	rows, ok := dto.Rows.([]*EntryDto)
	if !ok || len(rows) != 1 {
		t.Fatalf("expected flat entry rows, got %T", dto.Rows)
	}
	if rows[0].AccountNumber != "1101" || !rows[0].CurrentBalance.Equal(dec("1000")) {
		t.Fatalf("unexpected row %+v", rows[0])
	}
}

func TestToDtoAppendsOptionalColumns(t *testing.T) {
	q := testQuery(ReportBalanza)
	q.WithAverageBalance = true
	q.WithSubledgerAccount = true
	dto := (&Result{Query: q, Entries: []*Entry{}}).ToDto()

	last := dto.Columns[len(dto.Columns)-1]
	secondToLast := dto.Columns[len(dto.Columns)-2]
	if secondToLast != "averageBalance" || last != "subledgerAccountNumber" {
		t.Fatalf("expected the optional columns appended in order, got %v", dto.Columns)
	}
}

func TestToDtoAnalyticShape(t *testing.T) {
	dto := (&Result{
		Query:           testQuery(ReportAnalitico),
		AnalyticEntries: []*AnalyticEntry{{AccountNumber: "1101"}},
	}).ToDto()
	if _, ok := dto.Rows.([]*AnalyticEntry); !ok {
		t.Fatalf("expected analytic rows, got %T", dto.Rows)
	}
	if dto.Columns[len(dto.Columns)-1] != "totalBalance" {
		t.Fatalf("unexpected analytic columns %v", dto.Columns)
	}
}

func TestToDtoComparativeShape(t *testing.T) {
	dto := (&Result{
		Query:              testQuery(ReportComparativa),
		ComparativeEntries: []*ComparativeEntry{{AccountNumber: "1101"}},
	}).ToDto()
	if _, ok := dto.Rows.([]*ComparativeEntry); !ok {
		t.Fatalf("expected comparative rows, got %T", dto.Rows)
	}
	if dto.Columns[len(dto.Columns)-1] != "variationByER" {
		t.Fatalf("unexpected comparative columns %v", dto.Columns)
	}
}
