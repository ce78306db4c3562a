package balances

import (
	"context"
	"errors"
	"testing"
)

func TestTraditionalBuildTotalsLadder(t *testing.T) {
	chart := newTestChart(t)
	provider := &stubProvider{entries: []*Entry{
		posting(t, chart, "1101", "MXN", "1000", "0"),
		posting(t, chart, "2101", "MXN", "0", "1000"),
	}}
	builder := NewTraditionalBuilder(testQuery(ReportBalanza), chart, provider, testValuator(), testValidator())

	result, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	want := []ItemType{
		ItemEntry, ItemTotalGroupDebtor, ItemTotalDebtor,
		ItemEntry, ItemTotalGroupCreditor, ItemTotalCreditor,
		ItemTotalCurrency, ItemTotalConsolidated,
	}
	if len(result.Entries) != len(want) {
		t.Fatalf("expected %d rows got %d", len(want), len(result.Entries))
	}
	for i, itemType := range want {
		if result.Entries[i].ItemType != itemType {
			t.Fatalf("row %d: expected %s got %s", i, itemType, result.Entries[i].ItemType)
		}
	}

	groupDebtor := entryByName(result.Entries, "TOTAL GRUPO 11")
	if groupDebtor == nil || !groupDebtor.CurrentBalance.Equal(dec("1000")) {
		t.Fatalf("expected TOTAL GRUPO 11 with balance 1000, got %+v", groupDebtor)
	}
	groupCreditor := entryByName(result.Entries, "TOTAL GRUPO 21")
	if groupCreditor == nil || !groupCreditor.CurrentBalance.Equal(dec("-1000")) {
		t.Fatalf("expected TOTAL GRUPO 21 with balance -1000, got %+v", groupCreditor)
	}
	creditor := entryByName(result.Entries, "TOTAL ACREEDORAS")
	if creditor == nil || !creditor.CurrentBalance.Equal(dec("1000")) {
		t.Fatalf("expected flipped TOTAL ACREEDORAS of 1000, got %+v", creditor)
	}
	currency := entryByName(result.Entries, "TOTAL MONEDA MXN")
	if currency == nil || !currency.CurrentBalance.IsZero() {
		t.Fatalf("expected zero TOTAL MONEDA MXN, got %+v", currency)
	}
	grand := entryByName(result.Entries, "TOTAL CONSOLIDADO GENERAL")
	if grand == nil || !grand.CurrentBalance.IsZero() {
		t.Fatalf("expected zero TOTAL CONSOLIDADO GENERAL, got %+v", grand)
	}
}

func TestTraditionalParentSummaryAbsorbsOwnPosting(t *testing.T) {
	chart := newTestChart(t)
	provider := &stubProvider{entries: []*Entry{
		posting(t, chart, "1101", "MXN", "300", "0"),
		posting(t, chart, "1101-01", "MXN", "700", "0"),
	}}
	builder := NewTraditionalBuilder(testQuery(ReportBalanza), chart, provider, testValuator(), testValidator())

	result, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	summaries := entriesOfType(result.Entries, ItemSummary)
	if len(summaries) != 1 {
		t.Fatalf("expected one parent summary got %d", len(summaries))
	}
	summary := summaries[0]
	if summary.AccountNumber != "1101" || !summary.CurrentBalance.Equal(dec("1000")) {
		t.Fatalf("expected summary 1101 with balance 1000, got %s %s", summary.AccountNumber, summary.CurrentBalance)
	}
	if !summary.IsParentPostingEntry {
		t.Fatalf("expected summary to absorb the account's own posting")
	}

	// The absorbed posting and the non-top child never feed group totals.
	group := entryByName(result.Entries, "TOTAL GRUPO 11")
	if group == nil || !group.CurrentBalance.Equal(dec("1000")) {
		t.Fatalf("expected TOTAL GRUPO 11 of 1000, got %+v", group)
	}
	grand := entryByName(result.Entries, "TOTAL CONSOLIDADO GENERAL")
	if grand == nil || !grand.CurrentBalance.Equal(dec("1000")) {
		t.Fatalf("expected grand total 1000, got %+v", grand)
	}
}

func TestTraditionalSectorizedBuild(t *testing.T) {
	chart := newTestChart(t)
	provider := &stubProvider{entries: []*Entry{
		onSector(posting(t, chart, "1101-01", "MXN", "700", "0"), "41"),
	}}
	q := testQuery(ReportBalanza)
	q.WithSectorization = true
	builder := NewTraditionalBuilder(q, chart, provider, testValuator(), testValidator())

	result, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	summaries := entriesOfType(result.Entries, ItemSummary)
	if len(summaries) != 1 {
		t.Fatalf("expected exactly one parent summary got %d", len(summaries))
	}
	if summaries[0].AccountNumber != "1101" || summaries[0].SectorCode != "41" {
		t.Fatalf("expected summary 1101 sector 41, got %s sector %s",
			summaries[0].AccountNumber, summaries[0].SectorCode)
	}
	group := entryByName(result.Entries, "TOTAL GRUPO 11")
	if group == nil || !group.CurrentBalance.Equal(dec("700")) {
		t.Fatalf("expected TOTAL GRUPO 11 of 700, got %+v", group)
	}
}

func TestTraditionalBuildIsRepeatable(t *testing.T) {
	chart := newTestChart(t)
	provider := &stubProvider{entries: []*Entry{
		posting(t, chart, "1101", "MXN", "300", "0"),
		posting(t, chart, "1101-01", "MXN", "700", "0"),
		posting(t, chart, "2101", "MXN", "0", "1000"),
	}}
	builder := NewTraditionalBuilder(testQuery(ReportBalanza), chart, provider, testValuator(), testValidator())

	first, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("first Build returned error: %v", err)
	}
	second, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("second Build returned error: %v", err)
	}

	if len(first.Entries) != len(second.Entries) {
		t.Fatalf("row counts differ: %d vs %d", len(first.Entries), len(second.Entries))
	}
	for i := range first.Entries {
		a, b := first.Entries[i], second.Entries[i]
		if a.ItemType != b.ItemType || a.AccountNumber != b.AccountNumber ||
			a.AccountName != b.AccountName || a.CurrencyCode != b.CurrencyCode ||
			a.SectorCode != b.SectorCode {
			t.Fatalf("row %d identity differs: %+v vs %+v", i, a, b)
		}
		if !a.CurrentBalance.Equal(b.CurrentBalance) || !a.Debit.Equal(b.Debit) || !a.Credit.Equal(b.Credit) {
			t.Fatalf("row %d balances differ: %s vs %s", i, a.CurrentBalance, b.CurrentBalance)
		}
	}
}

func TestGeneracionDeSaldosSkipsTotals(t *testing.T) {
	chart := newTestChart(t)
	provider := &stubProvider{entries: []*Entry{
		posting(t, chart, "1101", "MXN", "1000", "0"),
		posting(t, chart, "2101", "MXN", "0", "1000"),
	}}
	builder := NewTraditionalBuilder(testQuery(ReportGeneracionDeSaldos), chart, provider, testValuator(), testValidator())

	result, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 rows got %d", len(result.Entries))
	}
	for _, e := range result.Entries {
		if e.ItemType.IsTotal() {
			t.Fatalf("unexpected total row %s in raw balance set", e.ItemType)
		}
	}
}

func TestTraditionalEmptyPostings(t *testing.T) {
	chart := newTestChart(t)
	builder := NewTraditionalBuilder(testQuery(ReportBalanza), chart, &stubProvider{}, testValuator(), testValidator())

	result, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Fatalf("expected empty result got %d rows", len(result.Entries))
	}
}

func TestTraditionalProviderError(t *testing.T) {
	chart := newTestChart(t)
	boom := errors.New("connection reset")
	builder := NewTraditionalBuilder(testQuery(ReportBalanza), chart, &stubProvider{err: boom}, testValuator(), testValidator())

	if _, err := builder.Build(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestTraditionalRestrictLevels(t *testing.T) {
	chart := newTestChart(t)
	provider := &stubProvider{entries: []*Entry{
		posting(t, chart, "1101", "MXN", "300", "0"),
		posting(t, chart, "1101-01", "MXN", "700", "0"),
	}}
	q := testQuery(ReportBalanza)
	q.Level = 1
	builder := NewTraditionalBuilder(q, chart, provider, testValuator(), testValidator())

	result, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	for _, e := range result.Entries {
		if e.AccountLevel > 1 {
			t.Fatalf("row %s at level %d survived the level restriction", e.AccountNumber, e.AccountLevel)
		}
	}
}
