package balances

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/balanza-fin/balanza/internal/refdata"
)

func decimalFromRatio(numerator, denominator int) decimal.Decimal {
	if denominator == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(numerator)).Div(decimal.NewFromInt(int64(denominator)))
}

// bucket is an insertion-ordered accumulator keyed by a typed aggregation
// key. Iteration order is deterministic: first-insert order, optionally
// re-sorted by the caller.
type bucket[K comparable] struct {
	order []K
	items map[K]*Entry
}

func newBucket[K comparable]() *bucket[K] {
	return &bucket[K]{items: make(map[K]*Entry)}
}

// generateOrIncrease is the single accumulate-or-create operation behind
// every summary level: insert a derived copy of src under key, or fold src's
// balances into the existing row. init customizes the copy on first insert.
func (b *bucket[K]) generateOrIncrease(key K, src *Entry, init func(*Entry)) {
	if existing, ok := b.items[key]; ok {
		existing.Sum(src)
		return
	}
	derived := src.Clone()
	derived.HasParentPostingEntry = false
	derived.IsParentPostingEntry = false
	if init != nil {
		init(derived)
	}
	b.items[key] = derived
	b.order = append(b.order, key)
}

func (b *bucket[K]) get(key K) (*Entry, bool) {
	e, ok := b.items[key]
	return e, ok
}

func (b *bucket[K]) entries() []*Entry {
	out := make([]*Entry, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, b.items[key])
	}
	return out
}

func (b *bucket[K]) len() int {
	return len(b.items)
}

// Helper is the aggregation engine shared by every report builder. It owns
// no state besides the query and the in-memory chart arena; each computation
// works on its own entry lists and buckets.
type Helper struct {
	query *Query
	chart *refdata.Chart
}

// NewHelper constructs the engine for one computation.
func NewHelper(query *Query, chart *refdata.Chart) *Helper {
	return &Helper{query: query, chart: chart}
}

// RoundEntries truncates every entry to two decimals.
func (h *Helper) RoundEntries(entries []*Entry) {
	for _, e := range entries {
		e.Round()
	}
}

// MergeSectorization collapses per-sector rows into a single sector-00 row
// per (ledger, currency, account, subledger) when the query did not request
// sectorized balances.
func (h *Helper) MergeSectorization(entries []*Entry) []*Entry {
	if h.query.WithSectorization {
		return entries
	}
	merged := newBucket[summaryKey]()
	for _, e := range entries {
		key := h.query.summaryKeyFor(e)
		// Sector merging never crosses ledgers, cascading or not.
		key.LedgerID = e.LedgerID
		key.SectorCode = refdata.SectorNone
		merged.generateOrIncrease(key, e, func(derived *Entry) {
			derived.SectorCode = refdata.SectorNone
		})
	}
	return merged.entries()
}

// CalculatedParentAccounts walks each posting entry's ancestor chain and
// accumulates its balances into every ancestor level, keyed by (account,
// sector). Sectorized queries carry the entry's sector up the chain, so each
// (ancestor, sector) pair gets exactly one summary; otherwise the rows were
// already merged into sector-00 and the ancestors stay there.
func (h *Helper) CalculatedParentAccounts(postings []*Entry) *bucket[summaryKey] {
	summaries := newBucket[summaryKey]()
	for _, e := range postings {
		if e.AccountLevel <= 1 {
			continue
		}
		account, ok := h.chart.Account(e.AccountNumber)
		if !ok {
			continue
		}
		sector := refdata.SectorNone
		if h.query.WithSectorization {
			sector = e.SectorCode
		}
		current := account
		for {
			parent, ok := h.chart.Parent(current.Number)
			if !ok {
				break
			}
			h.increaseSummary(summaries, e, parent, sector)
			current = parent
		}
	}
	return summaries
}

func (h *Helper) increaseSummary(summaries *bucket[summaryKey], e *Entry, target *refdata.Account, sector string) {
	key := summaryKey{
		CurrencyCode:  e.CurrencyCode,
		AccountNumber: target.Number,
		SectorCode:    sector,
	}
	if h.query.ShowCascadeBalances {
		key.LedgerID = e.LedgerID
	}
	if h.query.WithSubledgerAccount {
		key.SubledgerAccountID = e.SubledgerAccountID
	}
	summaries.generateOrIncrease(key, e, func(derived *Entry) {
		derived.ItemType = ItemSummary
		derived.AccountNumber = target.Number
		derived.AccountName = target.Name
		derived.AccountLevel = target.Level
		derived.GroupNumber = target.GroupNumber
		derived.GroupName = target.GroupName
		derived.DebtorCreditor = target.DebtorCreditor
		derived.SectorCode = sector
	})
}

// CombineSummaryAndPostingEntries merges the parent summaries with the
// posting entries into one ordered list, marking a posting entry whose
// account also exists as a summary so later totals do not count the balance
// twice: the summary absorbs the posting's own balances and represents the
// complete subtree.
func (h *Helper) CombineSummaryAndPostingEntries(summaries *bucket[summaryKey], postings []*Entry) []*Entry {
	combined := make([]*Entry, 0, summaries.len()+len(postings))
	for _, posting := range postings {
		key := h.query.summaryKeyFor(posting)
		if summary, ok := summaries.get(key); ok && summary.ItemType == ItemSummary {
			posting.HasParentPostingEntry = true
			summary.IsParentPostingEntry = true
			summary.Sum(posting)
		}
		combined = append(combined, posting)
	}
	combined = append(combined, summaries.entries()...)
	h.SortEntries(combined)
	return combined
}

// SortEntries orders rows by ledger, currency, account, sector, subledger,
// keeping totals where the combine steps placed them out of band.
func (h *Helper) SortEntries(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.LedgerNumber != b.LedgerNumber {
			return a.LedgerNumber < b.LedgerNumber
		}
		if a.CurrencyCode != b.CurrencyCode {
			return a.CurrencyCode < b.CurrencyCode
		}
		if a.AccountNumber != b.AccountNumber {
			return a.AccountNumber < b.AccountNumber
		}
		if a.SectorCode != b.SectorCode {
			return a.SectorCode < b.SectorCode
		}
		return a.SubledgerAccountNumber < b.SubledgerAccountNumber
	})
}

// topLevel reports whether a row aggregates at the top of its account chain
// and therefore feeds group totals directly.
func (h *Helper) topLevel(e *Entry) bool {
	if e.AccountLevel <= 1 {
		return true
	}
	if _, ok := h.chart.Parent(e.AccountNumber); ok {
		return false
	}
	return true
}

// GenerateTotalGroupEntries sums top-level rows lacking a parent-posting
// flag into "TOTAL GRUPO {N}" buckets keyed by (ledger*, nature, currency,
// group). Ledger participates only when the report breaks down per ledger.
func (h *Helper) GenerateTotalGroupEntries(entries []*Entry) *bucket[groupTotalKey] {
	totals := newBucket[groupTotalKey]()
	for _, e := range entries {
		if e.HasParentPostingEntry || !h.topLevel(e) {
			continue
		}
		itemType := ItemTotalGroupDebtor
		if e.DebtorCreditor == refdata.Acreedora {
			itemType = ItemTotalGroupCreditor
		}
		key := h.query.groupTotalKeyFor(e)
		totals.generateOrIncrease(key, e, func(derived *Entry) {
			derived.ItemType = itemType
			derived.AccountNumber = e.GroupNumber
			derived.AccountName = fmt.Sprintf("TOTAL GRUPO %s", e.GroupNumber)
			derived.AccountLevel = 0
			derived.SectorCode = refdata.SectorNone
			derived.SubledgerAccountID = 0
			derived.SubledgerAccountNumber = ""
		})
	}
	return totals
}

// GenerateTotalDebtorCreditorEntries folds group totals into "TOTAL
// DEUDORAS"/"TOTAL ACREEDORAS" buckets per currency (and ledger when
// cascading).
func (h *Helper) GenerateTotalDebtorCreditorEntries(groupTotals []*Entry) *bucket[debtorCreditorKey] {
	totals := newBucket[debtorCreditorKey]()
	for _, e := range groupTotals {
		itemType, name := ItemTotalDebtor, "TOTAL DEUDORAS"
		if e.DebtorCreditor == refdata.Acreedora {
			itemType, name = ItemTotalCreditor, "TOTAL ACREEDORAS"
		}
		key := h.query.debtorCreditorKeyFor(e)
		totals.generateOrIncrease(key, e, func(derived *Entry) {
			derived.ItemType = itemType
			derived.AccountNumber = ""
			derived.AccountName = name
			derived.AccountLevel = 0
			derived.GroupNumber = ""
			derived.GroupName = ""
		})
	}
	return totals
}

// GenerateTotalCurrencyEntries folds debtor and creditor totals into "TOTAL
// MONEDA {code}" buckets. Creditor totals are sign-flipped in place for
// presentation; their pre-flip value feeds the currency total so the net
// reflects debits minus credits.
func (h *Helper) GenerateTotalCurrencyEntries(dcTotals []*Entry) *bucket[currencyTotalKey] {
	totals := newBucket[currencyTotalKey]()
	for _, e := range dcTotals {
		contribution := e
		if e.ItemType == ItemTotalCreditor {
			e.Negate()
			contribution = e.Clone()
			contribution.Negate()
		}
		key := h.query.currencyTotalKeyFor(e)
		name := fmt.Sprintf("TOTAL MONEDA %s", e.CurrencyCode)
		totals.generateOrIncrease(key, contribution, func(derived *Entry) {
			derived.ItemType = ItemTotalCurrency
			derived.DebtorCreditor = refdata.Deudora
			derived.AccountNumber = ""
			derived.AccountName = name
		})
	}
	return totals
}

// GenerateTotalConsolidatedByLedgerEntries folds currency totals into
// "TOTAL CONSOLIDADO {ledger}" buckets, one per ledger. Cascade mode only.
func (h *Helper) GenerateTotalConsolidatedByLedgerEntries(currencyTotals []*Entry) *bucket[ledgerTotalKey] {
	totals := newBucket[ledgerTotalKey]()
	for _, e := range currencyTotals {
		key := ledgerTotalKey{LedgerID: e.LedgerID}
		name := fmt.Sprintf("TOTAL CONSOLIDADO %s", e.LedgerName)
		totals.generateOrIncrease(key, e, func(derived *Entry) {
			derived.ItemType = ItemTotalConsolidatedByLedger
			derived.AccountNumber = ""
			derived.AccountName = name
			derived.CurrencyCode = ""
			derived.CurrencyName = ""
		})
	}
	return totals
}

// GenerateTotalConsolidatedEntry folds every currency total into the single
// "TOTAL CONSOLIDADO GENERAL" row. Returns nil when there is nothing to
// consolidate.
func (h *Helper) GenerateTotalConsolidatedEntry(currencyTotals []*Entry) *Entry {
	if len(currencyTotals) == 0 {
		return nil
	}
	var total *Entry
	for _, e := range currencyTotals {
		if total == nil {
			total = e.Clone()
			total.ItemType = ItemTotalConsolidated
			total.AccountNumber = ""
			total.AccountName = "TOTAL CONSOLIDADO GENERAL"
			total.CurrencyCode = ""
			total.CurrencyName = ""
			total.LedgerID = 0
			total.LedgerNumber = ""
			total.LedgerName = ""
			continue
		}
		total.Sum(e)
	}
	return total
}

// Combine appends each total row immediately after the running-list rows it
// aggregates. A total that matched zero rows is dropped entirely, so empty
// aggregation levels never produce orphan subtotal rows.
func (h *Helper) Combine(entries []*Entry, totals []*Entry, match func(entry, total *Entry) bool) []*Entry {
	combined := make([]*Entry, 0, len(entries)+len(totals))
	for _, total := range totals {
		matched := make([]*Entry, 0, len(entries))
		for _, e := range entries {
			if match(e, total) {
				matched = append(matched, e)
			}
		}
		if h.validateToCountEntries(matched) {
			combined = append(combined, matched...)
			combined = append(combined, total)
		}
	}
	return combined
}

// validateToCountEntries gates the combine step: a group keeps its subtotal
// row only when at least one row fell inside it.
func (h *Helper) validateToCountEntries(matched []*Entry) bool {
	return len(matched) > 0
}

// CombineGroupTotalsAndEntries interleaves "TOTAL GRUPO" rows after their
// matching account rows.
func (h *Helper) CombineGroupTotalsAndEntries(entries []*Entry, groupTotals []*Entry) []*Entry {
	return h.Combine(entries, groupTotals, func(e, total *Entry) bool {
		if e.GroupNumber != total.GroupNumber || e.CurrencyCode != total.CurrencyCode {
			return false
		}
		if e.DebtorCreditor != total.DebtorCreditor {
			return false
		}
		if (h.query.ShowCascadeBalances || h.query.WithSubledgerAccount) && e.LedgerID != total.LedgerID {
			return false
		}
		return true
	})
}

// CombineDebtorCreditorAndEntries interleaves nature totals after the rows
// of their nature and currency.
func (h *Helper) CombineDebtorCreditorAndEntries(entries []*Entry, dcTotals []*Entry) []*Entry {
	return h.Combine(entries, dcTotals, func(e, total *Entry) bool {
		if e.CurrencyCode != total.CurrencyCode {
			return false
		}
		nature := ItemTotalDebtor
		if e.DebtorCreditor == refdata.Acreedora {
			nature = ItemTotalCreditor
		}
		if nature != total.ItemType {
			return false
		}
		if h.query.ShowCascadeBalances && e.LedgerID != total.LedgerID {
			return false
		}
		return true
	})
}

// CombineCurrencyTotalsAndEntries interleaves "TOTAL MONEDA" rows after all
// rows of the currency.
func (h *Helper) CombineCurrencyTotalsAndEntries(entries []*Entry, currencyTotals []*Entry) []*Entry {
	return h.Combine(entries, currencyTotals, func(e, total *Entry) bool {
		if e.CurrencyCode != total.CurrencyCode {
			return false
		}
		if h.query.ShowCascadeBalances && e.LedgerID != total.LedgerID {
			return false
		}
		return true
	})
}

// CombineConsolidatedByLedgerAndEntries interleaves per-ledger consolidated
// rows after all rows of the ledger.
func (h *Helper) CombineConsolidatedByLedgerAndEntries(entries []*Entry, ledgerTotals []*Entry) []*Entry {
	return h.Combine(entries, ledgerTotals, func(e, total *Entry) bool {
		return e.LedgerID == total.LedgerID
	})
}

// AppendConsolidatedEntry places the grand consolidated row at the end.
func (h *Helper) AppendConsolidatedEntry(entries []*Entry, total *Entry) []*Entry {
	if total == nil {
		return entries
	}
	return append(entries, total)
}

// RestrictLevels drops rows below the requested account level. Subtotal
// rows carry level zero and always survive.
func (h *Helper) RestrictLevels(entries []*Entry) []*Entry {
	if h.query.Level <= 0 {
		return entries
	}
	restricted := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if e.AccountLevel <= h.query.Level {
			restricted = append(restricted, e)
		}
	}
	return restricted
}

// DeriveAverageBalances recomputes the average balance of every non-total
// row from its movements weighted by the days they were outstanding. The
// cascade report always derives averages; other reports only on request.
func (h *Helper) DeriveAverageBalances(entries []*Entry, p Period, force bool) {
	if !force && !h.query.WithAverageBalance {
		return
	}
	periodDays := p.Days()
	for _, e := range entries {
		if e.ItemType.IsTotal() {
			continue
		}
		outstanding := periodDays
		if !e.LastChangeDate.IsZero() && e.LastChangeDate.After(p.FromDate) {
			outstanding = int(p.ToDate.Sub(e.LastChangeDate).Hours()/24) + 1
			if outstanding < 0 {
				outstanding = 0
			}
		}
		weight := decimalFromRatio(outstanding, periodDays)
		e.AverageBalance = e.InitialBalance.Add(e.Debit.Sub(e.Credit).Mul(weight)).Round(2)
	}
}

// ReaggregateByAccount rebuilds the non-total rows purely by account number,
// zeroing sectorized summary levels. Runs for operational reports computed
// over balances consolidated to a target currency.
func (h *Helper) ReaggregateByAccount(entries []*Entry) []*Entry {
	if !h.query.ConsolidateBalancesToTargetCurrency || !h.query.IsOperationalReport {
		return entries
	}
	merged := newBucket[summaryKey]()
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if e.ItemType.IsTotal() {
			continue
		}
		key := summaryKey{AccountNumber: e.AccountNumber, CurrencyCode: e.CurrencyCode}
		merged.generateOrIncrease(key, e, func(derived *Entry) {
			derived.SectorCode = refdata.SectorNone
		})
	}
	out = append(out, merged.entries()...)
	h.SortEntries(out)
	for _, e := range entries {
		if e.ItemType.IsTotal() {
			out = append(out, e)
		}
	}
	return out
}
