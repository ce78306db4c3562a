package balances

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ReportType enumerates the supported report shapes. It is a closed set:
// every builder dispatch switches exhaustively over these values and treats
// anything else as a programming error.
type ReportType string

const (
	// ReportBalanza is the traditional trial balance.
	ReportBalanza ReportType = "Balanza"
	// ReportCascada presents balances per bookkeeping ledger with per-ledger
	// consolidated totals.
	ReportCascada ReportType = "BalanzaConContabilidadesEnCascada"
	// ReportColumnasPorMoneda lays out one column per hard currency.
	ReportColumnasPorMoneda ReportType = "BalanzaEnColumnasPorMoneda"
	// ReportComparativa runs two periods and merges them row by row.
	ReportComparativa ReportType = "BalanzaValorizadaComparativa"
	// ReportAnalitico is the two-column domestic/foreign balance.
	ReportAnalitico ReportType = "AnaliticoDeCuentas"
	// ReportSaldosPorCuenta explores balances per standard account.
	ReportSaldosPorCuenta ReportType = "SaldosPorCuenta"
	// ReportSaldosPorAuxiliar explores balances per subledger account.
	ReportSaldosPorAuxiliar ReportType = "SaldosPorAuxiliar"
	// ReportGeneracionDeSaldos produces the raw balance set other subsystems
	// read back (no totals ladder, no validation).
	ReportGeneracionDeSaldos ReportType = "GeneracionDeSaldos"
)

// IsValid reports whether the value belongs to the closed set.
func (t ReportType) IsValid() bool {
	switch t {
	case ReportBalanza, ReportCascada, ReportColumnasPorMoneda, ReportComparativa,
		ReportAnalitico, ReportSaldosPorCuenta, ReportSaldosPorAuxiliar, ReportGeneracionDeSaldos:
		return true
	}
	return false
}

// BalancesMode selects the zero-balance inclusion policy.
type BalancesMode string

const (
	// ModeAllAccounts includes every account, balance or not.
	ModeAllAccounts BalancesMode = "AllAccounts"
	// ModeWithCurrentBalance includes accounts with a non-zero balance.
	ModeWithCurrentBalance BalancesMode = "WithCurrentBalance"
	// ModeWithCurrentBalanceOrMovements includes accounts with a non-zero
	// balance or any movement in the period.
	ModeWithCurrentBalanceOrMovements BalancesMode = "WithCurrentBalanceOrMovements"
	// ModeWithMovements includes accounts with period movements only.
	ModeWithMovements BalancesMode = "WithMovements"
)

// Period is one date range plus its optional valuation parameters.
type Period struct {
	FromDate time.Time `json:"fromDate" validate:"required"`
	ToDate   time.Time `json:"toDate" validate:"required"`

	ValuateToCurrency   string    `json:"valuateToCurrency,omitempty"`
	ExchangeRateTypeUID uuid.UUID `json:"exchangeRateTypeUID,omitempty"`
	ExchangeRateDate    time.Time `json:"exchangeRateDate,omitempty"`
}

// HasValuation reports whether the period requests currency valuation.
func (p Period) HasValuation() bool {
	return p.ValuateToCurrency != ""
}

// Days returns the number of days covered by the period, at least 1.
func (p Period) Days() int {
	days := int(p.ToDate.Sub(p.FromDate).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// Query describes one report computation. It is built by the caller, treated
// as immutable for the duration of the computation, and hashed to form the
// result-cache key.
type Query struct {
	ReportType      ReportType `json:"reportType" validate:"required"`
	AccountsChartUID uuid.UUID `json:"accountsChartUID" validate:"required"`

	Ledgers           []string `json:"ledgers,omitempty"`
	Currencies        []string `json:"currencies,omitempty"`
	Sectors           []string `json:"sectors,omitempty"`
	Accounts          []string `json:"accounts,omitempty"`
	SubledgerAccounts []string `json:"subledgerAccounts,omitempty"`

	FromAccount string `json:"fromAccount,omitempty"`
	ToAccount   string `json:"toAccount,omitempty"`

	InitialPeriod Period  `json:"initialPeriod"`
	FinalPeriod   *Period `json:"finalPeriod,omitempty"`

	Level int `json:"level,omitempty" validate:"gte=0,lte=9"`

	BalancesType BalancesMode `json:"balancesType,omitempty"`

	ShowCascadeBalances                 bool `json:"showCascadeBalances,omitempty"`
	ConsolidateBalancesToTargetCurrency bool `json:"consolidateBalancesToTargetCurrency,omitempty"`
	WithSubledgerAccount                bool `json:"withSubledgerAccount,omitempty"`
	WithAverageBalance                  bool `json:"withAverageBalance,omitempty"`
	WithSectorization                   bool `json:"withSectorization,omitempty"`
	UseDefaultValuation                 bool `json:"useDefaultValuation,omitempty"`
	IsOperationalReport                 bool `json:"isOperationalReport,omitempty"`

	UseCache bool `json:"useCache,omitempty"`
}

// Consolidated reports whether the result presents a single consolidated
// view. Exactly one of Consolidated and ShowCascadeBalances holds.
func (q *Query) Consolidated() bool {
	return !q.ShowCascadeBalances
}

// Mode returns the zero-balance inclusion policy, defaulting to every
// account when the caller left it empty.
func (q *Query) Mode() BalancesMode {
	if q.BalancesType == "" {
		return ModeAllAccounts
	}
	return q.BalancesType
}

var queryValidator = validator.New()

// Validate checks the query for user-facing input errors. Malformed values
// are reported with the offending text so the caller can correct and retry.
func (q *Query) Validate() error {
	if !q.ReportType.IsValid() {
		return fmt.Errorf("balances: unknown report type %q", q.ReportType)
	}
	if err := queryValidator.Struct(q); err != nil {
		return fmt.Errorf("balances: invalid query: %w", err)
	}
	if q.InitialPeriod.ToDate.Before(q.InitialPeriod.FromDate) {
		return fmt.Errorf("balances: period end %s before start %s",
			q.InitialPeriod.ToDate.Format("2006-01-02"), q.InitialPeriod.FromDate.Format("2006-01-02"))
	}
	if q.ReportType == ReportComparativa && q.FinalPeriod == nil {
		return fmt.Errorf("balances: comparative report requires a final period")
	}
	for _, raw := range q.Accounts {
		if _, err := ParseAccountRange(raw); err != nil {
			return err
		}
	}
	if q.FromAccount != "" || q.ToAccount != "" {
		if err := validateRangeBound(q.FromAccount); err != nil {
			return err
		}
		if err := validateRangeBound(q.ToAccount); err != nil {
			return err
		}
	}
	return nil
}

// queryDigest is the canonical serialization hashed into the cache key.
// Filter slices are sorted so two queries that differ only in field order
// hash identically.
type queryDigest struct {
	Query
	Ledgers           []string `json:"ledgers,omitempty"`
	Currencies        []string `json:"currencies,omitempty"`
	Sectors           []string `json:"sectors,omitempty"`
	Accounts          []string `json:"accounts,omitempty"`
	SubledgerAccounts []string `json:"subledgerAccounts,omitempty"`
}

// CacheKey returns a stable hash of the query.
func (q *Query) CacheKey() string {
	digest := queryDigest{Query: *q}
	digest.Ledgers = sortedCopy(q.Ledgers)
	digest.Currencies = sortedCopy(q.Currencies)
	digest.Sectors = sortedCopy(q.Sectors)
	digest.Accounts = sortedCopy(q.Accounts)
	digest.SubledgerAccounts = sortedCopy(q.SubledgerAccounts)

	data, err := json.Marshal(digest)
	if err != nil {
		// A query is always a plain value object; marshalling cannot fail.
		panic(fmt.Sprintf("balances: marshal query for cache key: %v", err))
	}
	sum := sha256.Sum256(data)
	return "balances:" + string(q.ReportType) + ":" + hex.EncodeToString(sum[:16])
}

func sortedCopy(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
