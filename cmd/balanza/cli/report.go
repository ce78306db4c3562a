package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/balanza-fin/balanza/internal/balances"
)

// esMX renders amounts the way the finance team reads them: grouped
// thousands, two decimals.
var esMX = message.NewPrinter(language.MustParse("es-MX"))

// ReportOptions collects the report subcommand flags.
type ReportOptions struct {
	Type        string
	ChartUID    string
	From        string
	To          string
	Ledgers     string
	Currencies  string
	Accounts    string
	Level       int
	Cascade     bool
	Subledger   bool
	Sectorized  bool
	Average     bool
	ValuateTo   string
	UseCache    bool
	FixturePath string
}

// RegisterReportFlags binds the report flags onto a flag set.
func RegisterReportFlags(fs *flag.FlagSet, opts *ReportOptions) {
	fs.StringVar(&opts.Type, "type", string(balances.ReportBalanza), "report type")
	fs.StringVar(&opts.ChartUID, "chart", "", "accounts chart UID (defaults to the fixture chart)")
	fs.StringVar(&opts.From, "from", "", "period start (YYYY-MM-DD)")
	fs.StringVar(&opts.To, "to", "", "period end (YYYY-MM-DD)")
	fs.StringVar(&opts.Ledgers, "ledgers", "", "comma-separated ledger numbers")
	fs.StringVar(&opts.Currencies, "currencies", "", "comma-separated currency codes")
	fs.StringVar(&opts.Accounts, "accounts", "", "comma-separated account prefixes or low - high ranges")
	fs.IntVar(&opts.Level, "level", 0, "restrict output to account levels up to N (0 = all)")
	fs.BoolVar(&opts.Cascade, "cascade", false, "per-ledger cascade totals")
	fs.BoolVar(&opts.Subledger, "subledger", false, "split by subledger account")
	fs.BoolVar(&opts.Sectorized, "sectorized", false, "keep sector detail")
	fs.BoolVar(&opts.Average, "average", false, "derive average balances")
	fs.StringVar(&opts.ValuateTo, "valuate-to", "", "valuate balances to this currency")
	fs.BoolVar(&opts.UseCache, "use-cache", false, "serve from the result cache when possible")
	fs.StringVar(&opts.FixturePath, "fixture", "", "run against a JSON fixture instead of the database")
}

// BuildQuery translates the flags into an engine query.
func (opts *ReportOptions) BuildQuery(chartUID uuid.UUID) (*balances.Query, error) {
	from, err := time.Parse("2006-01-02", opts.From)
	if err != nil {
		return nil, fmt.Errorf("cli: parse -from: %w", err)
	}
	to, err := time.Parse("2006-01-02", opts.To)
	if err != nil {
		return nil, fmt.Errorf("cli: parse -to: %w", err)
	}
	q := &balances.Query{
		ReportType:           balances.ReportType(opts.Type),
		AccountsChartUID:     chartUID,
		Ledgers:              splitList(opts.Ledgers),
		Currencies:           splitList(opts.Currencies),
		Accounts:             splitList(opts.Accounts),
		InitialPeriod:        balances.Period{FromDate: from, ToDate: to},
		Level:                opts.Level,
		ShowCascadeBalances:  opts.Cascade,
		WithSubledgerAccount: opts.Subledger,
		WithSectorization:    opts.Sectorized,
		WithAverageBalance:   opts.Average,
		UseCache:             opts.UseCache,
	}
	if opts.ValuateTo != "" {
		q.InitialPeriod.ValuateToCurrency = opts.ValuateTo
	}
	return q, nil
}

// RunReport executes the query and prints the rendered rows.
func RunReport(ctx context.Context, out io.Writer, useCases *balances.UseCases, q *balances.Query) error {
	result, err := useCases.BuildReport(ctx, q)
	if err != nil {
		return err
	}
	Render(out, result)
	return nil
}

// Render writes the result as an aligned text table.
func Render(out io.Writer, result *balances.Result) {
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	defer w.Flush()

	switch {
	case len(result.AnalyticEntries) > 0:
		fmt.Fprintln(w, "CUENTA\tNOMBRE\tMONEDA NACIONAL\tMONEDA EXTRANJERA\tTOTAL")
		for _, row := range result.AnalyticEntries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				row.AccountNumber, row.AccountName,
				amount(row.DomesticBalance), amount(row.ForeignBalance), amount(row.TotalBalance))
		}
	case len(result.CurrencyEntries) > 0:
		fmt.Fprintln(w, "CUENTA\tNOMBRE\tM.N.\tDLS\tYENES\tEUROS\tUDIS\tTOTAL VALORIZADO")
		for _, row := range result.CurrencyEntries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				row.AccountNumber, row.AccountName,
				amount(row.DomesticBalance), amount(row.DollarBalance), amount(row.YenBalance),
				amount(row.EuroBalance), amount(row.UdisBalance), amount(row.TotalValorized))
		}
	case len(result.ComparativeEntries) > 0:
		fmt.Fprintln(w, "CUENTA\tNOMBRE\tSALDO INICIAL\tSALDO FINAL\tVARIACION\tVARIACION T.C.")
		for _, row := range result.ComparativeEntries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				row.AccountNumber, row.AccountName,
				amount(row.FirstTotalBalance), amount(row.SecondTotalBalance),
				amount(row.Variation), amount(row.VariationByER))
		}
	default:
		fmt.Fprintln(w, "CUENTA\tNOMBRE\tSALDO INICIAL\tCARGOS\tABONOS\tSALDO ACTUAL")
		for _, e := range result.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.AccountNumber, e.AccountName,
				amount(e.InitialBalance), amount(e.Debit), amount(e.Credit), amount(e.CurrentBalance))
		}
	}
}

func amount(value decimal.Decimal) string {
	return esMX.Sprintf("%.2f", value.InexactFloat64())
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
