package refdata

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ExchangeRate is one quote for converting between two currencies on a date
// under a given rate type (fix, market close, accounting, ...).
type ExchangeRate struct {
	RateTypeUID  uuid.UUID
	FromCurrency string
	ToCurrency   string
	Date         time.Time
	Value        decimal.Decimal
}

// RateProvider exposes exchange-rate lookup for the valuation subsystem.
type RateProvider interface {
	Rate(ctx context.Context, rateTypeUID uuid.UUID, from, to string, date time.Time) (decimal.Decimal, error)
}

// ErrRateNotFound is returned when no quote covers the requested lookup.
type ErrRateNotFound struct {
	RateTypeUID  uuid.UUID
	FromCurrency string
	ToCurrency   string
	Date         time.Time
}

func (e *ErrRateNotFound) Error() string {
	return fmt.Sprintf("refdata: no exchange rate %s->%s for type %s at %s",
		e.FromCurrency, e.ToCurrency, e.RateTypeUID, e.Date.Format("2006-01-02"))
}

// RateRepository resolves exchange rates from Postgres.
type RateRepository struct {
	db *pgxpool.Pool
}

// NewRateRepository constructs the repository.
func NewRateRepository(db *pgxpool.Pool) *RateRepository {
	return &RateRepository{db: db}
}

// Rate returns the quote for (rate type, from, to) effective on date.
func (r *RateRepository) Rate(ctx context.Context, rateTypeUID uuid.UUID, from, to string, date time.Time) (decimal.Decimal, error) {
	const query = `SELECT value FROM exchange_rates
		WHERE rate_type_uid = $1 AND from_currency = $2 AND to_currency = $3 AND date = $4`
	var value decimal.Decimal
	err := r.db.QueryRow(ctx, query, rateTypeUID, from, to, date).Scan(&value)
	if err == pgx.ErrNoRows {
		return decimal.Zero, &ErrRateNotFound{RateTypeUID: rateTypeUID, FromCurrency: from, ToCurrency: to, Date: date}
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("refdata: query exchange rate: %w", err)
	}
	return value, nil
}

// StaticRates is an in-memory RateProvider used by tests and the CLI fixture
// mode. Identity conversions always resolve to 1.
type StaticRates struct {
	quotes map[string]decimal.Decimal
}

// NewStaticRates builds the provider from a quote list.
func NewStaticRates(quotes []ExchangeRate) *StaticRates {
	s := &StaticRates{quotes: make(map[string]decimal.Decimal, len(quotes))}
	for _, q := range quotes {
		s.quotes[staticRateKey(q.RateTypeUID, q.FromCurrency, q.ToCurrency, q.Date)] = q.Value
	}
	return s
}

// Rate implements RateProvider.
func (s *StaticRates) Rate(_ context.Context, rateTypeUID uuid.UUID, from, to string, date time.Time) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if value, ok := s.quotes[staticRateKey(rateTypeUID, from, to, date)]; ok {
		return value, nil
	}
	return decimal.Zero, &ErrRateNotFound{RateTypeUID: rateTypeUID, FromCurrency: from, ToCurrency: to, Date: date}
}

func staticRateKey(rateTypeUID uuid.UUID, from, to string, date time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s", rateTypeUID, from, to, date.Format("2006-01-02"))
}
