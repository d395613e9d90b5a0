package shared

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// BalanceEpsilon is the tolerance used when comparing monetary sums,
// notably journal debit/credit totals.
const BalanceEpsilon = "0.0001"

var balanceEpsilon = decimal.RequireFromString(BalanceEpsilon)

// WithinEpsilon reports whether a and b differ by less than the balance tolerance.
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(balanceEpsilon)
}

// UniqueViolationCode is the PostgreSQL error code for unique constraint violations.
const UniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == UniqueViolationCode
}
