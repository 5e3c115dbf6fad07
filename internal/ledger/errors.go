package ledger

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// Business-rule failures. These are caller-fixable and must never be retried
// automatically; anything else coming out of the store is a transient
// failure the caller may retry with backoff.
var (
	// ErrInvalidArgument is returned for malformed input: non-positive
	// amount, empty platform id, zero adjustment delta.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when the referenced platform does not exist.
	ErrNotFound = errors.New("platform not found")

	// ErrPlatformInactive is returned when the platform exists but has been
	// deactivated.
	ErrPlatformInactive = errors.New("platform is inactive")

	// ErrInsufficientFunds is returned when a deduction would take the
	// balance negative and negative balances are disallowed for that call.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// IsBusinessError reports whether err is one of the ledger's business-rule
// sentinels, so the request layer can present a fixable error instead of
// suggesting a retry.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPlatformInactive) ||
		errors.Is(err, ErrInsufficientFunds)
}

// IsTransient reports whether err looks like a transient store failure
// (lock-wait timeout, serialization conflict, connection loss) that is safe
// to retry. The ledger itself never retries.
func IsTransient(err error) bool {
	if IsBusinessError(err) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", // lock_not_available
			"40001", // serialization_failure
			"40P01", // deadlock_detected
			"57P01": // admin_shutdown
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
