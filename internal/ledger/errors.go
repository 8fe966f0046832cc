// Package ledger keeps the day-scoped counters: the sport calorie bonus and
// the chess win/loss ledger.
package ledger

import "errors"

var (
	// ErrInvalidInput is returned for non-positive amounts and empty opponents.
	ErrInvalidInput = errors.New("ledger: invalid input")
	// ErrNothingToRollback is returned when today has no start-of-day snapshot.
	ErrNothingToRollback = errors.New("ledger: nothing to roll back today")
)
