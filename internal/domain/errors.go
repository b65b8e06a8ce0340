package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Validation errors — bad client input, recoverable by resubmitting.
var (
	// ErrTitleTooLong is returned when a market title exceeds the configured bound.
	ErrTitleTooLong = errors.New("title too long")

	// ErrDescriptionTooLong is returned when a market description exceeds the
	// configured bound.
	ErrDescriptionTooLong = errors.New("description too long")

	// ErrInvalidResolutionTime is returned when a market's resolution deadline
	// is not strictly in the future.
	ErrInvalidResolutionTime = errors.New("invalid resolution time")

	// ErrBetAmountTooLow is returned when a stake is below the minimum.
	ErrBetAmountTooLow = errors.New("bet amount is below minimum required")

	// ErrInvalidOutcome is returned when the side is not YES or NO.
	ErrInvalidOutcome = errors.New("invalid outcome: must be YES or NO")
)

// Authorization errors — the caller lacks the required capability.
var (
	// ErrUnauthorizedResolver is returned when anyone but the recorded resolver
	// tries to resolve a market.
	ErrUnauthorizedResolver = errors.New("unauthorized to resolve market")

	// ErrUnauthorizedCreator is returned when anyone but the recorded creator
	// tries to close a market.
	ErrUnauthorizedCreator = errors.New("unauthorized to close market")
)

// State/lifecycle errors — the operation is invalid for the market's state.
var (
	// ErrMarketAlreadyResolved is returned on a second resolution attempt.
	ErrMarketAlreadyResolved = errors.New("market has already been resolved")

	// ErrMarketNotExpired is returned when resolution is attempted before the
	// resolution deadline.
	ErrMarketNotExpired = errors.New("market resolution time has not passed")

	// ErrMarketExpired is returned when a bet is placed on an expired or
	// inactive market.
	ErrMarketExpired = errors.New("market has expired and cannot accept new bets")

	// ErrMarketNotResolved is returned when a claim arrives before resolution.
	ErrMarketNotResolved = errors.New("market is not resolved yet")

	// ErrMarketStillActive is returned when close is attempted on a live,
	// unexpired market.
	ErrMarketStillActive = errors.New("market is still active")
)

// Business-rule errors — the request conflicts with recorded facts.
var (
	// ErrUserAlreadyBet is returned when a staker already holds a bet on the market.
	ErrUserAlreadyBet = errors.New("user already has a bet on this market")

	// ErrUserBetOnLosingOutcome is returned when a claim comes from the losing side.
	ErrUserBetOnLosingOutcome = errors.New("user bet on losing outcome")

	// ErrNoWinningsToClaim is returned when the computed payout is zero — which
	// includes a repeat claim on an already-paid bet.
	ErrNoWinningsToClaim = errors.New("user has no winnings to claim")

	// ErrMarketAlreadyExists is returned when the supplied market id is taken.
	ErrMarketAlreadyExists = errors.New("market id already exists")
)

// Not-found errors.
var (
	// ErrMarketNotFound is returned when no market matches the given id.
	ErrMarketNotFound = errors.New("market not found")

	// ErrBetNotFound is returned when the caller holds no bet on the market.
	ErrBetNotFound = errors.New("bet not found")
)

// Arithmetic safety.
var (
	// ErrArithmeticOverflow is returned when a pool or vault update would wrap,
	// truncate, or underdraw — any of which would corrupt conservation. It is
	// never caused by well-formed client input.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)

// ──────────────────────────────────────────────────────────────────────────────
// Taxonomy predicates
// ──────────────────────────────────────────────────────────────────────────────

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation returns true for bad-input errors (HTTP 400 class).
func IsValidation(err error) bool {
	return isAny(err, []error{
		ErrTitleTooLong,
		ErrDescriptionTooLong,
		ErrInvalidResolutionTime,
		ErrBetAmountTooLow,
		ErrInvalidOutcome,
	})
}

// IsAuthorization returns true for missing-capability errors (HTTP 403 class).
func IsAuthorization(err error) bool {
	return isAny(err, []error{
		ErrUnauthorizedResolver,
		ErrUnauthorizedCreator,
	})
}

// IsStateConflict returns true for lifecycle errors (HTTP 409 class).
func IsStateConflict(err error) bool {
	return isAny(err, []error{
		ErrMarketAlreadyResolved,
		ErrMarketNotExpired,
		ErrMarketExpired,
		ErrMarketNotResolved,
		ErrMarketStillActive,
	})
}

// IsBusinessRule returns true when the request conflicts with recorded facts.
func IsBusinessRule(err error) bool {
	return isAny(err, []error{
		ErrUserAlreadyBet,
		ErrUserBetOnLosingOutcome,
		ErrNoWinningsToClaim,
		ErrMarketAlreadyExists,
	})
}

// IsNotFound returns true when err is one of the "entity not found" errors.
// Use this instead of direct comparison when translating to HTTP 404.
func IsNotFound(err error) bool {
	return isAny(err, []error{
		ErrMarketNotFound,
		ErrBetNotFound,
	})
}
