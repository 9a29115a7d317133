package domain

import "errors"

var (
	// ErrInvalidInput marks missing or malformed candidate data,
	// rejected before any write happens.
	ErrInvalidInput = errors.New("invalid candidate input")

	// ErrInvalidOdds marks decimal odds at or below 1.0, rejected by sizing.
	ErrInvalidOdds = errors.New("odds must be greater than 1.0")

	// ErrBetNotFound means no bet row exists for the game in the active mode.
	ErrBetNotFound = errors.New("no bet for game")

	// ErrAlreadyResolved signals a resolution race on an already-terminal
	// bet. Callers treat it as an idempotent no-op, not a failure.
	ErrAlreadyResolved = errors.New("bet already resolved")

	// ErrLedgerIntegrity means a transaction append would break the
	// balance_after chain. The engine fails closed on it.
	ErrLedgerIntegrity = errors.New("ledger balance chain mismatch")

	// ErrHalted means a prior integrity violation latched the pipeline;
	// automated writes are refused until an operator reset.
	ErrHalted = errors.New("pipeline halted pending operator reset")
)
