package contracts

import "errors"

// Structural errors abort a run; soft conditions are flagged on values instead.
var (
	// ErrInvalidSubsetSize: subset size negative or larger than the universe
	ErrInvalidSubsetSize = errors.New("invalid subset size")

	// ErrEmptySearchSpace: zero subsets or zero wallets, nothing to evaluate
	ErrEmptySearchSpace = errors.New("empty search space")

	// ErrSamplingBudgetExhausted marks a best-effort weight vector (soft)
	ErrSamplingBudgetExhausted = errors.New("weight sampling budget exhausted")

	// ErrUndefinedSharpeRatio marks a zero-volatility candidate (soft)
	ErrUndefinedSharpeRatio = errors.New("sharpe ratio undefined for zero volatility")

	// ErrWorkerFailure wraps a single candidate evaluation fault
	ErrWorkerFailure = errors.New("candidate evaluation failed")

	// ErrMalformedPrices: non-positive or non-finite price data
	ErrMalformedPrices = errors.New("malformed price data")

	// ErrInsufficientHistory: fewer than two price rows, no return can be formed
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrDimensionMismatch: subset and weight vector lengths differ
	ErrDimensionMismatch = errors.New("dimension mismatch")
)
