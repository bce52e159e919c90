package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input rejected before any side effect.
	ErrValidation = errors.New("validation error")

	// ErrInsufficientBalance marks a trade rejected by the pre-placement
	// balance check.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOrderNotFound is returned by repositories and exchange lookups.
	ErrOrderNotFound = errors.New("order not found")

	// ErrDealNotFound is returned by deal repository lookups.
	ErrDealNotFound = errors.New("deal not found")
)

// ExchangeError wraps a network or API failure at the exchange boundary.
// These are the only errors the retry layer considers retryable.
type ExchangeError struct {
	Op  string
	Err error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange %s: %v", e.Op, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// NewExchangeError wraps err as a retryable exchange failure.
func NewExchangeError(op string, err error) *ExchangeError {
	return &ExchangeError{Op: op, Err: err}
}

// IsRetryable reports whether an error is worth another placement attempt.
// Validation and balance failures are final; exchange failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrInsufficientBalance) {
		return false
	}
	var exErr *ExchangeError
	return errors.As(err, &exErr)
}
