package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternalError    = errors.New("internal error")
	ErrGroupNotFound    = errors.New("group not found")
	ErrInvalidGroupID   = errors.New("invalid group id")
	ErrMalformedInput   = errors.New("malformed input")
	ErrRateFetch        = errors.New("exchange rate fetch failed")
	ErrRateUnavailable  = errors.New("exchange rate unavailable")
	ErrInvalidCurrency  = errors.New("invalid currency code")
	ErrUnknownPerson    = errors.New("person is not a participant")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrAmountMissing    = errors.New("amount is required")
	ErrDescriptionEmpty = errors.New("description is required")
)

// Validation constants
const (
	MaxDescriptionLength = 200
	MaxPersonLength      = 100
	GroupIDLength        = 12
)

// InputError describes one malformed field of caller-supplied settlement data.
// Expense is the zero-based index of the offending expense, or -1 when the
// problem is not tied to an expense.
type InputError struct {
	Expense int
	Field   string
	Err     error
}

func (e *InputError) Error() string {
	if e.Expense < 0 {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("expense %d: %s: %v", e.Expense, e.Field, e.Err)
}

// Unwrap exposes both the specific reason and ErrMalformedInput to errors.Is
func (e *InputError) Unwrap() []error {
	return []error{e.Err, ErrMalformedInput}
}

// InputErrors collects every problem found while validating one request
type InputErrors []*InputError

func (e InputErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ie := range e {
		msgs[i] = ie.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is and errors.As see every collected error
func (e InputErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, ie := range e {
		errs[i] = ie
	}
	return errs
}

// orNil returns nil for an empty collection so callers can return it directly
func (e InputErrors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
