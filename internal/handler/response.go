package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
	"github.com/labstack/echo/v4"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation = "https://brokewise.app/errors/validation"
	ErrorTypeNotFound   = "https://brokewise.app/errors/not-found"
	ErrorTypeInternal   = "https://brokewise.app/errors/internal"
)

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errors []ValidationError) error {
	return c.JSON(http.StatusBadRequest, ProblemDetails{
		Type:     ErrorTypeValidation,
		Title:    "Validation Error",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errors,
	})
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return c.JSON(http.StatusNotFound, ProblemDetails{
		Type:     ErrorTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return c.JSON(http.StatusInternalServerError, ProblemDetails{
		Type:     ErrorTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// inputValidationErrors flattens domain input errors into field errors.
// Expense-scoped fields are prefixed with their position, e.g. expenses[1].payers[0].currency.
func inputValidationErrors(err error) []ValidationError {
	var many domain.InputErrors
	if errors.As(err, &many) {
		out := make([]ValidationError, len(many))
		for i, ie := range many {
			out[i] = toValidationError(ie)
		}
		return out
	}
	var one *domain.InputError
	if errors.As(err, &one) {
		return []ValidationError{toValidationError(one)}
	}
	return nil
}

func toValidationError(ie *domain.InputError) ValidationError {
	field := ie.Field
	if ie.Expense >= 0 {
		field = fmt.Sprintf("expenses[%d].%s", ie.Expense, ie.Field)
	}
	return ValidationError{Field: field, Message: ie.Err.Error()}
}
