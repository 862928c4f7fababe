package handler

import (
	"net/http"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
	"github.com/dafibh/brokewise/brokewise-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// ExchangeRateHandler serves single currency pair quotes
type ExchangeRateHandler struct {
	rates service.RateSource
}

// NewExchangeRateHandler creates a new ExchangeRateHandler
func NewExchangeRateHandler(rates service.RateSource) *ExchangeRateHandler {
	return &ExchangeRateHandler{
		rates: rates,
	}
}

// GetRate returns the rate from one currency to another
// @Summary Get exchange rate
// @Description Never fails; unavailable rates are reported as 1.0 with an error annotation
// @Tags rates
// @Produce json
// @Param from query string false "Source currency" default(USD)
// @Param to query string false "Target currency" default(USD)
// @Success 200 {object} domain.RateQuote
// @Failure 400 {object} ProblemDetails
// @Failure 429 {object} ProblemDetails
// @Router /api/exchange-rate [get]
func (h *ExchangeRateHandler) GetRate(c echo.Context) error {
	from := queryCurrency(c, "from")
	to := queryCurrency(c, "to")

	var fieldErrs []ValidationError
	if err := domain.ValidateCurrency(from); err != nil {
		fieldErrs = append(fieldErrs, ValidationError{Field: "from", Message: err.Error()})
	}
	if err := domain.ValidateCurrency(to); err != nil {
		fieldErrs = append(fieldErrs, ValidationError{Field: "to", Message: err.Error()})
	}
	if len(fieldErrs) > 0 {
		return NewValidationError(c, "Invalid currency code", fieldErrs)
	}

	return c.JSON(http.StatusOK, h.rates.GetRate(c.Request().Context(), from, to))
}

func queryCurrency(c echo.Context, name string) string {
	value := domain.NormalizeCurrency(c.QueryParam(name))
	if value == "" {
		return "USD"
	}
	return value
}
