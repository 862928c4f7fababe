package handler

import (
	"errors"
	"net/http"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
	"github.com/dafibh/brokewise/brokewise-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// SettlementHandler handles settlement HTTP requests
type SettlementHandler struct {
	settlementService *service.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(settlementService *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{
		settlementService: settlementService,
	}
}

// CalculateRequest represents the JSON request for a settlement calculation
type CalculateRequest struct {
	Participants []string         `json:"participants"`
	Expenses     []ExpenseRequest `json:"expenses"`
	BaseCurrency string           `json:"baseCurrency"`
}

// BalanceResponse is one participant's totals in the base currency
type BalanceResponse struct {
	Person    string  `json:"person"`
	TotalPaid float64 `json:"totalPaid"`
	TotalOwed float64 `json:"totalOwed"`
	Net       float64 `json:"net"`
}

// TransferResponse is one recommended payment
type TransferResponse struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// CalculateResponse represents the JSON response of a settlement calculation
type CalculateResponse struct {
	Settlements      map[string]float64      `json:"settlements"`
	Balances         []BalanceResponse       `json:"balances"`
	Transfers        []TransferResponse      `json:"transfers"`
	Conversions      []domain.Conversion     `json:"conversions,omitempty"`
	ExchangeRateInfo domain.ExchangeRateInfo `json:"exchangeRateInfo"`
}

// Calculate computes net settlements for a set of expenses
// @Summary Calculate settlements
// @Description Converts every payer and split into the base currency and returns each participant's net
// @Tags settlements
// @Accept json
// @Produce json
// @Param request body CalculateRequest true "Participants, expenses and base currency"
// @Success 200 {object} CalculateResponse
// @Failure 400 {object} ProblemDetails
// @Failure 429 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /calculate [post]
func (h *SettlementHandler) Calculate(c echo.Context) error {
	var req CalculateRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	expenses, err := toDomainExpenses(req.Expenses)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	input := domain.SettlementInput{
		Participants: req.Participants,
		Expenses:     expenses,
		BaseCurrency: req.BaseCurrency,
	}

	result, err := h.settlementService.Calculate(c.Request().Context(), input)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(http.StatusOK, toCalculateResponse(result))
}

func toCalculateResponse(result *domain.SettlementResult) CalculateResponse {
	settlements := make(map[string]float64, len(result.Settlements))
	for person, net := range result.Settlements {
		settlements[person] = net.InexactFloat64()
	}

	balances := make([]BalanceResponse, len(result.Balances))
	for i, b := range result.Balances {
		balances[i] = BalanceResponse{
			Person:    b.Person,
			TotalPaid: b.TotalPaid.InexactFloat64(),
			TotalOwed: b.TotalOwed.InexactFloat64(),
			Net:       b.Net.InexactFloat64(),
		}
	}

	transfers := make([]TransferResponse, len(result.Transfers))
	for i, tr := range result.Transfers {
		transfers[i] = TransferResponse{
			From:     tr.From,
			To:       tr.To,
			Amount:   tr.Amount.InexactFloat64(),
			Currency: tr.Currency,
		}
	}

	return CalculateResponse{
		Settlements:      settlements,
		Balances:         balances,
		Transfers:        transfers,
		Conversions:      result.Conversions,
		ExchangeRateInfo: result.ExchangeRateInfo,
	}
}

// handleServiceError maps domain errors to appropriate HTTP responses
func (h *SettlementHandler) handleServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		return NewValidationError(c, "Invalid settlement input", inputValidationErrors(err))
	default:
		log.Error().Err(err).Msg("Failed to calculate settlement")
		return NewInternalError(c, "Settlement calculation failed")
	}
}
