package handler

import (
	"fmt"
	"time"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// MoneyLegRequest is one payer or split as sent by clients.
// Amount is nil when the field is absent or null.
type MoneyLegRequest struct {
	Person   string           `json:"person"`
	Amount   *decimal.Decimal `json:"amount"`
	Currency string           `json:"currency"`
}

// ExpenseRequest is one expense as sent by clients
type ExpenseRequest struct {
	Description     string            `json:"description"`
	DisplayCurrency string            `json:"displayCurrency"`
	Date            string            `json:"date,omitempty"`
	Payers          []MoneyLegRequest `json:"payers"`
	Splits          []MoneyLegRequest `json:"splits"`
}

// MoneyLegResponse is one payer or split in API responses
type MoneyLegResponse struct {
	Person   string  `json:"person"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// ExpenseResponse is one stored expense in API responses
type ExpenseResponse struct {
	ID              int64              `json:"id"`
	Description     string             `json:"description"`
	DisplayCurrency string             `json:"displayCurrency"`
	Date            string             `json:"date"`
	Payers          []MoneyLegResponse `json:"payers"`
	Splits          []MoneyLegResponse `json:"splits"`
}

// accepted layouts for the optional expense date
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func parseExpenseDate(value string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func toDomainLegs(expense int, kind string, legs []MoneyLegRequest) ([]domain.MoneyLeg, domain.InputErrors) {
	var errs domain.InputErrors
	out := make([]domain.MoneyLeg, len(legs))
	for i, leg := range legs {
		out[i] = domain.MoneyLeg{Person: leg.Person, Currency: leg.Currency}
		if leg.Amount == nil {
			errs = append(errs, &domain.InputError{
				Expense: expense,
				Field:   fmt.Sprintf("%s[%d].amount", kind, i),
				Err:     domain.ErrAmountMissing,
			})
			continue
		}
		out[i].Amount = *leg.Amount
	}
	return out, errs
}

// toDomainExpenses converts request expenses, rejecting legs without an amount
func toDomainExpenses(expenses []ExpenseRequest) ([]domain.Expense, error) {
	var errs domain.InputErrors
	out := make([]domain.Expense, len(expenses))
	for i, exp := range expenses {
		payers, payerErrs := toDomainLegs(i, "payers", exp.Payers)
		splits, splitErrs := toDomainLegs(i, "splits", exp.Splits)
		errs = append(errs, payerErrs...)
		errs = append(errs, splitErrs...)
		out[i] = domain.Expense{
			Description:     exp.Description,
			DisplayCurrency: exp.DisplayCurrency,
			Payers:          payers,
			Splits:          splits,
		}
		if exp.Date != "" {
			out[i].CreatedAt = parseExpenseDate(exp.Date)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func toLegResponses(legs []domain.MoneyLeg) []MoneyLegResponse {
	out := make([]MoneyLegResponse, len(legs))
	for i, leg := range legs {
		out[i] = MoneyLegResponse{Person: leg.Person, Amount: leg.Amount.InexactFloat64(), Currency: leg.Currency}
	}
	return out
}

func toExpenseResponses(expenses []domain.Expense) []ExpenseResponse {
	out := make([]ExpenseResponse, len(expenses))
	for i, exp := range expenses {
		out[i] = ExpenseResponse{
			ID:              exp.ID,
			Description:     exp.Description,
			DisplayCurrency: exp.DisplayCurrency,
			Date:            exp.CreatedAt.UTC().Format(time.RFC3339),
			Payers:          toLegResponses(exp.Payers),
			Splits:          toLegResponses(exp.Splits),
		}
	}
	return out
}
