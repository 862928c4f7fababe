package domain

import (
	"github.com/shopspring/decimal"
)

// SettlementInput is the data needed to compute net settlements for a group
type SettlementInput struct {
	Participants []string  `json:"participants"`
	Expenses     []Expense `json:"expenses"`
	BaseCurrency string    `json:"baseCurrency"`
}

// ExchangeRateInfo describes the rate table a calculation was priced against
type ExchangeRateInfo struct {
	Timestamp    int64  `json:"timestamp"`
	Source       string `json:"source"`
	BaseCurrency string `json:"baseCurrency"`
}

// ParticipantBalance holds the base-currency totals for one participant
type ParticipantBalance struct {
	Person    string          `json:"person"`
	TotalPaid decimal.Decimal `json:"totalPaid"`
	TotalOwed decimal.Decimal `json:"totalOwed"`
	Net       decimal.Decimal `json:"net"`
}

// Transfer is one recommended payment that moves a group toward zero balances
type Transfer struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Conversion records the quote applied to one non-base currency
type Conversion struct {
	Currency string    `json:"currency"`
	Quote    RateQuote `json:"quote"`
}

// SettlementResult holds net settlements per participant.
// A positive net means the group owes that person; negative means they owe the group.
type SettlementResult struct {
	Settlements      map[string]decimal.Decimal `json:"settlements"`
	Balances         []ParticipantBalance       `json:"balances"`
	Transfers        []Transfer                 `json:"transfers"`
	Conversions      []Conversion               `json:"conversions,omitempty"`
	ExchangeRateInfo ExchangeRateInfo           `json:"exchangeRateInfo"`
}
