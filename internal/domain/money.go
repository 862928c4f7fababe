package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyLeg is one payer contribution or one split obligation within an expense
type MoneyLeg struct {
	Person   string          `json:"person"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Expense is a single shared expense with its payers and splits.
// Payer and split totals are not required to match.
type Expense struct {
	ID              int64      `json:"id,omitempty"`
	Description     string     `json:"description"`
	DisplayCurrency string     `json:"displayCurrency"`
	CreatedAt       time.Time  `json:"date"`
	Payers          []MoneyLeg `json:"payers"`
	Splits          []MoneyLeg `json:"splits"`
}

// NormalizeCurrency upper-cases and trims a currency code
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCurrency checks that code is a 3-letter ISO-4217 style code after normalization
func ValidateCurrency(code string) error {
	code = NormalizeCurrency(code)
	if len(code) != 3 {
		return ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ErrInvalidCurrency
		}
	}
	return nil
}

// ParticipantSet builds a lookup of participant names. Blank names are rejected.
func ParticipantSet(participants []string) (map[string]struct{}, error) {
	var errs InputErrors
	set := make(map[string]struct{}, len(participants))
	for i, p := range participants {
		field := fmt.Sprintf("participants[%d]", i)
		switch {
		case strings.TrimSpace(p) == "":
			errs = append(errs, &InputError{Expense: -1, Field: field, Err: ErrInvalidInput})
		case len(p) > MaxPersonLength:
			errs = append(errs, &InputError{Expense: -1, Field: field, Err: ErrInvalidInput})
		default:
			set[p] = struct{}{}
		}
	}
	if err := errs.orNil(); err != nil {
		return nil, err
	}
	return set, nil
}

// ValidateExpenses checks every leg of every expense against the participant set.
// Currency codes on the expenses are normalized in place.
func ValidateExpenses(participants map[string]struct{}, expenses []Expense) error {
	var errs InputErrors
	for i := range expenses {
		exp := &expenses[i]
		if exp.DisplayCurrency != "" {
			if err := ValidateCurrency(exp.DisplayCurrency); err != nil {
				errs = append(errs, &InputError{Expense: i, Field: "displayCurrency", Err: err})
			}
			exp.DisplayCurrency = NormalizeCurrency(exp.DisplayCurrency)
		}
		errs = append(errs, validateLegs(participants, i, "payers", exp.Payers)...)
		errs = append(errs, validateLegs(participants, i, "splits", exp.Splits)...)
	}
	return errs.orNil()
}

func validateLegs(participants map[string]struct{}, expense int, kind string, legs []MoneyLeg) InputErrors {
	var errs InputErrors
	for j := range legs {
		leg := &legs[j]
		prefix := fmt.Sprintf("%s[%d]", kind, j)
		if _, ok := participants[leg.Person]; !ok {
			errs = append(errs, &InputError{Expense: expense, Field: prefix + ".person", Err: ErrUnknownPerson})
		}
		if leg.Amount.IsNegative() {
			errs = append(errs, &InputError{Expense: expense, Field: prefix + ".amount", Err: ErrNegativeAmount})
		}
		if err := ValidateCurrency(leg.Currency); err != nil {
			errs = append(errs, &InputError{Expense: expense, Field: prefix + ".currency", Err: err})
			continue
		}
		leg.Currency = NormalizeCurrency(leg.Currency)
	}
	return errs
}

// ValidateForStorage adds the persistence constraints on top of ValidateExpenses
func ValidateForStorage(participants map[string]struct{}, expenses []Expense) error {
	var errs InputErrors
	for i := range expenses {
		desc := strings.TrimSpace(expenses[i].Description)
		switch {
		case desc == "":
			errs = append(errs, &InputError{Expense: i, Field: "description", Err: ErrDescriptionEmpty})
		case len(desc) > MaxDescriptionLength:
			errs = append(errs, &InputError{Expense: i, Field: "description", Err: ErrInvalidInput})
		}
		if expenses[i].DisplayCurrency == "" {
			errs = append(errs, &InputError{Expense: i, Field: "displayCurrency", Err: ErrInvalidCurrency})
		}
	}
	if err := ValidateExpenses(participants, expenses); err != nil {
		var more InputErrors
		if !errors.As(err, &more) {
			return err
		}
		errs = append(errs, more...)
	}
	return errs.orNil()
}
