package domain

import (
	"context"
	"time"
)

// RateSourceExchangeRateAPI labels tables fetched from exchangerate-api.com
const RateSourceExchangeRateAPI = "exchangerate-api.com"

// RateSourceFallback labels synthesized neutral tables
const RateSourceFallback = "fallback"

// FallbackCurrencies are mapped to a neutral 1.0 multiplier when no rates can be fetched
var FallbackCurrencies = []string{"USD", "EUR", "JPY", "GBP"}

// RateTable maps currency codes to multipliers relative to BaseCurrency.
// A table is never mutated after construction; refreshes replace it wholesale.
type RateTable struct {
	BaseCurrency string             `json:"baseCurrency"`
	Rates        map[string]float64 `json:"rates"`
	Timestamp    int64              `json:"timestamp"`
	FetchedAt    time.Time          `json:"fetchedAt"`
	Source       string             `json:"source"`
	Error        string             `json:"error,omitempty"`
}

// IsFallback reports whether the table is a degraded neutral table
func (t *RateTable) IsFallback() bool {
	return t.Error != ""
}

// NewFallbackRateTable builds the neutral table served when rates cannot be fetched
func NewFallbackRateTable(baseCurrency string, now time.Time, cause error) *RateTable {
	rates := make(map[string]float64, len(FallbackCurrencies)+1)
	for _, code := range FallbackCurrencies {
		rates[code] = 1.0
	}
	rates[baseCurrency] = 1.0

	msg := ErrRateFetch.Error()
	if cause != nil {
		msg = cause.Error()
	}
	return &RateTable{
		BaseCurrency: baseCurrency,
		Rates:        rates,
		Timestamp:    now.Unix(),
		FetchedAt:    now,
		Source:       RateSourceFallback,
		Error:        msg,
	}
}

// RateQuote is the result of converting one currency pair
type RateQuote struct {
	Rate      float64 `json:"rate"`
	Timestamp int64   `json:"timestamp"`
	Source    string  `json:"source,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// RateFetcher retrieves a fresh rate table for a base currency from an external source
type RateFetcher interface {
	FetchRates(ctx context.Context, baseCurrency string) (*RateTable, error)
}
