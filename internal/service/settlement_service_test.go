package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
	"github.com/dafibh/brokewise/brokewise-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leg(person string, amount float64, currency string) domain.MoneyLeg {
	return domain.MoneyLeg{Person: person, Amount: decimal.NewFromFloat(amount), Currency: currency}
}

func assertNet(t *testing.T, want float64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.NewFromFloat(want).Equal(got), "expected %v, got %s", want, got)
}

func TestSettlementService_Calculate_SameCurrency(t *testing.T) {
	rates := testutil.NewMockRateSource()
	service := NewSettlementService(rates)

	result, err := service.Calculate(context.Background(), domain.SettlementInput{
		Participants: []string{"Alice", "Bob"},
		Expenses: []domain.Expense{{
			Description:     "Lunch",
			DisplayCurrency: "USD",
			Payers:          []domain.MoneyLeg{leg("Alice", 20, "USD")},
			Splits:          []domain.MoneyLeg{leg("Alice", 10, "USD"), leg("Bob", 10, "USD")},
		}},
		BaseCurrency: "USD",
	})

	require.NoError(t, err)
	assert.Len(t, result.Settlements, 2)
	assertNet(t, 10, result.Settlements["Alice"])
	assertNet(t, -10, result.Settlements["Bob"])
	assert.Equal(t, 0, rates.LookupCount(), "no conversion when currency matches base")
	assert.Empty(t, result.Conversions)
	assert.Equal(t, "USD", result.ExchangeRateInfo.BaseCurrency)
	assert.Equal(t, domain.RateSourceExchangeRateAPI, result.ExchangeRateInfo.Source)
	assert.Equal(t, int64(1700000000), result.ExchangeRateInfo.Timestamp)
}

func TestSettlementService_Calculate_CrossCurrency(t *testing.T) {
	rates := testutil.NewMockRateSource()
	rates.SetRate("EUR", "USD", 1.1)
	service := NewSettlementService(rates)

	result, err := service.Calculate(context.Background(), domain.SettlementInput{
		Participants: []string{"Alice", "Bob"},
		Expenses: []domain.Expense{{
			Description:     "Museum",
			DisplayCurrency: "EUR",
			Payers:          []domain.MoneyLeg{leg("Alice", 100, "EUR")},
			Splits:          []domain.MoneyLeg{leg("Alice", 50, "EUR"), leg("Bob", 50, "EUR")},
		}},
		BaseCurrency: "USD",
	})

	require.NoError(t, err)
	assertNet(t, 55, result.Settlements["Alice"])
	assertNet(t, -55, result.Settlements["Bob"])
	assert.Equal(t, 1, rates.LookupCount(), "one lookup per distinct non-base currency")
	require.Len(t, result.Conversions, 1)
	assert.Equal(t, "EUR", result.Conversions[0].Currency)
	assert.Equal(t, 1.1, result.Conversions[0].Quote.Rate)
}

func TestSettlementService_Calculate_MissingRate(t *testing.T) {
	rates := testutil.NewMockRateSource()
	service := NewSettlementService(rates)

	result, err := service.Calculate(context.Background(), domain.SettlementInput{
		Participants: []string{"Alice", "Bob"},
		Expenses: []domain.Expense{{
			Description:     "Taxi",
			DisplayCurrency: "XAU",
			Payers:          []domain.MoneyLeg{leg("Bob", 30, "XAU")},
			Splits:          []domain.MoneyLeg{leg("Alice", 15, "XAU"), leg("Bob", 15, "XAU")},
		}},
		BaseCurrency: "USD",
	})

	require.NoError(t, err)
	assertNet(t, -15, result.Settlements["Alice"])
	assertNet(t, 15, result.Settlements["Bob"])
	require.Len(t, result.Conversions, 1)
	assert.NotEmpty(t, result.Conversions[0].Quote.Error)
}

func TestSettlementService_Calculate_WithRateProviderFallback(t *testing.T) {
	fetcher := testutil.NewMockRateFetcher()
	fetcher.SetError(errors.New("network unreachable"))
	provider := NewRateProvider(fetcher, zerolog.Nop(), DefaultRateProviderConfig())
	service := NewSettlementService(provider)

	result, err := service.Calculate(context.Background(), domain.SettlementInput{
		Participants: []string{"Alice", "Bob"},
		Expenses: []domain.Expense{{
			Description: "Hotel",
			Payers:      []domain.MoneyLeg{leg("Alice", 200, "GBP")},
			Splits:      []domain.MoneyLeg{leg("Alice", 100, "GBP"), leg("Bob", 100, "GBP")},
		}},
		BaseCurrency: "USD",
	})

	require.NoError(t, err)
	assertNet(t, 100, result.Settlements["Alice"])
	assertNet(t, -100, result.Settlements["Bob"])
	assert.Equal(t, domain.RateSourceFallback, result.ExchangeRateInfo.Source)
}

func TestSettlementService_Calculate_IdentityConversionIsExact(t *testing.T) {
	rates := testutil.NewMockRateSource()
	rates.SetRate("USD", "USD", 0.5)
	service := NewSettlementService(rates)

	amount, _ := decimal.NewFromString("33.333333")
	result, err := service.Calculate(context.Background(), domain.SettlementInput{
		Participants: []string{"Alice"},
		Expenses: []domain.Expense{{
			Description: "Snacks",
			Payers:      []domain.MoneyLeg{{Person: "Alice", Amount: amount, Currency: "usd"}},
		}},
		BaseCurrency: "usd",
	})

	require.NoError(t, err)
	assert.Equal(t, "33.33", result.Settlements["Alice"].StringFixed(2))
	assert.Equal(t, 0, rates.LookupCount())
}

func TestSettlementService_Calculate_RoundsOnceAtTheEnd(t *testing.T) {
	rates := testutil.NewMockRateSource()
	service := NewSettlementService(rates)

	// Three payments of 0.004 round to 0.00 each but sum to 0.012 -> 0.01
	result, err := service.Calculate(context.Background(), domain.SettlementInput{
		Participants: []string{"Alice"},
		Expenses: []domain.Expense{
			{Description: "a", Payers: []domain.MoneyLeg{leg("Alice", 0.004, "USD")}},
			{Description: "b", Payers: []domain.MoneyLeg{leg("Alice", 0.004, "USD")}},
			{Description: "c", Payers: []domain.MoneyLeg{leg("Alice", 0.004, "USD")}},
		},
		BaseCurrency: "USD",
	})

	require.NoError(t, err)
	assertNet(t, 0.01, result.Settlements["Alice"])
}

func TestSettlementService_Calculate_Conservation(t *testing.T) {
	rates := testutil.NewMockRateSource()
	rates.SetRate("EUR", "USD", 1.0837)
	rates.SetRate("JPY", "USD", 0.00671)
	service := NewSettlementService(rates)

	participants := []string{"Alice", "Bob", "Carol", "Dan"}
	result, err := service.Calculate(context.Background(), domain.SettlementInput{
		Participants: participants,
		Expenses: []domain.Expense{
			{
				Description: "Dinner",
				Payers:      []domain.MoneyLeg{leg("Alice", 60.5, "EUR"), leg("Bob", 39.5, "EUR")},
				Splits:      []domain.MoneyLeg{leg("Alice", 25, "EUR"), leg("Bob", 25, "EUR"), leg("Carol", 25, "EUR"), leg("Dan", 25, "EUR")},
			},
			{
				Description: "Train",
				Payers:      []domain.MoneyLeg{leg("Carol", 10000, "JPY")},
				Splits:      []domain.MoneyLeg{leg("Alice", 3333, "JPY"), leg("Bob", 3333, "JPY"), leg("Carol", 3334, "JPY")},
			},
			{
				Description: "Coffee",
				Payers:      []domain.MoneyLeg{leg("Dan", 17.75, "USD")},
				Splits:      []domain.MoneyLeg{leg("Dan", 5.92, "USD"), leg("Alice", 5.92, "USD"), leg("Bob", 5.91, "USD")},
			},
		},
		BaseCurrency: "USD",
	})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, p := range participants {
		sum = sum.Add(result.Settlements[p])
	}
	tolerance := decimal.NewFromFloat(0.01 * float64(len(participants)))
	assert.True(t, sum.Abs().LessThanOrEqual(tolerance), "settlements sum to %s", sum)
	assert.Equal(t, 2, rates.LookupCount())
}

func TestSettlementService_Calculate_PartialPaymentAllowed(t *testing.T) {
	service := NewSettlementService(testutil.NewMockRateSource())

	result, err := service.Calculate(context.Background(), domain.SettlementInput{
		Participants: []string{"Alice", "Bob"},
		Expenses: []domain.Expense{{
			Description: "Deposit",
			Payers:      []domain.MoneyLeg{leg("Alice", 5, "USD")},
			Splits:      []domain.MoneyLeg{leg("Alice", 10, "USD"), leg("Bob", 10, "USD")},
		}},
		BaseCurrency: "USD",
	})

	require.NoError(t, err)
	assertNet(t, -5, result.Settlements["Alice"])
	assertNet(t, -10, result.Settlements["Bob"])
}

func TestSettlementService_Calculate_ParticipantWithoutLegs(t *testing.T) {
	service := NewSettlementService(testutil.NewMockRateSource())

	result, err := service.Calculate(context.Background(), domain.SettlementInput{
		Participants: []string{"Alice", "Bob", "Carol", "Alice"},
		Expenses:     nil,
		BaseCurrency: "EUR",
	})

	require.NoError(t, err)
	assert.Len(t, result.Settlements, 3)
	assert.True(t, result.Settlements["Carol"].IsZero())
	require.Len(t, result.Balances, 3)
	assert.Equal(t, "Alice", result.Balances[0].Person)
	assert.Equal(t, "Carol", result.Balances[2].Person)
	assert.Empty(t, result.Transfers)
}

func TestSettlementService_Calculate_MalformedInput(t *testing.T) {
	tests := []struct {
		name      string
		input     domain.SettlementInput
		wantErr   error
		wantField string
		wantIndex int
	}{
		{
			name:      "invalid base currency",
			input:     domain.SettlementInput{Participants: []string{"Alice"}, BaseCurrency: "DOLLARS"},
			wantErr:   domain.ErrInvalidCurrency,
			wantField: "baseCurrency",
			wantIndex: -1,
		},
		{
			name:      "blank participant",
			input:     domain.SettlementInput{Participants: []string{"Alice", " "}, BaseCurrency: "USD"},
			wantErr:   domain.ErrInvalidInput,
			wantField: "participants[1]",
			wantIndex: -1,
		},
		{
			name: "unknown payer",
			input: domain.SettlementInput{
				Participants: []string{"Alice", "Bob"},
				Expenses: []domain.Expense{
					{Description: "ok", Payers: []domain.MoneyLeg{leg("Alice", 1, "USD")}},
					{Description: "typo", Payers: []domain.MoneyLeg{leg("Alcie", 1, "USD")}},
				},
				BaseCurrency: "USD",
			},
			wantErr:   domain.ErrUnknownPerson,
			wantField: "payers[0].person",
			wantIndex: 1,
		},
		{
			name: "negative split",
			input: domain.SettlementInput{
				Participants: []string{"Alice"},
				Expenses: []domain.Expense{
					{Description: "refund", Splits: []domain.MoneyLeg{leg("Alice", -3, "USD")}},
				},
				BaseCurrency: "USD",
			},
			wantErr:   domain.ErrNegativeAmount,
			wantField: "splits[0].amount",
			wantIndex: 0,
		},
		{
			name: "bad leg currency",
			input: domain.SettlementInput{
				Participants: []string{"Alice"},
				Expenses: []domain.Expense{
					{Description: "x", Splits: []domain.MoneyLeg{leg("Alice", 3, "U$D")}},
				},
				BaseCurrency: "USD",
			},
			wantErr:   domain.ErrInvalidCurrency,
			wantField: "splits[0].currency",
			wantIndex: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rates := testutil.NewMockRateSource()
			service := NewSettlementService(rates)

			result, err := service.Calculate(context.Background(), tt.input)

			assert.Nil(t, result)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedInput)
			assert.ErrorIs(t, err, tt.wantErr)

			var inputErr *domain.InputError
			require.True(t, errors.As(err, &inputErr))
			assert.Equal(t, tt.wantField, inputErr.Field)
			assert.Equal(t, tt.wantIndex, inputErr.Expense)
			assert.Equal(t, 0, rates.LookupCount(), "rates are never consulted for invalid input")
		})
	}
}

func TestSettlementService_Calculate_DoesNotMutateInput(t *testing.T) {
	service := NewSettlementService(testutil.NewMockRateSource())
	expenses := []domain.Expense{{
		Description: "Lunch",
		Payers:      []domain.MoneyLeg{leg("Alice", 20, "usd")},
	}}

	_, err := service.Calculate(context.Background(), domain.SettlementInput{
		Participants: []string{"Alice"},
		Expenses:     expenses,
		BaseCurrency: "USD",
	})

	require.NoError(t, err)
	assert.Equal(t, "usd", expenses[0].Payers[0].Currency)
}

func TestRecommendTransfers(t *testing.T) {
	balances := []domain.ParticipantBalance{
		{Person: "Alice", Net: decimal.NewFromInt(50)},
		{Person: "Bob", Net: decimal.NewFromInt(-30)},
		{Person: "Carol", Net: decimal.NewFromInt(10)},
		{Person: "Dan", Net: decimal.NewFromInt(-30)},
		{Person: "Eve", Net: decimal.Zero},
	}

	transfers := RecommendTransfers(balances, "USD")

	require.Len(t, transfers, 3)
	assert.Equal(t, "Bob", transfers[0].From)
	assert.Equal(t, "Alice", transfers[0].To)
	assert.True(t, transfers[0].Amount.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, "Dan", transfers[1].From)
	assert.Equal(t, "Alice", transfers[1].To)
	assert.Equal(t, "Alice", transfers[2].From)
	assert.Equal(t, "Carol", transfers[2].To)
	assert.True(t, transfers[2].Amount.Equal(decimal.NewFromInt(10)))
	for _, tr := range transfers {
		assert.Equal(t, "USD", tr.Currency)
	}
}

func TestRecommendTransfers_NothingToSettle(t *testing.T) {
	balances := []domain.ParticipantBalance{
		{Person: "Alice", Net: decimal.NewFromInt(5)},
		{Person: "Bob", Net: decimal.Zero},
	}

	assert.Empty(t, RecommendTransfers(balances, "USD"))
}
