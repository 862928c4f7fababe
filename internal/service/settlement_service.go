package service

import (
	"context"
	"sort"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
	"github.com/dafibh/brokewise/brokewise-backend/internal/metrics"
	"github.com/shopspring/decimal"
)

// Settlement outcomes recorded in metrics
const (
	settlementOutcomeOK      = "ok"
	settlementOutcomeInvalid = "invalid"
)

// SettlementService computes net settlements for a group of participants
type SettlementService struct {
	rates   RateSource
	metrics *metrics.Metrics
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(rates RateSource) *SettlementService {
	return &SettlementService{
		rates: rates,
	}
}

// SetMetrics sets the metrics sink for calculation observations
func (s *SettlementService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Calculate converts every payer and split leg into the base currency and
// returns each participant's net balance rounded to 2 decimal places.
// Only malformed input fails; rate problems degrade to a 1.0 multiplier and
// are reported in the result's Conversions.
func (s *SettlementService) Calculate(ctx context.Context, input domain.SettlementInput) (*domain.SettlementResult, error) {
	// 1. Validate input
	base := domain.NormalizeCurrency(input.BaseCurrency)
	if err := domain.ValidateCurrency(base); err != nil {
		s.metrics.ObserveSettlement(settlementOutcomeInvalid, 0)
		return nil, &domain.InputError{Expense: -1, Field: "baseCurrency", Err: err}
	}

	participants, err := domain.ParticipantSet(input.Participants)
	if err != nil {
		s.metrics.ObserveSettlement(settlementOutcomeInvalid, 0)
		return nil, err
	}

	expenses := cloneExpenses(input.Expenses)
	if err := domain.ValidateExpenses(participants, expenses); err != nil {
		s.metrics.ObserveSettlement(settlementOutcomeInvalid, 0)
		return nil, err
	}

	// 2. Accumulate paid and owed totals in the base currency
	conv := &converter{ctx: ctx, rates: s.rates, base: base, quotes: make(map[string]domain.RateQuote)}
	paid := make(map[string]decimal.Decimal, len(participants))
	owed := make(map[string]decimal.Decimal, len(participants))

	for _, exp := range expenses {
		for _, leg := range exp.Payers {
			paid[leg.Person] = paid[leg.Person].Add(conv.toBase(leg))
		}
		for _, leg := range exp.Splits {
			owed[leg.Person] = owed[leg.Person].Add(conv.toBase(leg))
		}
	}

	// 3. Net per participant, rounded once
	order := uniqueInOrder(input.Participants)
	settlements := make(map[string]decimal.Decimal, len(order))
	balances := make([]domain.ParticipantBalance, 0, len(order))
	for _, person := range order {
		net := paid[person].Sub(owed[person]).Round(2)
		settlements[person] = net
		balances = append(balances, domain.ParticipantBalance{
			Person:    person,
			TotalPaid: paid[person].Round(2),
			TotalOwed: owed[person].Round(2),
			Net:       net,
		})
	}

	// 4. Rate metadata for display
	table := s.rates.GetRates(ctx, base)

	s.metrics.ObserveSettlement(settlementOutcomeOK, conv.converted)

	return &domain.SettlementResult{
		Settlements: settlements,
		Balances:    balances,
		Transfers:   RecommendTransfers(balances, base),
		Conversions: conv.conversions,
		ExchangeRateInfo: domain.ExchangeRateInfo{
			Timestamp:    table.Timestamp,
			Source:       table.Source,
			BaseCurrency: base,
		},
	}, nil
}

// converter prices legs in the base currency, asking for each distinct
// currency's rate once per calculation
type converter struct {
	ctx         context.Context
	rates       RateSource
	base        string
	quotes      map[string]domain.RateQuote
	conversions []domain.Conversion
	converted   int
}

func (c *converter) toBase(leg domain.MoneyLeg) decimal.Decimal {
	if leg.Currency == c.base {
		return leg.Amount
	}

	quote, ok := c.quotes[leg.Currency]
	if !ok {
		quote = c.rates.GetRate(c.ctx, leg.Currency, c.base)
		c.quotes[leg.Currency] = quote
		c.conversions = append(c.conversions, domain.Conversion{Currency: leg.Currency, Quote: quote})
	}
	c.converted++
	return leg.Amount.Mul(decimal.NewFromFloat(quote.Rate))
}

// RecommendTransfers suggests payments that clear every balance: each debtor
// pays the largest creditor, who then pays every other creditor.
func RecommendTransfers(balances []domain.ParticipantBalance, currency string) []domain.Transfer {
	var debtors, creditors []domain.ParticipantBalance
	for _, b := range balances {
		switch {
		case b.Net.IsNegative():
			debtors = append(debtors, b)
		case b.Net.IsPositive():
			creditors = append(creditors, b)
		}
	}

	transfers := []domain.Transfer{}
	if len(debtors) == 0 || len(creditors) == 0 {
		return transfers
	}

	sort.SliceStable(debtors, func(i, j int) bool { return debtors[i].Net.LessThan(debtors[j].Net) })
	sort.SliceStable(creditors, func(i, j int) bool { return creditors[i].Net.GreaterThan(creditors[j].Net) })

	hub := creditors[0]
	for _, d := range debtors {
		transfers = append(transfers, domain.Transfer{
			From:     d.Person,
			To:       hub.Person,
			Amount:   d.Net.Abs(),
			Currency: currency,
		})
	}
	for _, c := range creditors[1:] {
		transfers = append(transfers, domain.Transfer{
			From:     hub.Person,
			To:       c.Person,
			Amount:   c.Net,
			Currency: currency,
		})
	}
	return transfers
}

func cloneExpenses(expenses []domain.Expense) []domain.Expense {
	cloned := make([]domain.Expense, len(expenses))
	for i, exp := range expenses {
		exp.Payers = append([]domain.MoneyLeg(nil), exp.Payers...)
		exp.Splits = append([]domain.MoneyLeg(nil), exp.Splits...)
		cloned[i] = exp
	}
	return cloned
}

func uniqueInOrder(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
