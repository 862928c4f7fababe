package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
	"github.com/dafibh/brokewise/brokewise-backend/internal/websocket"
)

// MockClock is a manually advanced clock
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a clock starting at start
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

// Now returns the current mock time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockRateFetcher is a mock implementation of domain.RateFetcher
type MockRateFetcher struct {
	mu      sync.Mutex
	Rates   map[string]map[string]float64
	Err     error
	FetchFn func(ctx context.Context, baseCurrency string) (*domain.RateTable, error)
	calls   map[string]int
}

// NewMockRateFetcher creates a new MockRateFetcher
func NewMockRateFetcher() *MockRateFetcher {
	return &MockRateFetcher{
		Rates: make(map[string]map[string]float64),
		calls: make(map[string]int),
	}
}

// SetRates sets the table returned for a base currency (helper for tests)
func (m *MockRateFetcher) SetRates(base string, rates map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rates[base] = rates
}

// SetError makes every subsequent fetch fail with err; nil restores success
func (m *MockRateFetcher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// FetchRates returns the configured table for baseCurrency
func (m *MockRateFetcher) FetchRates(ctx context.Context, baseCurrency string) (*domain.RateTable, error) {
	m.mu.Lock()
	m.calls[baseCurrency]++
	fetchFn := m.FetchFn
	err := m.Err
	rates, ok := m.Rates[baseCurrency]
	m.mu.Unlock()

	if fetchFn != nil {
		return fetchFn(ctx, baseCurrency)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no rates for %s", domain.ErrRateFetch, baseCurrency)
	}

	copied := make(map[string]float64, len(rates)+1)
	for code, rate := range rates {
		copied[code] = rate
	}
	copied[baseCurrency] = 1.0
	return &domain.RateTable{
		BaseCurrency: baseCurrency,
		Rates:        copied,
		Timestamp:    1700000000,
		Source:       domain.RateSourceExchangeRateAPI,
	}, nil
}

// Calls returns how many fetches were made for baseCurrency
func (m *MockRateFetcher) Calls(baseCurrency string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[baseCurrency]
}

// TotalCalls returns how many fetches were made across all base currencies
func (m *MockRateFetcher) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// MockRateSource is a static rate source keyed by "FROM->TO"
type MockRateSource struct {
	mu      sync.Mutex
	Quotes  map[string]domain.RateQuote
	Table   *domain.RateTable
	Lookups []string
}

// NewMockRateSource creates a new MockRateSource
func NewMockRateSource() *MockRateSource {
	return &MockRateSource{
		Quotes: make(map[string]domain.RateQuote),
		Table: &domain.RateTable{
			Rates:     map[string]float64{},
			Timestamp: 1700000000,
			Source:    domain.RateSourceExchangeRateAPI,
		},
	}
}

// SetRate registers the quote for a pair (helper for tests)
func (m *MockRateSource) SetRate(from, to string, rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Quotes[from+"->"+to] = domain.RateQuote{Rate: rate, Timestamp: 1700000000, Source: domain.RateSourceExchangeRateAPI}
}

// GetRates returns the configured table with BaseCurrency set
func (m *MockRateSource) GetRates(ctx context.Context, baseCurrency string) *domain.RateTable {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *m.Table
	table.BaseCurrency = baseCurrency
	return &table
}

// GetRate returns the registered quote, or 1.0 with an error annotation
func (m *MockRateSource) GetRate(ctx context.Context, from, to string) domain.RateQuote {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := from + "->" + to
	m.Lookups = append(m.Lookups, key)
	if q, ok := m.Quotes[key]; ok {
		return q
	}
	return domain.RateQuote{Rate: 1.0, Timestamp: 1700000000, Error: fmt.Sprintf("%v: %s", domain.ErrRateUnavailable, key)}
}

// LookupCount returns how many GetRate calls were made
func (m *MockRateSource) LookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Lookups)
}

// MockGroupRepository is a mock implementation of domain.GroupRepository
type MockGroupRepository struct {
	mu       sync.Mutex
	Groups   map[string]*domain.Group
	NextID   int64
	PingErr  error
	SaveErr  error
	DeleteFn func(cutoff time.Time) ([]string, error)
}

// NewMockGroupRepository creates a new MockGroupRepository
func NewMockGroupRepository() *MockGroupRepository {
	return &MockGroupRepository{
		Groups: make(map[string]*domain.Group),
		NextID: 1,
	}
}

// AddGroup adds a group to the mock repository (helper for tests)
func (m *MockGroupRepository) AddGroup(group *domain.Group) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Groups[group.ID] = group
}

// GetByID retrieves a group by ID
func (m *MockGroupRepository) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if group, ok := m.Groups[id]; ok {
		return group, nil
	}
	return nil, domain.ErrGroupNotFound
}

// GetOrCreate retrieves or creates a group and stamps its access time
func (m *MockGroupRepository) GetOrCreate(ctx context.Context, id string, accessedAt time.Time) (*domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.Groups[id]
	if !ok {
		group = &domain.Group{
			ID:           id,
			Participants: []string{},
			Expenses:     []domain.Expense{},
			CreatedAt:    accessedAt,
		}
		m.Groups[id] = group
	}
	group.LastAccessed = accessedAt
	return group, nil
}

// ReplaceContents replaces participants and expenses of a group
func (m *MockGroupRepository) ReplaceContents(ctx context.Context, id string, participants []string, expenses []domain.Expense, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	group, ok := m.Groups[id]
	if !ok {
		group = &domain.Group{ID: id, CreatedAt: at, LastAccessed: at}
		m.Groups[id] = group
	}
	stored := make([]domain.Expense, len(expenses))
	for i, exp := range expenses {
		exp.ID = m.NextID
		m.NextID++
		if exp.CreatedAt.IsZero() {
			exp.CreatedAt = at
		}
		stored[i] = exp
	}
	group.Participants = append([]string{}, participants...)
	group.Expenses = stored
	return nil
}

// DeleteInactiveSince removes groups last accessed before cutoff
func (m *MockGroupRepository) DeleteInactiveSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	if m.DeleteFn != nil {
		return m.DeleteFn(cutoff)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := []string{}
	for id, group := range m.Groups {
		if group.LastAccessed.Before(cutoff) {
			delete(m.Groups, id)
			deleted = append(deleted, id)
		}
	}
	sort.Strings(deleted)
	return deleted, nil
}

// Ping reports the configured health error
func (m *MockGroupRepository) Ping(ctx context.Context) error {
	return m.PingErr
}

// GroupIDs returns the stored group ids in sorted order
func (m *MockGroupRepository) GroupIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.Groups))
	for id := range m.Groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PublishedEvent is one event captured by MockEventPublisher
type PublishedEvent struct {
	GroupID string
	Event   websocket.Event
}

// MockEventPublisher records every published event
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// Publish records the event
func (m *MockEventPublisher) Publish(groupID string, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{GroupID: groupID, Event: event})
}

// Published returns a copy of the recorded events
func (m *MockEventPublisher) Published() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.Events...)
}
