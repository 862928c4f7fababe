package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
	"github.com/dafibh/brokewise/brokewise-backend/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultRateCacheTTL is how long a fetched rate table is served before a refresh
const DefaultRateCacheTTL = 1 * time.Hour

// RateSource is what the settlement calculator needs from a rate provider
type RateSource interface {
	GetRates(ctx context.Context, baseCurrency string) *domain.RateTable
	GetRate(ctx context.Context, fromCurrency, toCurrency string) domain.RateQuote
}

// RateProviderConfig holds configuration for the rate provider
type RateProviderConfig struct {
	TTL time.Duration    // How long a table stays fresh
	Now func() time.Time // Clock, defaults to time.Now
}

// DefaultRateProviderConfig returns sensible defaults
func DefaultRateProviderConfig() RateProviderConfig {
	return RateProviderConfig{
		TTL: DefaultRateCacheTTL,
		Now: time.Now,
	}
}

// RateProvider caches a single rate table and refreshes it from a RateFetcher.
// It is safe for concurrent use. A fresh table is served from memory; a stale
// table for the requested base keeps being served while one background refresh
// runs; a missing table blocks on a coalesced fetch and degrades to a neutral
// fallback table if that fetch fails.
type RateProvider struct {
	fetcher domain.RateFetcher
	logger  zerolog.Logger
	metrics *metrics.Metrics
	ttl     time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	cached    *domain.RateTable
	lastFetch time.Time

	inflight   singleflight.Group
	background sync.WaitGroup
}

// Ensure RateProvider implements RateSource
var _ RateSource = (*RateProvider)(nil)

// NewRateProvider creates a new RateProvider
func NewRateProvider(fetcher domain.RateFetcher, logger zerolog.Logger, config RateProviderConfig) *RateProvider {
	if config.TTL <= 0 {
		config.TTL = DefaultRateCacheTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &RateProvider{
		fetcher: fetcher,
		logger:  logger.With().Str("component", "rate_provider").Logger(),
		ttl:     config.TTL,
		now:     config.Now,
	}
}

// SetMetrics sets the metrics sink for cache and fetch observations
func (p *RateProvider) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// GetRates returns the rate table for baseCurrency. It never fails: when no
// table can be obtained it returns a fallback table with Error set.
// A table cached for a different base is never returned, even when the fetch for
// the new base fails.
func (p *RateProvider) GetRates(ctx context.Context, baseCurrency string) *domain.RateTable {
	base := domain.NormalizeCurrency(baseCurrency)
	now := p.now()

	if cached, fresh := p.lookup(base, now); cached != nil {
		if fresh {
			p.metrics.ObserveCacheLookup(metrics.CacheHit)
			return cached
		}
		p.metrics.ObserveCacheLookup(metrics.CacheStale)
		p.refreshInBackground(ctx, base)
		return cached
	}

	p.metrics.ObserveCacheLookup(metrics.CacheMiss)
	table, err := p.refresh(ctx, base)
	if err == nil {
		return table
	}

	// A concurrent refresh may have landed while ours failed
	if cached, _ := p.lookup(base, now); cached != nil {
		p.logger.Warn().Err(err).Str("base_currency", base).Msg("Using cached exchange rates due to API error")
		return cached
	}

	p.logger.Error().Err(err).Str("base_currency", base).Msg("Error fetching exchange rates, serving fallback rates")
	p.metrics.ObserveCacheLookup(metrics.CacheFallback)
	return domain.NewFallbackRateTable(base, now, err)
}

// GetRate returns the multiplier converting fromCurrency into toCurrency.
// A pair missing from the table yields rate 1.0 with Error set.
func (p *RateProvider) GetRate(ctx context.Context, fromCurrency, toCurrency string) domain.RateQuote {
	from := domain.NormalizeCurrency(fromCurrency)
	to := domain.NormalizeCurrency(toCurrency)

	table := p.GetRates(ctx, from)
	rate, ok := table.Rates[to]
	if !ok {
		p.metrics.ObserveMissingRate(from, to)
		p.logger.Warn().Str("from", from).Str("to", to).Msg("Exchange rate not available, using 1.0")
		return domain.RateQuote{
			Rate:      1.0,
			Timestamp: p.now().Unix(),
			Source:    table.Source,
			Error:     fmt.Sprintf("%v: %s to %s", domain.ErrRateUnavailable, from, to),
		}
	}

	return domain.RateQuote{
		Rate:      rate,
		Timestamp: table.Timestamp,
		Source:    table.Source,
		Error:     table.Error,
	}
}

// Refresh synchronously fetches and caches the table for baseCurrency.
// Unlike GetRates it reports the fetch error to the caller.
func (p *RateProvider) Refresh(ctx context.Context, baseCurrency string) (*domain.RateTable, error) {
	return p.refresh(ctx, domain.NormalizeCurrency(baseCurrency))
}

// lookup returns the cached table when it matches base, and whether it is still fresh
func (p *RateProvider) lookup(base string, now time.Time) (*domain.RateTable, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.cached == nil || p.cached.BaseCurrency != base {
		return nil, false
	}
	return p.cached, now.Sub(p.lastFetch) <= p.ttl
}

// refresh joins or starts the single in-flight fetch for base
func (p *RateProvider) refresh(ctx context.Context, base string) (*domain.RateTable, error) {
	ch := p.startFlight(ctx, base)

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.RateTable), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrRateFetch, ctx.Err())
	}
}

// refreshInBackground refreshes base without making the caller wait
func (p *RateProvider) refreshInBackground(ctx context.Context, base string) {
	p.background.Add(1)
	go func() {
		defer p.background.Done()

		res := <-p.startFlight(ctx, base)
		if res.Err != nil && !res.Shared {
			p.logger.Warn().Err(res.Err).Str("base_currency", base).Msg("Using cached exchange rates due to API error")
		}
	}()
}

// startFlight coalesces fetches for base. The fetch ignores cancellation of ctx.
func (p *RateProvider) startFlight(ctx context.Context, base string) <-chan singleflight.Result {
	return p.inflight.DoChan(base, func() (interface{}, error) {
		// Another flight may have just stored a fresh table
		if cached, fresh := p.lookup(base, p.now()); fresh {
			return cached, nil
		}
		return p.fetchAndStore(context.WithoutCancel(ctx), base)
	})
}

// fetchAndStore calls the fetcher and swaps the cache on success
func (p *RateProvider) fetchAndStore(ctx context.Context, base string) (*domain.RateTable, error) {
	start := time.Now()
	table, err := p.fetcher.FetchRates(ctx, base)
	p.metrics.ObserveRateFetch(base, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, err
	}

	fetchedAt := p.now()
	p.mu.Lock()
	p.cached = table
	p.lastFetch = fetchedAt
	p.mu.Unlock()

	p.logger.Debug().
		Str("base_currency", base).
		Int("currencies", len(table.Rates)).
		Int64("provider_timestamp", table.Timestamp).
		Msg("Refreshed exchange rates")

	return table, nil
}

// Wait blocks until background refreshes have finished
func (p *RateProvider) Wait() {
	p.background.Wait()
}
