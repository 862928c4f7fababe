package ratesapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
)

const (
	// DefaultBaseURL is the exchangerate-api.com v4 endpoint; the base currency is appended as a path segment
	DefaultBaseURL = "https://api.exchangerate-api.com/v4/latest"
	// DefaultTimeout bounds a single outbound fetch
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

// Client fetches rate tables from exchangerate-api.com
type Client struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// latestResponse is the subset of the API payload we consume
type latestResponse struct {
	Rates           map[string]float64 `json:"rates"`
	TimeLastUpdated *int64             `json:"time_last_updated"`
}

// NewClient creates a new Client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// Ensure Client implements domain.RateFetcher
var _ domain.RateFetcher = (*Client)(nil)

// FetchRates retrieves the latest table for baseCurrency.
// Every failure wraps domain.ErrRateFetch.
func (c *Client) FetchRates(ctx context.Context, baseCurrency string) (*domain.RateTable, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(baseCurrency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrRateFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRateFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: rates API returned status %d", domain.ErrRateFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrRateFetch, err)
	}

	var payload latestResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: parse body: %v", domain.ErrRateFetch, err)
	}
	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("%w: response has no rates", domain.ErrRateFetch)
	}
	if payload.TimeLastUpdated == nil {
		return nil, fmt.Errorf("%w: response has no time_last_updated", domain.ErrRateFetch)
	}

	rates := make(map[string]float64, len(payload.Rates)+1)
	for code, rate := range payload.Rates {
		if rate <= 0 {
			continue
		}
		rates[strings.ToUpper(code)] = rate
	}
	rates[baseCurrency] = 1.0

	return &domain.RateTable{
		BaseCurrency: baseCurrency,
		Rates:        rates,
		Timestamp:    *payload.TimeLastUpdated,
		FetchedAt:    c.now(),
		Source:       domain.RateSourceExchangeRateAPI,
	}, nil
}
