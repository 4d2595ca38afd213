package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"BarFlow/internal/domain/models"
	domrepo "BarFlow/internal/domain/repository"
	"BarFlow/internal/service/ratelimit"
	xhttp "BarFlow/pkg/http"
	applogger "BarFlow/pkg/logger"
)

const providerName = "polygon"

// Client fetches canonical 1m bars from the Polygon aggregates API.
// Unlike Binance, every request carries the API key and pagination goes
// through next_url cursors.
type Client struct {
	http    *xhttp.Client
	baseURL string
	apiKey  string
	limiter *ratelimit.Limiter
	rpm     float64
	log     *applogger.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, limiter *ratelimit.Limiter, requestsPerMinute float64, log *applogger.Logger) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if requestsPerMinute == 0 {
		requestsPerMinute = 5 // free-tier default
	}
	return &Client{
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		baseURL: baseURL,
		apiKey:  apiKey,
		limiter: limiter,
		rpm:     requestsPerMinute,
		log:     log,
	}
}

func (c *Client) Name() string { return providerName }

type aggsResponse struct {
	Status  string `json:"status"`
	Results []struct {
		T int64   `json:"t"` // ms
		O float64 `json:"o"`
		H float64 `json:"h"`
		L float64 `json:"l"`
		C float64 `json:"c"`
		V float64 `json:"v"`
	} `json:"results"`
	NextURL string `json:"next_url"`
}

// FetchBars walks /v2/aggs pages for the window. The range endpoint is
// millisecond-inclusive on both ends, so the right edge is w.End-1ms.
func (c *Client) FetchBars(ctx context.Context, symbol string, w models.Window) ([]models.Bar, error) {
	url := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/minute/%d/%d",
		c.baseURL, symbol, w.Start.UnixMilli(), w.End.UnixMilli()-1)
	params := map[string][]string{
		"adjusted": {"true"},
		"sort":     {"asc"},
		"limit":    {"50000"},
	}

	var out []models.Bar
	for url != "" {
		if err := c.limiter.Wait(ctx, providerName, c.rpm, c.rpm/60); err != nil {
			return nil, err
		}
		page, next, err := c.fetchPage(ctx, symbol, url, params)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		url, params = next, nil // next_url already carries the query
	}
	c.log.Debug("polygon: fetched",
		applogger.String("symbol", symbol),
		applogger.String("window", w.String()),
		applogger.Int("bars", len(out)),
	)
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, symbol, url string, params map[string][]string) ([]models.Bar, string, error) {
	resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         url,
		Headers:     map[string]string{"Authorization": "Bearer " + c.apiKey},
		QueryParams: params,
	})
	if err != nil {
		return nil, "", &models.ProviderError{
			Provider:  providerName,
			Retryable: true,
			Err:       fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", &models.ProviderError{
			Provider:  providerName,
			Retryable: retryableStatus(resp.StatusCode),
			Err:       fmt.Errorf("aggs status %d: %s", resp.StatusCode, body),
		}
	}

	var ar aggsResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, "", &models.ProviderError{Provider: providerName, Err: fmt.Errorf("decode aggs: %w", err)}
	}

	out := make([]models.Bar, 0, len(ar.Results))
	for _, r := range ar.Results {
		out = append(out, models.Bar{
			Provider:  providerName,
			Symbol:    symbol,
			Timestamp: time.UnixMilli(r.T).UTC(),
			Open:      r.O,
			High:      r.H,
			Low:       r.L,
			Close:     r.C,
			Volume:    r.V,
		})
	}
	return out, ar.NextURL, nil
}

// ValidateCredentials makes the cheapest authenticated call and checks
// the key is accepted.
func (c *Client) ValidateCredentials(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("polygon api key is empty")
	}
	resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/v3/reference/tickers",
		Headers:     map[string]string{"Authorization": "Bearer " + c.apiKey},
		QueryParams: map[string][]string{"limit": {strconv.Itoa(1)}},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("polygon rejected credentials: status %d", resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", models.ErrProviderUnavailable, resp.StatusCode)
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

var _ domrepo.BarProvider = (*Client)(nil)
