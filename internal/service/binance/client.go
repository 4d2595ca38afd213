package binance

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

const (
	providerName = "binance"
	klineLimit   = 1000
)

// Client fetches canonical 1m bars from the Binance spot REST API. The
// public klines endpoint needs no credentials; the limiter keeps paged
// gap fetches inside the request budget.
type Client struct {
	http    *xhttp.Client
	baseURL string
	limiter *ratelimit.Limiter
	rpm     float64
	log     *applogger.Logger
}

func NewClient(baseURL string, timeout time.Duration, limiter *ratelimit.Limiter, requestsPerMinute float64, log *applogger.Logger) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if requestsPerMinute == 0 {
		requestsPerMinute = 1200
	}
	return &Client{
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		baseURL: baseURL,
		limiter: limiter,
		rpm:     requestsPerMinute,
		log:     log,
	}
}

func (c *Client) Name() string { return providerName }

// FetchBars pages through /api/v3/klines until the window is covered.
// Binance caps one response at 1000 rows, so a multi-day gap takes
// several requests; the cursor advances past the last returned minute.
func (c *Client) FetchBars(ctx context.Context, symbol string, w models.Window) ([]models.Bar, error) {
	var out []models.Bar
	cursor := w.Start
	for cursor.Before(w.End) {
		if err := c.limiter.Wait(ctx, providerName, c.rpm, c.rpm/60); err != nil {
			return nil, err
		}
		page, err := c.fetchPage(ctx, symbol, cursor, w.End)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		out = append(out, page...)
		cursor = page[len(page)-1].Timestamp.Add(time.Minute)
		if len(page) < klineLimit {
			break
		}
	}
	c.log.Debug("binance: fetched",
		applogger.String("symbol", symbol),
		applogger.String("window", w.String()),
		applogger.Int("bars", len(out)),
	)
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":    {symbol},
			"interval":  {"1m"},
			"startTime": {strconv.FormatInt(from.UnixMilli(), 10)},
			"endTime":   {strconv.FormatInt(to.UnixMilli()-1, 10)},
			"limit":     {strconv.Itoa(klineLimit)},
		},
	})
	if err != nil {
		return nil, &models.ProviderError{
			Provider:  providerName,
			Retryable: true,
			Err:       fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &models.ProviderError{
			Provider:  providerName,
			Retryable: retryableStatus(resp.StatusCode),
			Err:       fmt.Errorf("klines status %d: %s", resp.StatusCode, body),
		}
	}

	// Kline rows are positional arrays mixing numbers and strings:
	// [openTime, open, high, low, close, volume, closeTime, ...].
	var rows [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &models.ProviderError{Provider: providerName, Err: fmt.Errorf("decode klines: %w", err)}
	}

	out := make([]models.Bar, 0, len(rows))
	for _, row := range rows {
		b, err := parseKline(symbol, row)
		if err != nil {
			return nil, &models.ProviderError{Provider: providerName, Err: err}
		}
		out = append(out, b)
	}
	return out, nil
}

// ValidateCredentials hits the unauthenticated ping endpoint; for the
// public market-data surface reachability is the whole check.
func (c *Client) ValidateCredentials(ctx context.Context) error {
	resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/v3/ping",
	})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ping status %d", models.ErrProviderUnavailable, resp.StatusCode)
	}
	return nil
}

func parseKline(symbol string, row []interface{}) (models.Bar, error) {
	if len(row) < 6 {
		return models.Bar{}, fmt.Errorf("kline row has %d fields", len(row))
	}
	openMs, ok := row[0].(float64)
	if !ok {
		return models.Bar{}, fmt.Errorf("kline open time %v is not a number", row[0])
	}
	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return models.Bar{}, fmt.Errorf("kline field %d is not a string", i)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Bar{}, fmt.Errorf("kline field %d: %w", i, err)
		}
		vals[i-1] = v
	}
	return models.Bar{
		Provider:  providerName,
		Symbol:    symbol,
		Timestamp: time.UnixMilli(int64(openMs)).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == 418 || code >= 500
}

var _ domrepo.BarProvider = (*Client)(nil)
