package fyers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"wsreplay/internal/market"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

type RESTClient struct {
	baseURL     string
	appID       string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[market.Series]
}

type Option func(*RESTClient)

// WithRateLimit caps outgoing requests to perSec with the given burst.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *RESTClient) {
		if perSec <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithBreaker overrides the consecutive-failure threshold and open duration.
func WithBreaker(failures uint32, open time.Duration) Option {
	return func(c *RESTClient) {
		c.breaker = newBreaker(failures, open)
	}
}

func NewRESTClient(baseURL, appID, accessToken string, timeout time.Duration, opts ...Option) *RESTClient {
	c := &RESTClient{
		baseURL:     baseURL,
		appID:       appID,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Inf, 0),
		breaker:     newBreaker(5, 30*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(failures uint32, open time.Duration) *gobreaker.CircuitBreaker[market.Series] {
	return gobreaker.NewCircuitBreaker[market.Series](gobreaker.Settings{
		Name:        "fyers-history",
		MaxRequests: 1,
		Timeout:     open,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// The broker answering "no data" or a request error is not an outage.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || errors.Is(err, ErrNoData) || errors.As(err, &apiErr)
		},
	})
}

// GetHistory fetches candles for one symbol and range. ErrNoData is returned
// when the broker has nothing for the window.
func (c *RESTClient) GetHistory(ctx context.Context, req HistoryRequest) (market.Series, error) {
	if _, err := ParseResolution(req.Resolution); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	return c.breaker.Execute(func() (market.Series, error) {
		return c.getHistory(ctx, req)
	})
}

func (c *RESTClient) getHistory(ctx context.Context, req HistoryRequest) (market.Series, error) {
	q := url.Values{}
	q.Set("symbol", req.Symbol)
	q.Set("resolution", req.Resolution)
	q.Set("date_format", strconv.Itoa(req.DateFormat))
	q.Set("range_from", strconv.FormatInt(req.From.Unix(), 10))
	q.Set("range_to", strconv.FormatInt(req.To.Unix(), 10))
	if req.ContFlag {
		q.Set("cont_flag", "1")
	} else {
		q.Set("cont_flag", "0")
	}
	endpoint := c.baseURL + "/data/history?" + q.Encode()

	// Construct the GET request with context for timeout/cancel support
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.appID+":"+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// The broker reports request errors with a 4xx status and a JSON body.
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("fyers http %d: %s", resp.StatusCode, body)
	}

	series, err := ParseHistory(body)
	if err != nil {
		return nil, err
	}
	return series, nil
}
