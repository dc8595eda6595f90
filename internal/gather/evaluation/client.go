// Package evaluation implements gather.Source against the evaluation price
// service: GET /stocks and GET /stocks/{ticker}?minutes=N.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stockdash/internal/domain"
	"stockdash/internal/gather"
	"stockdash/internal/metrics"
	"stockdash/internal/util"
)

var _ gather.Source = (*Client)(nil)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// maxRetryDelay caps the backoff between upstream retries.
const maxRetryDelay = 5 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL         string
	Token           string // sent as a bearer token when set
	Timeout         time.Duration
	RateLimitPerMin int // 0 = unlimited
	Attempts        int // total attempts per call, 1 = no retry
	RetryDelay      time.Duration
}

// Client talks to the evaluation price service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *util.RateLimiter
	backoff    util.Backoff
	log        *slog.Logger
}

// New creates a Client.
func New(opts Options, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    util.NewRateLimiter("evaluation", opts.RateLimitPerMin),
		backoff: util.Backoff{
			Attempts:  opts.Attempts,
			BaseDelay: opts.RetryDelay,
			MaxDelay:  maxRetryDelay,
		},
		log:        log.With("source", "evaluation"),
	}
}

// Name implements gather.Source.
func (c *Client) Name() string { return "evaluation" }

// Stocks implements gather.Source.
func (c *Client) Stocks(ctx context.Context) ([]domain.Stock, error) {
	u := c.baseURL + "/stocks"
	body, err := c.get(ctx, gather.OpStocks, u)
	if err != nil {
		return nil, err
	}
	stocks, err := domain.DecodeStocks(body)
	if err != nil {
		return nil, &gather.FetchError{Op: gather.OpStocks, URL: u, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return stocks, nil
}

// PriceHistory implements gather.Source.
func (c *Client) PriceHistory(ctx context.Context, ticker domain.Ticker, window domain.Window) (domain.PriceSeries, error) {
	u := c.historyURL(ticker, window)
	body, err := c.get(ctx, gather.OpPriceHistory, u)
	if err != nil {
		return nil, err
	}
	series, err := domain.DecodeSeries(body)
	if err != nil {
		return nil, &gather.FetchError{Op: gather.OpPriceHistory, URL: u, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return series, nil
}

func (c *Client) historyURL(ticker domain.Ticker, window domain.Window) string {
	u := c.baseURL + "/stocks/" + url.PathEscape(string(ticker))
	if window != domain.WindowAll {
		u += "?minutes=" + strconv.Itoa(window.Minutes())
	}
	return u
}

// get performs a GET with rate limiting and retries, returning the body of
// a 2xx response or a *gather.FetchError.
func (c *Client) get(ctx context.Context, op, u string) ([]byte, error) {
	var body []byte
	err := util.Retry(ctx, c.backoff, func(attempt int) error {
		var err error
		body, err = c.getOnce(ctx, op, u)
		if err == nil {
			return nil
		}
		c.log.Warn("upstream request failed", "op", op, "url", u, "attempt", attempt, "error", err)
		var fe *gather.FetchError
		if errors.As(err, &fe) && fe.Status >= 400 && fe.Status < 500 && fe.Status != http.StatusTooManyRequests {
			return util.Permanent(err)
		}
		return err
	})
	if err != nil {
		if _, ok := err.(*gather.FetchError); ok {
			return nil, err
		}
		return nil, &gather.FetchError{Op: op, URL: u, Err: err}
	}
	return body, nil
}

func (c *Client) getOnce(ctx context.Context, op, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &gather.FetchError{Op: op, URL: u, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &gather.FetchError{Op: op, URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(c.Name(), op, "error", start)
		return nil, &gather.FetchError{Op: op, URL: u, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(c.Name(), op, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &gather.FetchError{Op: op, URL: u, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &gather.FetchError{Op: op, URL: u, Status: resp.StatusCode, Err: err}
	}
	c.log.Debug("upstream response", "op", op, "url", u, "bytes", len(body), "duration_ms", time.Since(start).Milliseconds())
	return body, nil
}
