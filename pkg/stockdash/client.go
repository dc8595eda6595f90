// Package stockdash is a Go SDK for the stockdash-server JSON API.
package stockdash

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client provides a Go SDK for interacting with the stockdash-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new stockdash API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// AllHistory is the window value that requests the full history.
const AllHistory = 0

// Stock is one tracked stock.
type Stock struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
}

// PricePoint is one price sample.
type PricePoint struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"lastUpdatedAt"`
	Volume    *float64  `json:"volume,omitempty"`
}

// History is one stock's price history over a window.
type History struct {
	Ticker       string       `json:"ticker"`
	Minutes      int          `json:"minutes"`
	Label        string       `json:"label"`
	Count        int          `json:"count"`
	Average      float64      `json:"average"`
	AverageLabel string       `json:"averageLabel"`
	Points       []PricePoint `json:"points"`
}

// LegendEntry is one swatch of the heatmap legend.
type LegendEntry struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Correlation is a correlation matrix with its rendering colors.
type Correlation struct {
	Minutes       int           `json:"minutes"`
	Tickers       []string      `json:"tickers"`
	Names         []string      `json:"names"`
	Values        [][]float64   `json:"values"`
	Undefined     [][]bool      `json:"undefined"`
	AlignedLength int           `json:"alignedLength"`
	Colors        [][]string    `json:"colors"`
	TextColors    [][]string    `json:"textColors"`
	Legend        []LegendEntry `json:"legend"`
}

// Matrix is the bare matrix of a Snapshot.
type Matrix struct {
	Tickers       []string    `json:"tickers"`
	Values        [][]float64 `json:"values"`
	Undefined     [][]bool    `json:"undefined"`
	AlignedLength int         `json:"alignedLength"`
}

// Snapshot is a recorded correlation matrix.
type Snapshot struct {
	ID      string    `json:"id"`
	Minutes int       `json:"minutes"`
	Matrix  Matrix    `json:"matrix"`
	Hash    string    `json:"hash"`
	TakenAt time.Time `json:"takenAt"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("stockdash: %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("stockdash: %d %s", e.Status, e.Title)
}

// Stocks retrieves the tracked stocks.
func (c *Client) Stocks(ctx context.Context) ([]Stock, error) {
	var out struct {
		Stocks []Stock `json:"stocks"`
	}
	if err := c.get(ctx, "/api/stocks", nil, &out); err != nil {
		return nil, err
	}
	return out.Stocks, nil
}

// PriceHistory retrieves ticker's history over the last minutes; AllHistory
// requests everything.
func (c *Client) PriceHistory(ctx context.Context, ticker string, minutes int) (*History, error) {
	q := url.Values{}
	setMinutes(q, minutes)
	var out History
	if err := c.get(ctx, "/api/stocks/"+url.PathEscape(ticker), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Correlation retrieves the matrix of tickers over the last minutes. No
// tickers means every tracked stock.
func (c *Client) Correlation(ctx context.Context, minutes int, tickers ...string) (*Correlation, error) {
	q := url.Values{}
	setMinutes(q, minutes)
	if len(tickers) > 0 {
		q.Set("tickers", strings.Join(tickers, ","))
	}
	var out Correlation
	if err := c.get(ctx, "/api/correlation", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Snapshots retrieves up to limit recorded snapshots, newest first. A
// negative minutes lists every window; limit 0 uses the server default.
func (c *Client) Snapshots(ctx context.Context, minutes, limit int) ([]Snapshot, error) {
	q := url.Values{}
	if minutes >= 0 {
		setMinutes(q, minutes)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Snapshots []Snapshot `json:"snapshots"`
	}
	if err := c.get(ctx, "/api/snapshots", q, &out); err != nil {
		return nil, err
	}
	return out.Snapshots, nil
}

func setMinutes(q url.Values, minutes int) {
	if minutes == AllHistory {
		q.Set("minutes", "all")
		return
	}
	q.Set("minutes", strconv.Itoa(minutes))
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// decodeError reads an RFC 9457 problem body, falling back to the status
// text.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &problem) == nil {
		if problem.Title != "" {
			apiErr.Title = problem.Title
		}
		apiErr.Detail = problem.Detail
	}
	return apiErr
}
