package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stockdash/internal/domain"
	"stockdash/internal/gather/gathertest"
	"stockdash/internal/store"
)

func newTestServer(t *testing.T, fake *gathertest.Fake, snaps store.SnapshotStore) *httptest.Server {
	t.Helper()
	s := NewDashboardServer(Options{
		Source:    fake,
		Snapshots: snaps,
		Location:  time.UTC,
		Version:   "test",
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return resp.StatusCode, string(body)
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatalf("decoding %q: %v", body, err)
	}
	return v
}

func TestListStocks(t *testing.T) {
	srv := newTestServer(t, gathertest.NewFake(), nil)
	status, body := get(t, srv, "/api/stocks")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", status, body)
	}
	resp := decode[StocksResponse](t, body)
	if len(resp.Stocks) != 3 || resp.Stocks[0].Ticker != "NVDA" || resp.Stocks[2].Ticker != "AAPL" {
		t.Errorf("stocks = %+v, want upstream order", resp.Stocks)
	}
}

func TestStockHistory(t *testing.T) {
	srv := newTestServer(t, gathertest.NewFake(), nil)

	status, body := get(t, srv, "/api/stocks/NVDA?minutes=15")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", status, body)
	}
	resp := decode[HistoryResponse](t, body)
	if resp.Minutes != 15 || resp.Count != 10 || len(resp.Points) != 10 {
		t.Errorf("resp = minutes %d count %d points %d", resp.Minutes, resp.Count, len(resp.Points))
	}
	if resp.Average != 104.5 || resp.AverageLabel != "Avg: $104.50" {
		t.Errorf("average = %v %q", resp.Average, resp.AverageLabel)
	}

	status, body = get(t, srv, "/api/stocks/NVDA")
	if status != http.StatusOK {
		t.Fatalf("full history status = %d: %s", status, body)
	}
	if resp := decode[HistoryResponse](t, body); resp.Label != "All history" {
		t.Errorf("label = %q, want All history", resp.Label)
	}
}

func TestStockHistoryErrors(t *testing.T) {
	fake := gathertest.NewFake()
	fake.ErrFor = map[domain.Ticker]error{"PYPL": errors.New("upstream down")}
	srv := newTestServer(t, fake, nil)

	tests := []struct {
		path   string
		status int
		detail string
	}{
		{"/api/stocks/MSFT?minutes=5", http.StatusNotFound, "unknown ticker"},
		{"/api/stocks/NVDA?minutes=abc", http.StatusBadRequest, "invalid window"},
		{"/api/stocks/NVDA?minutes=-5", http.StatusBadRequest, "must not be negative"},
		{"/api/stocks/PYPL?minutes=5", http.StatusBadGateway, "Failed to fetch stock price"},
	}
	for _, tt := range tests {
		status, body := get(t, srv, tt.path)
		if status != tt.status {
			t.Errorf("GET %s status = %d, want %d", tt.path, status, tt.status)
		}
		if !strings.Contains(body, tt.detail) {
			t.Errorf("GET %s body = %s, want it to mention %q", tt.path, body, tt.detail)
		}
	}
}

func TestCorrelation(t *testing.T) {
	srv := newTestServer(t, gathertest.NewFake(), nil)

	status, body := get(t, srv, "/api/correlation?minutes=5&tickers=NVDA,PYPL")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", status, body)
	}
	resp := decode[CorrelationResponse](t, body)
	if len(resp.Tickers) != 2 || resp.Tickers[0] != "NVDA" {
		t.Fatalf("tickers = %v, want [NVDA PYPL]", resp.Tickers)
	}
	if resp.Values[0][0] != 1 || resp.Values[1][1] != 1 {
		t.Errorf("diagonal = %v, %v", resp.Values[0][0], resp.Values[1][1])
	}
	if got := resp.Values[0][1]; got > -0.999 {
		t.Errorf("NVDA/PYPL = %v, want -1", got)
	}
	if resp.Colors[0][1] != "#0000ff" || resp.TextColors[0][1] != "white" {
		t.Errorf("color = %s on %s, want #0000ff on white", resp.Colors[0][1], resp.TextColors[0][1])
	}
	if resp.Colors[0][0] != "#ff0000" {
		t.Errorf("diagonal color = %s, want #ff0000", resp.Colors[0][0])
	}
	if len(resp.Legend) != 3 {
		t.Errorf("legend has %d entries, want 3", len(resp.Legend))
	}
	if resp.Names[1] != "PayPal Holdings, Inc." {
		t.Errorf("names = %v", resp.Names)
	}

	status, _ = get(t, srv, "/api/correlation?tickers=NVDA,MSFT")
	if status != http.StatusBadRequest {
		t.Errorf("unknown ticker status = %d, want 400", status)
	}
}

func TestCorrelationUpstreamFailure(t *testing.T) {
	fake := gathertest.NewFake()
	fake.ErrFor = map[domain.Ticker]error{"AAPL": errors.New("down")}
	srv := newTestServer(t, fake, nil)

	status, body := get(t, srv, "/api/correlation?minutes=30")
	if status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", status)
	}
	if !strings.Contains(body, "Failed to fetch stock price") {
		t.Errorf("body = %s", body)
	}
}

func TestSnapshots(t *testing.T) {
	srv := newTestServer(t, gathertest.NewFake(), nil)
	if status, _ := get(t, srv, "/api/snapshots"); status != http.StatusServiceUnavailable {
		t.Errorf("disabled recorder status = %d, want 503", status)
	}

	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "snap.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer db.Close()
	m := domain.NewMatrix([]domain.Ticker{"NVDA"}, 3)
	m.Values[0][0] = 1
	for i, w := range []domain.Window{5, 15} {
		snap := &domain.Snapshot{ID: string(rune('a' + i)), Window: w, Matrix: m, Hash: "h", TakenAt: time.Now().Add(time.Duration(i) * time.Second)}
		if _, err := db.SaveSnapshot(context.Background(), snap); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}

	srv = newTestServer(t, gathertest.NewFake(), db)
	status, body := get(t, srv, "/api/snapshots?limit=10")
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, body)
	}
	if resp := decode[SnapshotsResponse](t, body); len(resp.Snapshots) != 2 || resp.Snapshots[0].ID != "b" {
		t.Errorf("snapshots = %+v", resp.Snapshots)
	}

	_, body = get(t, srv, "/api/snapshots?minutes=5")
	if resp := decode[SnapshotsResponse](t, body); len(resp.Snapshots) != 1 || resp.Snapshots[0].Window != 5 {
		t.Errorf("filtered snapshots = %+v", resp.Snapshots)
	}
}

func TestStockPage(t *testing.T) {
	srv := newTestServer(t, gathertest.NewFake(), nil)

	status, body := get(t, srv, "/")
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, body)
	}
	for _, want := range []string{"<svg", "Avg: $104.50", "stroke-dasharray", "Last 5 minutes", "Nvidia Corporation", "Time: 04:00:00"} {
		if !strings.Contains(body, want) {
			t.Errorf("stock page missing %q", want)
		}
	}

	_, body = get(t, srv, "/?ticker=PYPL&minutes=30")
	if !strings.Contains(body, `<option value="PYPL" selected>`) {
		t.Error("PYPL should be selected")
	}
	if !strings.Contains(body, `<option value="30" selected>`) {
		t.Error("30 minute window should be selected")
	}

	if status, _ := get(t, srv, "/?minutes=7"); status != http.StatusBadRequest {
		t.Errorf("invalid window status = %d, want 400", status)
	}
	if status, _ := get(t, srv, "/?ticker=MSFT"); status != http.StatusNotFound {
		t.Errorf("unknown ticker status = %d, want 404", status)
	}
}

func TestStockPageShowsErrors(t *testing.T) {
	fake := gathertest.NewFake()
	fake.Err = errors.New("down")
	srv := newTestServer(t, fake, nil)

	status, body := get(t, srv, "/")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, `<p class="error">Failed to fetch stocks</p>`) {
		t.Errorf("page does not show the error: %s", body)
	}

	empty := gathertest.NewFake()
	empty.Series = nil
	srv = newTestServer(t, empty, nil)
	if _, body := get(t, srv, "/"); !strings.Contains(body, "No data available") {
		t.Error("empty series should show No data available")
	}
}

func TestCorrelationPage(t *testing.T) {
	srv := newTestServer(t, gathertest.NewFake(), nil)

	status, body := get(t, srv, "/correlation?minutes=60")
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, body)
	}
	for _, want := range []string{
		`title="Correlation: -1.00"`,
		`title="Correlation: 1.00"`,
		"background-color: #0000ff; color: white",
		"Strong Negative",
		"Zero",
		"Strong Positive",
		`<option value="60" selected>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("correlation page missing %q", want)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, gathertest.NewFake(), nil)

	status, body := get(t, srv, "/healthz")
	if status != http.StatusOK {
		t.Fatalf("healthz status = %d", status)
	}
	if h := decode[HealthResponse](t, body); h.Status != "ok" || h.Source != "fake" || h.Version != "test" {
		t.Errorf("health = %+v", h)
	}
	if status, _ := get(t, srv, "/metrics"); status != http.StatusOK {
		t.Errorf("metrics status = %d", status)
	}
	if status, body := get(t, srv, "/openapi.json"); status != http.StatusOK || !strings.Contains(body, "get-correlation") {
		t.Errorf("openapi status = %d", status)
	}
}

func TestSplitTickers(t *testing.T) {
	got := splitTickers(" NVDA, ,PYPL,")
	if len(got) != 2 || got[0] != "NVDA" || got[1] != "PYPL" {
		t.Errorf("splitTickers = %v", got)
	}
	if splitTickers("") != nil {
		t.Error("splitTickers(\"\") should be nil")
	}
}
