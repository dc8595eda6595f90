package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stockdash/internal/domain"
	"stockdash/internal/engine"
	"stockdash/internal/gather"
	"stockdash/internal/metrics"
	"stockdash/internal/store"
)

// Options configures a DashboardServer.
type Options struct {
	// Source serves stocks and price history, normally a gather.CachedSource.
	Source gather.Source
	// Snapshots backs /api/snapshots; nil disables it.
	Snapshots store.SnapshotStore
	// WebSocket, when set, is mounted at /ws.
	WebSocket     http.Handler
	Location      *time.Location
	DefaultWindow domain.Window
	Version       string
	Logger        *slog.Logger
}

// DashboardServer serves the dashboard HTTP API and pages.
type DashboardServer struct {
	src           gather.Source
	snapshots     store.SnapshotStore
	ws            http.Handler
	loc           *time.Location
	defaultWindow domain.Window
	version       string
	log           *slog.Logger
	pages         *pageRenderer
}

// NewDashboardServer creates a new dashboard HTTP server.
func NewDashboardServer(opts Options) *DashboardServer {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	window := opts.DefaultWindow
	if !window.IsDashboardWindow() {
		window = domain.DashboardWindows[0]
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	return &DashboardServer{
		src:           opts.Source,
		snapshots:     opts.Snapshots,
		ws:            opts.WebSocket,
		loc:           loc,
		defaultWindow: window,
		version:       version,
		log:           log.With("component", "httpapi"),
		pages:         newPageRenderer(),
	}
}

// Handler returns the full router: middleware, pages, JSON API and
// operational endpoints.
func (s *DashboardServer) Handler() http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(s.requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware)

	cfg := huma.DefaultConfig("stockdash API", s.version)
	api := humachi.New(router, cfg)

	s.registerStockHandlers(api)
	s.registerCorrelationHandlers(api)
	s.registerSnapshotHandlers(api)

	router.Get("/", s.handleStockPage)
	router.Get("/correlation", s.handleCorrelationPage)
	router.Get("/healthz", s.handleHealth)
	router.Handle("/metrics", metrics.Handler())
	if s.ws != nil {
		router.Handle("/ws", s.ws)
	}
	return router
}

// ---------------------------------------------------------------------------
// JSON API
// ---------------------------------------------------------------------------

type stocksOutput struct {
	Body StocksResponse
}

type historyInput struct {
	Ticker  string `path:"ticker" doc:"Stock ticker"`
	Minutes string `query:"minutes" doc:"Window in minutes; empty or 'all' for full history"`
}

type historyOutput struct {
	Body HistoryResponse
}

func (s *DashboardServer) registerStockHandlers(api huma.API) {
	huma.Register(api, huma.Operation{OperationID: "list-stocks", Method: http.MethodGet, Path: "/api/stocks", Summary: "List tracked stocks", Tags: []string{"Stocks"}},
		func(ctx context.Context, input *struct{}) (*stocksOutput, error) {
			stocks, err := s.src.Stocks(ctx)
			if err != nil {
				return nil, s.mapErr(err)
			}
			if stocks == nil {
				stocks = []domain.Stock{}
			}
			out := &stocksOutput{}
			out.Body.Stocks = stocks
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-stock-history", Method: http.MethodGet, Path: "/api/stocks/{ticker}", Summary: "Price history of one stock", Tags: []string{"Stocks"}},
		func(ctx context.Context, input *historyInput) (*historyOutput, error) {
			window, err := domain.ParseWindow(input.Minutes)
			if err != nil {
				return nil, huma.Error400BadRequest(err.Error())
			}
			stocks, err := s.src.Stocks(ctx)
			if err != nil {
				return nil, s.mapErr(err)
			}
			selected, err := gather.SelectStocks(stocks, []domain.Ticker{domain.Ticker(input.Ticker)})
			if err != nil {
				return nil, huma.Error404NotFound(err.Error())
			}
			ticker := selected[0].Ticker
			series, err := s.src.PriceHistory(ctx, ticker, window)
			if err != nil {
				return nil, s.mapErr(err)
			}
			return &historyOutput{Body: historyResponse(ticker, window, series)}, nil
		})
}

type correlationInput struct {
	Minutes string `query:"minutes" doc:"Window in minutes; empty or 'all' for full history"`
	Tickers string `query:"tickers" doc:"Comma-separated subset of tickers; empty for all"`
}

type correlationOutput struct {
	Body CorrelationResponse
}

func (s *DashboardServer) registerCorrelationHandlers(api huma.API) {
	huma.Register(api, huma.Operation{OperationID: "get-correlation", Method: http.MethodGet, Path: "/api/correlation", Summary: "Pairwise Pearson correlation matrix", Tags: []string{"Correlation"}},
		func(ctx context.Context, input *correlationInput) (*correlationOutput, error) {
			window, err := domain.ParseWindow(input.Minutes)
			if err != nil {
				return nil, huma.Error400BadRequest(err.Error())
			}
			universe, err := s.src.Stocks(ctx)
			if err != nil {
				return nil, s.mapErr(err)
			}
			stocks, err := gather.SelectStocks(universe, splitTickers(input.Tickers))
			if err != nil {
				return nil, huma.Error400BadRequest(err.Error())
			}
			set, err := gather.FetchSet(ctx, s.src, stocks, window)
			if err != nil {
				return nil, s.mapErr(err)
			}
			m := engine.ComputeSet(set)
			metrics.MatrixComputations.WithLabelValues("api").Inc()
			metrics.UndefinedCoefficients.Add(float64(engine.UndefinedCount(m)))
			return &correlationOutput{Body: correlationResponse(window, m, gather.StockNames(stocks))}, nil
		})
}

type snapshotsInput struct {
	Minutes string `query:"minutes" doc:"Restrict to one window; empty for all windows"`
	Limit   int    `query:"limit" default:"20" minimum:"1" maximum:"500"`
}

type snapshotsOutput struct {
	Body SnapshotsResponse
}

func (s *DashboardServer) registerSnapshotHandlers(api huma.API) {
	huma.Register(api, huma.Operation{OperationID: "list-snapshots", Method: http.MethodGet, Path: "/api/snapshots", Summary: "Recorded correlation snapshots", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotsInput) (*snapshotsOutput, error) {
			if s.snapshots == nil {
				return nil, huma.Error503ServiceUnavailable("snapshot recorder is disabled")
			}
			window := store.AnyWindow
			if input.Minutes != "" {
				w, err := domain.ParseWindow(input.Minutes)
				if err != nil {
					return nil, huma.Error400BadRequest(err.Error())
				}
				window = w
			}
			snaps, err := s.snapshots.ListSnapshots(ctx, window, input.Limit)
			if err != nil {
				return nil, s.mapErr(err)
			}
			if snaps == nil {
				snaps = []domain.Snapshot{}
			}
			out := &snapshotsOutput{}
			out.Body.Snapshots = snaps
			return out, nil
		})
}

// mapErr converts pipeline errors to API errors. Upstream failures surface
// as 502 with the same message the pages show.
func (s *DashboardServer) mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gather.ErrFetch):
		s.log.Warn("upstream failure", "error", err)
		return huma.Error502BadGateway(gather.UserMessage(err))
	case errors.Is(err, gather.ErrUnknownTicker):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(err.Error())
	}
	s.log.Error("request failed", "error", err)
	return huma.Error500InternalServerError(err.Error())
}

func splitTickers(s string) []domain.Ticker {
	var out []domain.Ticker
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, domain.Ticker(t))
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Operational endpoints and middleware
// ---------------------------------------------------------------------------

func (s *DashboardServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok", Source: s.src.Name(), Version: s.version})
}

func (s *DashboardServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
