package api

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"stockdash/internal/domain"
	"stockdash/internal/gather/gathertest"
)

// dialCorrelation serves srv over an in-memory listener and returns a
// client connected to it.
func dialCorrelation(t *testing.T, srv CorrelationServer) *CorrelationClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	RegisterCorrelationServer(gs, srv)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewCorrelationClient(conn)
}

func TestCorrelationServiceGetMatrix(t *testing.T) {
	client := dialCorrelation(t, NewCorrelationService(gathertest.NewFake(), nil))

	m, err := client.Matrix(context.Background(), 15)
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3", m.Len())
	}
	if m.Tickers[0] != "NVDA" || m.Tickers[1] != "PYPL" || m.Tickers[2] != "AAPL" {
		t.Errorf("Tickers = %v", m.Tickers)
	}
	if got := m.Values[0][1]; math.Abs(got+1) > 1e-9 {
		t.Errorf("NVDA/PYPL = %v, want -1", got)
	}
	if got := m.Values[0][2]; math.Abs(got-1) > 1e-9 {
		t.Errorf("NVDA/AAPL = %v, want 1", got)
	}
	if m.AlignedLength != 10 {
		t.Errorf("AlignedLength = %d, want 10", m.AlignedLength)
	}
}

func TestCorrelationServiceSubset(t *testing.T) {
	client := dialCorrelation(t, NewCorrelationService(gathertest.NewFake(), nil))

	m, err := client.Matrix(context.Background(), 5, "AAPL", "PYPL")
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if m.Len() != 2 || m.Tickers[0] != "AAPL" {
		t.Errorf("Tickers = %v, want [AAPL PYPL]", m.Tickers)
	}
}

func TestCorrelationServiceErrors(t *testing.T) {
	fake := gathertest.NewFake()
	fake.ErrFor = map[domain.Ticker]error{"PYPL": errors.New("down")}
	client := dialCorrelation(t, NewCorrelationService(fake, nil))

	_, err := client.Matrix(context.Background(), 5)
	if got := status.Code(err); got != codes.Unavailable {
		t.Errorf("fetch failure code = %v, want Unavailable", got)
	}
	if got := status.Convert(err).Message(); got != "Failed to fetch stock price" {
		t.Errorf("fetch failure message = %q", got)
	}

	_, err = client.Matrix(context.Background(), 5, "MSFT")
	if got := status.Code(err); got != codes.InvalidArgument {
		t.Errorf("unknown ticker code = %v, want InvalidArgument", got)
	}

	req, _ := structpb.NewStruct(map[string]any{"minutes": "five"})
	_, err = client.GetMatrix(context.Background(), req)
	if got := status.Code(err); got != codes.InvalidArgument {
		t.Errorf("bad minutes code = %v, want InvalidArgument", got)
	}
}

func TestParseMatrixRequest(t *testing.T) {
	req, err := MatrixRequest(30, "NVDA", "AAPL")
	if err != nil {
		t.Fatalf("MatrixRequest: %v", err)
	}
	w, tickers, err := ParseMatrixRequest(req)
	if err != nil {
		t.Fatalf("ParseMatrixRequest: %v", err)
	}
	if w != 30 || len(tickers) != 2 || tickers[1] != "AAPL" {
		t.Errorf("got %d %v", w, tickers)
	}

	// No fields at all asks for every stock over the full history.
	w, tickers, err = ParseMatrixRequest(&structpb.Struct{})
	if err != nil || w != domain.WindowAll || tickers != nil {
		t.Errorf("empty request = %d %v %v", w, tickers, err)
	}

	for _, bad := range []map[string]any{
		{"minutes": -5},
		{"minutes": 2.5},
		{"tickers": []any{1.0}},
	} {
		req, _ := structpb.NewStruct(bad)
		if _, _, err := ParseMatrixRequest(req); err == nil {
			t.Errorf("ParseMatrixRequest(%v) should fail", bad)
		}
	}
}

func TestMatrixStructKeepsUndefinedCells(t *testing.T) {
	m := domain.NewMatrix([]domain.Ticker{"A", "B"}, 1)
	m.Values[0][0], m.Values[1][1] = 1, 1
	m.Undefined[0][1], m.Undefined[1][0] = true, true

	s, err := MatrixToStruct(60, m)
	if err != nil {
		t.Fatalf("MatrixToStruct: %v", err)
	}
	w, got, err := MatrixFromStruct(s)
	if err != nil {
		t.Fatalf("MatrixFromStruct: %v", err)
	}
	if w != 60 {
		t.Errorf("window = %d, want 60", w)
	}
	if !got.Undefined[0][1] || got.Undefined[0][0] {
		t.Errorf("Undefined = %v", got.Undefined)
	}
	if got.AlignedLength != 1 {
		t.Errorf("AlignedLength = %d, want 1", got.AlignedLength)
	}
}

func TestMatrixFromStructRejectsRaggedRows(t *testing.T) {
	s, _ := structpb.NewStruct(map[string]any{
		"tickers":   []any{"A", "B"},
		"values":    []any{[]any{1.0, 0.5}},
		"undefined": []any{[]any{false, false}},
	})
	if _, _, err := MatrixFromStruct(s); err == nil {
		t.Error("MatrixFromStruct should reject a missing row")
	}
}
