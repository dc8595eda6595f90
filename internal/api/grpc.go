package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"stockdash/internal/domain"
	"stockdash/internal/engine"
	"stockdash/internal/gather"
	"stockdash/internal/metrics"
)

// Correlation service wire names. Messages are google.protobuf.Struct so the
// service needs no generated code:
//
//	request:  {"minutes": 15, "tickers": ["NVDA", "PYPL"]}
//	response: {"minutes", "tickers", "values", "undefined", "aligned_length"}
const (
	CorrelationServiceName = "stockdash.v1.Correlation"
	GetMatrixMethod        = "/" + CorrelationServiceName + "/GetMatrix"
)

// CorrelationServer is the server API for the Correlation service.
type CorrelationServer interface {
	GetMatrix(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var _ CorrelationServer = (*CorrelationService)(nil)

var correlationServiceDesc = grpc.ServiceDesc{
	ServiceName: CorrelationServiceName,
	HandlerType: (*CorrelationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetMatrix", Handler: getMatrixHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stockdash/v1/correlation.proto",
}

func getMatrixHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CorrelationServer).GetMatrix(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetMatrixMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CorrelationServer).GetMatrix(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterCorrelationServer registers srv on s.
func RegisterCorrelationServer(s grpc.ServiceRegistrar, srv CorrelationServer) {
	s.RegisterService(&correlationServiceDesc, srv)
}

// CorrelationService computes correlation matrices for gRPC callers.
type CorrelationService struct {
	src gather.Source
	log *slog.Logger
}

// NewCorrelationService creates a CorrelationService fetching through src.
func NewCorrelationService(src gather.Source, log *slog.Logger) *CorrelationService {
	if log == nil {
		log = slog.Default()
	}
	return &CorrelationService{src: src, log: log.With("component", "grpc")}
}

// GetMatrix fetches every requested stock and returns their matrix. Fetch
// failures map to Unavailable with the user-facing message.
func (s *CorrelationService) GetMatrix(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	window, tickers, err := ParseMatrixRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	universe, err := s.src.Stocks(ctx)
	if err != nil {
		return nil, s.fetchStatus(err)
	}
	stocks, err := gather.SelectStocks(universe, tickers)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	set, err := gather.FetchSet(ctx, s.src, stocks, window)
	if err != nil {
		return nil, s.fetchStatus(err)
	}
	m := engine.ComputeSet(set)
	metrics.MatrixComputations.WithLabelValues("grpc").Inc()
	metrics.UndefinedCoefficients.Add(float64(engine.UndefinedCount(m)))

	out, err := MatrixToStruct(window, m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *CorrelationService) fetchStatus(err error) error {
	switch {
	case errors.Is(err, gather.ErrFetch):
		s.log.Warn("upstream failure", "error", err)
		return status.Error(codes.Unavailable, gather.UserMessage(err))
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// ---------------------------------------------------------------------------
// Struct encoding
// ---------------------------------------------------------------------------

// MatrixRequest builds a GetMatrix request. No tickers means every stock.
func MatrixRequest(window domain.Window, tickers ...domain.Ticker) (*structpb.Struct, error) {
	list := make([]any, len(tickers))
	for i, t := range tickers {
		list[i] = string(t)
	}
	return structpb.NewStruct(map[string]any{
		"minutes": window.Minutes(),
		"tickers": list,
	})
}

// ParseMatrixRequest reads the window and ticker list of a GetMatrix request.
// A missing minutes field means the full history.
func ParseMatrixRequest(req *structpb.Struct) (domain.Window, []domain.Ticker, error) {
	fields := req.GetFields()
	var window domain.Window
	if v, ok := fields["minutes"]; ok {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return 0, nil, errors.New("minutes must be a number")
		}
		if n.NumberValue < 0 || n.NumberValue != float64(int(n.NumberValue)) {
			return 0, nil, fmt.Errorf("invalid minutes %v", n.NumberValue)
		}
		window = domain.Window(int(n.NumberValue))
	}
	var tickers []domain.Ticker
	for _, v := range fields["tickers"].GetListValue().GetValues() {
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return 0, nil, errors.New("tickers must be strings")
		}
		tickers = append(tickers, domain.Ticker(s.StringValue))
	}
	return window, tickers, nil
}

// MatrixToStruct encodes a matrix as a GetMatrix response.
func MatrixToStruct(window domain.Window, m domain.Matrix) (*structpb.Struct, error) {
	tickers := make([]any, m.Len())
	values := make([]any, m.Len())
	undefined := make([]any, m.Len())
	for i, t := range m.Tickers {
		tickers[i] = string(t)
		row := make([]any, m.Len())
		flags := make([]any, m.Len())
		for j := range m.Tickers {
			row[j] = m.Values[i][j]
			flags[j] = m.Undefined[i][j]
		}
		values[i] = row
		undefined[i] = flags
	}
	return structpb.NewStruct(map[string]any{
		"minutes":        window.Minutes(),
		"tickers":        tickers,
		"values":         values,
		"undefined":      undefined,
		"aligned_length": m.AlignedLength,
	})
}

// MatrixFromStruct decodes a GetMatrix response.
func MatrixFromStruct(s *structpb.Struct) (domain.Window, domain.Matrix, error) {
	fields := s.GetFields()
	var tickers []domain.Ticker
	for _, v := range fields["tickers"].GetListValue().GetValues() {
		tickers = append(tickers, domain.Ticker(v.GetStringValue()))
	}
	m := domain.NewMatrix(tickers, int(fields["aligned_length"].GetNumberValue()))
	rows := fields["values"].GetListValue().GetValues()
	flags := fields["undefined"].GetListValue().GetValues()
	if len(rows) != m.Len() || len(flags) != m.Len() {
		return 0, domain.Matrix{}, fmt.Errorf("matrix has %d rows for %d tickers", len(rows), m.Len())
	}
	for i := range rows {
		cells := rows[i].GetListValue().GetValues()
		undef := flags[i].GetListValue().GetValues()
		if len(cells) != m.Len() || len(undef) != m.Len() {
			return 0, domain.Matrix{}, fmt.Errorf("row %d has %d cells, want %d", i, len(cells), m.Len())
		}
		for j := range cells {
			m.Values[i][j] = cells[j].GetNumberValue()
			m.Undefined[i][j] = undef[j].GetBoolValue()
		}
	}
	return domain.Window(int(fields["minutes"].GetNumberValue())), m, nil
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// CorrelationClient calls the Correlation service.
type CorrelationClient struct {
	cc grpc.ClientConnInterface
}

// NewCorrelationClient creates a client over cc.
func NewCorrelationClient(cc grpc.ClientConnInterface) *CorrelationClient {
	return &CorrelationClient{cc: cc}
}

// GetMatrix invokes the GetMatrix RPC.
func (c *CorrelationClient) GetMatrix(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetMatrixMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Matrix requests the matrix of tickers over window and decodes it.
func (c *CorrelationClient) Matrix(ctx context.Context, window domain.Window, tickers ...domain.Ticker) (domain.Matrix, error) {
	req, err := MatrixRequest(window, tickers...)
	if err != nil {
		return domain.Matrix{}, err
	}
	resp, err := c.GetMatrix(ctx, req)
	if err != nil {
		return domain.Matrix{}, err
	}
	_, m, err := MatrixFromStruct(resp)
	return m, err
}

// loggingInterceptor logs each unary call with its status code.
func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
