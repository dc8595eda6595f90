// Package api hosts the dashboard's network endpoints: the HTTP server
// (pages, JSON API, WebSocket view channel) and the gRPC Correlation
// service, with a shared start and graceful shutdown.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	httpAddr string
	grpcAddr string
	httpSrv  *http.Server
	grpcSrv  *grpc.Server
	log      *slog.Logger

	// Bound addresses, available once ListenAndServe has started.
	ready    chan struct{}
	httpBind net.Addr
	grpcBind net.Addr
}

// NewServer creates a Server serving handler on httpAddr and the
// Correlation service on grpcAddr. An empty grpcAddr disables gRPC.
func NewServer(httpAddr, grpcAddr string, handler http.Handler, corr CorrelationServer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		httpAddr: httpAddr,
		grpcAddr: grpcAddr,
		httpSrv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log:   log.With("component", "server"),
		ready: make(chan struct{}),
	}
	if grpcAddr != "" && corr != nil {
		s.grpcSrv = grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(s.log)))
		RegisterCorrelationServer(s.grpcSrv, corr)
	}
	return s
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a listener fails. It does not shut down; call
// Shutdown after it returns.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpAddr, err)
	}
	s.httpBind = httpLn.Addr()

	var grpcLn net.Listener
	if s.grpcSrv != nil {
		grpcLn, err = net.Listen("tcp", s.grpcAddr)
		if err != nil {
			httpLn.Close()
			return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
		}
		s.grpcBind = grpcLn.Addr()
	}
	close(s.ready)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := s.httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if grpcLn != nil {
		g.Go(func() error {
			s.log.Info("gRPC server listening", "addr", grpcLn.Addr().String())
			if err := s.grpcSrv.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	// Both Serve calls run until Shutdown; wait for the context or a
	// listener failure, whichever comes first.
	errc := make(chan error, 1)
	go func() { errc <- g.Wait() }()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case err := <-errc:
		return err
	}
}

// Addrs blocks until the listeners are bound and returns their addresses.
// The gRPC address is nil when gRPC is disabled.
func (s *Server) Addrs(ctx context.Context) (httpAddr, grpcAddr net.Addr, err error) {
	select {
	case <-s.ready:
		return s.httpBind, s.grpcBind, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers. gRPC
// calls still running when ctx expires are cut off.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if s.grpcSrv != nil {
		done := make(chan struct{})
		go func() {
			s.grpcSrv.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.grpcSrv.Stop()
			errs = append(errs, fmt.Errorf("grpc shutdown: %w", ctx.Err()))
		}
	}
	return errors.Join(errs...)
}
