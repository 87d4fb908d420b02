// Package grpc exposes the login flows over gRPC as members.v1.Members.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/members/internal/logging"
	"github.com/dmitrijs2005/members/internal/server/services"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	address   string
	login     *services.LoginService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, ls *services.LoginService, secretKey string) (*GRPCServer, error) {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		login:     ls,
		jwtSecret: []byte(secretKey),
	}, nil
}

// newServer creates the gRPC server with interceptors and the service
// registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.requestIDInterceptor, s.accessTokenInterceptor))
	RegisterMembersServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
