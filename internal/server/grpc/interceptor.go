package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/members/internal/common"
	"github.com/dmitrijs2005/members/internal/logging"
	"github.com/dmitrijs2005/members/internal/server/auth"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// firstMetadata returns the first incoming metadata value for key.
func firstMetadata(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(key); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// requestIDInterceptor tags every call with a request id (taken from the
// caller or generated), echoes it in the response header and logs the
// outcome.
func (s *GRPCServer) requestIDInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	requestID := firstMetadata(ctx, common.RequestIDHeaderName)
	if _, err := uuid.Parse(requestID); err != nil {
		requestID = uuid.NewString()
	}
	ctx = logging.WithRequestID(ctx, requestID)
	_ = grpc.SetHeader(ctx, metadata.Pairs(common.RequestIDHeaderName, requestID))

	start := time.Now()
	resp, err := handler(ctx, req)

	s.logger.Debug(ctx, "rpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}

// accessTokenInterceptor checks the access token of Whoami calls. A call
// without token passes on and is resolved through its cookie instead.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if info.FullMethod == methodWhoami {

		accessToken := firstMetadata(ctx, common.AccessTokenHeaderName)
		if len(accessToken) > 0 {
			userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
			if err != nil {
				return nil, status.Error(codes.Unauthenticated, "invalid access token")
			}
			ctx = context.WithValue(ctx, userIDKey, userID)
		}

	}

	return handler(ctx, req)
}
