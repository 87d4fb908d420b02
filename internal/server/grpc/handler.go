package grpc

import (
	"context"
	"errors"
	"math"
	"net/url"

	"github.com/dmitrijs2005/members/internal/common"
	"github.com/dmitrijs2005/members/internal/server/members"
	"github.com/dmitrijs2005/members/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const setCookieHeaderName = "set-cookie"

// toStatus maps service errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrTokenConsumed):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrTokenPending), errors.Is(err, common.ErrThrottled):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, common.ErrInvalidEmail):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrConflict):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	}
	return status.Error(codes.Internal, "internal error")
}

func (s *GRPCServer) caller(ctx context.Context) *members.UserItem {
	return s.login.ResolveUser(ctx, firstMetadata(ctx, common.CookieHeaderName), firstMetadata(ctx, common.UserAgentHeaderName))
}

func (s *GRPCServer) Whoami(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	var user *members.UserItem
	if id, ok := ctx.Value(userIDKey).(int64); ok {
		u, err := s.login.UserByID(ctx, id)
		if err != nil {
			return nil, toStatus(err)
		}
		user = u
	} else {
		user = s.caller(ctx)
	}

	promotion, authority := user.Promotion()
	out, err := structpb.NewStruct(map[string]any{
		"id":                  user.ID(),
		"name":                user.Name(),
		"anonymous":           user.IsDummy(),
		"grade":               user.Grade().Label(),
		"promotion":           promotion.Label(),
		"promotion_authority": authority.Label(),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func (s *GRPCServer) RequestEmailLogin(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	email := req.GetFields()["email"].GetStringValue()
	if email == "" {
		return nil, status.Error(codes.InvalidArgument, "email is required")
	}

	if err := s.login.RequestEmailLogin(ctx, email, s.caller(ctx)); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) VerifyEmailLogin(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	rawID := fields["account_id"].GetNumberValue()
	token := fields["token"].GetStringValue()
	if rawID < 1 || rawID > math.MaxInt64 || rawID != math.Trunc(rawID) || token == "" {
		return nil, status.Error(codes.InvalidArgument, "account_id and token are required")
	}

	session, err := s.login.VerifyEmailLogin(ctx, int64(rawID), token, firstMetadata(ctx, common.UserAgentHeaderName))
	if err != nil {
		return nil, toStatus(err)
	}
	return s.sessionResponse(ctx, session)
}

func (s *GRPCServer) SteamLogin(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	params := url.Values{}
	for k, v := range req.GetFields() {
		params.Set(k, v.GetStringValue())
	}

	session, err := s.login.SteamLogin(ctx, params, firstMetadata(ctx, common.UserAgentHeaderName))
	if err != nil {
		return nil, toStatus(err)
	}
	return s.sessionResponse(ctx, session)
}

func (s *GRPCServer) Logout(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	header := s.login.Logout(ctx, firstMetadata(ctx, common.CookieHeaderName), firstMetadata(ctx, common.UserAgentHeaderName))
	_ = grpc.SetHeader(ctx, metadata.Pairs(setCookieHeaderName, header))
	return wrapperspb.String(header), nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {

	return wrapperspb.String("OK"), nil

}

func (s *GRPCServer) sessionResponse(ctx context.Context, session *services.Session) (*structpb.Struct, error) {
	_ = grpc.SetHeader(ctx, metadata.Pairs(setCookieHeaderName, session.SetCookie))

	out, err := structpb.NewStruct(map[string]any{
		"user_id":      session.User.ID(),
		"set_cookie":   session.SetCookie,
		"access_token": session.AccessToken,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}
