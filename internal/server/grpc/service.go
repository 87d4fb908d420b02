package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the members service. Its
// messages are protobuf well-known types, so no generated code is needed.
const ServiceName = "members.v1.Members"

const (
	methodWhoami            = "/" + ServiceName + "/Whoami"
	methodRequestEmailLogin = "/" + ServiceName + "/RequestEmailLogin"
	methodVerifyEmailLogin  = "/" + ServiceName + "/VerifyEmailLogin"
	methodSteamLogin        = "/" + ServiceName + "/SteamLogin"
	methodLogout            = "/" + ServiceName + "/Logout"
	methodPing              = "/" + ServiceName + "/Ping"
)

// MembersServer is the server API of members.v1.Members.
type MembersServer interface {
	// Whoami describes the caller, identified by access token or cookie.
	Whoami(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// RequestEmailLogin mails a magic link. Request fields: email.
	RequestEmailLogin(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	// VerifyEmailLogin consumes a magic link. Request fields: account_id, token.
	VerifyEmailLogin(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// SteamLogin verifies a Steam OpenID callback; the request holds the
	// callback parameters.
	SteamLogin(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Logout returns the Set-Cookie value expiring the session cookie.
	Logout(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

func unaryHandler[Req any, Resp any](fullMethod string, call func(MembersServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MembersServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(MembersServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes members.v1.Members for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MembersServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Whoami", Handler: unaryHandler(methodWhoami, MembersServer.Whoami)},
		{MethodName: "RequestEmailLogin", Handler: unaryHandler(methodRequestEmailLogin, MembersServer.RequestEmailLogin)},
		{MethodName: "VerifyEmailLogin", Handler: unaryHandler(methodVerifyEmailLogin, MembersServer.VerifyEmailLogin)},
		{MethodName: "SteamLogin", Handler: unaryHandler(methodSteamLogin, MembersServer.SteamLogin)},
		{MethodName: "Logout", Handler: unaryHandler(methodLogout, MembersServer.Logout)},
		{MethodName: "Ping", Handler: unaryHandler(methodPing, MembersServer.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "members/v1/members.proto",
}

func RegisterMembersServer(s grpc.ServiceRegistrar, srv MembersServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// MembersClient is the client API of members.v1.Members.
type MembersClient struct {
	cc grpc.ClientConnInterface
}

func NewMembersClient(cc grpc.ClientConnInterface) *MembersClient {
	return &MembersClient{cc: cc}
}

func (c *MembersClient) Whoami(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.cc.Invoke(ctx, methodWhoami, &emptypb.Empty{}, out, opts...)
}

func (c *MembersClient) RequestEmailLogin(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, methodRequestEmailLogin, in, new(emptypb.Empty), opts...)
}

func (c *MembersClient) VerifyEmailLogin(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.cc.Invoke(ctx, methodVerifyEmailLogin, in, out, opts...)
}

func (c *MembersClient) SteamLogin(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.cc.Invoke(ctx, methodSteamLogin, in, out, opts...)
}

func (c *MembersClient) Logout(ctx context.Context, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	return out, c.cc.Invoke(ctx, methodLogout, &emptypb.Empty{}, out, opts...)
}

func (c *MembersClient) Ping(ctx context.Context, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	return out, c.cc.Invoke(ctx, methodPing, &emptypb.Empty{}, out, opts...)
}
