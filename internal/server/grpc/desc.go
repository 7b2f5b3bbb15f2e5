package grpcserver

import (
	"context"

	"github.com/and161185/dolist/internal/wire"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// IdentityServer is the server API of dolist.identity.v1.Identity.
type IdentityServer interface {
	SignUp(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignIn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignInWithCredential(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WhoAmI(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(IdentityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(IdentityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		h := func(ctx context.Context, req any) (any, error) {
			return call(srv.(IdentityServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, h)
	}
}

// ServiceDesc describes dolist.identity.v1.Identity. Bodies are google.protobuf.Struct
// so the default proto codec applies without generated stubs.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: wire.ServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SignUp", Handler: unaryHandler(wire.MethodSignUp, IdentityServer.SignUp)},
		{MethodName: "SignIn", Handler: unaryHandler(wire.MethodSignIn, IdentityServer.SignIn)},
		{MethodName: "SignInWithCredential", Handler: unaryHandler(wire.MethodSignInWithCredential, IdentityServer.SignInWithCredential)},
		{MethodName: "WhoAmI", Handler: unaryHandler(wire.MethodWhoAmI, IdentityServer.WhoAmI)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dolist/identity/v1/identity.proto",
}

// RegisterIdentityServer registers srv on s.
func RegisterIdentityServer(s grpc.ServiceRegistrar, srv IdentityServer) {
	s.RegisterService(&ServiceDesc, srv)
}
