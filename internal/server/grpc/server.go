// Package grpcserver exposes the identity provider gRPC API.
package grpcserver

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/service"
	"github.com/and161185/dolist/internal/wire"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ IdentityServer = (*Server)(nil)

// Server wires the auth service into gRPC handlers.
type Server struct {
	auth service.AuthService
	log  *zap.Logger
}

// New constructs a gRPC server with injected services.
func New(auth service.AuthService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, log: log}
}

// SignUp creates a password account.
func (s *Server) SignUp(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := wire.DecodeSignUp(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty email/password")
	}
	res, err := s.auth.SignUp(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		return nil, s.toStatus("sign up", err)
	}
	return wire.FromAuthResult(res), nil
}

// SignIn authenticates with email and password.
func (s *Server) SignIn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := wire.DecodeSignIn(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.auth.SignIn(ctx, req.Email, req.Password, remoteIP(ctx))
	if err != nil {
		return nil, s.toStatus("sign in", err)
	}
	return wire.FromAuthResult(res), nil
}

// SignInWithCredential exchanges a federated id token for a session.
func (s *Server) SignInWithCredential(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := wire.DecodeCredential(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.auth.SignInWithCredential(ctx, req.Provider, req.IDToken)
	if err != nil {
		return nil, s.toStatus("sign in with credential", err)
	}
	return wire.FromAuthResult(res), nil
}

// WhoAmI returns the identity resolved by AuthUnary.
func (s *Server) WhoAmI(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, ok := IdentityFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	return wire.FromIdentity(id), nil
}

// AuthUnary resolves the bearer token of protected methods into an identity in context.
func AuthUnary(auth service.AuthService, protected ...string) grpc.UnaryServerInterceptor {
	need := make(map[string]bool, len(protected))
	for _, m := range protected {
		need[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !need[info.FullMethod] {
			return next(ctx, req)
		}
		tok, err := bearerTokenFromMD(ctx)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "no auth")
		}
		id, err := auth.WhoAmI(ctx, tok)
		if err != nil {
			if errors.Is(err, errs.ErrUnauthorized) {
				return nil, status.Error(codes.Unauthenticated, "invalid token")
			}
			return nil, status.Error(codes.Internal, "internal")
		}
		return next(WithIdentity(ctx, id), req)
	}
}

func (s *Server) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "bad credentials")
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "account already exists")
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	default:
		s.log.Error(op, zap.Error(err))
		return status.Error(codes.Internal, "internal")
	}
}

func remoteIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			if t := strings.TrimSpace(v[7:]); t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
