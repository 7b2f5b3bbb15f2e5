// Package idp is the device-side client of the identity provider (identityd).
// It keeps the session token in the preference cache so the current identity
// is known offline.
package idp

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/prefs"
	"github.com/and161185/dolist/internal/wire"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// TokenStore persists the session token.
type TokenStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

type claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Client talks to identityd over gRPC.
type Client struct {
	cc      grpc.ClientConnInterface
	tokens  TokenStore
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
}

// DialOptions selects transport security.
type DialOptions struct {
	Insecure bool   // plaintext (local development)
	CACert   string // PEM bundle; empty uses system roots
}

// Dial creates a client connection to addr. The connection is lazy; no I/O happens here.
func Dial(addr string, o DialOptions) (*grpc.ClientConn, error) {
	var creds credentials.TransportCredentials
	switch {
	case o.Insecure:
		creds = insecure.NewCredentials()
	case o.CACert != "":
		pem, err := os.ReadFile(o.CACert)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("bad CA cert")
		}
		creds = credentials.NewTLS(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12})
	default:
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
}

// New constructs a Client. A non-positive timeout selects 10s.
func New(cc grpc.ClientConnInterface, tokens TokenStore, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cc: cc, tokens: tokens, timeout: timeout, log: log, now: time.Now}
}

// CurrentIdentity returns the identity named by the cached, unexpired session token,
// or nil when signed out. It does not contact the server.
func (c *Client) CurrentIdentity(context.Context) (*model.Identity, error) {
	tok, ok, err := c.tokens.Get(prefs.KeySessionToken)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var cl claims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &cl); err != nil {
		c.log.Warn("dropping unreadable session token", zap.Error(err))
		_ = c.tokens.Delete(prefs.KeySessionToken)
		return nil, nil
	}
	if cl.Subject == "" || (cl.ExpiresAt != nil && !cl.ExpiresAt.After(c.now())) {
		_ = c.tokens.Delete(prefs.KeySessionToken)
		return nil, nil
	}
	return &model.Identity{UID: cl.Subject, DisplayName: cl.Name, Email: cl.Email}, nil
}

// SignIn exchanges a credential for a session and caches its token.
func (c *Client) SignIn(ctx context.Context, cred model.Credential) (model.Identity, error) {
	if cred.Federated() {
		return c.authenticate(ctx, wire.MethodSignInWithCredential,
			wire.Credential{Provider: cred.Provider, IDToken: cred.IDToken}.Struct())
	}
	return c.authenticate(ctx, wire.MethodSignIn, wire.SignIn{Email: cred.Email, Password: cred.Password}.Struct())
}

// SignUp creates a password account and caches its session token.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (model.Identity, error) {
	return c.authenticate(ctx, wire.MethodSignUp,
		wire.SignUp{Email: email, Password: password, DisplayName: displayName}.Struct())
}

// SignOut drops the cached session token.
func (c *Client) SignOut(context.Context) error {
	return c.tokens.Delete(prefs.KeySessionToken)
}

// Session returns the cached session token, "" when there is none.
func (c *Client) Session() string {
	tok, ok, err := c.tokens.Get(prefs.KeySessionToken)
	if err != nil || !ok {
		return ""
	}
	return tok
}

// RestoreSession caches tok again; an empty tok signs out.
func (c *Client) RestoreSession(ctx context.Context, tok string) error {
	if tok == "" {
		return c.SignOut(ctx)
	}
	return c.tokens.Set(prefs.KeySessionToken, tok)
}

// WhoAmI asks the server to validate the cached token.
func (c *Client) WhoAmI(ctx context.Context) (model.Identity, error) {
	tok, ok, err := c.tokens.Get(prefs.KeySessionToken)
	if err != nil {
		return model.Identity{}, err
	}
	if !ok {
		return model.Identity{}, errs.ErrNotSignedIn
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, wire.MethodWhoAmI, &structpb.Struct{}, out); err != nil {
		return model.Identity{}, fromStatus(err)
	}
	return wire.ToIdentity(out)
}

func (c *Client) authenticate(ctx context.Context, method string, in *structpb.Struct) (model.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		return model.Identity{}, fromStatus(err)
	}
	res, err := wire.ToAuthResult(out)
	if err != nil {
		return model.Identity{}, fmt.Errorf("decode auth result: %w", err)
	}
	if err := c.tokens.Set(prefs.KeySessionToken, res.Token); err != nil {
		return model.Identity{}, fmt.Errorf("cache session token: %w", err)
	}
	return res.Identity, nil
}

// fromStatus maps gRPC status codes back to sentinel errors.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", errs.ErrValidation, st.Message())
	case codes.Unauthenticated:
		return errs.ErrUnauthorized
	case codes.ResourceExhausted:
		return errs.ErrRateLimited
	case codes.AlreadyExists:
		return errs.ErrAlreadyExists
	case codes.NotFound:
		return errs.ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: identity provider: %s", errs.ErrRemoteUnavailable, st.Message())
	default:
		return fmt.Errorf("identity provider: %w", err)
	}
}
