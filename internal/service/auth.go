// Package service contains identityd application services.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/dolist/internal/crypto"
	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/limiter"
	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// ProviderPassword marks accounts created with email and password.
const ProviderPassword = "password"

// Issuer is the iss claim of session tokens.
const Issuer = "dolist-identityd"

const minPasswordLen = 6

// AuthService defines identity provider operations.
type AuthService interface {
	// SignUp creates a password account and signs it in.
	SignUp(ctx context.Context, email, password, displayName string) (model.AuthResult, error)
	// SignIn authenticates with email and password, rate limited by (email, ip).
	SignIn(ctx context.Context, email, password, ip string) (model.AuthResult, error)
	// SignInWithCredential exchanges a federated id token, creating the account on first use.
	SignInWithCredential(ctx context.Context, provider, idToken string) (model.AuthResult, error)
	// WhoAmI validates a session token and returns the identity it names.
	WhoAmI(ctx context.Context, token string) (model.Identity, error)
}

// Claims is the payload of session and federated id tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type AuthServiceImpl struct {
	accounts      repository.AccountRepository
	signKey       []byte
	federationKey []byte
	sessionTTL    time.Duration
	lim           limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies.
// An empty federationKey disables SignInWithCredential.
func NewAuthService(accounts repository.AccountRepository, signKey, federationKey []byte, sessionTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{accounts: accounts, signKey: signKey, federationKey: federationKey, sessionTTL: sessionTTL, lim: lim}
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// SignUp creates a new password account.
func (s *AuthServiceImpl) SignUp(ctx context.Context, email, password, displayName string) (model.AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return model.AuthResult{}, fmt.Errorf("%w: invalid email", errs.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return model.AuthResult{}, fmt.Errorf("%w: password must be at least %d characters", errs.ErrValidation, minPasswordLen)
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return model.AuthResult{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.AuthResult{}, err
	}
	a := &model.Account{
		ID:          id.String(),
		Provider:    ProviderPassword,
		Subject:     email,
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
		PwdHash:     hash,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return model.AuthResult{}, err
	}
	return s.issue(a)
}

// SignIn authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) SignIn(ctx context.Context, email, password, ip string) (model.AuthResult, error) {
	email = normalizeEmail(email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.AuthResult{}, err
	}
	if !allowed {
		return model.AuthResult{}, errs.ErrRateLimited
	}

	a, err := s.accounts.GetBySubject(ctx, ProviderPassword, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.AuthResult{}, fmt.Errorf("load account: %w", err)
	}
	ok := false
	if err == nil {
		ok, _ = pkgcrypto.VerifyPassword(password, a.PwdHash)
	}
	if !ok {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.AuthResult{}, errs.ErrRateLimited
		}
		// unknown email and wrong password look the same
		return model.AuthResult{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, email, ipHash)
	return s.issue(a)
}

// SignInWithCredential verifies an HS256 id token issued by provider and signs its subject in.
func (s *AuthServiceImpl) SignInWithCredential(ctx context.Context, provider, idToken string) (model.AuthResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || provider == ProviderPassword || idToken == "" {
		return model.AuthResult{}, fmt.Errorf("%w: provider and id token required", errs.ErrValidation)
	}
	if len(s.federationKey) == 0 {
		return model.AuthResult{}, errs.ErrUnauthorized
	}
	claims, err := parseClaims(idToken, s.federationKey, jwt.WithIssuer(provider))
	if err != nil || claims.Subject == "" {
		return model.AuthResult{}, errs.ErrUnauthorized
	}

	a, err := s.accounts.GetBySubject(ctx, provider, claims.Subject)
	switch {
	case err == nil:
		return s.issue(a)
	case !errors.Is(err, errs.ErrNotFound):
		return model.AuthResult{}, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return model.AuthResult{}, err
	}
	a = &model.Account{
		ID:          id.String(),
		Provider:    provider,
		Subject:     claims.Subject,
		Email:       normalizeEmail(claims.Email),
		DisplayName: claims.Name,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		if !errors.Is(err, errs.ErrAlreadyExists) {
			return model.AuthResult{}, err
		}
		// lost a first-sign-in race; the other request created it
		if a, err = s.accounts.GetBySubject(ctx, provider, claims.Subject); err != nil {
			return model.AuthResult{}, err
		}
	}
	return s.issue(a)
}

// WhoAmI returns the identity of a valid, unexpired session token.
func (s *AuthServiceImpl) WhoAmI(ctx context.Context, token string) (model.Identity, error) {
	claims, err := parseClaims(token, s.signKey, jwt.WithIssuer(Issuer))
	if err != nil {
		return model.Identity{}, errs.ErrUnauthorized
	}
	a, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Identity{}, errs.ErrUnauthorized
		}
		return model.Identity{}, err
	}
	return model.Identity{UID: a.ID, DisplayName: a.DisplayName, Email: a.Email}, nil
}

func parseClaims(token string, key []byte, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30*time.Second),
		jwt.WithExpirationRequired(),
	)
	var claims Claims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) { return key, nil }, opts...); err != nil {
		return nil, err
	}
	return &claims, nil
}

// issue creates a signed HS256 session token for the account.
func (s *AuthServiceImpl) issue(a *model.Account) (model.AuthResult, error) {
	now := time.Now()
	exp := now.Add(s.sessionTTL)
	claims := Claims{
		Email: a.Email,
		Name:  a.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return model.AuthResult{}, err
	}
	return model.AuthResult{
		Token:     signed,
		ExpiresAt: exp,
		Identity:  model.Identity{UID: a.ID, DisplayName: a.DisplayName, Email: a.Email},
	}, nil
}
