package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pkgcrypto "github.com/and161185/dolist/internal/crypto"
	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/limiter"
	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/repository"
	"github.com/golang-jwt/jwt/v5"
)

type fakeAccounts struct {
	mu   sync.Mutex
	rows map[string]*model.Account // key: provider|subject

	createErr error
	getErr    error
	creates   int
}

var _ repository.AccountRepository = (*fakeAccounts)(nil)

func newFakeAccounts() *fakeAccounts { return &fakeAccounts{rows: map[string]*model.Account{}} }

func (f *fakeAccounts) Create(_ context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	k := a.Provider + "|" + a.Subject
	if _, ok := f.rows[k]; ok {
		return errs.ErrAlreadyExists
	}
	c := *a
	f.rows[k] = &c
	f.creates++
	return nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.ID == id {
			c := *a
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeAccounts) GetBySubject(_ context.Context, provider, subject string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.rows[provider+"|"+subject]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return nil
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

var (
	signKey = []byte("session-secret")
	fedKey  = []byte("federation-secret")
)

func idToken(t *testing.T, key []byte, iss, sub, email, name string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	c := Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    iss,
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuth_SignUp(t *testing.T) {
	t.Parallel()
	accs := newFakeAccounts()
	s := NewAuthService(accs, signKey, fedKey, time.Hour, &fakeLimiter{allowOK: true})
	ctx := context.Background()

	if _, err := s.SignUp(ctx, "not-an-email", "secret1", "A"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation on bad email, got %v", err)
	}
	if _, err := s.SignUp(ctx, "ana@example.com", "12345", "A"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation on short password, got %v", err)
	}

	res, err := s.SignUp(ctx, " Ana@Example.com ", "secret1", " Ana ")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.Token == "" || res.Identity.UID == "" || res.Identity.Email != "ana@example.com" || res.Identity.DisplayName != "Ana" {
		t.Fatalf("bad result: %+v", res)
	}
	stored, _ := accs.GetBySubject(ctx, ProviderPassword, "ana@example.com")
	if stored == nil || stored.PwdHash == "secret1" {
		t.Fatalf("password must be stored hashed: %+v", stored)
	}

	if _, err := s.SignUp(ctx, "ana@example.com", "secret2", ""); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
}

func TestAuth_SignIn_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()
	accs := newFakeAccounts()
	hash, _ := pkgcrypto.HashPassword("correct")
	_ = accs.Create(context.Background(), &model.Account{
		ID: "acc-1", Provider: ProviderPassword, Subject: "ana@x.io", Email: "ana@x.io", DisplayName: "Ana", PwdHash: hash,
	})
	lim := &fakeLimiter{allowOK: true}
	s := NewAuthService(accs, signKey, nil, time.Hour, lim)
	ctx := context.Background()

	lim.allowErr = errors.New("lim-err")
	if _, err := s.SignIn(ctx, "ana@x.io", "correct", "1.2.3.4:1"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	lim.allowErr = nil

	lim.allowOK = false
	if _, err := s.SignIn(ctx, "ana@x.io", "correct", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.allowOK = true

	if _, err := s.SignIn(ctx, "nobody@x.io", "x", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on unknown email, got %v", err)
	}

	lim.failBlocked = true
	if _, err := s.SignIn(ctx, "ana@x.io", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited after threshold, got %v", err)
	}
	lim.failBlocked = false

	if _, err := s.SignIn(ctx, "ana@x.io", "wrong", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong password, got %v", err)
	}

	res, err := s.SignIn(ctx, "ANA@x.io", "correct", "127.0.0.1:5")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if res.Identity.UID != "acc-1" || res.ExpiresAt.Before(time.Now()) {
		t.Fatalf("bad result: %+v", res)
	}
	if lim.successCalls != 1 || lim.failureCalls != 3 {
		t.Fatalf("limiter calls: success=%d failure=%d", lim.successCalls, lim.failureCalls)
	}
}

func TestAuth_SignIn_StoreErrorIsNotAFailedLogin(t *testing.T) {
	t.Parallel()
	accs := newFakeAccounts()
	dbErr := errors.New("connection reset")
	accs.getErr = dbErr
	lim := &fakeLimiter{allowOK: true}
	s := NewAuthService(accs, signKey, nil, time.Hour, lim)

	_, err := s.SignIn(context.Background(), "ana@x.io", "correct", "")
	if !errors.Is(err, dbErr) || errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want store error surfaced, got %v", err)
	}
	if lim.failureCalls != 0 {
		t.Fatalf("store error must not count as a failure: %d", lim.failureCalls)
	}
}

func TestAuth_SignInWithCredential(t *testing.T) {
	t.Parallel()
	accs := newFakeAccounts()
	s := NewAuthService(accs, signKey, fedKey, time.Hour, &fakeLimiter{allowOK: true})
	ctx := context.Background()

	if _, err := s.SignInWithCredential(ctx, "", "tok"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation without provider, got %v", err)
	}
	if _, err := s.SignInWithCredential(ctx, "google", "garbage"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on garbage token, got %v", err)
	}
	wrongKey := idToken(t, []byte("other"), "google", "g-1", "g@x.io", "Gina", time.Hour)
	if _, err := s.SignInWithCredential(ctx, "google", wrongKey); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong key, got %v", err)
	}
	wrongIss := idToken(t, fedKey, "github", "g-1", "g@x.io", "Gina", time.Hour)
	if _, err := s.SignInWithCredential(ctx, "google", wrongIss); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on issuer mismatch, got %v", err)
	}
	expired := idToken(t, fedKey, "google", "g-1", "g@x.io", "Gina", -time.Hour)
	if _, err := s.SignInWithCredential(ctx, "google", expired); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on expired token, got %v", err)
	}

	tok := idToken(t, fedKey, "google", "g-1", "G@x.io", "Gina", time.Hour)
	first, err := s.SignInWithCredential(ctx, "Google", tok)
	if err != nil {
		t.Fatalf("first sign-in: %v", err)
	}
	second, err := s.SignInWithCredential(ctx, "google", tok)
	if err != nil {
		t.Fatalf("second sign-in: %v", err)
	}
	if first.Identity.UID != second.Identity.UID || accs.creates != 1 {
		t.Fatalf("uid must be stable: %s vs %s (creates=%d)", first.Identity.UID, second.Identity.UID, accs.creates)
	}
	if first.Identity.Email != "g@x.io" || first.Identity.DisplayName != "Gina" {
		t.Fatalf("claims not carried: %+v", first.Identity)
	}

	disabled := NewAuthService(accs, signKey, nil, time.Hour, &fakeLimiter{})
	if _, err := disabled.SignInWithCredential(ctx, "google", tok); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized without federation key, got %v", err)
	}
}

func TestAuth_WhoAmI(t *testing.T) {
	t.Parallel()
	accs := newFakeAccounts()
	s := NewAuthService(accs, signKey, fedKey, time.Hour, &fakeLimiter{allowOK: true})
	ctx := context.Background()

	res, err := s.SignUp(ctx, "w@x.io", "secret1", "W")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	id, err := s.WhoAmI(ctx, res.Token)
	if err != nil {
		t.Fatalf("WhoAmI: %v", err)
	}
	if id.UID != res.Identity.UID || id.Email != "w@x.io" {
		t.Fatalf("identity mismatch: %+v", id)
	}

	if _, err := s.WhoAmI(ctx, "nope"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	// a federated id token is not a session token
	fed := idToken(t, signKey, "google", res.Identity.UID, "", "", time.Hour)
	if _, err := s.WhoAmI(ctx, fed); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on foreign issuer, got %v", err)
	}

	short := NewAuthService(accs, signKey, nil, -time.Hour, &fakeLimiter{allowOK: true})
	old, err := short.SignIn(ctx, "w@x.io", "secret1", "")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if _, err := s.WhoAmI(ctx, old.Token); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on expired token, got %v", err)
	}
}
