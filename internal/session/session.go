// Package session decides, on each launch and on explicit auth actions, who the
// current user is and whether the app opens on the home or the auth screen.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/and161185/dolist/internal/errs"
	"github.com/and161185/dolist/internal/identity"
	"github.com/and161185/dolist/internal/model"
	"github.com/and161185/dolist/internal/remote"
	"github.com/and161185/dolist/internal/repository"
	"go.uber.org/zap"
)

// MinPasswordLen is the shortest password accepted at registration.
const MinPasswordLen = 6

// Provider is the identity provider as the device sees it.
type Provider interface {
	// CurrentIdentity returns the signed-in principal or nil.
	CurrentIdentity(ctx context.Context) (*model.Identity, error)
	SignIn(ctx context.Context, cred model.Credential) (model.Identity, error)
	SignUp(ctx context.Context, email, password, displayName string) (model.Identity, error)
	SignOut(ctx context.Context) error
	// Session returns the cached provider session, "" when there is none.
	Session() string
	// RestoreSession reinstates a value returned by Session; "" signs out.
	RestoreSession(ctx context.Context, session string) error
}

// DeviceIdentity caches the device identifier and the federated UID.
type DeviceIdentity interface {
	DeviceID() string
	CacheFederatedUID(uid string) error
	ClearFederatedUID() error
}

var _ DeviceIdentity = (*identity.Resolver)(nil)

// RegisterRequest is the registration form.
type RegisterRequest struct {
	Name     string
	LastName string
	Username string
	Email    string
	Password string
}

// Recomputer refreshes derived list state of a user.
type Recomputer interface {
	RecomputeAllForUser(ctx context.Context, userID string) (int, error)
}

// Manager runs session resolution against the local store, the remote mirror
// and the identity provider.
type Manager struct {
	users  repository.UserStore
	mirror remote.Mirror
	idp    Provider
	ids    DeviceIdentity
	log    *zap.Logger

	onHome Recomputer
}

// NewManager constructs a Manager.
func NewManager(users repository.UserStore, mirror remote.Mirror, idp Provider, ids DeviceIdentity, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{users: users, mirror: mirror, idp: idp, ids: ids, log: log}
}

// RecomputeOnHome makes Start recompute list completion of the user it lands on.
func (m *Manager) RecomputeOnHome(r Recomputer) { m.onHome = r }

func auth() model.Resolution { return model.Resolution{Destination: model.DestinationAuth} }

func home(u *model.User) model.Resolution {
	return model.Resolution{Destination: model.DestinationHome, User: u}
}

// Start resolves the session at launch. When the provider reports a signed-in
// principal the remote profile decides; when the remote is unreachable the local
// user record decides. A local store failure yields the auth destination and the error.
func (m *Manager) Start(ctx context.Context) (model.Resolution, error) {
	res, err := m.resolve(ctx)
	if err == nil && res.Destination == model.DestinationHome && m.onHome != nil {
		if _, rerr := m.onHome.RecomputeAllForUser(ctx, res.User.ID); rerr != nil {
			m.log.Warn("recompute list completion", zap.Error(rerr))
		}
	}
	return res, err
}

func (m *Manager) resolve(ctx context.Context) (model.Resolution, error) {
	id, err := m.idp.CurrentIdentity(ctx)
	if err != nil {
		m.log.Warn("identity provider state unavailable", zap.Error(err))
		id = nil
	}
	if id != nil {
		res, handled, err := m.remoteLookup(ctx, *id)
		if handled {
			return res, err
		}
	}
	return m.localLookup(ctx)
}

func (m *Manager) remoteLookup(ctx context.Context, id model.Identity) (model.Resolution, bool, error) {
	u, err := m.mirror.GetUser(ctx, id.UID)
	switch {
	case err == nil:
		if !u.Login {
			m.log.Info("remote profile signed out", zap.String("uid", id.UID))
			return auth(), true, nil
		}
	case errors.Is(err, errs.ErrNotFound):
		u = profileFromClaims(id)
		if err := m.mirror.PutUser(ctx, *u); err != nil {
			m.log.Warn("create remote profile", zap.String("uid", id.UID), zap.Error(err))
			return auth(), true, nil
		}
	default:
		m.log.Warn("remote lookup failed, using local state", zap.String("uid", id.UID), zap.Error(err))
		return model.Resolution{}, false, nil
	}

	if err := m.adopt(ctx, u); err != nil {
		return auth(), true, err
	}
	return home(u), true, nil
}

func (m *Manager) localLookup(ctx context.Context) (model.Resolution, error) {
	u, err := m.users.FirstUser(ctx)
	if errors.Is(err, errs.ErrNotFound) {
		return auth(), nil
	}
	if err != nil {
		return auth(), fmt.Errorf("read local user: %w", err)
	}
	if !u.Login {
		return auth(), nil
	}
	return home(u), nil
}

// adopt makes u the only local user and caches its UID as the device identity.
func (m *Manager) adopt(ctx context.Context, u *model.User) error {
	u.IsGuest = false
	if err := m.users.ReplaceUsers(ctx, *u); err != nil {
		return fmt.Errorf("store local user: %w", err)
	}
	if err := m.ids.CacheFederatedUID(u.ID); err != nil {
		m.log.Warn("cache federated uid", zap.Error(err))
	}
	return nil
}

func profileFromClaims(id model.Identity) *model.User {
	name := strings.TrimSpace(id.DisplayName)
	if name == "" {
		name = "User"
	}
	username := "user"
	if at := strings.IndexByte(id.Email, '@'); at > 0 {
		username = id.Email[:at]
	}
	return &model.User{ID: id.UID, Name: name, Username: username, Email: id.Email, Login: true}
}

// Current returns the signed-in local user or errs.ErrNotSignedIn.
func (m *Manager) Current(ctx context.Context) (*model.User, error) {
	u, err := m.users.FirstUser(ctx)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrNotSignedIn
	}
	if err != nil {
		return nil, fmt.Errorf("read local user: %w", err)
	}
	if !u.Login {
		return nil, errs.ErrNotSignedIn
	}
	return u, nil
}

// ContinueAsGuest replaces the local user with a guest keyed by the device
// identifier. It never touches the remote.
func (m *Manager) ContinueAsGuest(ctx context.Context) (model.Resolution, error) {
	if err := m.ids.ClearFederatedUID(); err != nil {
		m.log.Warn("clear federated uid", zap.Error(err))
	}
	if err := m.idp.SignOut(ctx); err != nil {
		m.log.Warn("drop provider session", zap.Error(err))
	}
	g := &model.User{ID: m.ids.DeviceID(), Name: "Guest", Username: "guest", Login: true, IsGuest: true}
	if err := m.users.ReplaceUsers(ctx, *g); err != nil {
		return auth(), fmt.Errorf("store guest: %w", err)
	}
	return home(g), nil
}

// SignIn authenticates with the provider, then takes the remote profile (creating
// it from the provider claims when absent) as the local user.
func (m *Manager) SignIn(ctx context.Context, cred model.Credential) (model.Resolution, error) {
	if err := validateCredential(cred); err != nil {
		return auth(), err
	}
	prev := m.idp.Session()
	id, err := m.idp.SignIn(ctx, cred)
	if err != nil {
		return auth(), err
	}

	u, err := m.mirror.GetUser(ctx, id.UID)
	switch {
	case err == nil:
		if !u.Login {
			u.Login = true
			if err := m.mirror.PutUser(ctx, *u); err != nil {
				return m.abort(ctx, prev, fmt.Errorf("mark remote profile signed in: %w", err))
			}
		}
	case errors.Is(err, errs.ErrNotFound):
		u = profileFromClaims(id)
		if err := m.mirror.PutUser(ctx, *u); err != nil {
			return m.abort(ctx, prev, fmt.Errorf("create remote profile: %w", err))
		}
	default:
		return m.abort(ctx, prev, fmt.Errorf("load remote profile: %w", err))
	}

	if err := m.adopt(ctx, u); err != nil {
		return m.abort(ctx, prev, err)
	}
	return home(u), nil
}

// Register validates the form, creates the provider account and the remote
// profile, then makes the new user current.
func (m *Manager) Register(ctx context.Context, r RegisterRequest) (model.Resolution, error) {
	r = r.normalized()
	if err := r.Validate(); err != nil {
		return auth(), err
	}
	prev := m.idp.Session()
	id, err := m.idp.SignUp(ctx, r.Email, r.Password, strings.TrimSpace(r.Name+" "+r.LastName))
	if err != nil {
		return auth(), err
	}
	u := &model.User{
		ID: id.UID, Name: r.Name, LastName: r.LastName, Username: r.Username,
		Email: r.Email, Login: true,
	}
	if err := m.mirror.PutUser(ctx, *u); err != nil {
		return m.abort(ctx, prev, fmt.Errorf("create remote profile: %w", err))
	}
	if err := m.adopt(ctx, u); err != nil {
		return m.abort(ctx, prev, err)
	}
	return home(u), nil
}

// abort puts back the provider session that was cached before the attempt, so a
// failed sign-in leaves the current local user's session intact.
func (m *Manager) abort(ctx context.Context, prev string, err error) (model.Resolution, error) {
	if e := m.idp.RestoreSession(ctx, prev); e != nil {
		m.log.Warn("restore provider session after failed sign-in", zap.Error(e))
	}
	return auth(), err
}

// Logout ends the session of u. A guest keeps its data and is only marked
// signed out. An authenticated user is signed out everywhere and removed locally;
// its lists stay on the device.
func (m *Manager) Logout(ctx context.Context, u *model.User) error {
	if u == nil {
		cur, err := m.users.FirstUser(ctx)
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrNotSignedIn
		}
		if err != nil {
			return fmt.Errorf("read local user: %w", err)
		}
		u = cur
	}
	if u.IsGuest {
		if err := m.users.SetLoginStatus(ctx, u.ID, false); err != nil {
			return fmt.Errorf("sign out guest: %w", err)
		}
		return nil
	}

	if err := m.idp.SignOut(ctx); err != nil {
		m.log.Warn("provider sign-out", zap.Error(err))
	}
	out := *u
	out.Login = false
	if err := m.mirror.PutUser(ctx, out); err != nil {
		m.log.Warn("mark remote profile signed out", zap.String("uid", u.ID), zap.Error(err))
	}
	if err := m.users.DeleteAllUsers(ctx); err != nil {
		return fmt.Errorf("delete local users: %w", err)
	}
	if err := m.ids.ClearFederatedUID(); err != nil {
		m.log.Warn("clear federated uid", zap.Error(err))
	}
	return nil
}

func (r RegisterRequest) normalized() RegisterRequest {
	r.Name = strings.TrimSpace(r.Name)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	return r
}

// Validate checks the registration form without any I/O.
func (r RegisterRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name is required", errs.ErrValidation)
	case strings.TrimSpace(r.LastName) == "":
		return fmt.Errorf("%w: last name is required", errs.ErrValidation)
	case strings.TrimSpace(r.Username) == "":
		return fmt.Errorf("%w: username is required", errs.ErrValidation)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(r.Email))
	if err != nil || addr.Address != strings.TrimSpace(r.Email) {
		return fmt.Errorf("%w: invalid email address", errs.ErrValidation)
	}
	if len(r.Password) < MinPasswordLen {
		return fmt.Errorf("%w: password must have at least %d characters", errs.ErrValidation, MinPasswordLen)
	}
	return nil
}

func validateCredential(c model.Credential) error {
	if c.Federated() {
		if strings.TrimSpace(c.Provider) == "" {
			return fmt.Errorf("%w: provider is required", errs.ErrValidation)
		}
		return nil
	}
	if strings.TrimSpace(c.Email) == "" || c.Password == "" {
		return fmt.Errorf("%w: email and password are required", errs.ErrValidation)
	}
	return nil
}
