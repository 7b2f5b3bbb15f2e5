// Package app wires the device-side components of dolist from a Config.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/dolist/internal/config"
	"github.com/and161185/dolist/internal/consistency"
	"github.com/and161185/dolist/internal/identity"
	"github.com/and161185/dolist/internal/idp"
	"github.com/and161185/dolist/internal/lists"
	"github.com/and161185/dolist/internal/prefs"
	"github.com/and161185/dolist/internal/remote"
	"github.com/and161185/dolist/internal/remote/mongostore"
	"github.com/and161185/dolist/internal/repository/sqlite"
	"github.com/and161185/dolist/internal/session"
	"github.com/and161185/dolist/internal/syncer"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// App is one process's set of device-side components.
type App struct {
	Config   *config.Config
	Store    *sqlite.Store
	Prefs    *prefs.Store
	Resolver *identity.Resolver
	Mirror   remote.Mirror
	IDP      *idp.Client
	Engine   *consistency.Engine
	Sync     *syncer.Coordinator
	Session  *session.Manager
	Lists    *lists.Service

	log     *zap.Logger
	closers []func(context.Context) error
}

// Open opens the local store and connects the optional remote collaborators.
// An unreachable remote store is not an error: mirror calls fail until it answers.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, log: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.Store, err = sqlite.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return a.Store.Close() })

	a.Prefs = prefs.Open(cfg.PrefsPath())
	a.Resolver = identity.NewResolver(a.Prefs, log.Named("identity"))
	a.Mirror = a.openMirror(ctx)

	cc, err := idp.Dial(cfg.Identity.Addr, idp.DialOptions{Insecure: cfg.Identity.Insecure, CACert: cfg.Identity.CACert})
	if err != nil {
		return nil, fmt.Errorf("identity provider: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return cc.Close() })

	a.wire(cc)
	return a, nil
}

// remoteStore is the document store behind the mirror.
type remoteStore interface {
	remote.DocumentStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// openRemote creates the remote document store. It must not wait for the server.
var openRemote = func(ctx context.Context, cfg config.RemoteConfig) (remoteStore, error) {
	return mongostore.Open(ctx, cfg.MongoURI, cfg.Database, cfg.Timeout)
}

// openMirror keeps the mirror even when the store does not answer at startup:
// every mirror call is bounded on its own, so the remote comes back as soon as
// the server does.
func (a *App) openMirror(ctx context.Context) remote.Mirror {
	cfg := a.Config.Remote
	if !a.Config.RemoteEnabled() {
		a.log.Info("remote mirror disabled")
		return remote.Disabled{}
	}
	rs, err := openRemote(ctx, cfg)
	if err != nil {
		a.log.Warn("remote store misconfigured, running offline", zap.Error(err))
		return remote.Disabled{}
	}
	a.closers = append(a.closers, rs.Close)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = remote.DefaultTimeout
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rs.Ping(pctx); err != nil {
		a.log.Warn("remote store unreachable at startup", zap.Error(err))
	}
	return remote.NewClient(rs, cfg.Timeout)
}

// wire builds the domain components over the already opened collaborators.
func (a *App) wire(cc grpc.ClientConnInterface) {
	log := a.log
	a.IDP = idp.New(cc, a.Prefs, a.Config.Identity.Timeout, log.Named("idp"))
	a.Engine = consistency.New(a.Store, log.Named("consistency"))
	a.Sync = syncer.New(a.Store, a.Mirror, a.IDP, log.Named("sync"))
	a.Session = session.NewManager(a.Store, a.Mirror, a.IDP, a.Resolver, log.Named("session"))
	a.Session.RecomputeOnHome(a.Engine)
	a.Lists = lists.NewService(a.Store, a.Engine, a.Sync, log.Named("lists"))
}

// Close releases everything Open acquired, in reverse order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
