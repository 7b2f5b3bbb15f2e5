// Package identity resolves the stable identifier of this device's user.
package identity

import (
	"github.com/and161185/dolist/internal/prefs"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// DevicePrefix starts every generated device identifier.
const DevicePrefix = "user_"

// KV is the preference cache the resolver reads and writes.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

var _ KV = (*prefs.Store)(nil)

// Resolver caches the device identifier and the last signed-in federated UID.
type Resolver struct {
	kv  KV
	log *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(kv KV, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{kv: kv, log: log}
}

// ResolveDeviceIdentity returns the cached federated UID if any, else the cached
// device identifier, else a freshly generated and cached "user_<uuid>".
// It never fails; cache errors are logged and a usable id is still returned.
func (r *Resolver) ResolveDeviceIdentity() string {
	if uid, ok := r.FederatedUID(); ok {
		return uid
	}
	return r.DeviceID()
}

// DeviceID returns the device identifier, generating and caching it on first use.
func (r *Resolver) DeviceID() string {
	id, ok, err := r.kv.Get(prefs.KeyDeviceID)
	if err != nil {
		r.log.Warn("read device id", zap.Error(err))
	}
	if ok {
		return id
	}
	id = DevicePrefix + uuid.Must(uuid.NewV4()).String()
	if err := r.kv.Set(prefs.KeyDeviceID, id); err != nil {
		r.log.Warn("cache device id", zap.Error(err))
	}
	return id
}

// FederatedUID returns the cached UID of the last signed-in account.
func (r *Resolver) FederatedUID() (string, bool) {
	uid, ok, err := r.kv.Get(prefs.KeyFederatedUID)
	if err != nil {
		r.log.Warn("read federated uid", zap.Error(err))
		return "", false
	}
	return uid, ok
}

// CacheFederatedUID remembers uid as the device's identity.
func (r *Resolver) CacheFederatedUID(uid string) error {
	return r.kv.Set(prefs.KeyFederatedUID, uid)
}

// ClearFederatedUID forgets the cached UID so the device identifier applies again.
func (r *Resolver) ClearFederatedUID() error {
	return r.kv.Delete(prefs.KeyFederatedUID)
}

// ClearDeviceID forgets the device identifier; the next resolution generates a new one.
func (r *Resolver) ClearDeviceID() error {
	return r.kv.Delete(prefs.KeyDeviceID)
}
