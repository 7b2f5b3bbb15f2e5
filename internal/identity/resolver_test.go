package identity

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/and161185/dolist/internal/prefs"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
)

type brokenKV struct{ getErr, setErr error }

func (b brokenKV) Get(string) (string, bool, error) { return "", false, b.getErr }
func (b brokenKV) Set(string, string) error         { return b.setErr }
func (b brokenKV) Delete(string) error              { return b.setErr }

func newResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	return NewResolver(prefs.Open(path), zaptest.NewLogger(t)), path
}

func TestResolve_GeneratesAndCachesDeviceID(t *testing.T) {
	r, path := newResolver(t)

	id := r.ResolveDeviceIdentity()
	if !strings.HasPrefix(id, DevicePrefix) {
		t.Fatalf("want %q prefix, got %q", DevicePrefix, id)
	}
	if _, err := uuid.FromString(strings.TrimPrefix(id, DevicePrefix)); err != nil {
		t.Fatalf("suffix must be a uuid: %v", err)
	}
	if again := r.ResolveDeviceIdentity(); again != id {
		t.Fatalf("id must be stable: %s vs %s", again, id)
	}

	// survives a restart
	restarted := NewResolver(prefs.Open(path), nil)
	if got := restarted.ResolveDeviceIdentity(); got != id {
		t.Fatalf("id must persist: %s vs %s", got, id)
	}
}

func TestResolve_FederatedUIDWins(t *testing.T) {
	r, _ := newResolver(t)
	device := r.ResolveDeviceIdentity()

	if err := r.CacheFederatedUID("uid-42"); err != nil {
		t.Fatalf("cache: %v", err)
	}
	if got := r.ResolveDeviceIdentity(); got != "uid-42" {
		t.Fatalf("want federated uid, got %s", got)
	}

	if err := r.ClearFederatedUID(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := r.ResolveDeviceIdentity(); got != device {
		t.Fatalf("after clear want device id %s, got %s", device, got)
	}
}

func TestResolve_NeverFailsOnBrokenCache(t *testing.T) {
	r := NewResolver(brokenKV{getErr: errors.New("disk"), setErr: errors.New("disk")}, zaptest.NewLogger(t))

	id := r.ResolveDeviceIdentity()
	if !strings.HasPrefix(id, DevicePrefix) {
		t.Fatalf("want generated id, got %q", id)
	}
	if _, ok := r.FederatedUID(); ok {
		t.Fatalf("broken cache must not report a federated uid")
	}
}
