// Package prefs is a small persistent key-value cache for device preferences
// (device identifier, cached federated UID, session token), stored as YAML.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Well-known keys.
const (
	KeyDeviceID     = "device_id"
	KeyFederatedUID = "federated_uid"
	KeySessionToken = "session_token"
)

// Store is a file-backed string map. Safe for concurrent use.
type Store struct {
	path string

	mu     sync.Mutex
	loaded bool
	vals   map[string]string
}

// Open returns a store backed by path. The file is created on first write.
func Open(path string) *Store {
	return &Store{path: path}
}

func (s *Store) load() error {
	if s.loaded {
		return nil
	}
	s.vals = map[string]string{}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.loaded = true
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(b, &s.vals); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	if s.vals == nil {
		s.vals = map[string]string{}
	}
	s.loaded = true
	return nil
}

func (s *Store) flush() error {
	b, err := yaml.Marshal(s.vals)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Get returns the value of key and whether it is set to a non-empty value.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return "", false, err
	}
	v := s.vals[key]
	return v, v != "", nil
}

// Set stores key=value and persists the file.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	prev, had := s.vals[key]
	s.vals[key] = value
	if err := s.flush(); err != nil {
		if had {
			s.vals[key] = prev
		} else {
			delete(s.vals, key)
		}
		return err
	}
	return nil
}

// Delete removes key and persists the file. Deleting a missing key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}
	prev, had := s.vals[key]
	if !had {
		return nil
	}
	delete(s.vals, key)
	if err := s.flush(); err != nil {
		s.vals[key] = prev
		return err
	}
	return nil
}
