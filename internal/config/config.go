// Package config loads the device-side configuration of dolist.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. DOLIST_REMOTE_MONGO_URI.
const EnvPrefix = "DOLIST"

// Config is the device configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir" mapstructure:"data_dir"`
	Database string         `yaml:"database" mapstructure:"database"`
	Remote   RemoteConfig   `yaml:"remote" mapstructure:"remote"`
	Identity IdentityConfig `yaml:"identity" mapstructure:"identity"`
	API      APIConfig      `yaml:"api" mapstructure:"api"`
}

// RemoteConfig points at the remote document store. An empty MongoURI disables mirroring.
type RemoteConfig struct {
	MongoURI string        `yaml:"mongo_uri" mapstructure:"mongo_uri"`
	Database string        `yaml:"database" mapstructure:"database"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// IdentityConfig points at identityd.
type IdentityConfig struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Insecure bool          `yaml:"insecure" mapstructure:"insecure"`
	CACert   string        `yaml:"ca_cert" mapstructure:"ca_cert"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// APIConfig configures `dolist serve`.
type APIConfig struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// DefaultDataDir is the per-user dolist directory.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".dolist"
	}
	return filepath.Join(dir, "dolist")
}

// DefaultPath is where the config file is looked up when none is given.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  DefaultDataDir(),
		Database: "dolist.db",
		Remote: RemoteConfig{
			Database: "dolist",
			Timeout:  5 * time.Second,
		},
		Identity: IdentityConfig{
			Addr:     "localhost:8443",
			Insecure: true,
			Timeout:  10 * time.Second,
		},
		API: APIConfig{
			Addr:           "127.0.0.1:8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

// Load reads path (when it exists) over the defaults and applies DOLIST_*
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Database == "" {
		return nil, errors.New("config: database must not be empty")
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("data_dir", c.DataDir)
	v.SetDefault("database", c.Database)
	v.SetDefault("remote.mongo_uri", c.Remote.MongoURI)
	v.SetDefault("remote.database", c.Remote.Database)
	v.SetDefault("remote.timeout", c.Remote.Timeout)
	v.SetDefault("identity.addr", c.Identity.Addr)
	v.SetDefault("identity.insecure", c.Identity.Insecure)
	v.SetDefault("identity.ca_cert", c.Identity.CACert)
	v.SetDefault("identity.timeout", c.Identity.Timeout)
	v.SetDefault("api.addr", c.API.Addr)
	v.SetDefault("api.allowed_origins", c.API.AllowedOrigins)
}

// DatabasePath resolves the SQLite file against the data directory.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Database) {
		return c.Database
	}
	return filepath.Join(c.DataDir, c.Database)
}

// PrefsPath is the preference cache file.
func (c *Config) PrefsPath() string {
	return filepath.Join(c.DataDir, "prefs.yaml")
}

// RemoteEnabled reports whether a remote document store is configured.
func (c *Config) RemoteEnabled() bool {
	return strings.TrimSpace(c.Remote.MongoURI) != ""
}

// WriteDefault writes the default configuration to path. An existing file is kept.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	b, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	header := "# dolist configuration\n# Every key can be overridden by DOLIST_<KEY>, e.g. DOLIST_REMOTE_MONGO_URI.\n"
	return os.WriteFile(path, append([]byte(header), b...), 0o600)
}
