// Package config loads the workspace configuration document of spec §6:
// storage backend selection, the default snapshot-name pattern, and named
// RDBMS connections available to SQL-sourced snapshots. It follows the
// precedence chain SNAPBASE_CONFIG env > workspace-local > user-global >
// built-in defaults.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/peter-fm/snapbase/pkg/snaperr"
	"github.com/peter-fm/snapbase/pkg/storage"
)

// Config is the workspace configuration document.
type Config struct {
	Storage   StorageConfig             `yaml:"storage"`
	Snapshot  SnapshotConfig            `yaml:"snapshot"`
	Databases map[string]DatabaseConfig `yaml:"databases,omitempty"`
}

// StorageConfig selects and configures the storage backend (spec §4.1).
type StorageConfig struct {
	Backend string      `yaml:"backend"` // "local" or "s3"
	Local   LocalConfig `yaml:"local,omitempty"`
	S3      S3Config    `yaml:"s3,omitempty"`
}

// LocalConfig configures the local-filesystem backend.
type LocalConfig struct {
	// Path is relative to the workspace root when not absolute.
	Path string `yaml:"path,omitempty"`
}

// S3Config configures the S3-compatible backend.
type S3Config struct {
	Bucket           string `yaml:"bucket,omitempty"`
	Prefix           string `yaml:"prefix,omitempty"`
	Region           string `yaml:"region,omitempty"`
	UseExpress       bool   `yaml:"use_express,omitempty"`
	AvailabilityZone string `yaml:"availability_zone,omitempty"`
}

// SnapshotConfig configures snapshot-name generation (spec §4.2).
type SnapshotConfig struct {
	DefaultNamePattern string `yaml:"default_name_pattern,omitempty"`
}

// DatabaseConfig configures one named RDBMS connection used by SQL-sourced
// snapshots. Either ConnectionString or the Host/Port/Database/Username
// fields are set, never a literal password: Password always comes through
// PasswordEnv.
type DatabaseConfig struct {
	Type             string   `yaml:"type"` // "mysql", "postgresql", "sqlite"
	ConnectionString string   `yaml:"connection_string,omitempty"`
	Host             string   `yaml:"host,omitempty"`
	Port             int      `yaml:"port,omitempty"`
	Database         string   `yaml:"database,omitempty"`
	Username         string   `yaml:"username,omitempty"`
	PasswordEnv      string   `yaml:"password_env,omitempty"`
	Tables           []string `yaml:"tables,omitempty"`
	ExcludeTables    []string `yaml:"exclude_tables,omitempty"`
}

// ResolvePassword resolves the database's password via its PasswordEnv
// indirection; the config document itself never stores a literal password.
func (d DatabaseConfig) ResolvePassword() string {
	if d.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(d.PasswordEnv)
}

// Default returns the built-in defaults, the last link of the precedence
// chain.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "local",
			Local:   LocalConfig{Path: ".snapbase"},
		},
		Snapshot: SnapshotConfig{
			DefaultNamePattern: "{source}_{format}_{seq}",
		},
	}
}

// Load resolves the workspace config document for workspaceRoot, following
// the precedence chain of spec §6: a .env file in the working directory is
// loaded first (if present), then documents are merged in order of
// increasing priority — user-global (~/.config/snapbase/config.yaml),
// workspace-local (<workspaceRoot>/snapbase.yaml), and finally whatever
// SNAPBASE_CONFIG points at — with recognized environment variables applied
// last.
func Load(workspaceRoot string) (*Config, error) {
	loadDotEnvIfPresent()

	cfg := Default()

	if userPath := userGlobalConfigPath(); userPath != "" {
		if err := mergeFile(cfg, userPath); err != nil {
			return nil, err
		}
	}
	if err := mergeFile(cfg, filepath.Join(workspaceRoot, "snapbase.yaml")); err != nil {
		return nil, err
	}
	if envPath := os.Getenv("SNAPBASE_CONFIG"); envPath != "" {
		if err := mergeFile(cfg, envPath); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// mergeFile unmarshals path's YAML document onto cfg, leaving cfg untouched
// (not an error) when path does not exist — config documents at any layer
// of the precedence chain are optional.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return snaperr.Config(path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return snaperr.Config(path, err)
	}
	return nil
}

func userGlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "snapbase", "config.yaml")
}

// applyEnvOverrides applies the SNAPBASE_S3_*/SNAPBASE_DEFAULT_NAME_PATTERN
// environment variables recognized by spec §6, the most specific (and thus
// highest-priority) layer of the chain.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SNAPBASE_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("SNAPBASE_S3_PREFIX"); v != "" {
		cfg.Storage.S3.Prefix = v
	}
	if v := os.Getenv("SNAPBASE_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("SNAPBASE_S3_USE_EXPRESS"); v != "" {
		cfg.Storage.S3.UseExpress = v == "true" || v == "1"
	}
	if v := os.Getenv("SNAPBASE_S3_AVAILABILITY_ZONE"); v != "" {
		cfg.Storage.S3.AvailabilityZone = v
	}
	if v := os.Getenv("SNAPBASE_DEFAULT_NAME_PATTERN"); v != "" {
		cfg.Snapshot.DefaultNamePattern = v
	}
}

func loadDotEnvIfPresent() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	envFile := filepath.Join(wd, ".env")
	if _, err := os.Stat(envFile); err != nil {
		return
	}
	_ = godotenv.Load(envFile)
}

// ToStorageConfig translates the S3 section into pkg/storage's Config,
// layering the document's values over storage.ConfigFromEnv's AWS
// credential resolution — the config document never carries secret keys
// directly.
func (c *Config) ToStorageConfig() storage.Config {
	sc := storage.ConfigFromEnv()
	if c.Storage.S3.Bucket != "" {
		sc.Bucket = c.Storage.S3.Bucket
	}
	if c.Storage.S3.Prefix != "" {
		sc.Prefix = c.Storage.S3.Prefix
	}
	if c.Storage.S3.Region != "" {
		sc.Region = c.Storage.S3.Region
	}
	if c.Storage.S3.UseExpress {
		sc.UseExpress = true
	}
	if c.Storage.S3.AvailabilityZone != "" {
		sc.AvailabilityZone = c.Storage.S3.AvailabilityZone
	}
	return sc
}
