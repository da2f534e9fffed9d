package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for medzk.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Verifier   VerifierConfig   `toml:"verifier"`
	Content    ContentConfig    `toml:"content"`
	Encryption EncryptionConfig `toml:"encryption"`
	Audit      AuditConfig      `toml:"audit"`
	Reputation ReputationConfig `toml:"reputation"`
	Governance GovernanceConfig `toml:"governance"`
}

// DatabaseConfig represents configuration for the core store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// VerifierConfig selects the proof verifier backend.
// Type "gnark" verifies Groth16 proofs against the verifying key at
// VerifyingKeyPath; "static" accepts any well-formed tuple (dev/test only).
type VerifierConfig struct {
	Type             string `toml:"type"`
	VerifyingKeyPath string `toml:"verifying_key_path,omitempty"`
}

// ContentConfig represents configuration for the content store collaborator.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ContentConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", or "s3"

	// Filesystem-specific fields (only used when Type == "filesystem")
	RootDir string `toml:"root_dir,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used to seal case payloads.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// AuditConfig selects the audit log backend.
type AuditConfig struct {
	Type string `toml:"type"` // "sqlite" (shares the core database file) or "memory"
}

// ReputationConfig carries the scoring tunables. Absent fields fall back to
// the deployed defaults (1000 start, floor 100, +5 reward, 1%/30 days);
// explicit zeros are honored, so `decay_rate = 0.0` disables decay and
// `min_score = 0` removes the floor.
type ReputationConfig struct {
	InitialScore    *int64   `toml:"initial_score,omitempty"`
	MinScore        *int64   `toml:"min_score,omitempty"`
	DiagnosisReward *int64   `toml:"diagnosis_reward,omitempty"`
	DecayRate       *float64 `toml:"decay_rate,omitempty"`
	DecayPeriodDays *int     `toml:"decay_period_days,omitempty"`
}

// GovernanceConfig lists addresses granted the Governance role at startup.
type GovernanceConfig struct {
	Admins []string `toml:"admins"`
}

// NewConfig creates a new Config with the provided base directory and
// default paths and policy values.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Verifier: VerifierConfig{
			Type:             "gnark",
			VerifyingKeyPath: filepath.Join(baseDir, "keys", "role_claim.vk"),
		},
		Content: ContentConfig{
			Type:    "filesystem",
			RootDir: filepath.Join(baseDir, "content"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "medzk.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "medzk.key"),
		},
		Audit: AuditConfig{Type: "sqlite"},
		Reputation: ReputationConfig{
			InitialScore:    ptr(int64(1000)),
			MinScore:        ptr(int64(100)),
			DiagnosisReward: ptr(int64(5)),
			DecayRate:       ptr(0.01),
			DecayPeriodDays: ptr(30),
		},
	}
}

// ptr returns a pointer to v, for filling optional config fields.
func ptr[T any](v T) *T { return &v }

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
