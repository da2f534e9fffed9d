package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/medzk",
		LogDir:  "/home/user/.local/share/medzk/log",
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: "/home/user/.local/share/medzk/db",
		},
		Verifier: VerifierConfig{
			Type:             "gnark",
			VerifyingKeyPath: "/keys/role_claim.vk",
		},
		Content: ContentConfig{
			Type:    "filesystem",
			RootDir: "/home/user/.local/share/medzk/content",
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  "/keys/medzk.pub",
			PrivateKeyPath: "/keys/medzk.key",
		},
		Audit: AuditConfig{Type: "sqlite"},
		Reputation: ReputationConfig{
			InitialScore:    ptr(int64(500)),
			MinScore:        ptr(int64(50)),
			DiagnosisReward: ptr(int64(10)),
			DecayRate:       ptr(0.02),
			DecayPeriodDays: ptr(14),
		},
		Governance: GovernanceConfig{
			Admins: []string{"0xadmin1", "0xadmin2"},
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if got.Verifier.Type != "gnark" {
		t.Errorf("Verifier.Type = %q, want %q", got.Verifier.Type, "gnark")
	}
	if got.Verifier.VerifyingKeyPath != "/keys/role_claim.vk" {
		t.Errorf("Verifier.VerifyingKeyPath = %q, want %q", got.Verifier.VerifyingKeyPath, "/keys/role_claim.vk")
	}
	if got.Content.Type != "filesystem" {
		t.Errorf("Content.Type = %q, want %q", got.Content.Type, "filesystem")
	}
	if got.Content.RootDir != original.Content.RootDir {
		t.Errorf("Content.RootDir = %q, want %q", got.Content.RootDir, original.Content.RootDir)
	}
	if got.Encryption.PublicKeyPath != original.Encryption.PublicKeyPath {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", got.Encryption.PublicKeyPath, original.Encryption.PublicKeyPath)
	}
	if got.Encryption.PrivateKeyPath != original.Encryption.PrivateKeyPath {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", got.Encryption.PrivateKeyPath, original.Encryption.PrivateKeyPath)
	}
	if got.Audit.Type != "sqlite" {
		t.Errorf("Audit.Type = %q, want %q", got.Audit.Type, "sqlite")
	}
	if got.Reputation.InitialScore == nil || *got.Reputation.InitialScore != 500 {
		t.Errorf("Reputation.InitialScore = %v, want %d", got.Reputation.InitialScore, 500)
	}
	if got.Reputation.DecayRate == nil || *got.Reputation.DecayRate != 0.02 {
		t.Errorf("Reputation.DecayRate = %v, want %v", got.Reputation.DecayRate, 0.02)
	}
	if got.Reputation.DecayPeriodDays == nil || *got.Reputation.DecayPeriodDays != 14 {
		t.Errorf("Reputation.DecayPeriodDays = %v, want %d", got.Reputation.DecayPeriodDays, 14)
	}
	if len(got.Governance.Admins) != 2 {
		t.Fatalf("len(Governance.Admins) = %d, want 2", len(got.Governance.Admins))
	}
	if got.Governance.Admins[0] != "0xadmin1" {
		t.Errorf("Governance.Admins[0] = %q, want %q", got.Governance.Admins[0], "0xadmin1")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/medzk")

	if cfg.BaseDir != "/data/medzk" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/medzk")
	}
	if cfg.LogDir != "/data/medzk/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/medzk/log")
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", cfg.Database.Type, "sqlite")
	}
	if cfg.Database.DataDir != "/data/medzk/db" {
		t.Errorf("Database.DataDir = %q, want %q", cfg.Database.DataDir, "/data/medzk/db")
	}
	if cfg.Verifier.Type != "gnark" {
		t.Errorf("Verifier.Type = %q, want %q", cfg.Verifier.Type, "gnark")
	}
	if cfg.Content.Type != "filesystem" {
		t.Errorf("Content.Type = %q, want %q", cfg.Content.Type, "filesystem")
	}
	if cfg.Encryption.PublicKeyPath != "/data/medzk/keys/medzk.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/medzk/keys/medzk.pub")
	}
	if cfg.Encryption.PrivateKeyPath != "/data/medzk/keys/medzk.key" {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", cfg.Encryption.PrivateKeyPath, "/data/medzk/keys/medzk.key")
	}
	if cfg.Audit.Type != "sqlite" {
		t.Errorf("Audit.Type = %q, want %q", cfg.Audit.Type, "sqlite")
	}
	if cfg.Reputation.InitialScore == nil || *cfg.Reputation.InitialScore != 1000 {
		t.Errorf("Reputation.InitialScore = %v, want %d", cfg.Reputation.InitialScore, 1000)
	}
	if cfg.Reputation.MinScore == nil || *cfg.Reputation.MinScore != 100 {
		t.Errorf("Reputation.MinScore = %v, want %d", cfg.Reputation.MinScore, 100)
	}
	if cfg.Reputation.DiagnosisReward == nil || *cfg.Reputation.DiagnosisReward != 5 {
		t.Errorf("Reputation.DiagnosisReward = %v, want %d", cfg.Reputation.DiagnosisReward, 5)
	}
	if cfg.Reputation.DecayRate == nil || *cfg.Reputation.DecayRate != 0.01 {
		t.Errorf("Reputation.DecayRate = %v, want %v", cfg.Reputation.DecayRate, 0.01)
	}
	if cfg.Reputation.DecayPeriodDays == nil || *cfg.Reputation.DecayPeriodDays != 30 {
		t.Errorf("Reputation.DecayPeriodDays = %v, want %d", cfg.Reputation.DecayPeriodDays, 30)
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "medzk.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.BaseDir != dir {
			t.Errorf("BaseDir = %q, want %q", got.BaseDir, dir)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "medzk.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() error = nil, want error")
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "deep", "medzk.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})
}
