// Package config loads the kernel's runtime configuration from a TOML
// file, grounded on the teacher's config.Load/createDefault pattern:
// missing files get a generated default written back to disk, including
// a freshly generated signing key when one isn't already present.
package config

import (
	"encoding/hex"
	"os"

	"github.com/BurntSushi/toml"

	"governancekernel/kernel/primitives"
)

// Config is the top-level kernel configuration document.
type Config struct {
	DataDir       string     `toml:"DataDir"`
	SigningKeyHex string     `toml:"SigningKeyHex"`
	PassphraseEnv string     `toml:"PassphraseEnv"`
	EventStore    EventStore `toml:"EventStore"`
	Budget        Budget     `toml:"Budget"`
	Logging       Logging    `toml:"Logging"`
	Metrics       Metrics    `toml:"Metrics"`
	Tracing       Tracing    `toml:"Tracing"`
	Genesis       Genesis    `toml:"Genesis"`
	RateLimit     RateLimit  `toml:"RateLimit"`
}

// Load reads cfg from path, generating and persisting a default
// configuration (including a fresh signing key) if the file doesn't
// exist yet. A config found on disk without a signing key gets one
// generated and written back, matching the teacher's "adopt an existing
// file but backfill the key" behavior.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if cfg.SigningKeyHex == "" {
		keyPair, err := primitives.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		cfg.SigningKeyHex = hex.EncodeToString(keyPair.Private)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	keyPair, err := primitives.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:       "./kernel-data",
		SigningKeyHex: hex.EncodeToString(keyPair.Private),
		PassphraseEnv: "GOVERNANCEKERNEL_PASSPHRASE",
		EventStore:    EventStore{Backend: "sqlite", DSN: "./kernel-data/evidence.db"},
		Budget:        Budget{Limit: 1_000_000},
		Logging:       Logging{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Metrics:       Metrics{ListenAddress: ":9464"},
		Tracing:       Tracing{Enabled: false},
		Genesis:       Genesis{Path: "./genesis.yaml"},
		RateLimit:     RateLimit{PerSecond: 50, Burst: 100},
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
