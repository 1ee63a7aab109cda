package config

import "fmt"

// Validate checks the structural invariants Load cannot enforce on its
// own (cross-field constraints, known enum values).
func Validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	switch cfg.EventStore.Backend {
	case "memory", "sqlite", "postgres", "leveldb":
	default:
		return fmt.Errorf("config: EventStore.Backend %q must be one of memory, sqlite, postgres, leveldb", cfg.EventStore.Backend)
	}
	if cfg.EventStore.Backend != "memory" && cfg.EventStore.DSN == "" {
		return fmt.Errorf("config: EventStore.DSN required for backend %q", cfg.EventStore.Backend)
	}
	if cfg.Budget.Limit == 0 {
		return fmt.Errorf("config: Budget.Limit must be > 0")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: Logging.Level %q must be one of debug, info, warn, error", cfg.Logging.Level)
	}
	return nil
}
