// Command governancekerneld boots a single governance kernel process:
// it loads configuration and genesis, wires the durable evidence store,
// constructs the kernel's collaborators, replays any existing evidence
// log back into the metric state model, and then serves Prometheus
// metrics until terminated. The flat, log.Fatalf-on-error main()
// structure is grounded on services/otc-gateway/main.go.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"governancekernel/cmd/internal/passphrase"
	"governancekernel/config"
	"governancekernel/kernel/audit"
	"governancekernel/kernel/authority"
	"governancekernel/kernel/engine"
	"governancekernel/kernel/eventstore"
	"governancekernel/kernel/eventstore/leveldbstore"
	"governancekernel/kernel/eventstore/sqlstore"
	"governancekernel/kernel/genesis"
	"governancekernel/kernel/identity"
	"governancekernel/kernel/metrics"
	"governancekernel/kernel/ontology"
	"governancekernel/kernel/primitives"
	"governancekernel/kernel/protocol"
	"governancekernel/kernel/ratelimit"
	"governancekernel/kernel/replay"
	"governancekernel/kernel/statemodel"
	"governancekernel/observability/logging"
	telemetry "governancekernel/observability/otel"
)

func main() {
	configPath := flag.String("config", "./governancekernel.toml", "path to the kernel TOML configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("GOVERNANCEKERNEL_ENV"))
	logger := logging.Setup("governancekerneld", env, logging.FileRotation{})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// The passphrase is not used to decrypt SigningKeyHex (Ed25519 has no
	// analog to the teacher's go-ethereum ECDSA keystore in this pack) —
	// it gates startup on operator presence the same way the teacher
	// requires a keystore passphrase before a validator key is usable.
	if cfg.PassphraseEnv != "" {
		if _, err := passphrase.NewSource(cfg.PassphraseEnv).Get(); err != nil {
			log.Fatalf("passphrase error: %v", err)
		}
	}

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "governancekerneld",
		Environment: env,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    true,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	signingKeyBytes, err := hex.DecodeString(cfg.SigningKeyHex)
	if err != nil {
		log.Fatalf("invalid signing key: %v", err)
	}
	if len(signingKeyBytes) != ed25519.PrivateKeySize {
		log.Fatalf("invalid signing key: expected %d bytes, got %d", ed25519.PrivateKeySize, len(signingKeyBytes))
	}
	signingKey := &primitives.KeyPair{
		Private: signingKeyBytes,
		Public:  signingKeyBytes[32:],
	}

	store, err := openEventStore(cfg.EventStore)
	if err != nil {
		log.Fatalf("event store error: %v", err)
	}

	identities := identity.NewManager()
	authorities := authority.NewEngine(identities)
	registry := metrics.NewRegistry()
	model := statemodel.NewModel(registry)
	protocols := protocol.NewEngine(registry, model)
	auditLog := audit.NewLog(store)

	ctx := context.Background()
	if err := auditLog.LoadFromStore(ctx); err != nil {
		log.Fatalf("load audit log: %v", err)
	}

	if cfg.Genesis.Path != "" {
		if _, err := os.Stat(cfg.Genesis.Path); err == nil {
			doc, err := genesis.Load(cfg.Genesis.Path)
			if err != nil {
				log.Fatalf("load genesis: %v", err)
			}
			if _, err := genesis.Apply(doc, identities, authorities, registry, ontology.Zero); err != nil {
				log.Fatalf("apply genesis: %v", err)
			}
		}
	}

	kernel := engine.NewKernel(engine.Config{
		Identity:      identities,
		Authority:     authorities,
		Registry:      registry,
		Model:         model,
		Protocols:     protocols,
		AuditLog:      auditLog,
		SigningKey:    signingKey,
		SubmitLimiter: ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
	})

	replayEngine := &replay.Engine{Model: model, Kernel: kernel, Protocols: protocols}
	if err := replayEngine.Replay(auditLog.GetHistory()); err != nil {
		log.Fatalf("replay evidence log: %v", err)
	}

	if err := kernel.Boot(); err != nil {
		log.Fatalf("boot kernel: %v", err)
	}

	logger.Info("governance kernel active",
		"dataDir", cfg.DataDir,
		"eventStoreBackend", cfg.EventStore.Backend,
		"budgetLimit", cfg.Budget.Limit,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := cfg.Metrics.ListenAddress
	logger.Info("serving metrics", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("metrics server error: %v", err)
	}
}

// openEventStore constructs the eventstore.Port matching cfg.Backend. The
// "memory" backend returns a nil Port, which eventstore.Port documents as
// making the audit log purely in-memory.
func openEventStore(cfg config.EventStore) (eventstore.Port, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return nil, nil
	case "sqlite":
		return sqlstore.OpenSQLite(cfg.DSN)
	case "postgres":
		return sqlstore.OpenPostgres(cfg.DSN)
	case "leveldb":
		return leveldbstore.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown event store backend %q", cfg.Backend)
	}
}
