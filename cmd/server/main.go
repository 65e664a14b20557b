package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banking/dnfbp-risk/internal/api"
	"github.com/banking/dnfbp-risk/internal/archive"
	"github.com/banking/dnfbp-risk/internal/config"
	"github.com/banking/dnfbp-risk/internal/crypto"
	"github.com/banking/dnfbp-risk/internal/events"
	"github.com/banking/dnfbp-risk/internal/evidence"
	"github.com/banking/dnfbp-risk/internal/logging"
	"github.com/banking/dnfbp-risk/internal/metrics"
	"github.com/banking/dnfbp-risk/internal/report"
	"github.com/banking/dnfbp-risk/internal/repository/elasticsearch"
	"github.com/banking/dnfbp-risk/internal/repository/postgres"
	"github.com/banking/dnfbp-risk/internal/repository/s3"
	"github.com/banking/dnfbp-risk/internal/scoring"
	"github.com/banking/dnfbp-risk/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func main() {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logger
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Info("Starting DNFBP Risk & Evidence Service...")
	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Scoring
	ruleset, err := scoring.Lookup(cfg.Scoring.RulesetID)
	if err != nil {
		sugar.Fatalf("Unknown ruleset %q (known: %v): %v", cfg.Scoring.RulesetID, scoring.IDs(), err)
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		sugar.Fatalf("Failed to initialize report renderer: %v", err)
	}

	// 4. Crypto / Security
	var manifestSigner crypto.ManifestSigner
	var publicKey ed25519.PublicKey
	signer := crypto.NewEd25519Signer(cfg.Signing.KeyID, cfg.Signing.PrivateKey, cfg.Signing.PublicKey)
	if signer.Configured() {
		manifestSigner = signer
		publicKey = signer.PublicKey()
		if err := signer.Validate(); err != nil {
			// Manifests will be issued unsigned until the key pair is fixed
			sugar.Warnf("Signing key pair is unusable: %v", err)
		} else {
			sugar.Infof("Manifest signing enabled with key %s", signer.KeyID())
		}
	} else {
		sugar.Warn("Manifest signing DISABLED - no key pair configured")
	}

	// 5. Evidence pipeline
	cache := evidence.NewTokenCache()
	cache.StartJanitor(ctx, cfg.Evidence.SweepInterval)

	assembler := evidence.NewAssembler(
		evidence.NewManifestBuilder(manifestSigner, logger),
		archive.NewZipArchiver(time.Time{}),
		cache,
		cfg.Evidence.BaseOrigin,
		cfg.Evidence.TTL(),
		logger,
	)

	// 6. Optional sinks
	var opts []service.Option

	if cfg.Database.Enabled {
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			sugar.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			sugar.Fatalf("Failed to prepare ledger schema: %v", err)
		}
		opts = append(opts,
			service.WithRunLedger(postgres.NewRunRepository(pool)),
			service.WithAccessLog(postgres.NewAccessLogRepository(pool)),
		)
	}

	if cfg.Elasticsearch.Enabled {
		esRepo, err := elasticsearch.NewScoreRepository(cfg.Elasticsearch)
		if err != nil {
			sugar.Warnf("Failed to connect to Elasticsearch: %v (Search capabilities will be disabled)", err)
		} else {
			opts = append(opts, service.WithScoreIndex(esRepo))
		}
	}

	if cfg.S3.Enabled {
		encryptor, err := crypto.NewBundleEncryptor(cfg.Encryption.ArchiveKey)
		if err != nil {
			sugar.Fatalf("Failed to initialize bundle encryptor: %v", err)
		}
		s3Repo, err := s3.NewBundleRepository(ctx, cfg.S3, encryptor)
		if err != nil {
			sugar.Fatalf("Failed to initialize S3 repository: %v", err)
		}
		opts = append(opts, service.WithBundleMirror(s3Repo))
	}

	var publisher *events.EvidencePublisher
	if cfg.Kafka.Enabled {
		publisher, err = events.NewEvidencePublisher(cfg.Kafka)
		if err != nil {
			sugar.Fatalf("Failed to create Kafka producer: %v", err)
		}
		defer publisher.Close()
		opts = append(opts, service.WithEventPublisher(publisher))
	}

	// 7. Services
	riskService := service.NewRiskService(ruleset, renderer, assembler, cache, publicKey, logger, opts...)

	// 8. Kafka Consumer
	if cfg.Kafka.Enabled {
		consumer, err := events.NewRequestConsumer(cfg.Kafka, riskService, logger)
		if err != nil {
			sugar.Fatalf("Failed to create Kafka consumer: %v", err)
		}
		defer consumer.Close()

		// Start Consumer in background
		go func() {
			sugar.Info("Starting Kafka consumer loop...")
			if err := consumer.Start(ctx); err != nil {
				sugar.Errorf("Kafka consumer failed: %v", err)
			}
		}()
	}

	// 9. API Server
	e := api.NewRouter(api.RouterConfig{
		JWTPublicKey:      loadJWTKey(cfg.Auth.JWTPublicKeyPath, logger),
		JWTIssuer:         cfg.Auth.JWTIssuer,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		BodyLimit:         cfg.Server.BodyLimit,
	}, api.NewRiskHandler(riskService), api.NewEvidenceHandler(riskService), logger)
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	// Start Server
	go func() {
		sugar.Infof("Listening on %s", cfg.Server.Addr())
		if err := e.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("Shutting down the server: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sugar.Info("Shutting down service...")
	cancel()

	// Timeout for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		sugar.Errorf("HTTP shutdown: %v", err)
	}
	// Let in-flight ledger writes and events land before the pool and producer close
	riskService.Wait()
}

// loadJWTKey returns nil when the key is missing or unreadable
func loadJWTKey(path string, logger *zap.Logger) *rsa.PublicKey {
	keyData, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("JWT public key not found", zap.String("path", path), zap.Error(err))
		return nil
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(keyData)
	if err != nil {
		logger.Warn("Failed to parse JWT public key", zap.String("path", path), zap.Error(err))
		return nil
	}
	return key
}
