// Package bootstrap provides dependency initialization for the transcoding
// service. Clients are constructed once at process start and passed by
// reference into the orchestrator, so tests can substitute fakes.
package bootstrap

import (
	"fmt"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/clipforge/transcoder/internal/blobstore"
	"github.com/clipforge/transcoder/internal/config"
	"github.com/clipforge/transcoder/internal/job"
	"github.com/clipforge/transcoder/internal/ledger"
	"github.com/clipforge/transcoder/internal/scratch"
	"github.com/clipforge/transcoder/internal/transcode"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	TranscodeService *job.TranscodeService
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	scratchMgr, err := scratch.NewManager(cfg.RawDir, cfg.ProcessedDir)
	if err != nil {
		return nil, fmt.Errorf("create scratch manager: %w", err)
	}

	store, err := blobstore.NewS3Store(blobstore.S3Config{
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create S3 store: %w", err)
	}

	engine := transcode.NewFFmpegEngine(cfg.FFmpegPath, logger)
	led := initLedger(cfg, logger)

	svc := job.NewTranscodeService(
		job.Config{
			RawBucket:       cfg.RawBucket,
			ProcessedBucket: cfg.ProcessedBucket,
			TargetHeight:    cfg.TargetHeight,
		},
		store,
		engine,
		led,
		scratchMgr,
		job.NewLogRecorder(logger),
		logger,
		job.WithStepTimeouts(cfg.DownloadTimeout, cfg.TranscodeTimeout, cfg.UploadTimeout),
	)

	return &Dependencies{
		TranscodeService: svc,
	}, nil
}

// initLedger creates the appropriate ledger backend based on configuration.
func initLedger(cfg *config.Config, logger *slog.Logger) ledger.Ledger {
	if cfg.RedisEnabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		logger.Info("redis ledger configured",
			slog.String("addr", cfg.RedisAddr),
			slog.Duration("claim_ttl", cfg.ClaimTTL),
		)
		return ledger.NewRedisLedger(client, cfg.ClaimTTL)
	}

	// Single-process deployments can run without Redis; the in-memory
	// ledger still enforces the atomic claim within this process.
	logger.Info("in-memory ledger configured",
		slog.Duration("claim_ttl", cfg.ClaimTTL),
	)
	return ledger.NewMemoryLedger(cfg.ClaimTTL)
}
