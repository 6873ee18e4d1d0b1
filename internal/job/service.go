package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clipforge/transcoder/internal/blobstore"
	"github.com/clipforge/transcoder/internal/ledger"
	"github.com/clipforge/transcoder/internal/scratch"
	"github.com/clipforge/transcoder/internal/transcode"
)

// OutcomeCode classifies the terminal state of one processed notification.
type OutcomeCode string

const (
	// OutcomeCompleted: transcoded, published and recorded.
	OutcomeCompleted OutcomeCode = "completed"
	// OutcomeSkipped: the source object no longer exists; nothing to do.
	OutcomeSkipped OutcomeCode = "skipped"
	// OutcomeConflict: the job is already claimed or already processed.
	OutcomeConflict OutcomeCode = "conflict"
	// OutcomeInvalid: the notification carried no usable source key.
	OutcomeInvalid OutcomeCode = "invalid"
	// OutcomeFailed: a processing step failed.
	OutcomeFailed OutcomeCode = "failed"
)

// Result is the outcome of processing one notification.
type Result struct {
	// Intent is the derived job identity (zero value for invalid input).
	Intent Intent
	// Code is the terminal outcome.
	Code OutcomeCode
	// Metrics is the write-once summary, present for completed and failed
	// outcomes.
	Metrics *Metrics
}

// Config carries the bucket names and target resolution for the service.
type Config struct {
	// RawBucket holds the raw uploads.
	RawBucket string
	// ProcessedBucket receives the published outputs.
	ProcessedBucket string
	// TargetHeight is the output height in pixels. Must be validated by
	// the caller (config enforces 144-2160); the transcode adapter does
	// not check bounds.
	TargetHeight int
}

// TranscodeService orchestrates one job: claim, download, transcode,
// publish, record, reclaim. Independent jobs may run concurrently; the only
// shared state is the ledger and the buckets, both externally synchronized.
type TranscodeService struct {
	cfg     Config
	store   blobstore.Store
	engine  transcode.Engine
	ledger  ledger.Ledger
	scratch *scratch.Manager
	metrics MetricsRecorder
	logger  *slog.Logger

	downloadTimeout  time.Duration
	transcodeTimeout time.Duration
	uploadTimeout    time.Duration
}

// Option is a function that configures a TranscodeService.
type Option func(*TranscodeService)

// WithStepTimeouts overrides the per-step deadlines. A hung transfer or
// transcode fails the job instead of blocking it forever.
func WithStepTimeouts(download, transcode, upload time.Duration) Option {
	return func(s *TranscodeService) {
		if download > 0 {
			s.downloadTimeout = download
		}
		if transcode > 0 {
			s.transcodeTimeout = transcode
		}
		if upload > 0 {
			s.uploadTimeout = upload
		}
	}
}

// NewTranscodeService creates a new TranscodeService.
func NewTranscodeService(
	cfg Config,
	store blobstore.Store,
	engine transcode.Engine,
	led ledger.Ledger,
	scr *scratch.Manager,
	metrics MetricsRecorder,
	logger *slog.Logger,
	opts ...Option,
) *TranscodeService {
	if cfg.TargetHeight == 0 {
		cfg.TargetHeight = 360
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewLogRecorder(logger)
	}
	s := &TranscodeService{
		cfg:              cfg,
		store:            store,
		engine:           engine,
		ledger:           led,
		scratch:          scr,
		metrics:          metrics,
		logger:           logger,
		downloadTimeout:  5 * time.Minute,
		transcodeTimeout: 15 * time.Minute,
		uploadTimeout:    5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process drives one notification through the full protocol:
// derive identity, claim, download, transcode, publish, finalize, reclaim.
//
// The returned error is non-nil for conflict, invalid and failed outcomes
// and carries the cause; callers map Result.Code to their response surface.
// Both scratch files are deleted on every terminal path.
func (s *TranscodeService) Process(ctx context.Context, sourceKey string) (*Result, error) {
	intent, err := NewIntent(sourceKey)
	if err != nil {
		return &Result{Code: OutcomeInvalid}, err
	}

	log := s.logger.With(
		slog.String("job_id", intent.JobID),
		slog.String("source_key", intent.SourceKey),
	)
	start := time.Now()

	if err := s.ledger.Claim(ctx, intent.JobID, intent.OwnerID); err != nil {
		if errors.Is(err, ledger.ErrAlreadyClaimed) {
			log.Warn("duplicate notification rejected, job already claimed")
			return &Result{Intent: intent, Code: OutcomeConflict}, err
		}
		return s.fail(ctx, log, intent, start, 0, 0, fmt.Errorf("claim job: %w", err))
	}

	rawPath := s.scratch.RawPath(intent.SourceKey)
	processedPath := s.scratch.ProcessedPath(intent.OutputKey)

	// Reclaim local storage on every terminal path, success or failure.
	// The one unconditional action in the protocol.
	defer s.reclaim(log, rawPath, processedPath)

	dctx, cancel := context.WithTimeout(ctx, s.downloadTimeout)
	err = s.store.Download(dctx, s.cfg.RawBucket, intent.SourceKey, rawPath)
	cancel()
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			// A deleted or already-consumed source is not a failure. Drop
			// the claim so no record outlives this notification.
			if relErr := s.ledger.Release(context.WithoutCancel(ctx), intent.JobID); relErr != nil {
				log.Warn("failed to release claim for missing source",
					slog.String("error", relErr.Error()),
				)
			}
			log.Info("source object no longer exists, skipping")
			return &Result{Intent: intent, Code: OutcomeSkipped}, nil
		}
		return s.fail(ctx, log, intent, start, 0, 0, fmt.Errorf("download raw video: %w", err))
	}
	rawBytes := s.fileSize(log, rawPath)

	tctx, cancel := context.WithTimeout(ctx, s.transcodeTimeout)
	err = s.engine.Transcode(tctx, rawPath, processedPath, s.cfg.TargetHeight)
	cancel()
	if err != nil {
		return s.fail(ctx, log, intent, start, rawBytes, 0, fmt.Errorf("transcode: %w", err))
	}
	processedBytes := s.fileSize(log, processedPath)

	uctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	err = s.store.Upload(uctx, processedPath, s.cfg.ProcessedBucket, intent.OutputKey)
	cancel()
	if err != nil {
		return s.fail(ctx, log, intent, start, rawBytes, processedBytes, fmt.Errorf("publish processed video: %w", err))
	}

	if err := s.ledger.MarkProcessed(ctx, intent.JobID, intent.OutputKey); err != nil {
		return s.fail(ctx, log, intent, start, rawBytes, processedBytes, fmt.Errorf("finalize job record: %w", err))
	}

	m := Metrics{
		JobID:          intent.JobID,
		RawBytes:       rawBytes,
		ProcessedBytes: processedBytes,
		Duration:       time.Since(start),
		Status:         MetricsSuccess,
		Timestamp:      time.Now(),
	}
	s.metrics.Record(ctx, m)

	log.Info("job completed",
		slog.String("output_key", intent.OutputKey),
		slog.Int64("raw_bytes", rawBytes),
		slog.Int64("processed_bytes", processedBytes),
		slog.Duration("duration", m.Duration),
	)
	return &Result{Intent: intent, Code: OutcomeCompleted, Metrics: &m}, nil
}

// fail marks the ledger record failed, records failure metrics and returns
// the failed result. Bookkeeping runs detached from the request context so
// a cancelled request still leaves a consistent terminal state.
func (s *TranscodeService) fail(
	ctx context.Context,
	log *slog.Logger,
	intent Intent,
	start time.Time,
	rawBytes, processedBytes int64,
	err error,
) (*Result, error) {
	ctx = context.WithoutCancel(ctx)

	if mErr := s.ledger.MarkFailed(ctx, intent.JobID, err.Error()); mErr != nil {
		log.Warn("failed to mark job failed",
			slog.String("error", mErr.Error()),
		)
	}

	m := Metrics{
		JobID:          intent.JobID,
		RawBytes:       rawBytes,
		ProcessedBytes: processedBytes,
		Duration:       time.Since(start),
		Status:         MetricsFailure,
		Timestamp:      time.Now(),
	}
	s.metrics.Record(ctx, m)

	log.Error("job failed", slog.String("error", err.Error()))
	return &Result{Intent: intent, Code: OutcomeFailed, Metrics: &m}, err
}

// reclaim deletes the job's scratch files in parallel, best effort.
// Failures are logged, never propagated: by the time cleanup runs the
// outcome is already committed.
func (s *TranscodeService) reclaim(log *slog.Logger, paths ...string) {
	g := new(errgroup.Group)
	for _, p := range paths {
		p := p
		g.Go(func() error {
			return s.scratch.Remove(p)
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("scratch cleanup failed", slog.String("error", err.Error()))
	}
}

// fileSize reads a local file size for metrics; a stat failure is logged
// and reported as zero rather than failing the job.
func (s *TranscodeService) fileSize(log *slog.Logger, path string) int64 {
	size, err := s.scratch.FileSize(path)
	if err != nil {
		log.Warn("failed to stat scratch file", slog.String("error", err.Error()))
		return 0
	}
	return size
}
