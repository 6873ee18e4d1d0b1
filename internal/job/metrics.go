package job

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MetricsStatus is the terminal status recorded for a job.
type MetricsStatus string

const (
	// MetricsSuccess marks a job that completed and published its output.
	MetricsSuccess MetricsStatus = "success"
	// MetricsFailure marks a job that reached a failure terminal state.
	MetricsFailure MetricsStatus = "failure"
)

// Metrics is the write-once summary of one terminal job. It is produced
// only after the job's outcome is known and never mutated afterward.
type Metrics struct {
	// JobID identifies the job.
	JobID string
	// RawBytes is the size of the downloaded raw file (0 if never staged).
	RawBytes int64
	// ProcessedBytes is the size of the transcoded file (0 on failure
	// before transcoding finished).
	ProcessedBytes int64
	// Duration is the wall-clock time from claim to terminal state.
	Duration time.Duration
	// Status is success or failure.
	Status MetricsStatus
	// Timestamp is when the terminal state was reached.
	Timestamp time.Time
}

// MetricsRecorder receives one Metrics record per terminal job.
type MetricsRecorder interface {
	Record(ctx context.Context, m Metrics)
}

// Compile-time checks.
var (
	_ MetricsRecorder = (*LogRecorder)(nil)
	_ MetricsRecorder = (*MemoryRecorder)(nil)
)

// LogRecorder emits each metrics record as a structured log line.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a LogRecorder.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

// Record logs the metrics record.
func (r *LogRecorder) Record(_ context.Context, m Metrics) {
	r.logger.Info("job metrics",
		slog.String("job_id", m.JobID),
		slog.Int64("raw_bytes", m.RawBytes),
		slog.Int64("processed_bytes", m.ProcessedBytes),
		slog.Int64("processing_duration_ms", m.Duration.Milliseconds()),
		slog.String("status", string(m.Status)),
		slog.Time("timestamp", m.Timestamp),
	)
}

// MemoryRecorder keeps recorded metrics in memory for inspection in tests.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []Metrics
}

// NewMemoryRecorder creates a MemoryRecorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record appends the metrics record.
func (r *MemoryRecorder) Record(_ context.Context, m Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, m)
}

// Records returns a copy of everything recorded so far.
func (r *MemoryRecorder) Records() []Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Metrics, len(r.records))
	copy(out, r.records)
	return out
}
