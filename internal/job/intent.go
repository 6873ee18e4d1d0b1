// Package job contains the processing-job orchestrator: it turns one
// decoded storage notification into a claimed, downloaded, transcoded,
// published and recorded job, with compensating cleanup on every failure
// path.
package job

import (
	"errors"
	"path"
	"strings"
)

// ErrEmptySourceKey is returned when a notification carries no usable
// object key. Rejected before any ledger or filesystem interaction.
var ErrEmptySourceKey = errors.New("source key is empty")

// outputKeyPrefix makes the processed object key a deterministic transform
// of the input filename, so retries of the same job always target the same
// output location.
const outputKeyPrefix = "processed-"

// Intent is one decoded request to transcode a single raw video.
type Intent struct {
	// SourceKey is the storage object key of the raw file.
	SourceKey string
	// JobID is the filename stem of SourceKey: path and extension stripped.
	JobID string
	// OwnerID is the prefix of JobID before the first dash.
	OwnerID string
	// OutputKey is the deterministic key the processed file is published
	// under.
	OutputKey string
}

// NewIntent derives the job identity from a source object key.
// "uploads/user42-videoA.mp4" yields JobID "user42-videoA", OwnerID
// "user42" and OutputKey "processed-user42-videoA.mp4".
func NewIntent(sourceKey string) (Intent, error) {
	if strings.TrimSpace(sourceKey) == "" {
		return Intent{}, ErrEmptySourceKey
	}

	base := path.Base(sourceKey)
	jobID := strings.TrimSuffix(base, path.Ext(base))
	if jobID == "" {
		return Intent{}, ErrEmptySourceKey
	}

	ownerID := jobID
	if idx := strings.Index(jobID, "-"); idx > 0 {
		ownerID = jobID[:idx]
	}

	return Intent{
		SourceKey: sourceKey,
		JobID:     jobID,
		OwnerID:   ownerID,
		OutputKey: outputKeyPrefix + base,
	}, nil
}
