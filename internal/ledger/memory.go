package ledger

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that MemoryLedger implements Ledger.
var _ Ledger = (*MemoryLedger)(nil)

// memoryEntry pairs a record with the deadline of its processing claim.
type memoryEntry struct {
	record    Record
	claimedAt time.Time
}

// MemoryLedger is an in-memory implementation of Ledger.
// It uses a map with a mutex held across the whole check-then-create, which
// gives the same atomic-claim guarantee as the Redis implementation within a
// single process. Suitable for development and testing.
type MemoryLedger struct {
	mu       sync.Mutex
	jobs     map[string]*memoryEntry
	claimTTL time.Duration
	now      func() time.Time
}

// NewMemoryLedger creates a new in-memory ledger. claimTTL bounds how long a
// processing claim blocks re-claiming; zero or negative disables expiry.
func NewMemoryLedger(claimTTL time.Duration) *MemoryLedger {
	return &MemoryLedger{
		jobs:     make(map[string]*memoryEntry),
		claimTTL: claimTTL,
		now:      time.Now,
	}
}

// claimable reports whether the entry allows a new claim.
func (l *MemoryLedger) claimable(e *memoryEntry) bool {
	switch e.record.Status {
	case StatusProcessed:
		return false
	case StatusFailed:
		return true
	case StatusProcessing:
		return l.claimTTL > 0 && l.now().Sub(e.claimedAt) > l.claimTTL
	default:
		return true
	}
}

// Claim atomically creates a processing record for jobID.
func (l *MemoryLedger) Claim(_ context.Context, jobID, ownerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.jobs[jobID]; ok && !l.claimable(e) {
		return ErrAlreadyClaimed
	}

	now := l.now()
	l.jobs[jobID] = &memoryEntry{
		record: Record{
			ID:        jobID,
			OwnerID:   ownerID,
			Status:    StatusProcessing,
			CreatedAt: now,
			UpdatedAt: now,
		},
		claimedAt: now,
	}
	return nil
}

// Release drops a claim that produced no work.
func (l *MemoryLedger) Release(_ context.Context, jobID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.jobs, jobID)
	return nil
}

// MarkProcessed transitions the record to processed with its output key.
func (l *MemoryLedger) MarkProcessed(_ context.Context, jobID, outputKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.jobs[jobID]
	if !ok {
		return ErrRecordNotFound
	}
	e.record.Status = StatusProcessed
	e.record.OutputKey = outputKey
	e.record.Error = ""
	e.record.UpdatedAt = l.now()
	return nil
}

// MarkFailed transitions the record to failed with a reason.
func (l *MemoryLedger) MarkFailed(_ context.Context, jobID, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.jobs[jobID]
	if !ok {
		return ErrRecordNotFound
	}
	e.record.Status = StatusFailed
	e.record.Error = reason
	e.record.UpdatedAt = l.now()
	return nil
}

// Get retrieves a copy of the record for jobID.
func (l *MemoryLedger) Get(_ context.Context, jobID string) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.jobs[jobID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	record := e.record
	return &record, nil
}
