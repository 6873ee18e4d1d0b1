package ledger

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	claimKeyPrefix  = "transcoder:claim:"
	recordKeyPrefix = "transcoder:job:"
)

// claimScript performs the whole claim decision server-side so two racing
// claims cannot interleave between the check and the write. It refuses jobs
// whose record is processed, takes the claim with SET NX (the claim key
// carries the TTL that makes crashed claims reclaimable), and writes the
// processing record.
var claimScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[2], 'status')
if status == 'processed' then
  return 0
end
local ok = redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2])
if not ok then
  return 0
end
redis.call('HSET', KEYS[2],
  'id', ARGV[3],
  'owner_id', ARGV[1],
  'status', 'processing',
  'output_key', '',
  'error', '',
  'created_at', ARGV[4],
  'updated_at', ARGV[4])
return 1
`)

// Compile-time check that RedisLedger implements Ledger.
var _ Ledger = (*RedisLedger)(nil)

// RedisLedger implements Ledger on Redis. The claim is a Lua script (one
// atomic server-side operation) and the record lives in a hash keyed by job
// ID, so the ledger is safe to share across worker processes.
type RedisLedger struct {
	client   redis.UniversalClient
	claimTTL time.Duration
}

// NewRedisLedger creates a Redis-backed ledger. claimTTL bounds how long a
// processing claim blocks re-claiming after a crash.
func NewRedisLedger(client redis.UniversalClient, claimTTL time.Duration) *RedisLedger {
	if claimTTL <= 0 {
		claimTTL = 15 * time.Minute
	}
	return &RedisLedger{client: client, claimTTL: claimTTL}
}

func claimKey(jobID string) string  { return claimKeyPrefix + jobID }
func recordKey(jobID string) string { return recordKeyPrefix + jobID }

// Claim atomically creates a processing record for jobID.
func (l *RedisLedger) Claim(ctx context.Context, jobID, ownerID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := claimScript.Run(ctx, l.client,
		[]string{claimKey(jobID), recordKey(jobID)},
		ownerID, l.claimTTL.Milliseconds(), jobID, now,
	).Int64()
	if err != nil {
		return fmt.Errorf("ledger claim %s: %w", jobID, err)
	}
	if res == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}

// Release drops a claim that produced no work, deleting the record.
func (l *RedisLedger) Release(ctx context.Context, jobID string) error {
	if err := l.client.Del(ctx, claimKey(jobID), recordKey(jobID)).Err(); err != nil {
		return fmt.Errorf("ledger release %s: %w", jobID, err)
	}
	return nil
}

// MarkProcessed transitions the record to processed with its output key.
// The claim key is dropped so replays hit the processed guard instead of an
// expiring claim. Idempotent on replay: the terminal fields are identical.
func (l *RedisLedger) MarkProcessed(ctx context.Context, jobID, outputKey string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	pipe := l.client.TxPipeline()
	pipe.HSet(ctx, recordKey(jobID),
		"status", string(StatusProcessed),
		"output_key", outputKey,
		"error", "",
		"updated_at", now,
	)
	pipe.Del(ctx, claimKey(jobID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ledger mark processed %s: %w", jobID, err)
	}
	return nil
}

// MarkFailed transitions the record to failed. The claim key is dropped so
// an upstream redelivery can claim the job again immediately.
func (l *RedisLedger) MarkFailed(ctx context.Context, jobID, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	pipe := l.client.TxPipeline()
	pipe.HSet(ctx, recordKey(jobID),
		"status", string(StatusFailed),
		"error", reason,
		"updated_at", now,
	)
	pipe.Del(ctx, claimKey(jobID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ledger mark failed %s: %w", jobID, err)
	}
	return nil
}

// Get retrieves the record for jobID.
func (l *RedisLedger) Get(ctx context.Context, jobID string) (*Record, error) {
	fields, err := l.client.HGetAll(ctx, recordKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("ledger get %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, ErrRecordNotFound
	}
	return recordFromFields(fields), nil
}

// recordFromFields maps a Redis hash to a Record. Unparsable timestamps are
// left at their zero value rather than failing the read.
func recordFromFields(fields map[string]string) *Record {
	r := &Record{
		ID:        fields["id"],
		OwnerID:   fields["owner_id"],
		Status:    Status(fields["status"]),
		OutputKey: fields["output_key"],
		Error:     fields["error"],
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		r.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		r.UpdatedAt = t
	}
	return r
}
