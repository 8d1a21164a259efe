package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/segyhp/pawn-engine/internal/logger"
	customError "github.com/segyhp/pawn-engine/pkg/errors"
)

const (
	lockPrefix  = "pawn:lock:loan:"
	loanPrefix  = "pawn:loan:"
	lockPoll    = 50 * time.Millisecond
	releaseWait = 2 * time.Second
)

// releaseScript deletes the lock only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// setScript writes a loan snapshot unless the key already holds a newer
// version. Tombstones carry a version too, so a read that raced a void cannot
// bring the loan back.
var setScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
	local ok, entry = pcall(cjson.decode, current)
	if ok and type(entry) == "table" then
		local version = tonumber(entry["version"])
		if version and version > tonumber(ARGV[2]) then
			return 0
		end
	end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// tombstone marks a deleted loan in the cache
type tombstone struct {
	Version int  `json:"version"`
	Deleted bool `json:"deleted"`
}

func LockKey(loanID uuid.UUID) string {
	return lockPrefix + loanID.String()
}

func LoanKey(loanID uuid.UUID) string {
	return loanPrefix + loanID.String()
}

// LoanLocker serializes mutations of a single loan across processes
type LoanLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewLoanLocker returns a locker whose locks expire after ttl. Acquire keeps
// polling for up to wait before giving up.
func NewLoanLocker(client *redis.Client, ttl, wait time.Duration) *LoanLocker {
	return &LoanLocker{client: client, ttl: ttl, wait: wait}
}

// Acquire takes the per-loan lock. The returned release func is safe to call
// once the lock has expired; it never deletes another holder's lock.
func (l *LoanLocker) Acquire(ctx context.Context, loanID uuid.UUID) (func(), error) {
	key := LockKey(loanID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, customError.WrapCacheError(err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, customError.WrapLoanLocked(loanID.String())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPoll):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseWait)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			logger.Warn("Failed to release loan lock", "loan_id", loanID, "error", err)
		}
	}
	return release, nil
}

// LoanCache keeps read-through snapshots of loans
type LoanCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLoanCache(client *redis.Client, ttl time.Duration) *LoanCache {
	return &LoanCache{client: client, ttl: ttl}
}

// Get returns the cached loan. Redis failures count as a miss.
func (c *LoanCache) Get(ctx context.Context, loanID uuid.UUID) (*domain.Loan, bool) {
	raw, err := c.client.Get(ctx, LoanKey(loanID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logger.Debug("Loan cache miss", "loan_id", loanID)
		} else {
			logger.WarnContext(ctx, "Loan cache read failed", "loan_id", loanID, "error", err)
		}
		return nil, false
	}

	var entry struct {
		domain.Loan
		Deleted bool `json:"deleted"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		logger.WarnContext(ctx, "Discarding corrupt loan cache entry", "loan_id", loanID, "error", err)
		c.Invalidate(ctx, loanID)
		return nil, false
	}
	if entry.Deleted {
		return nil, false
	}
	return &entry.Loan, true
}

// Set stores the snapshot unless the cache already has a newer version of
// the loan.
func (c *LoanCache) Set(ctx context.Context, loan *domain.Loan) {
	raw, err := json.Marshal(loan)
	if err != nil {
		logger.WarnContext(ctx, "Failed to encode loan for cache", "loan_id", loan.ID, "error", err)
		return
	}
	c.write(ctx, loan.ID, raw, loan.Version)
}

// MarkDeleted replaces the entry with a tombstone newer than version, the
// last version the loan had before it was deleted.
func (c *LoanCache) MarkDeleted(ctx context.Context, loanID uuid.UUID, version int) {
	raw, err := json.Marshal(tombstone{Version: version + 1, Deleted: true})
	if err != nil {
		logger.WarnContext(ctx, "Failed to encode loan tombstone", "loan_id", loanID, "error", err)
		return
	}
	c.write(ctx, loanID, raw, version+1)
}

func (c *LoanCache) write(ctx context.Context, loanID uuid.UUID, raw []byte, version int) {
	stored, err := setScript.Run(ctx, c.client, []string{LoanKey(loanID)}, raw, version, c.ttl.Milliseconds()).Int()
	if err != nil {
		logger.WarnContext(ctx, "Loan cache write failed", "loan_id", loanID, "error", err)
		return
	}
	if stored == 0 {
		logger.Debug("Skipped stale loan cache write", "loan_id", loanID, "version", version)
	}
}

func (c *LoanCache) Invalidate(ctx context.Context, loanID uuid.UUID) {
	if err := c.client.Del(ctx, LoanKey(loanID)).Err(); err != nil {
		logger.WarnContext(ctx, "Loan cache invalidation failed", "loan_id", loanID, "error", err)
	}
}
