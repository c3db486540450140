package revocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/blog-service/internal/domain"
	"github.com/spec-kit/blog-service/internal/repository"
)

// mirrorKeyPrefix namespaces revoked-token keys in the shared mirror.
const mirrorKeyPrefix = "auth:revoked:"

// Cache is the process-local set of revoked token strings, a read-optimized
// mirror of the durable ledger. The ledger is always authoritative: the set
// can be discarded and rebuilt from it at any time without correctness loss.
//
// An optional Redis mirror carries revocations across process instances; a
// cache miss is confirmed against it before a token is accepted.
type Cache struct {
	ledger    repository.RevocationLedger
	mirror    *redis.Client
	logger    *zap.Logger
	ioTimeout time.Duration

	mu       sync.RWMutex
	revoked  map[string]struct{}
	degraded bool

	// journal collects tokens revoked while a rebuild is reading its ledger
	// snapshot. Non-nil only during an in-flight sync or reload; unioned
	// into the fresh set before it is installed, so a Revoke that committed
	// after the snapshot was read is never erased by the swap.
	journal map[string]struct{}
}

// NewCache constructs the cache. mirror may be nil for single-instance
// deployments. The instance is built once at process start and shared.
func NewCache(ledger repository.RevocationLedger, mirror *redis.Client, logger *zap.Logger, ioTimeout time.Duration) *Cache {
	if ioTimeout <= 0 {
		ioTimeout = 5 * time.Second
	}
	return &Cache{
		ledger:    ledger,
		mirror:    mirror,
		logger:    logger,
		ioTimeout: ioTimeout,
		revoked:   make(map[string]struct{}),
	}
}

// Sync loads every non-expired revocation from the ledger. If the ledger is
// unreachable the cache degrades to an empty set and the service keeps
// serving: availability is deliberately favored over perfect revocation
// enforcement while the store is down. The condition is logged for
// operators and self-heals on the next successful reload.
func (c *Cache) Sync(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.ioTimeout)
	defer cancel()

	c.beginRebuild()
	tokens, err := c.ledger.LoadActive(ctx, time.Now())
	if err != nil {
		c.mu.Lock()
		fresh := make(map[string]struct{}, len(c.journal))
		for token := range c.journal {
			fresh[token] = struct{}{}
		}
		c.journal = nil
		c.revoked = fresh
		c.degraded = true
		c.mu.Unlock()
		c.logger.Warn("revocation ledger unreachable; starting with empty revocation cache, previously revoked tokens may authenticate until the next reload",
			zap.Error(err))
		return
	}

	c.swap(tokens)
	c.logger.Info("revocation cache synced", zap.Int("entries", len(tokens)))
}

// Revoke durably records the revocation, then mirrors it in memory.
// Write-through order is strict: if the ledger write fails or times out the
// token is NOT considered revoked and the error is surfaced to the caller.
// A memory-only add would silently un-revoke on restart.
func (c *Cache) Revoke(ctx context.Context, rec *domain.RevocationRecord) error {
	ledgerCtx, cancel := context.WithTimeout(ctx, c.ioTimeout)
	defer cancel()

	if err := c.ledger.Record(ledgerCtx, rec); err != nil {
		return fmt.Errorf("record revocation: %w", err)
	}

	c.mu.Lock()
	c.revoked[rec.Token] = struct{}{}
	if c.journal != nil {
		c.journal[rec.Token] = struct{}{}
	}
	c.mu.Unlock()

	c.mirrorSet(ctx, rec)
	return nil
}

// IsRevoked reports whether the token has been revoked. The in-memory set
// answers without I/O; a miss is confirmed against the shared mirror when
// one is configured. The durable ledger is never consulted on this path.
func (c *Cache) IsRevoked(ctx context.Context, token string) bool {
	c.mu.RLock()
	_, hit := c.revoked[token]
	c.mu.RUnlock()
	if hit {
		return true
	}

	if c.mirror == nil {
		return false
	}

	mirrorCtx, cancel := context.WithTimeout(ctx, c.ioTimeout)
	defer cancel()

	n, err := c.mirror.Exists(mirrorCtx, mirrorKeyPrefix+token).Result()
	if err != nil {
		c.logger.Debug("revocation mirror lookup failed", zap.Error(err))
		return false
	}
	return n > 0
}

// Reload purges expired ledger rows, then rebuilds the in-memory set from
// the remaining active revocations. The fresh set atomically replaces the
// old one; readers never observe a partially rebuilt set. A successful
// reload clears a degraded startup.
func (c *Cache) Reload(ctx context.Context) (int64, error) {
	c.beginRebuild()

	purgeCtx, cancel := context.WithTimeout(ctx, c.ioTimeout)
	defer cancel()

	purged, err := c.ledger.PurgeExpired(purgeCtx, time.Now())
	if err != nil {
		c.abortRebuild()
		return 0, fmt.Errorf("purge expired revocations: %w", err)
	}

	loadCtx, cancel := context.WithTimeout(ctx, c.ioTimeout)
	defer cancel()

	tokens, err := c.ledger.LoadActive(loadCtx, time.Now())
	if err != nil {
		c.abortRebuild()
		return purged, fmt.Errorf("reload revocations: %w", err)
	}

	c.swap(tokens)
	return purged, nil
}

// Degraded reports whether the last sync or reload left the cache running
// on an empty set because the ledger was unreachable.
func (c *Cache) Degraded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.degraded
}

// Len returns the number of cached revocations.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.revoked)
}

// beginRebuild opens the journal so revocations racing the rebuild are
// captured.
func (c *Cache) beginRebuild() {
	c.mu.Lock()
	c.journal = make(map[string]struct{})
	c.mu.Unlock()
}

// abortRebuild closes the journal after a failed rebuild. The journaled
// tokens already sit in the live set, which stays installed.
func (c *Cache) abortRebuild() {
	c.mu.Lock()
	c.journal = nil
	c.mu.Unlock()
}

// swap installs a freshly built set. The map is constructed outside the
// lock so readers only wait for the pointer swap; journaled revocations
// that committed after the ledger snapshot are unioned in under the lock.
func (c *Cache) swap(tokens []string) {
	fresh := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		fresh[token] = struct{}{}
	}

	c.mu.Lock()
	for token := range c.journal {
		fresh[token] = struct{}{}
	}
	c.journal = nil
	c.revoked = fresh
	c.degraded = false
	c.mu.Unlock()
}

// mirrorSet copies the revocation into the shared mirror, expiring with the
// token itself. Best-effort: the ledger already owns the durable record.
func (c *Cache) mirrorSet(ctx context.Context, rec *domain.RevocationRecord) {
	if c.mirror == nil {
		return
	}
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return
	}

	mirrorCtx, cancel := context.WithTimeout(ctx, c.ioTimeout)
	defer cancel()

	if err := c.mirror.Set(mirrorCtx, mirrorKeyPrefix+rec.Token, string(rec.Reason), ttl).Err(); err != nil {
		c.logger.Warn("revocation mirror write failed", zap.Error(err))
	}
}
