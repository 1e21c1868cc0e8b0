package internal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seaborne-data/restmed"
)

// MemoryLockRegistry keeps advisory locks in process memory. Expired locks
// are purged lazily on access; there is no background sweeper.
type MemoryLockRegistry struct {
	mu     sync.RWMutex
	locks  map[lockKey]restmed.Lock
	ttl    time.Duration
	logger *zap.SugaredLogger

	// nowFunc is swapped out in tests for deterministic expiry.
	nowFunc func() time.Time
}

type lockKey struct {
	model  string
	itemID string
}

var _ restmed.LockRegistry = (*MemoryLockRegistry)(nil)

// NewMemoryLockRegistry builds a registry with the given lock TTL.
func NewMemoryLockRegistry(ttl time.Duration) *MemoryLockRegistry {
	return &MemoryLockRegistry{
		locks:   make(map[lockKey]restmed.Lock),
		ttl:     ttl,
		logger:  zap.S(),
		nowFunc: time.Now,
	}
}

// Acquire claims the lock for owner. A live lock held by a different owner
// rejects the claim; one's own lock is renewed with a fresh token.
func (r *MemoryLockRegistry) Acquire(_ context.Context, model, itemID, owner string) (restmed.Lock, error) {
	key := lockKey{model: model, itemID: itemID}
	now := r.nowFunc()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.locks[key]; ok && !existing.Expired(now) && existing.Owner != owner {
		return restmed.Lock{}, restmed.NewLockHeldError(model, itemID, existing.Owner)
	}

	lock := restmed.Lock{
		Model:     model,
		ItemID:    itemID,
		Owner:     owner,
		Token:     uuid.Must(uuid.NewV7()).String(),
		ExpiresAt: now.Add(r.ttl),
	}
	r.locks[key] = lock
	r.logger.Debugw("lock acquired", "model", model, "item", itemID, "owner", owner)
	return lock, nil
}

// Release drops the lock when the token matches. Releasing an absent or
// expired lock succeeds; a token mismatch is an authorization failure.
func (r *MemoryLockRegistry) Release(_ context.Context, model, itemID, token string) error {
	key := lockKey{model: model, itemID: itemID}
	now := r.nowFunc()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.locks[key]
	if !ok || existing.Expired(now) {
		delete(r.locks, key)
		return nil
	}
	if existing.Token != token {
		return restmed.NewAuthorizationError("lock token mismatch").WithModel(model)
	}
	delete(r.locks, key)
	r.logger.Debugw("lock released", "model", model, "item", itemID)
	return nil
}

// Get returns the live lock on an item, purging it when expired.
func (r *MemoryLockRegistry) Get(model, itemID string) (restmed.Lock, bool) {
	key := lockKey{model: model, itemID: itemID}
	now := r.nowFunc()

	r.mu.RLock()
	lock, ok := r.locks[key]
	r.mu.RUnlock()
	if !ok {
		return restmed.Lock{}, false
	}
	if lock.Expired(now) {
		r.mu.Lock()
		delete(r.locks, key)
		r.mu.Unlock()
		return restmed.Lock{}, false
	}
	return lock, true
}

// List returns every live lock for a model, ordered by item id.
func (r *MemoryLockRegistry) List(model string) []restmed.Lock {
	now := r.nowFunc()

	r.mu.RLock()
	live := make([]restmed.Lock, 0, len(r.locks))
	for _, lock := range r.locks {
		if lock.Model == model && !lock.Expired(now) {
			live = append(live, lock)
		}
	}
	r.mu.RUnlock()

	sort.Slice(live, func(i, j int) bool { return live[i].ItemID < live[j].ItemID })
	return live
}
