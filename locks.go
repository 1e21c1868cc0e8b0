package restmed

import (
	"context"
	"time"
)

// Lock is one advisory edit-intent claim on an entity item. Locks are hints
// for collaborating clients: the mediator never consults them and they grant
// no mutual exclusion over storage.
type Lock struct {
	Model     string    `json:"model"`
	ItemID    string    `json:"itemId"`
	Owner     string    `json:"owner"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the lock's TTL has elapsed at the given time.
func (l Lock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// LockRegistry coordinates advisory locks keyed by (model, item id). Locks
// expire after a TTL and can only be released with the ownership token handed
// out at acquisition.
type LockRegistry interface {
	// Acquire claims the lock for owner, failing with a LockHeldError when a
	// live lock is held by someone else. Re-acquiring one's own lock renews
	// it and returns a fresh token.
	Acquire(ctx context.Context, model, itemID, owner string) (Lock, error)
	// Release drops the lock; the token must match the one issued by
	// Acquire.
	Release(ctx context.Context, model, itemID, token string) error
	// Get returns the live lock for an item, if any.
	Get(model, itemID string) (Lock, bool)
	// List returns all live locks for a model.
	List(model string) []Lock
}
