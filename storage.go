package restmed

import (
	"context"
)

// Tx is one storage transaction. The mediator opens a single transaction for
// the batch path and nowhere else.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DataProvider performs the actual persistence operations. Operations accept
// an optional transaction; a nil tx runs against the pool directly. Every
// failure returned is an *ApplicationError.
type DataProvider interface {
	// Create inserts item and returns the stored row including generated
	// id/created_at/updated_at.
	Create(ctx context.Context, model string, item Item, tx Tx) (Item, error)
	// Find returns the single row matching criteria exactly, or (nil, nil)
	// when no row matches. Includes are relation names resolved by
	// convention; unresolvable names are ignored. A non-nil tx scopes the
	// read to that transaction so uncommitted writes are visible.
	Find(ctx context.Context, model string, criteria Item, include []string, tx Tx) (Item, error)
	// FindAll returns all rows matching opts, honoring attribute selection,
	// order, limit and offset.
	FindAll(ctx context.Context, model string, opts QueryOptions, include []string) ([]Item, error)
	// Update applies patch to every row matching criteria and returns the
	// affected row count.
	Update(ctx context.Context, model string, patch Item, criteria Item, tx Tx) (int64, error)
	// Destroy deletes every row matching criteria and returns the affected
	// row count.
	Destroy(ctx context.Context, model string, criteria Item, tx Tx) (int64, error)
	// BeginTx opens a transaction scoped to subsequent Create/Update/Destroy
	// calls that receive it.
	BeginTx(ctx context.Context) (Tx, error)
}
