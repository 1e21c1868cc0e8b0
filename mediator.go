package restmed

import (
	"context"
)

// Mediator is the entity-agnostic CRUD engine for one model. A mediator is
// bound to a single entity at construction time and carries no per-request
// state; instances are safe for concurrent use.
//
// Every operation returns an *ApplicationError on failure.
type Mediator interface {
	// ModelName returns the entity this mediator is bound to.
	ModelName() string

	// CreateOne validates item fields against the schema, strips the
	// storage-owned fields and inserts the row. The result echoes only
	// {id, created_at, updated_at}, never full stored state.
	CreateOne(ctx context.Context, item Item) (Item, error)

	// GetOne returns the single row matching criteria exactly (primary key
	// plus any path-derived filters).
	GetOne(ctx context.Context, criteria Item, include []string) (Item, error)

	// GetAll parses rawQuery into query options and fetches all matching
	// rows. Parser errors fail the whole call; params are merged as extra
	// equality filters.
	GetAll(ctx context.Context, rawQuery map[string]string, params Item, include []string) ([]Item, error)

	// UpdateOne updates the single row matching params. With concurrency
	// protection enabled a stale updated_at fails with a ConcurrencyError
	// carrying the current stored item. The result is {id, updated_at} of
	// the freshly reloaded row.
	UpdateOne(ctx context.Context, item Item, params Item) (Item, error)

	// UpdateMany applies item as a patch to every row matching params, with
	// no existence or concurrency check, and returns the affected count.
	UpdateMany(ctx context.Context, item Item, params Item) (int64, error)

	// DeleteOne deletes the single row matching criteria and returns {id}.
	DeleteOne(ctx context.Context, criteria Item) (Item, error)

	// DeleteAll parses rawQuery for filter validation, deletes all matching
	// rows and returns the affected count. Pagination, sort and attribute
	// keys are validated but ignored for the deletion itself.
	DeleteAll(ctx context.Context, rawQuery map[string]string, params Item) (int64, error)

	// Batch executes a multi-item create/update/delete request atomically:
	// either every item is applied or none is.
	Batch(ctx context.Context, payload BatchPayload, params Item) (*BatchResult, error)
}
