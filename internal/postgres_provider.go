package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/seaborne-data/restmed"
)

// dbPool is the subset of pgxpool.Pool the provider needs. pgxmock
// implements it, which is what the unit tests run against.
type dbPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// dbExecutor is the querying surface shared by pools and transactions.
type dbExecutor interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// pgTx adapts a pgx transaction to the storage transaction handle.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// PostgresProvider stores each model in a table named after the model,
// one column per schema field.
type PostgresProvider struct {
	pool     dbPool
	registry restmed.SchemaRegistry
	logger   *zap.SugaredLogger

	// nowFunc is swapped out in tests for deterministic timestamps.
	nowFunc func() time.Time
}

// NewPostgresProvider builds a provider over the given pool and registry.
func NewPostgresProvider(pool dbPool, registry restmed.SchemaRegistry) *PostgresProvider {
	return &PostgresProvider{
		pool:     pool,
		registry: registry,
		logger:   zap.S(),
		nowFunc:  time.Now,
	}
}

var _ restmed.DataProvider = (*PostgresProvider)(nil)

// BeginTx opens a database transaction for a batch of writes.
func (p *PostgresProvider) BeginTx(ctx context.Context) (restmed.Tx, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, restmed.NewDatabaseError("failed to begin transaction", err)
	}
	return &pgTx{tx: tx}, nil
}

func (p *PostgresProvider) executor(tx restmed.Tx) dbExecutor {
	if handle, ok := tx.(*pgTx); ok && handle != nil {
		return handle.tx
	}
	return p.pool
}

func (p *PostgresProvider) schemaFor(model string) (restmed.EntitySchema, error) {
	schema, ok := p.registry.Schema(model)
	if !ok {
		return restmed.EntitySchema{}, restmed.NewMissingModelNameError(model)
	}
	return schema, nil
}

// Create inserts the item with generated id and timestamps and returns the
// stored row.
func (p *PostgresProvider) Create(ctx context.Context, model string, item restmed.Item, tx restmed.Tx) (restmed.Item, error) {
	schema, err := p.schemaFor(model)
	if err != nil {
		return nil, err
	}

	now := p.nowFunc().UTC()
	stored := make(restmed.Item, len(item)+3)
	for field, value := range item {
		if desc, ok := schema.Field(field); ok {
			stored[field] = coerceValue(desc, value)
		} else {
			stored[field] = value
		}
	}
	stored[restmed.FieldID] = uuid.Must(uuid.NewV7()).String()
	stored[restmed.FieldCreatedAt] = now
	stored[restmed.FieldUpdatedAt] = now

	fields := sortedKeys(stored)
	columns := make([]string, 0, len(fields))
	placeholders := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for i, field := range fields {
		columns = append(columns, sanitizeIdentifier(field))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, stored[field])
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		sanitizeIdentifier(model), strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	rows, err := p.executor(tx).Query(ctx, sql, args...)
	if err != nil {
		return nil, p.wrapWriteError(model, err)
	}
	created, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, p.wrapWriteError(model, err)
	}
	return restmed.Item(created), nil
}

// Find fetches at most one row matching the criteria, or (nil, nil) when
// nothing matches. A non-nil tx makes uncommitted batch writes visible.
func (p *PostgresProvider) Find(ctx context.Context, model string, criteria restmed.Item, include []string, tx restmed.Tx) (restmed.Item, error) {
	schema, err := p.schemaFor(model)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT * FROM %s", sanitizeIdentifier(model))
	where, args := buildWhereClause(coerceCriteria(schema, criteria), 1)
	if where != "" {
		sql += " WHERE " + where
	}
	sql += " LIMIT 1"

	rows, err := p.executor(tx).Query(ctx, sql, args...)
	if err != nil {
		return nil, restmed.NewDatabaseError(fmt.Sprintf("failed to query %s", model), err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, restmed.NewDatabaseError(fmt.Sprintf("failed to scan %s row", model), err)
	}

	item := restmed.Item(row)
	if err := p.attachRelations(ctx, schema, item, include, tx); err != nil {
		return nil, err
	}
	return item, nil
}

// FindAll fetches every row matching the parsed query options.
func (p *PostgresProvider) FindAll(ctx context.Context, model string, opts restmed.QueryOptions, include []string) ([]restmed.Item, error) {
	schema, err := p.schemaFor(model)
	if err != nil {
		return nil, err
	}

	criteria := make(map[string]any, len(opts.Where))
	for field, value := range opts.Where {
		criteria[field] = value
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", selectColumns(schema, opts.Attributes), sanitizeIdentifier(model))
	where, args := buildWhereClause(coerceCriteria(schema, criteria), 1)
	if where != "" {
		sql += " WHERE " + where
	}
	sql += orderByClause(opts.Order)
	if opts.Limit != nil {
		args = append(args, *opts.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset != nil {
		args = append(args, *opts.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := p.executor(nil).Query(ctx, sql, args...)
	if err != nil {
		return nil, restmed.NewDatabaseError(fmt.Sprintf("failed to query %s", model), err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, restmed.NewDatabaseError(fmt.Sprintf("failed to scan %s rows", model), err)
	}

	items := make([]restmed.Item, 0, len(maps))
	for _, row := range maps {
		item := restmed.Item(row)
		if err := p.attachRelations(ctx, schema, item, include, nil); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Update applies the patch to every row matching the criteria and bumps
// updated_at. It reports the number of rows touched.
func (p *PostgresProvider) Update(ctx context.Context, model string, patch restmed.Item, criteria restmed.Item, tx restmed.Tx) (int64, error) {
	schema, err := p.schemaFor(model)
	if err != nil {
		return 0, err
	}
	changed := make(restmed.Item, len(patch)+1)
	for field, value := range patch {
		if desc, ok := schema.Field(field); ok {
			changed[field] = coerceValue(desc, value)
		} else {
			changed[field] = value
		}
	}
	changed[restmed.FieldUpdatedAt] = p.nowFunc().UTC()

	fields := sortedKeys(changed)
	assignments := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for i, field := range fields {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", sanitizeIdentifier(field), i+1))
		args = append(args, changed[field])
	}

	sql := fmt.Sprintf("UPDATE %s SET %s", sanitizeIdentifier(model), strings.Join(assignments, ", "))
	where, whereArgs := buildWhereClause(coerceCriteria(schema, criteria), len(args)+1)
	if where != "" {
		args = append(args, whereArgs...)
		sql += " WHERE " + where
	}

	tag, err := p.executor(tx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, p.wrapWriteError(model, err)
	}
	return tag.RowsAffected(), nil
}

// Destroy deletes every row matching the criteria and reports the count.
func (p *PostgresProvider) Destroy(ctx context.Context, model string, criteria restmed.Item, tx restmed.Tx) (int64, error) {
	schema, err := p.schemaFor(model)
	if err != nil {
		return 0, err
	}
	sql := fmt.Sprintf("DELETE FROM %s", sanitizeIdentifier(model))
	where, args := buildWhereClause(coerceCriteria(schema, criteria), 1)
	if where != "" {
		sql += " WHERE " + where
	}

	tag, err := p.executor(tx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, p.wrapWriteError(model, err)
	}
	return tag.RowsAffected(), nil
}

// attachRelations resolves includes by the <relation>_id convention: for each
// requested relation whose foreign key column is present and non-nil, the
// related row is fetched and embedded under the relation name.
func (p *PostgresProvider) attachRelations(ctx context.Context, schema restmed.EntitySchema, item restmed.Item, include []string, tx restmed.Tx) error {
	for _, relation := range include {
		fkField := relation + "_id"
		if !schema.HasField(fkField) {
			p.logger.Debugw("skipping include without foreign key", "model", schema.Name, "include", relation)
			continue
		}
		if _, known := p.registry.Schema(relation); !known {
			p.logger.Debugw("skipping include for unknown model", "model", schema.Name, "include", relation)
			continue
		}
		fk, ok := item[fkField]
		if !ok || fk == nil {
			continue
		}
		related, err := p.Find(ctx, relation, restmed.Item{restmed.FieldID: fk}, nil, tx)
		if err != nil {
			return err
		}
		if related != nil {
			item[relation] = related
		}
	}
	return nil
}

// wrapWriteError maps constraint violations onto the application error
// taxonomy; everything else becomes a database error.
func (p *PostgresProvider) wrapWriteError(model string, err error) *restmed.ApplicationError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		msg := fmt.Sprintf("foreign key constraint %s violated on %s", pgErr.ConstraintName, model)
		return restmed.NewForeignKeyConstraintError(msg, err).WithModel(model)
	}
	return restmed.NewDatabaseError(fmt.Sprintf("write to %s failed", model), err)
}
