package internal

import (
	"context"

	"github.com/seaborne-data/restmed"
)

// CreateOne validates the item, strips the storage-owned fields and inserts
// the row. Only the storage-owned fields come back.
func (m *mediator) CreateOne(ctx context.Context, item restmed.Item) (restmed.Item, error) {
	created, appErr := m.createOne(ctx, item, nil)
	if appErr != nil {
		return nil, appErr
	}
	return created, nil
}

// createOne is the transactional core shared with the batch path. It returns
// *ApplicationError directly so batch execution can accumulate without type
// assertions.
func (m *mediator) createOne(ctx context.Context, item restmed.Item, tx restmed.Tx) (restmed.Item, *restmed.ApplicationError) {
	if errs := m.validateItemFields(item); len(errs) > 0 {
		return nil, restmed.NewErrorCollection(errs)
	}
	stored, err := m.provider.Create(ctx, m.modelName, stripItem(item, restmed.SystemFields...), tx)
	if err != nil {
		return nil, restmed.AsApplicationError(err)
	}
	return pickItem(stored, restmed.FieldID, restmed.FieldCreatedAt, restmed.FieldUpdatedAt), nil
}

// GetOne returns the single row matching criteria, with includes resolved.
func (m *mediator) GetOne(ctx context.Context, criteria restmed.Item, include []string) (restmed.Item, error) {
	found, err := m.provider.Find(ctx, m.modelName, criteria, include, nil)
	if err != nil {
		return nil, restmed.AsApplicationError(err)
	}
	if found == nil {
		return nil, m.notFound(criteria)
	}
	return found, nil
}

// GetAll parses the raw query and fetches every matching row. Any parser
// error fails the call before the database is touched.
func (m *mediator) GetAll(ctx context.Context, rawQuery map[string]string, params restmed.Item, include []string) ([]restmed.Item, error) {
	opts, errs := ParseQuery(rawQuery, m.schema)
	if len(errs) > 0 {
		return nil, restmed.NewErrorCollection(errs)
	}
	if len(params) > 0 {
		merged := whereToCriteria(opts.Where, params)
		opts.Where = make(map[string]string, len(merged))
		for field, value := range merged {
			opts.Where[field] = toFilterString(value)
		}
	}
	items, err := m.provider.FindAll(ctx, m.modelName, opts, include)
	if err != nil {
		return nil, restmed.AsApplicationError(err)
	}
	return items, nil
}

// UpdateOne updates the single row identified by params. The body's own id
// only addresses the row when params carry no identifier of their own.
func (m *mediator) UpdateOne(ctx context.Context, item restmed.Item, params restmed.Item) (restmed.Item, error) {
	updated, appErr := m.updateOne(ctx, item, params, updateCriteria(item, params), nil)
	if appErr != nil {
		return nil, appErr
	}
	return updated, nil
}

func (m *mediator) updateOne(ctx context.Context, item restmed.Item, params restmed.Item, criteria restmed.Item, tx restmed.Tx) (restmed.Item, *restmed.ApplicationError) {
	if errs := m.validateItemFields(item); len(errs) > 0 {
		return nil, restmed.NewErrorCollection(errs)
	}

	current, err := m.provider.Find(ctx, m.modelName, criteria, nil, tx)
	if err != nil {
		return nil, restmed.AsApplicationError(err)
	}
	if current == nil {
		return nil, m.notFound(criteria)
	}
	if concErr := m.checkConcurrency(item, current); concErr != nil {
		return nil, concErr
	}

	// Param keys never end up in the patch; they address the row, the body
	// cannot rewrite them.
	patch := stripItem(item, append(itemKeys(params), restmed.SystemFields...)...)
	rowCriteria := restmed.Item{restmed.FieldID: current[restmed.FieldID]}
	affected, err := m.provider.Update(ctx, m.modelName, patch, rowCriteria, tx)
	if err != nil {
		return nil, restmed.AsApplicationError(err)
	}
	if affected == 0 {
		// The row vanished between the lookup and the write.
		return nil, m.notFound(rowCriteria)
	}

	reloaded, err := m.provider.Find(ctx, m.modelName, rowCriteria, nil, tx)
	if err != nil {
		return nil, restmed.AsApplicationError(err)
	}
	if reloaded == nil {
		return nil, m.notFound(rowCriteria)
	}
	return pickItem(reloaded, restmed.FieldID, restmed.FieldUpdatedAt), nil
}

// UpdateMany patches every row matching params with no existence or
// concurrency check.
func (m *mediator) UpdateMany(ctx context.Context, item restmed.Item, params restmed.Item) (int64, error) {
	patch := stripItem(item, restmed.SystemFields...)
	count, err := m.provider.Update(ctx, m.modelName, patch, params, nil)
	if err != nil {
		return 0, restmed.AsApplicationError(err)
	}
	return count, nil
}

// DeleteOne deletes the single row matching criteria and echoes its id.
func (m *mediator) DeleteOne(ctx context.Context, criteria restmed.Item) (restmed.Item, error) {
	deleted, appErr := m.deleteOne(ctx, criteria, nil)
	if appErr != nil {
		return nil, appErr
	}
	return deleted, nil
}

func (m *mediator) deleteOne(ctx context.Context, criteria restmed.Item, tx restmed.Tx) (restmed.Item, *restmed.ApplicationError) {
	current, err := m.provider.Find(ctx, m.modelName, criteria, nil, tx)
	if err != nil {
		return nil, restmed.AsApplicationError(err)
	}
	if current == nil {
		return nil, m.notFound(criteria)
	}
	rowCriteria := restmed.Item{restmed.FieldID: current[restmed.FieldID]}
	affected, err := m.provider.Destroy(ctx, m.modelName, rowCriteria, tx)
	if err != nil {
		return nil, restmed.AsApplicationError(err)
	}
	if affected == 0 {
		// The row vanished between the lookup and the delete.
		return nil, m.notFound(rowCriteria)
	}
	return pickItem(current, restmed.FieldID), nil
}

// DeleteAll validates the raw query the same way GetAll does, then deletes
// every row matching the filters. Sort, attribute and pagination keys are
// validated but do not affect which rows are deleted.
func (m *mediator) DeleteAll(ctx context.Context, rawQuery map[string]string, params restmed.Item) (int64, error) {
	opts, errs := ParseQuery(rawQuery, m.schema)
	if len(errs) > 0 {
		return 0, restmed.NewErrorCollection(errs)
	}
	criteria := whereToCriteria(opts.Where, params)
	count, err := m.provider.Destroy(ctx, m.modelName, criteria, nil)
	if err != nil {
		return 0, restmed.AsApplicationError(err)
	}
	return count, nil
}
