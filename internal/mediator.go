package internal

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/seaborne-data/restmed"
)

// mediator is the per-model CRUD engine. It holds no per-request state and
// is safe for concurrent use; the only transactional path is Batch, which
// opens its own database transaction.
type mediator struct {
	modelName          string
	schema             restmed.EntitySchema
	registry           restmed.SchemaRegistry
	provider           restmed.DataProvider
	protectConcurrency bool
	logger             *zap.SugaredLogger
}

var _ restmed.Mediator = (*mediator)(nil)

// NewMediator binds a mediator to one model. The model must be known to
// the registry.
func NewMediator(modelName string, registry restmed.SchemaRegistry, provider restmed.DataProvider, protectConcurrency bool) (restmed.Mediator, error) {
	if modelName == "" {
		return nil, restmed.NewMissingModelNameError(modelName)
	}
	schema, ok := registry.Schema(modelName)
	if !ok {
		return nil, restmed.NewMissingModelNameError(modelName)
	}
	return &mediator{
		modelName:          modelName,
		schema:             schema,
		registry:           registry,
		provider:           provider,
		protectConcurrency: protectConcurrency,
		logger:             zap.S().With("model", modelName),
	}, nil
}

func (m *mediator) ModelName() string {
	return m.modelName
}

// validateItemFields checks every field of the item against the schema.
// System fields are always permitted; they get stripped before any write.
func (m *mediator) validateItemFields(item restmed.Item) []*restmed.ApplicationError {
	var errs []*restmed.ApplicationError
	for _, field := range itemKeys(item) {
		if isSystemField(field) {
			continue
		}
		if !m.schema.HasField(field) {
			errs = append(errs, restmed.NewMissingFieldError(m.modelName, field))
		}
	}
	return errs
}

// whereToCriteria lifts parsed string filters into provider criteria and
// merges the extra equality params on top. Params win on conflict.
func whereToCriteria(where map[string]string, params restmed.Item) restmed.Item {
	criteria := make(restmed.Item, len(where)+len(params))
	for field, value := range where {
		criteria[field] = value
	}
	for field, value := range params {
		criteria[field] = value
	}
	return criteria
}

// updateCriteria derives the row lookup for direct single-item updates: the
// caller's params, with the item's own id only as a fallback. Params win so
// a body echoing a different id cannot redirect the write away from the row
// the caller addressed.
func updateCriteria(item restmed.Item, params restmed.Item) restmed.Item {
	criteria := make(restmed.Item, len(params)+1)
	if id, ok := item[restmed.FieldID]; ok && id != nil {
		criteria[restmed.FieldID] = id
	}
	for field, value := range params {
		criteria[field] = value
	}
	return criteria
}

// batchCriteria addresses one batch list entry: the shared params plus the
// item's own id, which wins because each entry names its own row.
func batchCriteria(item restmed.Item, params restmed.Item) restmed.Item {
	criteria := make(restmed.Item, len(params)+1)
	for field, value := range params {
		criteria[field] = value
	}
	if id, ok := item[restmed.FieldID]; ok && id != nil {
		criteria[restmed.FieldID] = id
	}
	return criteria
}

// checkConcurrency compares the caller's updated_at against the stored one.
// A strictly newer stored timestamp means someone else wrote in between; the
// error carries the current stored item so the caller can rebase.
func (m *mediator) checkConcurrency(item restmed.Item, current restmed.Item) *restmed.ApplicationError {
	if !m.protectConcurrency {
		return nil
	}
	submitted, ok := coerceTime(item[restmed.FieldUpdatedAt])
	if !ok {
		return nil
	}
	stored, ok := coerceTime(current[restmed.FieldUpdatedAt])
	if !ok {
		return nil
	}
	if stored.After(submitted) {
		m.logger.Infow("stale write rejected",
			"id", current[restmed.FieldID], "submitted", submitted, "stored", stored)
		return restmed.NewConcurrencyError(m.modelName, current)
	}
	return nil
}

func (m *mediator) notFound(criteria restmed.Item) *restmed.ApplicationError {
	id := criteria[restmed.FieldID]
	if id == nil {
		id = fmt.Sprintf("%v", criteria)
	}
	return restmed.NewItemNotFoundError(m.modelName, id)
}
