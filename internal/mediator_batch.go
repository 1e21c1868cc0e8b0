package internal

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/seaborne-data/restmed"
)

// batchPhase tracks where in its lifecycle a batch call is. The phase is
// request-scoped; the mediator itself stays stateless.
type batchPhase string

const (
	phaseValidating  batchPhase = "VALIDATING"
	phaseExecuting   batchPhase = "EXECUTING"
	phaseCommitting  batchPhase = "COMMITTING"
	phaseRollingBack batchPhase = "ROLLING_BACK"
)

// Batch applies a multi-item create/update/delete request atomically. The
// whole payload is validated up front without touching the database; only a
// fully valid payload opens a transaction. During execution every item is
// attempted even after earlier failures, so one failed batch reports every
// problem it has, and any failure rolls the transaction back.
func (m *mediator) Batch(ctx context.Context, payload restmed.BatchPayload, params restmed.Item) (*restmed.BatchResult, error) {
	request, errSet := m.validateBatch(ctx, payload)
	if errSet.Count() > 0 {
		m.logger.Infow("batch rejected", "phase", phaseValidating, "errors", errSet.Count())
		return nil, restmed.NewBatchError(m.modelName, errSet)
	}

	m.logger.Debugw("batch validated", "phase", phaseExecuting,
		"creates", len(request.CreateItems), "updates", len(request.UpdateItems), "deletes", len(request.DeleteItems))

	tx, err := m.provider.BeginTx(ctx)
	if err != nil {
		return nil, restmed.AsApplicationError(err)
	}
	// No-op once the transaction committed.
	defer tx.Rollback(ctx)

	result := m.executeBatch(ctx, request, params, tx, errSet)
	if errSet.Count() > 0 {
		m.logger.Infow("batch rolled back", "phase", phaseRollingBack, "errors", errSet.Count())
		return nil, restmed.NewBatchError(m.modelName, errSet)
	}

	m.logger.Debugw("batch committing", "phase", phaseCommitting)
	if err := tx.Commit(ctx); err != nil {
		return nil, restmed.NewDatabaseError("failed to commit batch transaction", err)
	}
	return result, nil
}

// validateBatch runs the VALIDATING phase: reject unknown payload
// properties, then field-check the three item lists concurrently. Validation
// never touches the database, so the lists can fan out freely.
func (m *mediator) validateBatch(ctx context.Context, payload restmed.BatchPayload) (restmed.BatchRequest, *restmed.BatchErrorSet) {
	errSet := &restmed.BatchErrorSet{}
	request := restmed.BatchRequest{}

	for _, property := range sortedKeys(payload) {
		switch property {
		case restmed.BatchPropCreateItems:
			request.CreateItems = payload[property]
		case restmed.BatchPropUpdateItems:
			request.UpdateItems = payload[property]
		case restmed.BatchPropDeleteItems:
			request.DeleteItems = payload[property]
		default:
			errSet.PropertyErrors = append(errSet.PropertyErrors,
				restmed.NewInvalidPropertyError(property).WithModel(m.modelName))
		}
	}

	var mu sync.Mutex
	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		errs := m.validateItemList(request.CreateItems, false)
		mu.Lock()
		errSet.CreateErrors = errs
		mu.Unlock()
		return nil
	})
	group.Go(func() error {
		errs := m.validateItemList(request.UpdateItems, true)
		mu.Lock()
		errSet.UpdateErrors = errs
		mu.Unlock()
		return nil
	})
	group.Go(func() error {
		errs := m.validateItemList(request.DeleteItems, true)
		mu.Lock()
		errSet.DeleteErrors = errs
		mu.Unlock()
		return nil
	})
	// The validators only accumulate, they never fail the group.
	_ = group.Wait()

	return request, errSet
}

// validateItemList field-checks one list. Items that must address an
// existing row additionally need an id.
func (m *mediator) validateItemList(items []restmed.Item, requireID bool) []*restmed.ApplicationError {
	var errs []*restmed.ApplicationError
	for _, item := range items {
		if fieldErrs := m.validateItemFields(item); len(fieldErrs) > 0 {
			errs = append(errs, fieldErrs...)
			continue
		}
		if requireID {
			if id, ok := item[restmed.FieldID]; !ok || id == nil {
				errs = append(errs, restmed.NewMissingFieldError(m.modelName, restmed.FieldID))
			}
		}
	}
	return errs
}

// executeBatch runs the EXECUTING phase on the shared transaction. The pgx
// transaction is not safe for concurrent use, so items execute in request
// order; failures are accumulated instead of aborting so the whole batch
// reports every problem.
func (m *mediator) executeBatch(ctx context.Context, request restmed.BatchRequest, params restmed.Item, tx restmed.Tx, errSet *restmed.BatchErrorSet) *restmed.BatchResult {
	result := &restmed.BatchResult{
		CreateResults: make([]restmed.Item, 0, len(request.CreateItems)),
		UpdateResults: make([]restmed.Item, 0, len(request.UpdateItems)),
		DeleteResults: make([]restmed.Item, 0, len(request.DeleteItems)),
	}

	for _, item := range request.CreateItems {
		created, appErr := m.createOne(ctx, item, tx)
		if appErr != nil {
			errSet.CreateErrors = append(errSet.CreateErrors, appErr)
			continue
		}
		result.CreateResults = append(result.CreateResults, created)
	}

	for _, item := range request.UpdateItems {
		updated, appErr := m.updateOne(ctx, item, params, batchCriteria(item, params), tx)
		if appErr != nil {
			errSet.UpdateErrors = append(errSet.UpdateErrors, appErr)
			continue
		}
		result.UpdateResults = append(result.UpdateResults, updated)
	}

	for _, item := range request.DeleteItems {
		criteria := batchCriteria(item, params)
		deleted, appErr := m.deleteOne(ctx, criteria, tx)
		if appErr != nil {
			errSet.DeleteErrors = append(errSet.DeleteErrors, appErr)
			continue
		}
		result.DeleteResults = append(result.DeleteResults, deleted)
	}

	return result
}
