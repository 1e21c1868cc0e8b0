package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaborne-data/restmed"
	"github.com/seaborne-data/restmed/internal"
)

const employeeSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "integer"},
		"active": {"type": "boolean"}
	},
	"required": ["name"]
}`

func startMediator(t *testing.T) (restmed.Mediator, *TestHarness) {
	t.Helper()
	ctx := context.Background()

	harness := &TestHarness{}
	require.NoError(t, harness.StartPostgres(ctx))
	t.Cleanup(func() { _ = harness.Stop(context.Background()) })
	require.NoError(t, harness.SeedEmployeeTable(ctx))

	registry, err := internal.NewSchemaRegistryFromDocuments(map[string][]byte{
		"employee": []byte(employeeSchema),
	})
	require.NoError(t, err)

	provider := internal.NewPostgresProvider(harness.Pool, registry)
	med, err := internal.NewMediator("employee", registry, provider, true)
	require.NoError(t, err)
	return med, harness
}

func TestCRUDRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e suite in -short mode")
	}
	med, _ := startMediator(t)
	ctx := context.Background()

	created, err := med.CreateOne(ctx, restmed.Item{"name": "ada", "age": 36, "active": true})
	require.NoError(t, err)
	id := created[restmed.FieldID]
	require.NotNil(t, id)

	fetched, err := med.GetOne(ctx, restmed.Item{restmed.FieldID: id}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ada", fetched["name"])

	updated, err := med.UpdateOne(ctx, restmed.Item{"name": "lovelace"}, restmed.Item{restmed.FieldID: id})
	require.NoError(t, err)
	assert.Equal(t, id, updated[restmed.FieldID])

	items, err := med.GetAll(ctx, map[string]string{"name": "lovelace", "sort": "-created_at"}, nil, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)

	deleted, err := med.DeleteOne(ctx, restmed.Item{restmed.FieldID: id})
	require.NoError(t, err)
	assert.Equal(t, id, deleted[restmed.FieldID])

	_, err = med.GetOne(ctx, restmed.Item{restmed.FieldID: id}, nil)
	assert.True(t, restmed.IsItemNotFoundError(err))
}

func TestBatchAtomicity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e suite in -short mode")
	}
	med, harness := startMediator(t)
	ctx := context.Background()

	// A batch whose update half targets a missing row must leave none of its
	// creates behind.
	_, err := med.Batch(ctx, restmed.BatchPayload{
		"createItems": {{"name": "ada"}, {"name": "grace"}},
		"updateItems": {{restmed.FieldID: "no-such-row", "name": "x"}},
	}, nil)
	require.Error(t, err)
	require.True(t, restmed.IsBatchError(err))

	var count int
	require.NoError(t, harness.Pool.QueryRow(ctx, "SELECT count(*) FROM employee").Scan(&count))
	assert.Zero(t, count)

	// The same creates succeed once the bad update is dropped.
	result, err := med.Batch(ctx, restmed.BatchPayload{
		"createItems": {{"name": "ada"}, {"name": "grace"}},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, result.CreateResults, 2)

	require.NoError(t, harness.Pool.QueryRow(ctx, "SELECT count(*) FROM employee").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestConcurrencyConflict(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e suite in -short mode")
	}
	med, _ := startMediator(t)
	ctx := context.Background()

	created, err := med.CreateOne(ctx, restmed.Item{"name": "ada"})
	require.NoError(t, err)
	id := created[restmed.FieldID]

	// First writer wins.
	_, err = med.UpdateOne(ctx, restmed.Item{"name": "lovelace"}, restmed.Item{restmed.FieldID: id})
	require.NoError(t, err)

	// Second writer holds the original read timestamp and must be rejected.
	stale := restmed.Item{"name": "byron", restmed.FieldUpdatedAt: created[restmed.FieldUpdatedAt]}
	_, err = med.UpdateOne(ctx, stale, restmed.Item{restmed.FieldID: id})
	require.Error(t, err)
	require.True(t, restmed.IsConcurrencyError(err))

	appErr := restmed.AsApplicationError(err)
	require.NotNil(t, appErr.Item)
	assert.Equal(t, "lovelace", appErr.Item["name"])
}
