package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaborne-data/restmed"
)

type nullProvider struct{}

func (nullProvider) Create(context.Context, string, restmed.Item, restmed.Tx) (restmed.Item, error) {
	return nil, nil
}
func (nullProvider) Find(context.Context, string, restmed.Item, []string, restmed.Tx) (restmed.Item, error) {
	return nil, nil
}
func (nullProvider) FindAll(context.Context, string, restmed.QueryOptions, []string) ([]restmed.Item, error) {
	return nil, nil
}
func (nullProvider) Update(context.Context, string, restmed.Item, restmed.Item, restmed.Tx) (int64, error) {
	return 0, nil
}
func (nullProvider) Destroy(context.Context, string, restmed.Item, restmed.Tx) (int64, error) {
	return 0, nil
}
func (nullProvider) BeginTx(context.Context) (restmed.Tx, error) { return nil, nil }

func writeTestSchemas(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	employee := `{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`
	department := `{"type":"object","properties":{"name":{"type":"string"}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "employee.schema.json"), []byte(employee), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "department.schema.json"), []byte(department), 0o644))
	return dir
}

func TestNewMediationWithComponents(t *testing.T) {
	cfg := restmed.DefaultConfig()
	cfg.Schemas.Directory = writeTestSchemas(t)
	cfg.Schemas.ConcurrencyProtection = []string{"employee"}

	registry, err := NewSchemaRegistry(context.Background(), cfg)
	require.NoError(t, err)

	mediation, err := NewMediationWithComponents(cfg, registry, nullProvider{})
	require.NoError(t, err)

	assert.Equal(t, []string{"department", "employee"}, mediation.Models())
	assert.NotNil(t, mediation.Locks)

	med, err := mediation.Mediator("employee")
	require.NoError(t, err)
	assert.Equal(t, "employee", med.ModelName())

	_, err = mediation.Mediator("unknown")
	require.Error(t, err)
	assert.Equal(t, restmed.ErrIDMissingModelName, restmed.AsApplicationError(err).ID)
}

func TestNewSchemaRegistryMissingDirectory(t *testing.T) {
	cfg := restmed.DefaultConfig()
	cfg.Schemas.Directory = filepath.Join(t.TempDir(), "absent")

	_, err := NewSchemaRegistry(context.Background(), cfg)
	require.Error(t, err)
}
