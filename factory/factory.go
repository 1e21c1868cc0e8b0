// Package factory wires the mediation layer together from configuration:
// schema registry, data provider, lock registry and one mediator per model.
package factory

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seaborne-data/restmed"
	"github.com/seaborne-data/restmed/internal"
)

// Mediation is the assembled mediation layer. Mediators are built once at
// startup, one per registered model, and shared across requests.
type Mediation struct {
	Registry restmed.SchemaRegistry
	Provider restmed.DataProvider
	Locks    restmed.LockRegistry

	mediators map[string]restmed.Mediator
}

// NewMediation assembles the full layer from config and a database pool.
//
// Usage:
//
//	cfg, err := restmed.LoadConfig(path)
//	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
//	mediation, err := factory.NewMediation(ctx, cfg, pool)
//	med, err := mediation.Mediator("employee")
func NewMediation(ctx context.Context, cfg *restmed.Config, pool *pgxpool.Pool) (*Mediation, error) {
	registry, err := NewSchemaRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}
	provider := internal.NewPostgresProvider(pool, registry)
	return NewMediationWithComponents(cfg, registry, provider)
}

// NewMediationWithComponents assembles the layer around caller-provided
// registry and provider implementations.
func NewMediationWithComponents(cfg *restmed.Config, registry restmed.SchemaRegistry, provider restmed.DataProvider) (*Mediation, error) {
	mediators := make(map[string]restmed.Mediator)
	for _, model := range registry.ListSchemas() {
		med, err := internal.NewMediator(model, registry, provider, cfg.Schemas.Protected(model))
		if err != nil {
			return nil, err
		}
		mediators[model] = med
	}
	return &Mediation{
		Registry:  registry,
		Provider:  provider,
		Locks:     internal.NewMemoryLockRegistry(cfg.Locks.TTL),
		mediators: mediators,
	}, nil
}

// NewSchemaRegistry builds the registry from the configured source: an S3
// bucket when one is set, the schema directory otherwise.
func NewSchemaRegistry(ctx context.Context, cfg *restmed.Config) (restmed.SchemaRegistry, error) {
	if cfg.Schemas.S3Bucket != "" {
		source, err := internal.NewS3SchemaSource(ctx, cfg.Schemas.S3Bucket, cfg.Schemas.S3Prefix, cfg.Schemas.AWSRegion)
		if err != nil {
			return nil, err
		}
		documents, err := source.FetchDocuments(ctx)
		if err != nil {
			return nil, err
		}
		return internal.NewSchemaRegistryFromDocuments(documents)
	}
	return internal.NewFileSchemaRegistry(cfg.Schemas.Directory)
}

// Mediator returns the mediator bound to the given model.
func (m *Mediation) Mediator(model string) (restmed.Mediator, error) {
	med, ok := m.mediators[model]
	if !ok {
		return nil, restmed.NewMissingModelNameError(model)
	}
	return med, nil
}

// Models returns every model with a mediator, in lexical order.
func (m *Mediation) Models() []string {
	models := make([]string, 0, len(m.mediators))
	for model := range m.mediators {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}
