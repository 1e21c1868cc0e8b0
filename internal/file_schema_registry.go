package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"github.com/seaborne-data/restmed"
)

const schemaFileSuffix = ".schema.json"

// FileSchemaRegistry loads entity schemas from JSON Schema documents on
// disk, one <model>.schema.json per entity. Schemas are resolved once at
// load time and immutable afterwards, so lookups need no locking.
type FileSchemaRegistry struct {
	schemas  map[string]restmed.EntitySchema
	resolved map[string]*jsonschema.Resolved
	logger   *zap.SugaredLogger
}

var _ restmed.SchemaRegistry = (*FileSchemaRegistry)(nil)

// NewFileSchemaRegistry reads every schema document in dir. A directory
// without a single schema file is a configuration mistake and fails loudly.
func NewFileSchemaRegistry(dir string) (*FileSchemaRegistry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, restmed.NewFileError(fmt.Sprintf("failed to read schema directory %s", dir), err)
	}

	registry := &FileSchemaRegistry{
		schemas:  make(map[string]restmed.EntitySchema),
		resolved: make(map[string]*jsonschema.Resolved),
		logger:   zap.S(),
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), schemaFileSuffix) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, restmed.NewFileError(fmt.Sprintf("failed to read schema file %s", entry.Name()), err)
		}
		model := strings.TrimSuffix(entry.Name(), schemaFileSuffix)
		if err := registry.register(model, raw); err != nil {
			return nil, err
		}
	}
	if len(registry.schemas) == 0 {
		return nil, restmed.NewFileError(fmt.Sprintf("no %s files found in %s", schemaFileSuffix, dir), nil)
	}

	registry.logger.Infow("schema registry loaded", "dir", dir, "models", registry.ListSchemas())
	return registry, nil
}

// NewSchemaRegistryFromDocuments builds a registry from already-fetched
// schema documents keyed by model name. The S3 source feeds this.
func NewSchemaRegistryFromDocuments(documents map[string][]byte) (*FileSchemaRegistry, error) {
	if len(documents) == 0 {
		return nil, restmed.NewFileError("no schema documents provided", nil)
	}
	registry := &FileSchemaRegistry{
		schemas:  make(map[string]restmed.EntitySchema),
		resolved: make(map[string]*jsonschema.Resolved),
		logger:   zap.S(),
	}
	for model, raw := range documents {
		if err := registry.register(model, raw); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// register parses, resolves and indexes one schema document.
func (r *FileSchemaRegistry) register(model string, raw []byte) error {
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return restmed.NewFileError(fmt.Sprintf("failed to parse schema for %s", model), err)
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return restmed.NewFileError(fmt.Sprintf("failed to resolve schema for %s", model), err)
	}

	entity := restmed.EntitySchema{
		Name:   model,
		Fields: make(map[string]restmed.FieldDescriptor, len(schema.Properties)+len(restmed.SystemFields)),
	}
	required := make(map[string]struct{}, len(schema.Required))
	for _, field := range schema.Required {
		required[field] = struct{}{}
	}
	for field, property := range schema.Properties {
		_, isRequired := required[field]
		entity.Fields[field] = descriptorFromProperty(property, isRequired)
	}
	// Storage-owned fields exist on every entity whether or not the schema
	// document declares them; without them sort=-created_at would not parse.
	entity.Fields[restmed.FieldID] = restmed.FieldDescriptor{Kind: restmed.FieldKindString}
	entity.Fields[restmed.FieldCreatedAt] = restmed.FieldDescriptor{Kind: restmed.FieldKindDate}
	entity.Fields[restmed.FieldUpdatedAt] = restmed.FieldDescriptor{Kind: restmed.FieldKindDate}

	r.schemas[model] = entity
	r.resolved[model] = resolved
	return nil
}

// descriptorFromProperty maps one JSON Schema property onto the flat field
// model the mediation layer works with.
func descriptorFromProperty(property *jsonschema.Schema, required bool) restmed.FieldDescriptor {
	desc := restmed.FieldDescriptor{Kind: restmed.FieldKindString, Nullable: !required}
	if property == nil {
		return desc
	}

	types := property.Types
	if property.Type != "" {
		types = append([]string{property.Type}, types...)
	}
	for _, typ := range types {
		switch typ {
		case "null":
			desc.Nullable = true
		case "integer", "number":
			desc.Kind = restmed.FieldKindInt
		case "boolean":
			desc.Kind = restmed.FieldKindBool
		case "string":
			if property.Format == "date-time" || property.Format == "date" {
				desc.Kind = restmed.FieldKindDate
			} else {
				desc.Kind = restmed.FieldKindString
			}
		}
	}
	return desc
}

// Schema returns the entity schema for the given model.
func (r *FileSchemaRegistry) Schema(name string) (restmed.EntitySchema, bool) {
	schema, ok := r.schemas[name]
	return schema, ok
}

// ListSchemas returns all registered model names in lexical order.
func (r *FileSchemaRegistry) ListSchemas() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateItem checks an item against the full resolved JSON Schema for the
// model, beyond the field-name checks the mediator performs. Unknown models
// validate vacuously; the mediator catches those earlier.
func (r *FileSchemaRegistry) ValidateItem(model string, item restmed.Item) *restmed.ApplicationError {
	resolved, ok := r.resolved[model]
	if !ok {
		return nil
	}
	payload := stripItem(item, restmed.SystemFields...)
	if err := resolved.Validate(map[string]any(payload)); err != nil {
		return restmed.NewValidationError(model, "", err.Error()).WithCause(err)
	}
	return nil
}
