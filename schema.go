package restmed

// FieldKind enumerates the basic value kinds a schema field can declare.
type FieldKind string

const (
	FieldKindInt    FieldKind = "int"
	FieldKindString FieldKind = "string"
	FieldKindBool   FieldKind = "bool"
	FieldKindDate   FieldKind = "date"
)

// System field names present on every entity. They are owned by the storage
// layer: caller-supplied values for them are stripped on every write path.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// SystemFields lists the storage-owned fields in a stable order.
var SystemFields = []string{FieldID, FieldCreatedAt, FieldUpdatedAt}

// FieldDescriptor describes one schema field.
type FieldDescriptor struct {
	Kind     FieldKind `json:"kind"`
	Nullable bool      `json:"nullable"`
}

// EntitySchema is the immutable description of one entity: its name and the
// set of valid field names. Loaded once at startup and read-only thereafter.
type EntitySchema struct {
	Name   string
	Fields map[string]FieldDescriptor
}

// Field looks up a field descriptor by name. Lookup never fails loudly; the
// second return reports existence.
func (s EntitySchema) Field(name string) (FieldDescriptor, bool) {
	desc, ok := s.Fields[name]
	return desc, ok
}

// HasField reports whether the schema declares the given field.
func (s EntitySchema) HasField(name string) bool {
	_, ok := s.Fields[name]
	return ok
}

// FieldNames returns all declared field names. Order is non-deterministic.
func (s EntitySchema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	return names
}

// SchemaRegistry provides entity schema lookup. Implementations load schemas
// from files, object storage or other sources at process start; the mediation
// layer only reads them.
type SchemaRegistry interface {
	// Schema returns the schema for the given entity name. The second return
	// reports whether the entity is registered.
	Schema(name string) (EntitySchema, bool)
	// ListSchemas returns the names of all registered entities.
	ListSchemas() []string
}
