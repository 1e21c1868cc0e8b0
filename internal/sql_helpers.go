package internal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/seaborne-data/restmed"
)

// sanitizeIdentifier quotes a table or column name for safe interpolation.
// Field names are additionally validated against the schema before they get
// here; this is the second line of defense.
func sanitizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.Trim(part, " \"")
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}
	if len(clean) == 0 {
		clean = []string{name}
	}
	return pgx.Identifier(clean).Sanitize()
}

// sortedKeys returns the map keys in lexical order so generated SQL is
// deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// buildWhereClause renders "field = $n AND ..." for the given criteria in
// lexical field order, starting parameter numbering at startIndex.
func buildWhereClause(criteria map[string]any, startIndex int) (string, []any) {
	if len(criteria) == 0 {
		return "", nil
	}
	conditions := make([]string, 0, len(criteria))
	args := make([]any, 0, len(criteria))
	idx := startIndex
	for _, field := range sortedKeys(criteria) {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", sanitizeIdentifier(field), idx))
		args = append(args, criteria[field])
		idx++
	}
	return strings.Join(conditions, " AND "), args
}

// selectColumns renders the projected column list for a query. Inclusion
// wins over exclusion; with no selection every schema column is fetched.
func selectColumns(schema restmed.EntitySchema, selection *restmed.AttributeSelection) string {
	if selection == nil {
		return "*"
	}
	var fields []string
	switch {
	case len(selection.Include) > 0:
		fields = selection.Include
	case len(selection.Exclude) > 0:
		excluded := make(map[string]struct{}, len(selection.Exclude))
		for _, field := range selection.Exclude {
			excluded[field] = struct{}{}
		}
		for _, field := range schema.FieldNames() {
			if _, skip := excluded[field]; !skip {
				fields = append(fields, field)
			}
		}
		sort.Strings(fields)
	default:
		return "*"
	}
	quoted := make([]string, 0, len(fields))
	for _, field := range fields {
		quoted = append(quoted, sanitizeIdentifier(field))
	}
	return strings.Join(quoted, ", ")
}

// orderByClause renders the ORDER BY clause, or "" when no order was asked.
func orderByClause(order []restmed.OrderBy) string {
	if len(order) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(order))
	for _, entry := range order {
		direction := "ASC"
		if entry.Direction == restmed.SortDesc {
			direction = "DESC"
		}
		clauses = append(clauses, sanitizeIdentifier(entry.Field)+" "+direction)
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

// coerceValue converts a loosely-typed value into one bindable against a
// column of the given kind. Unparseable values pass through unchanged and
// surface as a database error instead of being silently dropped.
func coerceValue(desc restmed.FieldDescriptor, value any) any {
	if value == nil {
		return nil
	}
	switch desc.Kind {
	case restmed.FieldKindInt:
		switch v := value.(type) {
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n
			}
		case float64:
			return int64(v)
		}
	case restmed.FieldKindBool:
		if v, ok := value.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b
			}
		}
	case restmed.FieldKindDate:
		if parsed, ok := coerceTime(value); ok {
			return parsed
		}
	}
	return value
}

// coerceCriteria applies per-kind coercion to every criteria value the
// schema knows about.
func coerceCriteria(schema restmed.EntitySchema, criteria map[string]any) map[string]any {
	coerced := make(map[string]any, len(criteria))
	for field, value := range criteria {
		if desc, ok := schema.Field(field); ok {
			coerced[field] = coerceValue(desc, value)
		} else {
			coerced[field] = value
		}
	}
	return coerced
}
