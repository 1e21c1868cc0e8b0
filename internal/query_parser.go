package internal

import (
	"strconv"
	"strings"

	"github.com/seaborne-data/restmed"
)

// Reserved query keys, matched case-insensitively. Every other key is an
// equality filter on an entity field.
const (
	queryKeyFields = "fields"
	queryKeySort   = "sort"
	queryKeyLimit  = "limit"
	queryKeyOffset = "offset"
)

// ParseQuery converts a raw query map into typed options validated against
// the schema. Errors accompany the partial options rather than replacing
// them; Where is populated only when no error occurred, and callers must
// treat a non-empty error list as a hard failure for the whole operation.
func ParseQuery(rawQuery map[string]string, schema restmed.EntitySchema) (restmed.QueryOptions, []*restmed.ApplicationError) {
	opts := restmed.QueryOptions{}
	var errs []*restmed.ApplicationError
	remaining := make(map[string]string)

	// Keys are visited in sorted order so that two spellings of the same
	// reserved key resolve deterministically (the later spelling wins).
	for _, key := range sortedKeys(rawQuery) {
		value := rawQuery[key]
		switch strings.ToLower(key) {
		case queryKeyFields:
			selection, fieldErrs := parseFields(value, schema)
			opts.Attributes = selection
			errs = append(errs, fieldErrs...)
		case queryKeySort:
			order, sortErrs := parseSort(value, schema)
			opts.Order = order
			errs = append(errs, sortErrs...)
		case queryKeyLimit:
			limit, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || limit < 1 {
				errs = append(errs, restmed.NewLimitError(value))
				continue
			}
			opts.Limit = &limit
		case queryKeyOffset:
			offset, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || offset < 0 {
				errs = append(errs, restmed.NewOffsetError(value))
				continue
			}
			opts.Offset = &offset
		default:
			if !schema.HasField(key) {
				errs = append(errs, restmed.NewMissingFieldError(schema.Name, key))
				continue
			}
			remaining[key] = value
		}
	}

	if len(errs) == 0 && len(remaining) > 0 {
		opts.Where = remaining
	}
	return opts, errs
}

// parseFields splits a comma-separated fields selection into inclusion and
// exclusion lists. Mixing both is an error on top of any field-existence
// errors, and inclusion semantics win when both lists are non-empty.
func parseFields(value string, schema restmed.EntitySchema) (*restmed.AttributeSelection, []*restmed.ApplicationError) {
	var include, exclude []string
	var errs []*restmed.ApplicationError

	for _, name := range splitList(value) {
		excluded := strings.HasPrefix(name, "-")
		field := strings.TrimPrefix(name, "-")
		if !schema.HasField(field) {
			errs = append(errs, restmed.NewMissingFieldError(schema.Name, field))
			continue
		}
		if excluded {
			exclude = append(exclude, field)
		} else {
			include = append(include, field)
		}
	}

	if len(include) > 0 && len(exclude) > 0 {
		errs = append(errs, restmed.NewFieldIncludeExcludeError(schema.Name))
		exclude = nil
	}
	if len(include) == 0 && len(exclude) == 0 {
		return nil, errs
	}
	return &restmed.AttributeSelection{Include: include, Exclude: exclude}, errs
}

// parseSort splits a comma-separated sort specification. A "-" prefix sorts
// descending, a "+" prefix or no prefix sorts ascending. Unknown fields are
// reported and contribute no order entry.
func parseSort(value string, schema restmed.EntitySchema) ([]restmed.OrderBy, []*restmed.ApplicationError) {
	var order []restmed.OrderBy
	var errs []*restmed.ApplicationError

	for _, name := range splitList(value) {
		direction := restmed.SortAsc
		field := name
		switch {
		case strings.HasPrefix(name, "-"):
			direction = restmed.SortDesc
			field = strings.TrimPrefix(name, "-")
		case strings.HasPrefix(name, "+"):
			field = strings.TrimPrefix(name, "+")
		}
		if !schema.HasField(field) {
			errs = append(errs, restmed.NewMissingFieldError(schema.Name, field))
			continue
		}
		order = append(order, restmed.OrderBy{Field: field, Direction: direction})
	}
	return order, errs
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}
	return clean
}
