package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaborne-data/restmed"
)

func parserSchema() restmed.EntitySchema {
	return restmed.EntitySchema{
		Name: "task",
		Fields: map[string]restmed.FieldDescriptor{
			"id":         {Kind: restmed.FieldKindString},
			"title":      {Kind: restmed.FieldKindString},
			"done":       {Kind: restmed.FieldKindBool},
			"priority":   {Kind: restmed.FieldKindInt, Nullable: true},
			"created_at": {Kind: restmed.FieldKindDate},
			"updated_at": {Kind: restmed.FieldKindDate},
		},
	}
}

func errorIDs(errs []*restmed.ApplicationError) []int {
	ids := make([]int, 0, len(errs))
	for _, err := range errs {
		ids = append(ids, err.ID)
	}
	return ids
}

func TestParseQueryEmpty(t *testing.T) {
	opts, errs := ParseQuery(map[string]string{}, parserSchema())
	assert.Empty(t, errs)
	assert.Equal(t, restmed.QueryOptions{}, opts)
}

func TestParseQueryFieldsInclusion(t *testing.T) {
	opts, errs := ParseQuery(map[string]string{"fields": "title,done"}, parserSchema())
	require.Empty(t, errs)
	require.NotNil(t, opts.Attributes)
	assert.Equal(t, []string{"title", "done"}, opts.Attributes.Include)
	assert.Empty(t, opts.Attributes.Exclude)
}

func TestParseQueryFieldsExclusion(t *testing.T) {
	opts, errs := ParseQuery(map[string]string{"fields": "-done,-priority"}, parserSchema())
	require.Empty(t, errs)
	require.NotNil(t, opts.Attributes)
	assert.Equal(t, []string{"done", "priority"}, opts.Attributes.Exclude)
}

func TestParseQueryFieldsMixedIncludeExclude(t *testing.T) {
	opts, errs := ParseQuery(map[string]string{"fields": "title,-done"}, parserSchema())
	require.Contains(t, errorIDs(errs), restmed.ErrIDFieldIncludeExclude)
	// inclusion semantics win on the produced options
	require.NotNil(t, opts.Attributes)
	assert.Equal(t, []string{"title"}, opts.Attributes.Include)
	assert.Empty(t, opts.Attributes.Exclude)
}

func TestParseQueryFieldsMixedStillValidatesEachName(t *testing.T) {
	_, errs := ParseQuery(map[string]string{"fields": "bogus,-ghost"}, parserSchema())
	ids := errorIDs(errs)
	assert.Equal(t, 2, countOf(ids, restmed.ErrIDMissingField),
		"both names must be validated independently")
}

func countOf(ids []int, want int) int {
	n := 0
	for _, id := range ids {
		if id == want {
			n++
		}
	}
	return n
}

func TestParseQueryFieldsUnknownField(t *testing.T) {
	_, errs := ParseQuery(map[string]string{"fields": "bogus"}, parserSchema())
	require.Len(t, errs, 1)
	assert.Equal(t, restmed.ErrIDMissingField, errs[0].ID)
	assert.Equal(t, "bogus", errs[0].Field)
	assert.Equal(t, "task", errs[0].Model)
}

func TestParseQuerySort(t *testing.T) {
	opts, errs := ParseQuery(map[string]string{"sort": "title,-created_at,+priority"}, parserSchema())
	require.Empty(t, errs)
	assert.Equal(t, []restmed.OrderBy{
		{Field: "title", Direction: restmed.SortAsc},
		{Field: "created_at", Direction: restmed.SortDesc},
		{Field: "priority", Direction: restmed.SortAsc},
	}, opts.Order)
}

func TestParseQuerySortUnknownField(t *testing.T) {
	opts, errs := ParseQuery(map[string]string{"sort": "bogus,title"}, parserSchema())
	require.Len(t, errs, 1)
	assert.Equal(t, restmed.ErrIDMissingField, errs[0].ID)
	// no order entry for the unknown field
	assert.Equal(t, []restmed.OrderBy{{Field: "title", Direction: restmed.SortAsc}}, opts.Order)
}

func TestParseQueryLimit(t *testing.T) {
	for _, raw := range []string{"0", "-1", "abc", "1.5"} {
		_, errs := ParseQuery(map[string]string{"limit": raw}, parserSchema())
		require.Len(t, errs, 1, "limit=%s", raw)
		assert.Equal(t, restmed.ErrIDLimit, errs[0].ID, "limit=%s", raw)
	}

	opts, errs := ParseQuery(map[string]string{"limit": "5"}, parserSchema())
	require.Empty(t, errs)
	require.NotNil(t, opts.Limit)
	assert.Equal(t, 5, *opts.Limit)
}

func TestParseQueryOffset(t *testing.T) {
	_, errs := ParseQuery(map[string]string{"offset": "-1"}, parserSchema())
	require.Len(t, errs, 1)
	assert.Equal(t, restmed.ErrIDOffset, errs[0].ID)

	opts, errs := ParseQuery(map[string]string{"offset": "0"}, parserSchema())
	require.Empty(t, errs)
	require.NotNil(t, opts.Offset)
	assert.Equal(t, 0, *opts.Offset)
}

func TestParseQueryReservedKeysCaseInsensitive(t *testing.T) {
	opts, errs := ParseQuery(map[string]string{"LIMIT": "3", "Sort": "title"}, parserSchema())
	require.Empty(t, errs)
	require.NotNil(t, opts.Limit)
	assert.Equal(t, 3, *opts.Limit)
	assert.Len(t, opts.Order, 1)
}

func TestParseQueryDuplicateReservedSpellings(t *testing.T) {
	// Keys are visited in sorted order, so the lexically later spelling
	// decides regardless of map iteration order.
	for i := 0; i < 10; i++ {
		opts, errs := ParseQuery(map[string]string{"LIMIT": "9", "limit": "5"}, parserSchema())
		require.Empty(t, errs)
		require.NotNil(t, opts.Limit)
		assert.Equal(t, 5, *opts.Limit)
	}
}

func TestParseQueryWhereFilters(t *testing.T) {
	opts, errs := ParseQuery(map[string]string{"done": "true", "title": "write docs"}, parserSchema())
	require.Empty(t, errs)
	// raw values pass through unmodified
	assert.Equal(t, map[string]string{"done": "true", "title": "write docs"}, opts.Where)
}

func TestParseQueryWhereUnsetOnAnyError(t *testing.T) {
	opts, errs := ParseQuery(map[string]string{"done": "true", "limit": "nope"}, parserSchema())
	require.NotEmpty(t, errs)
	assert.Nil(t, opts.Where, "where must stay unset when any error was reported")
}

func TestParseQueryUnknownFilterField(t *testing.T) {
	opts, errs := ParseQuery(map[string]string{"ghost": "1"}, parserSchema())
	require.Len(t, errs, 1)
	assert.Equal(t, restmed.ErrIDMissingField, errs[0].ID)
	assert.Equal(t, "ghost", errs[0].Field)
	assert.Nil(t, opts.Where)
}
