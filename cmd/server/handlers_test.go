package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaborne-data/restmed"
	"github.com/seaborne-data/restmed/factory"
	"github.com/seaborne-data/restmed/internal"
)

// memProvider is a minimal in-memory data provider for handler tests.
type memProvider struct {
	rows   []restmed.Item
	nextID int
}

func (p *memProvider) match(row, criteria restmed.Item) bool {
	for field, want := range criteria {
		if fmt.Sprint(row[field]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func (p *memProvider) Create(_ context.Context, _ string, item restmed.Item, _ restmed.Tx) (restmed.Item, error) {
	p.nextID++
	row := restmed.Item{
		restmed.FieldID:        fmt.Sprintf("row-%d", p.nextID),
		restmed.FieldCreatedAt: time.Now().UTC(),
		restmed.FieldUpdatedAt: time.Now().UTC(),
	}
	for field, value := range item {
		row[field] = value
	}
	p.rows = append(p.rows, row)
	return row, nil
}

func (p *memProvider) Find(_ context.Context, _ string, criteria restmed.Item, _ []string, _ restmed.Tx) (restmed.Item, error) {
	for _, row := range p.rows {
		if p.match(row, criteria) {
			return row, nil
		}
	}
	return nil, nil
}

func (p *memProvider) FindAll(_ context.Context, _ string, opts restmed.QueryOptions, _ []string) ([]restmed.Item, error) {
	criteria := restmed.Item{}
	for field, value := range opts.Where {
		criteria[field] = value
	}
	var found []restmed.Item
	for _, row := range p.rows {
		if p.match(row, criteria) {
			found = append(found, row)
		}
	}
	return found, nil
}

func (p *memProvider) Update(_ context.Context, _ string, patch restmed.Item, criteria restmed.Item, _ restmed.Tx) (int64, error) {
	var count int64
	for _, row := range p.rows {
		if p.match(row, criteria) {
			for field, value := range patch {
				row[field] = value
			}
			count++
		}
	}
	return count, nil
}

func (p *memProvider) Destroy(_ context.Context, _ string, criteria restmed.Item, _ restmed.Tx) (int64, error) {
	var count int64
	kept := p.rows[:0]
	for _, row := range p.rows {
		if p.match(row, criteria) {
			count++
			continue
		}
		kept = append(kept, row)
	}
	p.rows = kept
	return count, nil
}

func (p *memProvider) BeginTx(context.Context) (restmed.Tx, error) { return noopTx{}, nil }

type noopTx struct{}

func (noopTx) Commit(context.Context) error   { return nil }
func (noopTx) Rollback(context.Context) error { return nil }

func newTestServer(t *testing.T) (*Server, *memProvider) {
	t.Helper()
	registry, err := internal.NewSchemaRegistryFromDocuments(map[string][]byte{
		"employee": []byte(`{
			"type": "object",
			"properties": {
				"name": {"type": "string"},
				"age": {"type": "integer"}
			},
			"required": ["name"]
		}`),
	})
	require.NoError(t, err)

	provider := &memProvider{}
	cfg := restmed.DefaultConfig()
	mediation, err := factory.NewMediationWithComponents(cfg, registry, provider)
	require.NoError(t, err)

	server := NewServer(mediation, cfg.Query)
	server.RegisterRoutes()
	return server, provider
}

func doRequest(server *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	server.mux.ServeHTTP(recorder, req)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) *restmed.ApplicationError {
	t.Helper()
	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	return envelope.Error
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := doRequest(server, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "employee")
}

func TestCreateReturnsGeneratedFieldsOnly(t *testing.T) {
	server, provider := newTestServer(t)

	recorder := doRequest(server, http.MethodPost, "/api/v1/employee", `{"name":"ada","age":36}`, nil)
	require.Equal(t, http.StatusCreated, recorder.Code)

	var created restmed.Item
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))
	assert.Contains(t, created, "id")
	assert.Contains(t, created, "created_at")
	assert.NotContains(t, created, "name")
	require.Len(t, provider.rows, 1)
	assert.Equal(t, "ada", provider.rows[0]["name"])
}

func TestCreateSchemaValidationFailure(t *testing.T) {
	server, provider := newTestServer(t)

	// "name" is required by the JSON Schema document.
	recorder := doRequest(server, http.MethodPost, "/api/v1/employee", `{"age":36}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Equal(t, restmed.ErrIDValidation, decodeError(t, recorder).ID)
	assert.Empty(t, provider.rows)
}

func TestUnknownModelRejected(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := doRequest(server, http.MethodGet, "/api/v1/ghost", "", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, restmed.ErrIDMissingModelName, decodeError(t, recorder).ID)
}

func TestGetOneNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := doRequest(server, http.MethodGet, "/api/v1/employee/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, restmed.ErrIDItemNotFound, decodeError(t, recorder).ID)
}

func TestGetAllInvalidLimit(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := doRequest(server, http.MethodGet, "/api/v1/employee?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, restmed.ErrIDLimit, decodeError(t, recorder).ID)
}

func TestClampLimit(t *testing.T) {
	server, _ := newTestServer(t)

	rawQuery := map[string]string{"limit": "5000", "name": "ada"}
	server.clampLimit(rawQuery)
	assert.Equal(t, "1000", rawQuery["limit"])
	assert.Equal(t, "ada", rawQuery["name"])

	rawQuery = map[string]string{"limit": "abc"}
	server.clampLimit(rawQuery)
	assert.Equal(t, "abc", rawQuery["limit"])
}

func TestUpdateAndDeleteRoundTrip(t *testing.T) {
	server, provider := newTestServer(t)

	create := doRequest(server, http.MethodPost, "/api/v1/employee", `{"name":"ada"}`, nil)
	require.Equal(t, http.StatusCreated, create.Code)
	id := fmt.Sprint(provider.rows[0][restmed.FieldID])

	update := doRequest(server, http.MethodPatch, "/api/v1/employee/"+id, `{"name":"lovelace"}`, nil)
	require.Equal(t, http.StatusOK, update.Code)
	assert.Equal(t, "lovelace", provider.rows[0]["name"])

	del := doRequest(server, http.MethodDelete, "/api/v1/employee/"+id, "", nil)
	require.Equal(t, http.StatusOK, del.Code)
	assert.Empty(t, provider.rows)
}

func TestBatchRejectsUnknownProperty(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := doRequest(server, http.MethodPost, "/api/v1/employee/batch",
		`{"upsertItems":[{"name":"ada"}]}`, nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	appErr := decodeError(t, recorder)
	assert.Equal(t, restmed.ErrIDBatch, appErr.ID)
	require.NotNil(t, appErr.Batch)
	assert.Len(t, appErr.Batch.PropertyErrors, 1)
}

func TestBatchExecutes(t *testing.T) {
	server, provider := newTestServer(t)

	recorder := doRequest(server, http.MethodPost, "/api/v1/employee/batch",
		`{"createItems":[{"name":"ada"},{"name":"grace"}]}`, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var result restmed.BatchResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Len(t, result.CreateResults, 2)
	assert.Len(t, provider.rows, 2)
}

func TestLockLifecycle(t *testing.T) {
	server, _ := newTestServer(t)

	acquire := doRequest(server, http.MethodPost, "/api/v1/employee/row-1/lock", "",
		map[string]string{"X-Lock-Owner": "alice"})
	require.Equal(t, http.StatusOK, acquire.Code)

	var lock restmed.Lock
	require.NoError(t, json.Unmarshal(acquire.Body.Bytes(), &lock))
	assert.Equal(t, "alice", lock.Owner)
	assert.NotEmpty(t, lock.Token)

	conflict := doRequest(server, http.MethodPost, "/api/v1/employee/row-1/lock", "",
		map[string]string{"X-Lock-Owner": "bob"})
	assert.Equal(t, http.StatusLocked, conflict.Code)

	list := doRequest(server, http.MethodGet, "/api/v1/employee/locks", "", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var locks []restmed.Lock
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &locks))
	require.Len(t, locks, 1)

	release := doRequest(server, http.MethodDelete, "/api/v1/employee/row-1/lock", "",
		map[string]string{"X-Lock-Token": lock.Token})
	assert.Equal(t, http.StatusNoContent, release.Code)
}
