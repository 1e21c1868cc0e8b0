package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seaborne-data/restmed"
	"github.com/seaborne-data/restmed/factory"
)

// itemValidator is implemented by schema registries that can validate full
// payloads against their JSON Schema documents.
type itemValidator interface {
	ValidateItem(model string, item restmed.Item) *restmed.ApplicationError
}

// Server is the HTTP boundary over the assembled mediation layer.
type Server struct {
	mediation *factory.Mediation
	query     restmed.QueryConfig
	mux       *http.ServeMux
	logger    *zap.SugaredLogger
}

// NewServer creates a new Server instance.
func NewServer(mediation *factory.Mediation, query restmed.QueryConfig) *Server {
	return &Server{
		mediation: mediation,
		query:     query,
		mux:       http.NewServeMux(),
		logger:    zap.S(),
	}
}

// RegisterRoutes registers all API routes.
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/v1/", s.apiHandler)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"status": "ok",
		"models": s.mediation.Models(),
	})
}

// apiHandler routes /api/v1/{model}[/{id}[/{action}]] by shape and method.
func (s *Server) apiHandler(w http.ResponseWriter, r *http.Request) {
	model, id, action, err := parsePath(r.URL.Path)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.logger.Debugw("api request", "method", r.Method, "model", model, "id", id)

	if s.query.DefaultTimeout > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), s.query.DefaultTimeout)
		defer cancel()
		r = r.WithContext(ctx)
	}

	med, medErr := s.mediation.Mediator(model)
	if medErr != nil {
		writeAppError(w, medErr)
		return
	}

	switch {
	case id == "batch" && action == "":
		s.handleBatch(w, r, med)
	case id == "locks" && action == "":
		s.handleListLocks(w, r, model)
	case action == "lock":
		s.handleLock(w, r, model, id)
	case action != "":
		writeBadRequest(w, "invalid path format")
	case id != "":
		s.handleItem(w, r, med, id)
	default:
		s.handleCollection(w, r, med)
	}
}

// handleItem serves /api/v1/{model}/{id}.
func (s *Server) handleItem(w http.ResponseWriter, r *http.Request, med restmed.Mediator, id string) {
	switch r.Method {
	case http.MethodGet:
		_, include := splitQuery(r.URL.Query())
		item, err := med.GetOne(r.Context(), restmed.Item{restmed.FieldID: id}, include)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, item)

	case http.MethodPut, http.MethodPatch:
		var item restmed.Item
		if err := readJSONBody(r, &item); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		updated, err := med.UpdateOne(r.Context(), item, restmed.Item{restmed.FieldID: id})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, updated)

	case http.MethodDelete:
		deleted, err := med.DeleteOne(r.Context(), restmed.Item{restmed.FieldID: id})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, deleted)

	default:
		writeMethodNotAllowed(w)
	}
}

// handleCollection serves /api/v1/{model}.
func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request, med restmed.Mediator) {
	switch r.Method {
	case http.MethodGet:
		rawQuery, include := splitQuery(r.URL.Query())
		s.clampLimit(rawQuery)
		items, err := med.GetAll(r.Context(), rawQuery, nil, include)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if items == nil {
			items = []restmed.Item{}
		}
		writeSuccess(w, http.StatusOK, items)

	case http.MethodPost:
		var item restmed.Item
		if err := readJSONBody(r, &item); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		if err := s.validatePayload(med.ModelName(), item); err != nil {
			writeAppError(w, err)
			return
		}
		created, err := med.CreateOne(r.Context(), item)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, created)

	case http.MethodPatch:
		var item restmed.Item
		if err := readJSONBody(r, &item); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		rawQuery, _ := splitQuery(r.URL.Query())
		params := make(restmed.Item, len(rawQuery))
		for field, value := range rawQuery {
			params[field] = value
		}
		count, err := med.UpdateMany(r.Context(), item, params)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, map[string]int64{"updated": count})

	case http.MethodDelete:
		rawQuery, _ := splitQuery(r.URL.Query())
		count, err := med.DeleteAll(r.Context(), rawQuery, nil)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, map[string]int64{"deleted": count})

	default:
		writeMethodNotAllowed(w)
	}
}

// handleBatch serves POST /api/v1/{model}/batch.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request, med restmed.Mediator) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var payload restmed.BatchPayload
	if err := readJSONBody(r, &payload); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	result, err := med.Batch(r.Context(), payload, nil)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// handleListLocks serves GET /api/v1/{model}/locks.
func (s *Server) handleListLocks(w http.ResponseWriter, r *http.Request, model string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeSuccess(w, http.StatusOK, s.mediation.Locks.List(model))
}

// handleLock serves POST and DELETE /api/v1/{model}/{id}/lock. The owner
// comes from the X-Lock-Owner header on acquire; release needs the token
// issued at acquisition in X-Lock-Token.
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request, model, id string) {
	switch r.Method {
	case http.MethodPost:
		owner := r.Header.Get("X-Lock-Owner")
		if owner == "" {
			writeBadRequest(w, "X-Lock-Owner header is required")
			return
		}
		lock, err := s.mediation.Locks.Acquire(r.Context(), model, id, owner)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, lock)

	case http.MethodDelete:
		token := r.Header.Get("X-Lock-Token")
		if token == "" {
			writeBadRequest(w, "X-Lock-Token header is required")
			return
		}
		if err := s.mediation.Locks.Release(r.Context(), model, id, token); err != nil {
			writeAppError(w, err)
			return
		}
		writeSuccess(w, http.StatusNoContent, nil)

	default:
		writeMethodNotAllowed(w)
	}
}

// validatePayload runs full JSON Schema validation when the registry
// supports it. Field-level checks still happen inside the mediator.
func (s *Server) validatePayload(model string, item restmed.Item) error {
	validator, ok := s.mediation.Registry.(itemValidator)
	if !ok {
		return nil
	}
	if appErr := validator.ValidateItem(model, item); appErr != nil {
		return appErr
	}
	return nil
}

// clampLimit caps an over-large page size at the configured maximum. Values
// the parser would reject pass through untouched so the error surfaces there.
func (s *Server) clampLimit(rawQuery map[string]string) {
	if s.query.MaxLimit <= 0 {
		return
	}
	for key, value := range rawQuery {
		if !strings.EqualFold(key, "limit") {
			continue
		}
		if limit, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && limit > s.query.MaxLimit {
			rawQuery[key] = strconv.Itoa(s.query.MaxLimit)
		}
	}
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	appErr := restmed.NewValidationError("", "", "method not allowed")
	appErr.Status = http.StatusMethodNotAllowed
	writeAppError(w, appErr)
}
