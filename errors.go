package restmed

import (
	"fmt"
	"net/http"
)

// ErrorType is the category of an ApplicationError. The set is closed:
// clients match on it, so new categories are a breaking change.
type ErrorType string

const (
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeAuthorization  ErrorType = "authorization"
	ErrorTypeCollection     ErrorType = "collection"
	ErrorTypeDatabase       ErrorType = "database"
	ErrorTypeFiles          ErrorType = "files"
	ErrorTypeSystem         ErrorType = "system"
	ErrorTypeValidation     ErrorType = "validation"
)

// Stable numeric error ids. These are part of the public contract: clients
// match on them across versions, so existing values must never be reassigned.
const (
	ErrIDAuthentication        = 1000
	ErrIDAuthorization         = 1100
	ErrIDLockHeld              = 1101
	ErrIDErrorCollection       = 2000
	ErrIDBatch                 = 2001
	ErrIDDatabase              = 3000
	ErrIDItemNotFound          = 3001
	ErrIDConcurrency           = 3002
	ErrIDForeignKeyConstraint  = 3003
	ErrIDFile                  = 4000
	ErrIDSystem                = 5000
	ErrIDValidation            = 6000
	ErrIDMissingField          = 6001
	ErrIDFieldIncludeExclude   = 6002
	ErrIDLimit                 = 6003
	ErrIDOffset                = 6004
	ErrIDInvalidProperty       = 6005
	ErrIDMissingModelName      = 6006
)

// BatchErrorSet carries the per-list error sequences attached to a batch
// failure. All four lists are reported together so a caller can repair the
// whole request in one pass.
type BatchErrorSet struct {
	PropertyErrors []*ApplicationError `json:"propertyErrors,omitempty"`
	CreateErrors   []*ApplicationError `json:"createErrors,omitempty"`
	UpdateErrors   []*ApplicationError `json:"updateErrors,omitempty"`
	DeleteErrors   []*ApplicationError `json:"deleteErrors,omitempty"`
}

// Count returns the total number of accumulated errors across all lists.
func (s *BatchErrorSet) Count() int {
	if s == nil {
		return 0
	}
	return len(s.PropertyErrors) + len(s.CreateErrors) + len(s.UpdateErrors) + len(s.DeleteErrors)
}

// ApplicationError is the uniform failure value produced by the query parser,
// the mediator and the data access provider. Failures are returned, never
// panicked, and cross layer boundaries unchanged until the HTTP formatter
// turns them into a response.
type ApplicationError struct {
	ID      int       `json:"id"`
	Type    ErrorType `json:"type"`
	Name    string    `json:"name"`
	Message string    `json:"message"`
	// Status is a hint for the HTTP boundary; 0 means "no opinion" and the
	// boundary falls back to 500.
	Status int `json:"status,omitempty"`

	// Optional attached context, populated per error kind.
	Field  string              `json:"field,omitempty"`
	Model  string              `json:"model,omitempty"`
	Item   Item                `json:"item,omitempty"`   // concurrency conflicts: current stored item
	Errors []*ApplicationError `json:"errors,omitempty"` // error collections
	Batch  *BatchErrorSet      `json:"batch,omitempty"`  // batch failures

	Cause error `json:"-"`
}

func (e *ApplicationError) Error() string {
	switch {
	case e.Model != "" && e.Field != "":
		return fmt.Sprintf("[%d:%s] %s: %s (model %s, field %s)", e.ID, e.Type, e.Name, e.Message, e.Model, e.Field)
	case e.Model != "":
		return fmt.Sprintf("[%d:%s] %s: %s (model %s)", e.ID, e.Type, e.Name, e.Message, e.Model)
	case e.Field != "":
		return fmt.Sprintf("[%d:%s] %s: %s (field %s)", e.ID, e.Type, e.Name, e.Message, e.Field)
	default:
		return fmt.Sprintf("[%d:%s] %s: %s", e.ID, e.Type, e.Name, e.Message)
	}
}

func (e *ApplicationError) Unwrap() error {
	return e.Cause
}

// WithCause attaches an underlying error and returns the receiver.
func (e *ApplicationError) WithCause(cause error) *ApplicationError {
	e.Cause = cause
	return e
}

// WithModel attaches the entity name and returns the receiver.
func (e *ApplicationError) WithModel(model string) *ApplicationError {
	e.Model = model
	return e
}

// ============================================================================
// Constructors
// ============================================================================

// NewAuthenticationError reports a missing or unverifiable identity.
func NewAuthenticationError(message string) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDAuthentication,
		Type:    ErrorTypeAuthentication,
		Name:    "AuthenticationError",
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// NewAuthorizationError reports an identity that lacks permission.
func NewAuthorizationError(message string) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDAuthorization,
		Type:    ErrorTypeAuthorization,
		Name:    "AuthorizationError",
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// NewLockHeldError reports an advisory lock currently owned by someone else.
func NewLockHeldError(model, itemID, owner string) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDLockHeld,
		Type:    ErrorTypeAuthorization,
		Name:    "LockHeldError",
		Message: fmt.Sprintf("item %s is locked by %s", itemID, owner),
		Status:  http.StatusLocked,
		Model:   model,
		Field:   itemID,
	}
}

// NewMissingFieldError reports a field name that does not exist in the
// entity schema.
func NewMissingFieldError(model, field string) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDMissingField,
		Type:    ErrorTypeValidation,
		Name:    "MissingFieldError",
		Message: fmt.Sprintf("field '%s' does not exist on model '%s'", field, model),
		Status:  http.StatusBadRequest,
		Field:   field,
		Model:   model,
	}
}

// NewFieldIncludeExcludeError reports a fields selection that mixes
// inclusions and exclusions in one request.
func NewFieldIncludeExcludeError(model string) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDFieldIncludeExclude,
		Type:    ErrorTypeValidation,
		Name:    "FieldIncludeExcludeError",
		Message: "fields cannot mix included and excluded names",
		Status:  http.StatusBadRequest,
		Model:   model,
	}
}

// NewLimitError reports a limit value that is not a positive integer.
func NewLimitError(raw string) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDLimit,
		Type:    ErrorTypeValidation,
		Name:    "LimitError",
		Message: fmt.Sprintf("limit must be a positive integer, got '%s'", raw),
		Status:  http.StatusBadRequest,
	}
}

// NewOffsetError reports an offset value that is not a non-negative integer.
func NewOffsetError(raw string) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDOffset,
		Type:    ErrorTypeValidation,
		Name:    "OffsetError",
		Message: fmt.Sprintf("offset must be a non-negative integer, got '%s'", raw),
		Status:  http.StatusBadRequest,
	}
}

// NewInvalidPropertyError reports an unknown top-level key in a batch payload.
func NewInvalidPropertyError(property string) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDInvalidProperty,
		Type:    ErrorTypeValidation,
		Name:    "InvalidPropertyError",
		Message: fmt.Sprintf("unknown property '%s'", property),
		Status:  http.StatusBadRequest,
		Field:   property,
	}
}

// NewMissingModelNameError reports a mediator constructed for an empty or
// unregistered model name.
func NewMissingModelNameError(model string) *ApplicationError {
	msg := "model name is required"
	if model != "" {
		msg = fmt.Sprintf("model '%s' is not registered", model)
	}
	return &ApplicationError{
		ID:      ErrIDMissingModelName,
		Type:    ErrorTypeValidation,
		Name:    "MissingModelNameError",
		Message: msg,
		Status:  http.StatusBadRequest,
		Model:   model,
	}
}

// NewValidationError reports a schema violation for a single field.
func NewValidationError(model, field, message string) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDValidation,
		Type:    ErrorTypeValidation,
		Name:    "ValidationError",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Field:   field,
		Model:   model,
	}
}

// NewItemNotFoundError reports a lookup, update or delete that matched no row.
func NewItemNotFoundError(model string, id any) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDItemNotFound,
		Type:    ErrorTypeDatabase,
		Name:    "ItemNotFoundError",
		Message: fmt.Sprintf("item '%v' not found for model '%s'", id, model),
		Status:  http.StatusNotFound,
		Field:   fmt.Sprintf("%v", id),
		Model:   model,
	}
}

// NewConcurrencyError reports a stale update. The current stored item is
// attached so the caller can merge and retry.
func NewConcurrencyError(model string, current Item) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDConcurrency,
		Type:    ErrorTypeDatabase,
		Name:    "ConcurrencyError",
		Message: "item was updated by someone else since it was read",
		Status:  http.StatusConflict,
		Model:   model,
		Item:    current,
	}
}

// NewDatabaseError wraps a storage failure that has no more specific shape.
func NewDatabaseError(message string, cause error) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDDatabase,
		Type:    ErrorTypeDatabase,
		Name:    "DatabaseError",
		Message: message,
		Status:  http.StatusInternalServerError,
		Cause:   cause,
	}
}

// NewForeignKeyConstraintError reports a referential-integrity conflict.
func NewForeignKeyConstraintError(message string, cause error) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDForeignKeyConstraint,
		Type:    ErrorTypeDatabase,
		Name:    "ForeignKeyConstraintError",
		Message: message,
		Status:  http.StatusConflict,
		Cause:   cause,
	}
}

// NewFileError reports a failure reading or parsing an on-disk artifact,
// typically a schema document.
func NewFileError(message string, cause error) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDFile,
		Type:    ErrorTypeFiles,
		Name:    "FileError",
		Message: message,
		Status:  http.StatusInternalServerError,
		Cause:   cause,
	}
}

// NewSystemError wraps anything that escaped the taxonomy.
func NewSystemError(message string, cause error) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDSystem,
		Type:    ErrorTypeSystem,
		Name:    "SystemError",
		Message: message,
		Status:  http.StatusInternalServerError,
		Cause:   cause,
	}
}

// NewBatchError reports a failed batch call with every accumulated sub-error.
func NewBatchError(model string, set *BatchErrorSet) *ApplicationError {
	return &ApplicationError{
		ID:      ErrIDBatch,
		Type:    ErrorTypeCollection,
		Name:    "BatchError",
		Message: fmt.Sprintf("batch operation failed with %d errors", set.Count()),
		Status:  http.StatusBadRequest,
		Model:   model,
		Batch:   set,
	}
}

// NewErrorCollection bundles several errors into one. A collection of exactly
// one collapses to the contained error itself; callers rely on this and must
// not special-case "collection of one". Nil is returned for an empty list.
func NewErrorCollection(errs []*ApplicationError) *ApplicationError {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return &ApplicationError{
		ID:      ErrIDErrorCollection,
		Type:    ErrorTypeCollection,
		Name:    "ErrorCollection",
		Message: fmt.Sprintf("%d errors occurred", len(errs)),
		Status:  errs[0].Status,
		Errors:  errs,
	}
}

// ============================================================================
// Checking utilities
// ============================================================================

// AsApplicationError extracts an *ApplicationError from err, or wraps err in
// a SystemError when it carries no taxonomy shape.
func AsApplicationError(err error) *ApplicationError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*ApplicationError); ok {
		return appErr
	}
	return NewSystemError("internal error", err)
}

// IsItemNotFoundError checks if an error is an item not found error.
func IsItemNotFoundError(err error) bool {
	if appErr, ok := err.(*ApplicationError); ok {
		return appErr.ID == ErrIDItemNotFound
	}
	return false
}

// IsConcurrencyError checks if an error is a concurrency conflict.
func IsConcurrencyError(err error) bool {
	if appErr, ok := err.(*ApplicationError); ok {
		return appErr.ID == ErrIDConcurrency
	}
	return false
}

// IsValidationError checks if an error belongs to the validation category.
func IsValidationError(err error) bool {
	if appErr, ok := err.(*ApplicationError); ok {
		return appErr.Type == ErrorTypeValidation
	}
	return false
}

// IsBatchError checks if an error is a batch failure.
func IsBatchError(err error) bool {
	if appErr, ok := err.(*ApplicationError); ok {
		return appErr.ID == ErrIDBatch
	}
	return false
}
