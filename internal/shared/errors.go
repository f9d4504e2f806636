package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidStatus marks an action that the current document status does not allow.
	ErrInvalidStatus = errors.New("invalid status transition")
	// ErrInsufficientStock marks a sales order whose lines exceed available stock.
	ErrInsufficientStock = errors.New("insufficient_stock")
	// ErrDuplicate indicates a natural key already taken.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrForbidden indicates the principal may not perform the request.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError carries field-keyed messages for client-facing 400 responses.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns a ValidationError holding a single field message.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// Add records a message for field; the first message per field wins.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

// Merge copies fields from other under the given prefix.
func (e *ValidationError) Merge(prefix string, other *ValidationError) {
	if other == nil {
		return
	}
	for field, msg := range other.Fields {
		if prefix != "" {
			field = prefix + "." + field
		}
		e.Add(field, msg)
	}
}

// Empty reports whether no field messages were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Err returns e as an error, or nil when no field failed.
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IllegalTransitionError reports an action outside the allowed set of the current status.
type IllegalTransitionError struct {
	Document string
	Action   string
	Status   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("Action %s not allowed in %s state", e.Action, e.Status)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrInvalidStatus }

// StockShortfall describes one under-stocked sales order line.
type StockShortfall struct {
	ProductID int64 `json:"product"`
	Required  int   `json:"required"`
	Available int   `json:"available"`
}

// InsufficientStockError lists every line that cannot be served from stock.
type InsufficientStockError struct {
	Lines []StockShortfall
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s: %d line(s) short", ErrInsufficientStock.Error(), len(e.Lines))
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
