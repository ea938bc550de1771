package config

import (
	"errors"
	"fmt"
)

// ErrCatalogEmpty is returned when a catalog file declares zero models.
var ErrCatalogEmpty = errors.New("catalog: no models declared")

// ErrNoCatalogFile is returned when neither expected catalog filename is
// present, or both are (the loader must read exactly one).
var ErrNoCatalogFile = errors.New("catalog: expected exactly one of models.yaml or models.json")

// ValidationError reports a single field-level catalog problem. Mirrors
// tarsy's pkg/config ValidationError / pkg/services ValidationError shape.
type ValidationError struct {
	ModelID string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.ModelID == "" {
		return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error on model %q field %q: %s", e.ModelID, e.Field, e.Message)
}

func newValidationError(modelID, field, message string) error {
	return &ValidationError{ModelID: modelID, Field: field, Message: message}
}
