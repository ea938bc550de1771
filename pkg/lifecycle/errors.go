package lifecycle

import "errors"

// ErrNotInitialized is returned by List when the catalog declares no
// models.
var ErrNotInitialized = errors.New("lifecycle: catalog is empty")

// ErrNotFound is returned by Get/Start/Stop for an unknown runtime id.
type ErrNotFound struct{ ID string }

func (e *ErrNotFound) Error() string {
	return "lifecycle: model " + e.ID + " not found"
}
