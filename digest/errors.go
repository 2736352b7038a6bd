package digest

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when an artifact has no digest sidecar.
var ErrNotFound = errors.New("sha256 digest does not exist")

// MismatchError is returned by Compute in compare mode when the freshly
// computed digest differs from the persisted one. It is a distinct type
// so callers never confuse a corrupt artifact with a missing sidecar.
type MismatchError struct {
	Key      string
	Stored   string
	Computed string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("sha256 digest does not match for %s: stored %s, computed %s", e.Key, e.Stored, e.Computed)
}
