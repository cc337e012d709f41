package registry

import (
	"fmt"

	"github.com/itsneelabh/capflow/core"
)

// DuplicateNameError is returned when a live registration already uses Name.
// It matches core.ErrDuplicateName with errors.Is.
type DuplicateNameError struct {
	Name     string
	Existing ComponentType
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("component '%s' is already registered (as %s)", e.Name, e.Existing)
}

func (e *DuplicateNameError) Unwrap() error {
	return core.ErrDuplicateName
}
