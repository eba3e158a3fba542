package voicecontrol

import (
	"errors"
	"fmt"
)

var (
	ErrReleased = errors.New("measure already released")
)

// ParentNotFoundError is logged when a child names a parent that is not registered in its scope.
type ParentNotFoundError struct {
	Name string
}

func (e *ParentNotFoundError) Error() string {
	return fmt.Sprintf("couldn't find Parent measure '%s'", e.Name)
}
