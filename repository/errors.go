package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the boundary has no post for an id.
	ErrNotFound = errors.New("post not found")

	// ErrInvalidPage is returned for a non-positive page or limit.
	ErrInvalidPage = errors.New("page and limit must be positive")
)

// MutationError wraps a failed createPost. The optimistic placeholder has
// already been rolled back when it is returned.
type MutationError struct {
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("create post: %v", e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// IsMutationError reports whether err came from a failed creation.
func IsMutationError(err error) bool {
	var me *MutationError
	return errors.As(err, &me)
}
