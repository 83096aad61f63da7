package placement

import (
	"errors"
	"fmt"
)

var (
	// ErrExist is returned by Storage.CreateExclusive when the path is taken.
	ErrExist = errors.New("already exists")

	// ErrNotFound indicates a catalog entry or stored object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExhausted means no free suffix was found within the attempt limit.
	ErrExhausted = errors.New("no free name")

	// ErrReservedExtension rejects content whose extension collides with the sidecar.
	ErrReservedExtension = errors.New("reserved extension")
)

// Error wraps a failure to place an item with the path being worked on.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("place %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
