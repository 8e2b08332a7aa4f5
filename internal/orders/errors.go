package orders

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderCodeCollision is returned by stores on a duplicate order code.
	// The service retries with a fresh code and never surfaces it.
	ErrOrderCodeCollision = errors.New("order code collision")
	ErrPersistence        = errors.New("persistence failure")
)

// PersistenceError hides a storage fault from callers while keeping it for logs.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, ErrPersistence) }

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
