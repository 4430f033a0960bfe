package repositories

import (
	"errors"
	"fmt"
)

// ErrStorage matches every StorageError with errors.Is.
var ErrStorage = errors.New("storage error")

// StorageError reports a failed read or write against the message store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
