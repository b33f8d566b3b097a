package mirror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrFetch    = errors.New("load records failed")
	ErrPersist  = errors.New("snapshot write failed")
)

type NotFoundError struct {
	ID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record %d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// FetchError means the initial load or a reset could not populate the store.
// The store is left empty.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return ErrFetch.Error()
	}
	return fmt.Sprintf("load records: %v", e.Err)
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
