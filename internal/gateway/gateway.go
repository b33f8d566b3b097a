// Package gateway talks to the remote record collection. Every failure is
// reported once as a *SyncError; nothing is retried.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentworkforce/recordmirror/internal/records"
)

var ErrSync = errors.New("remote sync failed")

// Client is the contract the record store needs from the remote collection.
type Client interface {
	FetchAll(ctx context.Context) ([]records.Record, error)
	Create(ctx context.Context, form records.FormData) error
	Update(ctx context.Context, id int, form records.FormData) error
	Delete(ctx context.Context, id int) error
}

type SyncError struct {
	Op         string
	ID         int
	StatusCode int
	Message    string
	Err        error
}

func (e *SyncError) Error() string {
	target := e.Op
	if e.ID > 0 {
		target = fmt.Sprintf("%s %d", e.Op, e.ID)
	}
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: http %d: %s", target, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: http %d", target, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", target, e.Err)
	default:
		return target + ": remote sync failed"
	}
}

func (e *SyncError) Is(target error) bool {
	return target == ErrSync
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
