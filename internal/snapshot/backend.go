// Package snapshot persists the full record set in a single named slot so a
// mirror survives process restarts.
package snapshot

import (
	"encoding/json"
	"errors"

	"github.com/agentworkforce/recordmirror/internal/records"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotImplemented = errors.New("not implemented")
)

// DefaultName is the slot name used when none is configured.
const DefaultName = "userManagementData"

// Backend holds the last known record set. Load returns nil, nil when the slot
// is empty or has never been written.
type Backend interface {
	Load() ([]records.Record, error)
	Save(recs []records.Record) error
	Clear() error
}

type backendCloser interface {
	Close() error
}

// Close releases backend resources when the backend holds any.
func Close(b Backend) error {
	if closer, ok := b.(backendCloser); ok {
		return closer.Close()
	}
	return nil
}

func encode(recs []records.Record) ([]byte, error) {
	if recs == nil {
		recs = []records.Record{}
	}
	return json.Marshal(recs)
}

func decode(data []byte) ([]records.Record, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var recs []records.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
