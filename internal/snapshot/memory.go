package snapshot

import (
	"sync"

	"github.com/agentworkforce/recordmirror/internal/records"
)

// MemoryBackend keeps the encoded snapshot in process memory. Load and Save
// go through JSON so callers never share maps with the backend.
type MemoryBackend struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Load() ([]records.Record, error) {
	if b == nil {
		return nil, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return decode(b.data)
}

func (b *MemoryBackend) Save(recs []records.Record) error {
	if b == nil {
		return nil
	}
	data, err := encode(recs)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = data
	b.saves++
	return nil
}

func (b *MemoryBackend) Clear() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
	return nil
}

// Saves reports how many writes the backend has accepted.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

// Raw returns the stored JSON payload.
func (b *MemoryBackend) Raw() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}
