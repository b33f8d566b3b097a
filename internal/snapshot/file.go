package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/agentworkforce/recordmirror/internal/records"
)

type FileBackend struct {
	Path string

	mu       sync.Mutex
	lastHash string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: strings.TrimSpace(path)}
}

func (b *FileBackend) Load() ([]records.Record, error) {
	if b == nil || b.Path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	b.mu.Lock()
	b.lastHash = hashBytes(data)
	b.mu.Unlock()
	return decode(data)
}

func (b *FileBackend) Save(recs []records.Record) error {
	if b == nil || b.Path == "" {
		return ErrInvalidInput
	}
	data, err := encode(recs)
	if err != nil {
		return err
	}
	dir := filepath.Dir(b.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	// set before the rename; Watch compares file content against it
	b.mu.Lock()
	previous := b.lastHash
	b.lastHash = hashBytes(data)
	b.mu.Unlock()
	if err := writeFileAtomic(b.Path, data, 0o644); err != nil {
		b.mu.Lock()
		b.lastHash = previous
		b.mu.Unlock()
		return err
	}
	return nil
}

func (b *FileBackend) Clear() error {
	if b == nil || b.Path == "" {
		return nil
	}
	b.mu.Lock()
	previous := b.lastHash
	b.lastHash = ""
	b.mu.Unlock()
	if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		b.mu.Lock()
		b.lastHash = previous
		b.mu.Unlock()
		return err
	}
	return nil
}

// ownsContent reports whether data (nil when the file is gone) is what this
// backend last wrote.
func (b *FileBackend) ownsContent(data []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if data == nil {
		return b.lastHash == ""
	}
	return b.lastHash == hashBytes(data)
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
