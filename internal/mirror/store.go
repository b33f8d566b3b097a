// Package mirror keeps a local copy of the remote record collection.
//
// Store owns the records and is the only writer of the snapshot. Every
// mutation is one commit: the remote call (when the record is remote), then
// the snapshot write and the in-memory swap under the store lock. A failed
// step leaves the store as it was. The lock is never held across a gateway
// call, so two concurrent mutations of the same id are resolved in the order
// their remote calls return.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/agentworkforce/recordmirror/internal/gateway"
	"github.com/agentworkforce/recordmirror/internal/records"
	"github.com/agentworkforce/recordmirror/internal/snapshot"
)

type Logger interface {
	Printf(format string, args ...any)
}

type StoreOptions struct {
	Classifier OriginClassifier
	Logger     Logger
}

type Store struct {
	gateway    gateway.Client
	snapshot   snapshot.Backend
	classifier OriginClassifier
	logger     Logger

	mu        sync.Mutex
	records   []records.Record
	highWater int
	loaded    bool

	loads singleflight.Group
}

func NewStore(client gateway.Client, backend snapshot.Backend, opts StoreOptions) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("gateway client is required")
	}
	if backend == nil {
		return nil, fmt.Errorf("snapshot backend is required")
	}
	return &Store{
		gateway:    client,
		snapshot:   backend,
		classifier: NewOriginClassifier(opts.Classifier.Boundary),
		logger:     opts.Logger,
	}, nil
}

func (s *Store) Classifier() OriginClassifier {
	return s.classifier
}

// LoadOrFetch populates the store once per lifetime: from the snapshot when
// it holds records, otherwise from the remote collection. Concurrent callers
// share one load. Later calls are no-ops.
func (s *Store) LoadOrFetch(ctx context.Context) error {
	if s.isLoaded() {
		return nil
	}
	_, err, _ := s.loads.Do("load", func() (any, error) {
		if s.isLoaded() {
			return nil, nil
		}
		cached, err := s.snapshot.Load()
		switch {
		case err != nil:
			s.logf("snapshot unreadable, fetching from remote: %v", err)
		case len(cached) > 0:
			if dup, ok := duplicateID(cached); ok {
				s.logf("snapshot holds duplicate id %d, fetching from remote", dup)
				break
			}
			s.mu.Lock()
			s.adoptLocked(cached)
			s.mu.Unlock()
			s.logf("loaded %d records from snapshot", len(cached))
			return nil, nil
		}
		return nil, s.fetchAndAdopt(ctx)
	})
	return err
}

// Reset discards local state, clears the snapshot and fetches the remote
// collection again. When the fetch fails the store stays empty.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.records = nil
	s.loaded = false
	storeSize.Set(0)
	err := s.snapshot.Clear()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: clear: %w", ErrPersist, err)
	}
	_, err, _ = s.loads.Do("load", func() (any, error) {
		return nil, s.fetchAndAdopt(ctx)
	})
	return err
}

func (s *Store) fetchAndAdopt(ctx context.Context) error {
	fetched, err := s.gateway.FetchAll(ctx)
	if err != nil {
		return &FetchError{Err: err}
	}
	if dup, ok := duplicateID(fetched); ok {
		return &FetchError{Err: fmt.Errorf("remote returned duplicate id %d", dup)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.snapshot.Save(fetched); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.adoptLocked(fetched)
	s.logf("fetched %d records from remote", len(fetched))
	return nil
}

func (s *Store) adoptLocked(recs []records.Record) {
	s.records = records.CloneAll(recs)
	for _, r := range s.records {
		if r.ID > s.highWater {
			s.highWater = r.ID
		}
	}
	s.loaded = true
	storeSize.Set(float64(len(s.records)))
}

func (s *Store) isLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Create announces the form to the remote collection and, when that succeeds,
// prepends a record with a locally allocated id. The remote echo is ignored.
func (s *Store) Create(ctx context.Context, form records.FormData) (records.Record, error) {
	if err := s.gateway.Create(ctx, form); err != nil {
		err = syncFailure("create", 0, err)
		observeMutation("create", LocalOrigin, err)
		return records.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := NextID(s.records, s.highWater)
	created := records.NewRecord(id, form)
	next := make([]records.Record, 0, len(s.records)+1)
	next = append(next, created)
	next = append(next, s.records...)
	if err := s.commitLocked(next); err != nil {
		observeMutation("create", LocalOrigin, err)
		return records.Record{}, err
	}
	s.highWater = id
	observeMutation("create", LocalOrigin, nil)
	return created.Clone(), nil
}

// Update merges the supplied form fields into record id. Remote records are
// updated remotely first; local records never leave this process.
func (s *Store) Update(ctx context.Context, id int, form records.FormData) (records.Record, error) {
	origin := s.classifier.Classify(id)
	if _, ok := s.Get(id); !ok {
		err := &NotFoundError{ID: id}
		observeMutation("update", origin, err)
		return records.Record{}, err
	}
	if origin == RemoteOrigin {
		if err := s.gateway.Update(ctx, id, form); err != nil {
			err = syncFailure("update", id, err)
			observeMutation("update", origin, err)
			return records.Record{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		err := &NotFoundError{ID: id}
		observeMutation("update", origin, err)
		return records.Record{}, err
	}
	updated := records.Merge(s.records[idx], form)
	updated.ID = id
	next := make([]records.Record, len(s.records))
	copy(next, s.records)
	next[idx] = updated
	if err := s.commitLocked(next); err != nil {
		observeMutation("update", origin, err)
		return records.Record{}, err
	}
	observeMutation("update", origin, nil)
	return updated.Clone(), nil
}

// Remove deletes record id, remotely first when the record is remote.
func (s *Store) Remove(ctx context.Context, id int) error {
	origin := s.classifier.Classify(id)
	if _, ok := s.Get(id); !ok {
		err := &NotFoundError{ID: id}
		observeMutation("delete", origin, err)
		return err
	}
	if origin == RemoteOrigin {
		if err := s.gateway.Delete(ctx, id); err != nil {
			err = syncFailure("delete", id, err)
			observeMutation("delete", origin, err)
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		err := &NotFoundError{ID: id}
		observeMutation("delete", origin, err)
		return err
	}
	next := make([]records.Record, 0, len(s.records)-1)
	next = append(next, s.records[:idx]...)
	next = append(next, s.records[idx+1:]...)
	if err := s.commitLocked(next); err != nil {
		observeMutation("delete", origin, err)
		return err
	}
	observeMutation("delete", origin, nil)
	return nil
}

// commitLocked writes next to the snapshot and swaps it in. On a write
// failure the in-memory records are left untouched.
func (s *Store) commitLocked(next []records.Record) error {
	if err := s.snapshot.Save(next); err != nil {
		s.logf("snapshot write failed: %v", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.records = next
	storeSize.Set(float64(len(next)))
	return nil
}

// Records returns a deep copy of the collection in display order.
func (s *Store) Records() []records.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return records.CloneAll(s.records)
}

func (s *Store) Get(id int) (records.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return records.Record{}, false
	}
	return s.records[idx].Clone(), true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Loaded reports whether a load or reset has populated the store.
func (s *Store) Loaded() bool {
	return s.isLoaded()
}

func (s *Store) indexLocked(id int) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

func duplicateID(recs []records.Record) (int, bool) {
	seen := make(map[int]struct{}, len(recs))
	for _, r := range recs {
		if _, ok := seen[r.ID]; ok {
			return r.ID, true
		}
		seen[r.ID] = struct{}{}
	}
	return 0, false
}

// syncFailure makes sure every gateway failure surfaces as a *gateway.SyncError,
// whatever Client implementation produced it.
func syncFailure(op string, id int, err error) error {
	if errors.Is(err, gateway.ErrSync) {
		return err
	}
	return &gateway.SyncError{Op: op, ID: id, Err: err}
}
