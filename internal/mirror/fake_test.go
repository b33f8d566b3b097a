package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/agentworkforce/recordmirror/internal/records"
	"github.com/agentworkforce/recordmirror/internal/snapshot"
)

type fakeGateway struct {
	mu        sync.Mutex
	seed      []records.Record
	fetchErr  error
	createErr error
	updateErr error
	deleteErr error
	fetches   int
	calls     []string

	// beforeUpdate runs inside Update before it returns, outside the fake's lock.
	beforeUpdate func(id int, form records.FormData)
}

func (f *fakeGateway) FetchAll(ctx context.Context) ([]records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	f.calls = append(f.calls, "fetch_all")
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return records.CloneAll(f.seed), nil
}

func (f *fakeGateway) Create(ctx context.Context, form records.FormData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	return f.createErr
}

func (f *fakeGateway) Update(ctx context.Context, id int, form records.FormData) error {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("update %d", id))
	hook := f.beforeUpdate
	err := f.updateErr
	f.mu.Unlock()
	if hook != nil {
		hook(id, form)
	}
	return err
}

func (f *fakeGateway) Delete(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("delete %d", id))
	return f.deleteErr
}

func (f *fakeGateway) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGateway) FetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type flakyBackend struct {
	*snapshot.MemoryBackend
	loadErr error
	saveErr error
}

func (b *flakyBackend) Load() ([]records.Record, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.MemoryBackend.Load()
}

func (b *flakyBackend) Save(recs []records.Record) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	return b.MemoryBackend.Save(recs)
}

var errBoom = errors.New("boom")

func seedRecords(n int) []records.Record {
	out := make([]records.Record, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, records.Record{
			ID:       i,
			Name:     fmt.Sprintf("User %d", i),
			Username: fmt.Sprintf("user%d", i),
			Email:    fmt.Sprintf("user%d@example.com", i),
			Address:  records.NewAddress("City"),
			Company:  records.NewCompany("Company"),
		})
	}
	return out
}

func ids(recs []records.Record) []int {
	out := make([]int, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}
