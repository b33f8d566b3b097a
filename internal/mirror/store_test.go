package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworkforce/recordmirror/internal/gateway"
	"github.com/agentworkforce/recordmirror/internal/records"
	"github.com/agentworkforce/recordmirror/internal/snapshot"
)

func newTestStore(t *testing.T, client gateway.Client, backend snapshot.Backend) *Store {
	t.Helper()
	store, err := NewStore(client, backend, StoreOptions{})
	require.NoError(t, err)
	return store
}

func loadedStore(t *testing.T, n int) (*Store, *fakeGateway, *snapshot.MemoryBackend) {
	t.Helper()
	client := &fakeGateway{seed: seedRecords(n)}
	backend := snapshot.NewMemoryBackend()
	store := newTestStore(t, client, backend)
	require.NoError(t, store.LoadOrFetch(context.Background()))
	return store, client, backend
}

func TestNewStoreRequiresDependencies(t *testing.T) {
	_, err := NewStore(nil, snapshot.NewMemoryBackend(), StoreOptions{})
	assert.Error(t, err)
	_, err = NewStore(&fakeGateway{}, nil, StoreOptions{})
	assert.Error(t, err)
}

func TestLoadOrFetchFetchesAndPersistsWhenSnapshotEmpty(t *testing.T) {
	store, client, backend := loadedStore(t, 10)

	assert.Equal(t, 1, client.FetchCount())
	assert.Equal(t, 10, store.Len())
	saved, err := backend.Load()
	require.NoError(t, err)
	assert.Equal(t, store.Records(), saved)
}

func TestLoadOrFetchPrefersSnapshot(t *testing.T) {
	backend := snapshot.NewMemoryBackend()
	cached := seedRecords(3)
	require.NoError(t, backend.Save(cached))
	client := &fakeGateway{seed: seedRecords(10)}
	store := newTestStore(t, client, backend)

	require.NoError(t, store.LoadOrFetch(context.Background()))
	assert.Equal(t, 0, client.FetchCount())
	assert.Equal(t, cached, store.Records())
}

func TestLoadOrFetchRunsOnce(t *testing.T) {
	client := &fakeGateway{seed: seedRecords(10)}
	store := newTestStore(t, client, snapshot.NewMemoryBackend())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.LoadOrFetch(context.Background()))
		}()
	}
	wg.Wait()
	require.NoError(t, store.LoadOrFetch(context.Background()))
	assert.Equal(t, 1, client.FetchCount())
	assert.Equal(t, 10, store.Len())
}

func TestLoadOrFetchFallsBackToRemoteOnCorruptSnapshot(t *testing.T) {
	client := &fakeGateway{seed: seedRecords(10)}
	backend := &flakyBackend{MemoryBackend: snapshot.NewMemoryBackend(), loadErr: errors.New("invalid character")}
	store := newTestStore(t, client, backend)

	require.NoError(t, store.LoadOrFetch(context.Background()))
	assert.Equal(t, 1, client.FetchCount())
	assert.Equal(t, 10, store.Len())
}

func TestLoadOrFetchFailureLeavesStoreEmptyAndUsable(t *testing.T) {
	client := &fakeGateway{fetchErr: errBoom}
	store := newTestStore(t, client, snapshot.NewMemoryBackend())

	err := store.LoadOrFetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.True(t, errors.Is(err, errBoom))
	assert.Zero(t, store.Len())
	assert.False(t, store.Loaded())

	created, err := store.Create(context.Background(), records.FormData{Name: records.Str("Solo"), Username: records.Str("solo")})
	require.NoError(t, err)
	assert.Equal(t, 1, created.ID)
}

func TestLoadOrFetchRejectsDuplicateRemoteIDs(t *testing.T) {
	seed := seedRecords(3)
	seed[2].ID = 1
	store := newTestStore(t, &fakeGateway{seed: seed}, snapshot.NewMemoryBackend())

	err := store.LoadOrFetch(context.Background())
	assert.True(t, errors.Is(err, ErrFetch))
	assert.Zero(t, store.Len())
}

func TestCreatePrependsWithNextLocalID(t *testing.T) {
	store, client, backend := loadedStore(t, 10)
	savesBefore := backend.Saves()

	created, err := store.Create(context.Background(), records.FormData{
		Name:     records.Str("Jane Doe"),
		Username: records.Str("jane"),
		Address:  &records.FormAddress{City: records.Str("Lisbon")},
	})
	require.NoError(t, err)
	assert.Equal(t, 11, created.ID)
	assert.Equal(t, "Lisbon", created.Address.String("city"))
	assert.Equal(t, LocalOrigin, store.Classifier().Classify(created.ID))

	recs := store.Records()
	require.Len(t, recs, 11)
	assert.Equal(t, 11, recs[0].ID)
	assert.Equal(t, []string{"fetch_all", "create"}, client.Calls())
	assert.Equal(t, savesBefore+1, backend.Saves())

	saved, err := backend.Load()
	require.NoError(t, err)
	assert.Equal(t, recs, saved)
}

func TestCreateNeverReusesDeletedID(t *testing.T) {
	store, _, _ := loadedStore(t, 10)
	ctx := context.Background()
	form := records.FormData{Name: records.Str("A"), Username: records.Str("a")}

	first, err := store.Create(ctx, form)
	require.NoError(t, err)
	require.NoError(t, store.Remove(ctx, first.ID))

	second, err := store.Create(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, 12, second.ID)
}

func TestCreateRemoteFailureLeavesStoreUnchanged(t *testing.T) {
	store, client, backend := loadedStore(t, 10)
	client.createErr = errBoom
	before := store.Records()
	savesBefore := backend.Saves()

	_, err := store.Create(context.Background(), records.FormData{Name: records.Str("X"), Username: records.Str("x")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrSync))
	var syncErr *gateway.SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, "create", syncErr.Op)

	assert.Equal(t, before, store.Records())
	assert.Equal(t, savesBefore, backend.Saves())
}

func TestUpdateRemoteRecordCallsGatewayAndMerges(t *testing.T) {
	store, client, _ := loadedStore(t, 10)

	updated, err := store.Update(context.Background(), 3, records.FormData{
		Email:   records.Str("new@example.com"),
		Company: &records.FormCompany{Name: records.Str("Acme")},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.ID)
	assert.Equal(t, "User 3", updated.Name)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, "Acme", updated.Company.String("name"))
	assert.Contains(t, client.Calls(), "update 3")

	got, ok := store.Get(3)
	require.True(t, ok)
	assert.Equal(t, updated, got)
	assert.Equal(t, 3, store.Records()[2].ID)
}

func TestUpdateLocalRecordStaysLocal(t *testing.T) {
	store, client, _ := loadedStore(t, 10)
	ctx := context.Background()
	created, err := store.Create(ctx, records.FormData{Name: records.Str("Local"), Username: records.Str("local")})
	require.NoError(t, err)

	updated, err := store.Update(ctx, created.ID, records.FormData{Name: records.Str("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "local", updated.Username)
	assert.NotContains(t, client.Calls(), "update 11")
}

func TestUpdateRemoteFailureLeavesRecordUnchanged(t *testing.T) {
	store, client, _ := loadedStore(t, 10)
	client.updateErr = &gateway.SyncError{Op: "update", ID: 2, StatusCode: 500, Message: "down"}
	before, _ := store.Get(2)

	_, err := store.Update(context.Background(), 2, records.FormData{Name: records.Str("Nope")})
	assert.True(t, errors.Is(err, gateway.ErrSync))
	after, _ := store.Get(2)
	assert.Equal(t, before, after)
}

func TestUpdateAndRemoveMissingIDSkipRemote(t *testing.T) {
	store, client, _ := loadedStore(t, 10)
	ctx := context.Background()

	_, err := store.Update(ctx, 5000, records.FormData{Name: records.Str("Ghost")})
	assert.True(t, errors.Is(err, ErrNotFound))
	err = store.Remove(ctx, 7)
	require.NoError(t, err)
	err = store.Remove(ctx, 7)
	assert.True(t, errors.Is(err, ErrNotFound))

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, 7, notFound.ID)
	assert.Equal(t, []string{"fetch_all", "delete 7"}, client.Calls())
}

func TestRemoveRoutesByOrigin(t *testing.T) {
	store, client, _ := loadedStore(t, 10)
	ctx := context.Background()
	created, err := store.Create(ctx, records.FormData{Name: records.Str("L"), Username: records.Str("l")})
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, created.ID))
	require.NoError(t, store.Remove(ctx, 1))
	assert.Equal(t, []string{"fetch_all", "create", "delete 1"}, client.Calls())
	assert.Equal(t, []int{2, 3, 4, 5, 6, 7, 8, 9, 10}, ids(store.Records()))
}

func TestRemoveRemoteFailureKeepsRecord(t *testing.T) {
	store, client, _ := loadedStore(t, 10)
	client.deleteErr = errBoom

	err := store.Remove(context.Background(), 4)
	assert.True(t, errors.Is(err, gateway.ErrSync))
	assert.True(t, errors.Is(err, errBoom))
	_, ok := store.Get(4)
	assert.True(t, ok)
}

func TestSnapshotWriteFailureRejectsMutation(t *testing.T) {
	client := &fakeGateway{seed: seedRecords(10)}
	backend := &flakyBackend{MemoryBackend: snapshot.NewMemoryBackend()}
	store := newTestStore(t, client, backend)
	require.NoError(t, store.LoadOrFetch(context.Background()))
	backend.saveErr = errBoom

	_, err := store.Update(context.Background(), 11, records.FormData{Name: records.Str("x")})
	assert.True(t, errors.Is(err, ErrNotFound))

	err = store.Remove(context.Background(), 3)
	assert.True(t, errors.Is(err, ErrPersist))
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, 10, store.Len())

	_, err = store.Create(context.Background(), records.FormData{Name: records.Str("y"), Username: records.Str("y")})
	assert.True(t, errors.Is(err, ErrPersist))
	assert.Equal(t, 10, store.Len())
}

func TestResetRefetchesRemote(t *testing.T) {
	store, client, backend := loadedStore(t, 10)
	ctx := context.Background()
	_, err := store.Create(ctx, records.FormData{Name: records.Str("Temp"), Username: records.Str("temp")})
	require.NoError(t, err)
	require.NoError(t, store.Remove(ctx, 2))

	require.NoError(t, store.Reset(ctx))
	assert.Equal(t, 2, client.FetchCount())
	assert.Equal(t, seedRecords(10), store.Records())
	saved, err := backend.Load()
	require.NoError(t, err)
	assert.Equal(t, seedRecords(10), saved)
}

func TestResetFailureLeavesStoreEmpty(t *testing.T) {
	store, client, backend := loadedStore(t, 10)
	client.mu.Lock()
	client.fetchErr = errBoom
	client.mu.Unlock()

	err := store.Reset(context.Background())
	assert.True(t, errors.Is(err, ErrFetch))
	assert.Zero(t, store.Len())
	saved, err := backend.Load()
	require.NoError(t, err)
	assert.Empty(t, saved)
}

// Two updates of the same id race: the one whose remote call returns last is
// the one the store keeps, even though it was issued first.
func TestConcurrentUpdatesOfSameIDKeepLastResolved(t *testing.T) {
	store, client, _ := loadedStore(t, 10)
	ctx := context.Background()

	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})
	client.mu.Lock()
	client.beforeUpdate = func(id int, form records.FormData) {
		if form.Name != nil && *form.Name == "first" {
			close(firstEntered)
			<-releaseFirst
		}
	}
	client.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := store.Update(ctx, 5, records.FormData{Name: records.Str("first")})
		done <- err
	}()

	select {
	case <-firstEntered:
	case <-time.After(5 * time.Second):
		t.Fatal("first update never reached the gateway")
	}
	_, err := store.Update(ctx, 5, records.FormData{Name: records.Str("second")})
	require.NoError(t, err)
	got, _ := store.Get(5)
	assert.Equal(t, "second", got.Name)

	close(releaseFirst)
	require.NoError(t, <-done)
	got, _ = store.Get(5)
	assert.Equal(t, "first", got.Name)
}
