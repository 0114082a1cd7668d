package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace/authcore/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
}

func (f *fakeStore) Insert(ctx context.Context, e *models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeStore) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.AuditEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func TestLog_PersistsThroughWorkerPool(t *testing.T) {
	store := &fakeStore{}
	j := New(store, 16, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	j.Start(ctx)

	j.Log(models.EventLoginSuccess, "user-1", "tenant-1", "1.2.3.4", "curl", map[string]interface{}{"k": "v"})

	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 5*time.Millisecond)

	entries, err := j.Query(context.Background(), models.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.EventLoginSuccess, entries[0].EventKind)
	assert.Equal(t, "user-1", *entries[0].UserID)
}

func TestLog_EmptyIdentifiersStoreAsNilPointers(t *testing.T) {
	store := &fakeStore{}
	j := New(store, 16, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	j.Start(ctx)

	j.Log(models.EventAccountLocked, "", "", "", "", nil)

	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 5*time.Millisecond)
	entries, _ := j.Query(context.Background(), models.AuditFilter{})
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].UserID)
	assert.Nil(t, entries[0].TenantID)
	assert.Nil(t, entries[0].IP)
	assert.Nil(t, entries[0].UserAgent)
}

func TestLog_NeverBlocksWhenQueueFullAndNoWorkers(t *testing.T) {
	store := &fakeStore{}
	j := New(store, 2, 1)
	// No Start: nothing drains the queue, forcing the drop-oldest path.

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			j.Log(models.EventLoginFailed, "user-1", "tenant-1", "", "", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Log blocked despite a full, undrained queue")
	}
}

func TestQuery_ReturnsStoredEntries(t *testing.T) {
	store := &fakeStore{}
	j := New(store, 4, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	j.Start(ctx)

	j.Log(models.EventLogout, "user-2", "tenant-2", "", "", nil)
	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 5*time.Millisecond)

	entries, err := j.Query(ctx, models.AuditFilter{TenantID: "tenant-2"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
