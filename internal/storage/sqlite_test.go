package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crzyc98/fintrak/internal/model"
)

// stepClock returns a time that advances by one second on every call.
type stepClock struct {
	now time.Time
	mu  sync.Mutex
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// createTestStorage returns a migrated in-memory store with a stepping clock.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store.SetClock(clock.Now)

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func createTestCategory(t *testing.T, store *SQLiteStorage, name string, group model.CategoryGroup) *model.Category {
	t.Helper()
	cat := &model.Category{Name: name, Group: group}
	require.NoError(t, store.CreateCategory(context.Background(), cat))
	return cat
}

func makeTransaction(i int, accountID string) model.Transaction {
	return model.Transaction{
		ID:          fmt.Sprintf("txn-%03d", i),
		AccountID:   accountID,
		Date:        time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
		Description: fmt.Sprintf("MERCHANT %d", i),
		Amount:      -int64(100 * (i + 1)),
	}
}

func TestNewSQLiteStorage_File(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "fintrak.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(context.Background()))
	// Running again is a no-op.
	require.NoError(t, store.Migrate(context.Background()))
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	require.ErrorIs(t, err, ErrEmptyString)
}
