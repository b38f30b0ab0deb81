package ledger

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	assert.NoError(t, err)
	return s
}

func TestSQLiteStore_CreateGetUpdate(t *testing.T) {
	s := newTestSQLiteStore(t)

	rec, err := s.Create("t1", "research goal")
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)

	_, err = s.Update("t1", map[string]any{
		"status":   StatusCompleted,
		"progress": 100,
		"result":   map[string]any{"ok": true},
	})
	assert.NoError(t, err)

	got, err := s.Get("t1")
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	result := got.Result.(map[string]any)
	assert.Equal(t, true, result["ok"])
}

func TestSQLiteStore_DuplicateCreate(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, err := s.Create("t1", "first")
	assert.NoError(t, err)

	_, err = s.Create("t1", "second")
	var dup *DuplicateError
	assert.ErrorAs(t, err, &dup)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Update("missing", map[string]any{"status": StatusRunning})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.AppendLog("missing", "line"), ErrNotFound)
	assert.ErrorIs(t, s.Delete("missing"), ErrNotFound)
}

func TestSQLiteStore_ConcurrentAppendLogNoLoss(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, err := s.Create("t1", "goal")
	assert.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.AppendLog("t1", fmt.Sprintf("line-%d", i)))
		}(i)
	}
	wg.Wait()

	rec, err := s.Get("t1")
	assert.NoError(t, err)
	assert.Len(t, rec.Logs, n)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")

	s, err := NewSQLiteStore(path)
	assert.NoError(t, err)
	_, err = s.Create("t1", "durable goal")
	assert.NoError(t, err)
	assert.NoError(t, s.AppendLog("t1", "before reopen"))

	s2, err := NewSQLiteStore(path)
	assert.NoError(t, err)
	rec, err := s2.Get("t1")
	assert.NoError(t, err)
	assert.Equal(t, "durable goal", rec.Title)
	assert.Equal(t, []string{"before reopen"}, rec.Logs)
}

func TestSQLiteStore_ListAndCleanup(t *testing.T) {
	s := newTestSQLiteStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.Create(fmt.Sprintf("t%d", i), "goal")
		assert.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	records, err := s.List(2)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "t2", records[0].TaskID)

	time.Sleep(2 * time.Millisecond)
	deleted, err := s.Cleanup(time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, deleted)
}

func TestSQLiteStore_PublishesOnMutation(t *testing.T) {
	s := newTestSQLiteStore(t)

	var mu sync.Mutex
	count := 0
	s.Subscribe(SubscriberFunc(func(*Record) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		return nil
	}))

	_, err := s.Create("t1", "goal")
	assert.NoError(t, err)
	_, err = s.Update("t1", map[string]any{"progress": 50})
	assert.NoError(t, err)
	assert.NoError(t, s.AppendLog("t1", "line"))

	mu.Lock()
	assert.Equal(t, 3, count)
	mu.Unlock()
}
