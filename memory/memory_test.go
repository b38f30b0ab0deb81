package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hupe1980/taskpilot/core"
	"github.com/stretchr/testify/assert"
)

func corruptLongTermFile(dir string) error {
	return os.WriteFile(filepath.Join(dir, longTermFile), []byte("{not json"), 0o644)
}

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := NewStore(func(o *Options) {
		o.Dir = dir
		o.MaxLongTerm = 100
		o.MaxShortTerm = 10
	})
	assert.NoError(t, err)
	return s
}

func entry(task, goal, stage string, success bool) Entry {
	return Entry{
		Task:   core.Task{Name: task, Params: map[string]any{}},
		Result: core.TaskResult{Success: success, TaskName: task},
		Goal:   goal,
		Stage:  stage,
	}
}

func TestStore_Durability(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	stamp, err := s.Store(entry("fetch", "collect data", "research", true))
	assert.NoError(t, err)
	assert.False(t, stamp.IsZero())

	// A fresh store at the same path recovers the entry with the identical
	// timestamp.
	s2 := newTestStore(t, dir)
	assert.Equal(t, 1, s2.Len())
	entries := s2.RecallByTask("fetch", 10)
	assert.Len(t, entries, 1)
	assert.True(t, entries[0].Timestamp.Equal(stamp))
}

func TestStore_MonotonicTimestamps(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	var last time.Time
	for i := 0; i < 50; i++ {
		stamp, err := s.Store(entry("t", "g", "s", true))
		assert.NoError(t, err)
		assert.False(t, stamp.Before(last))
		last = stamp
	}
}

func TestStore_Eviction(t *testing.T) {
	s, err := NewStore(func(o *Options) {
		o.Dir = t.TempDir()
		o.MaxLongTerm = 3
		o.MaxShortTerm = 2
	})
	assert.NoError(t, err)

	for _, name := range []string{"a", "b", "c", "d"} {
		_, err := s.Store(entry(name, "g", "s", true))
		assert.NoError(t, err)
	}

	// Oldest dropped: "a" gone, "d" present.
	assert.Equal(t, 3, s.Len())
	assert.Empty(t, s.RecallByTask("a", 10))
	assert.Len(t, s.RecallByTask("d", 10), 1)
}

func TestStore_RecallScoring(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	_, err := s.Store(entry("weather_lookup", "check the weather in berlin", "research", true))
	assert.NoError(t, err)
	_, err = s.Store(entry("stock_lookup", "check stock prices", "research", true))
	assert.NoError(t, err)
	_, err = s.Store(entry("weather_lookup", "weather in paris", "research", true))
	assert.NoError(t, err)

	results := s.Recall("weather", 10)
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "weather_lookup", r.Task.Name)
	}

	// Exact-phrase bonus ranks the full-phrase match first.
	results = s.Recall("weather in berlin", 10)
	assert.NotEmpty(t, results)
	assert.Equal(t, "check the weather in berlin", results[0].Goal)
}

func TestStore_RecallRepeatedQueryWord(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	_, err := s.Store(entry("weather_lookup", "weather report", "research", true))
	assert.NoError(t, err)
	_, err = s.Store(entry("tokyo_lookup", "tokyo guide", "research", true))
	assert.NoError(t, err)

	// A repeated query word scores once, so both entries tie on one word each
	// and the recency tiebreak ranks the newer entry first.
	results := s.Recall("weather weather tokyo", 10)
	assert.Len(t, results, 2)
	assert.Equal(t, "tokyo_lookup", results[0].Task.Name)
	assert.Equal(t, "weather_lookup", results[1].Task.Name)
}

func TestStore_RecallFilters(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	_, err := s.Store(entry("fetch", "fetch docs", "research", true))
	assert.NoError(t, err)
	cutoff := time.Now().Add(time.Millisecond)
	time.Sleep(2 * time.Millisecond)
	_, err = s.Store(entry("fetch", "fetch docs again", "build", true))
	assert.NoError(t, err)

	byStage := s.Recall("fetch", 10, WithStage("build"))
	assert.Len(t, byStage, 1)
	assert.Equal(t, "build", byStage[0].Stage)

	since := s.Recall("fetch", 10, WithSince(cutoff))
	assert.Len(t, since, 1)
	assert.Equal(t, "fetch docs again", since[0].Goal)
}

func TestStore_Context(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	_, err := s.Store(entry("fetch", "older goal", "research", true))
	assert.NoError(t, err)
	_, err = s.Store(entry("parse", "failed goal", "research", false))
	assert.NoError(t, err)
	_, err = s.Store(entry("render", "other stage", "build", true))
	assert.NoError(t, err)

	ctx := s.Context("research", 10, true)
	assert.Contains(t, ctx, "older goal")
	assert.Contains(t, ctx, "failed goal")
	assert.NotContains(t, ctx, "other stage")

	// Failures excluded on request.
	ctx = s.Context("research", 10, false)
	assert.NotContains(t, ctx, "failed goal")

	// Compact summary only: task names, never params payloads.
	assert.NotContains(t, ctx, "params")
}

func TestStore_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)
	_, err := s.Store(entry("fetch", "g", "s", true))
	assert.NoError(t, err)

	// Corrupt the persisted file; a fresh store must start empty, not fail.
	assert.NoError(t, corruptLongTermFile(dir))
	s2 := newTestStore(t, dir)
	assert.Equal(t, 0, s2.Len())
}

func TestStore_Statistics(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	_, err := s.Store(entry("fetch", "g1", "research", true))
	assert.NoError(t, err)
	_, err = s.Store(entry("fetch", "g2", "research", false))
	assert.NoError(t, err)

	stats := s.Statistics()
	assert.Equal(t, 2, stats.TotalMemories)
	assert.Equal(t, 1, stats.SuccessfulTasks)
	assert.Equal(t, 1, stats.FailedTasks)
	assert.InDelta(t, 0.5, stats.SuccessRate, 0.001)
	assert.Equal(t, 2, stats.TaskDistribution["fetch"])
}

func TestStore_Prune(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	for i := 0; i < 5; i++ {
		_, err := s.Store(entry("fetch", "g", "s", true))
		assert.NoError(t, err)
	}

	// Everything is newer than maxAge, but keepRecent caps retention.
	time.Sleep(2 * time.Millisecond)
	removed, err := s.Prune(0, 2)
	assert.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 2, s.Len())
}
