// Package memory implements the long-term memory store: an append-only,
// size-bounded journal of past (task, result, goal, stage) records with
// keyword recall and stage-scoped context summarization.
//
// The store keeps two bounded rings: a short-term ring for the current
// session and a long-term ring persisted to disk. Persistence is crash safe
// (write to temp file, atomic rename). Recall is a deliberately simple
// lexical heuristic; callers needing semantic recall must layer an embedding
// index externally.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/taskpilot/core"
	"github.com/hupe1980/taskpilot/logging"
)

const longTermFile = "long_term.json"

// Entry is a single memory record. Entries are append-only; Timestamp is
// assigned at append time and never edited, and is monotonically
// non-decreasing within a single store. Uniqueness is not enforced on
// purpose: duplicate goals are legitimate.
type Entry struct {
	Task      core.Task       `json:"task"`
	Result    core.TaskResult `json:"result"`
	Stage     string          `json:"stage"`
	Goal      string          `json:"goal"`
	Timestamp time.Time       `json:"timestamp"`
	Tags      []string        `json:"tags,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// Activity is the compact view of an entry used by RecentActivities.
type Activity struct {
	Task      string    `json:"task"`
	Goal      string    `json:"goal"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Stage     string    `json:"stage"`
}

// Statistics summarizes store usage.
type Statistics struct {
	TotalMemories     int            `json:"total_memories"`
	SuccessfulTasks   int            `json:"successful_tasks"`
	FailedTasks       int            `json:"failed_tasks"`
	SuccessRate       float64        `json:"success_rate"`
	ShortTermCount    int            `json:"short_term_count"`
	StageDistribution map[string]int `json:"stage_distribution"`
	TaskDistribution  map[string]int `json:"task_distribution"`
	StoragePath       string         `json:"storage_path"`
}

// Options configures a Store.
type Options struct {
	// Dir is the directory holding the persisted long-term file.
	Dir string
	// MaxLongTerm bounds the long-term ring (oldest dropped on overflow).
	MaxLongTerm int
	// MaxShortTerm bounds the short-term ring.
	MaxShortTerm int
	// Logger used for persistence warnings; defaults to NoOp.
	Logger logging.Logger
}

// Store is the persistent long-term memory store. All operations are
// serialized through a single mutex; the store is safe to share across
// multiple orchestrator instances.
type Store struct {
	mu        sync.Mutex
	dir       string
	maxLong   int
	maxShort  int
	shortTerm []Entry
	longTerm  []Entry
	lastStamp time.Time
	logger    logging.Logger
}

// NewStore creates (and loads) a persistent memory store. The directory is
// created if missing; an existing long-term file is loaded.
func NewStore(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		Dir:          filepath.Join("data", "agent_memory"),
		MaxLongTerm:  10000,
		MaxShortTerm: 100,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	s := &Store{
		dir:      opts.Dir,
		maxLong:  opts.MaxLongTerm,
		maxShort: opts.MaxShortTerm,
		logger:   opts.Logger,
	}
	if err := s.loadLongTerm(); err != nil {
		// A corrupt or unreadable file must not brick the agent; start empty.
		s.logger.Error("memory.load_failed", "path", s.dir, "error", err)
		s.longTerm = nil
	}
	for _, e := range s.longTerm {
		if e.Timestamp.After(s.lastStamp) {
			s.lastStamp = e.Timestamp
		}
	}
	s.logger.Info("memory.loaded", "path", s.dir, "entries", len(s.longTerm))
	return s, nil
}

// Store appends an entry to both rings and persists the long-term ring.
// The assigned timestamp is returned; it never moves backwards within a
// store even if the wall clock does.
func (s *Store) Store(entry Entry) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if !now.After(s.lastStamp) {
		now = s.lastStamp
	}
	s.lastStamp = now
	entry.Timestamp = now

	s.shortTerm = append(s.shortTerm, entry)
	if len(s.shortTerm) > s.maxShort {
		s.shortTerm = s.shortTerm[1:]
	}

	s.longTerm = append(s.longTerm, entry)
	if len(s.longTerm) > s.maxLong {
		s.longTerm = s.longTerm[1:]
	}

	if err := s.saveLongTermLocked(); err != nil {
		return entry.Timestamp, err
	}
	return entry.Timestamp, nil
}

// RecallOptions filter a Recall call.
type RecallOptions struct {
	// Stage restricts recall to entries of one stage when non-empty.
	Stage string
	// Since excludes entries older than the given time when non-zero.
	Since time.Time
}

// RecallOption mutates RecallOptions.
type RecallOption func(*RecallOptions)

// WithStage restricts recall to one stage.
func WithStage(stage string) RecallOption {
	return func(o *RecallOptions) { o.Stage = stage }
}

// WithSince excludes entries older than t.
func WithSince(t time.Time) RecallOption {
	return func(o *RecallOptions) { o.Since = t }
}

// Recall scores entries by keyword overlap: one point per query word present
// in the serialized entry, plus an exact-phrase bonus equal to the query's
// word count. Entries are scanned most recent first and ties keep that order
// (recency is the implicit tiebreak, no secondary sort key).
func (s *Store) Recall(query string, limit int, optFns ...RecallOption) []Entry {
	var opts RecallOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	queryLower := strings.ToLower(query)

	// Unique query words: a repeated word must not score twice per entry.
	var queryWords []string
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(queryLower) {
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		queryWords = append(queryWords, word)
	}

	type scored struct {
		entry Entry
		score int
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var results []scored
	for i := len(s.longTerm) - 1; i >= 0; i-- {
		e := s.longTerm[i]
		if opts.Stage != "" && e.Stage != opts.Stage {
			continue
		}
		if !opts.Since.IsZero() && e.Timestamp.Before(opts.Since) {
			continue
		}

		serialized, err := json.Marshal(e)
		if err != nil {
			continue
		}
		haystack := strings.ToLower(string(serialized))

		score := 0
		for _, word := range queryWords {
			if strings.Contains(haystack, word) {
				score++
			}
		}
		if queryLower != "" && strings.Contains(haystack, queryLower) {
			score += len(queryWords)
		}

		if score > 0 {
			results = append(results, scored{entry: e, score: score})
		}
		if len(results) >= limit*2 { // gather extra, then rank
			break
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > limit {
		results = results[:limit]
	}

	out := make([]Entry, len(results))
	for i, r := range results {
		out[i] = r.entry
	}
	return out
}

// RecallByTask returns the most recent entries whose task name matches.
func (s *Store) RecallByTask(taskName string, limit int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []Entry
	for i := len(s.longTerm) - 1; i >= 0 && len(results) < limit; i-- {
		if s.longTerm[i].Task.Name == taskName {
			results = append(results, s.longTerm[i])
		}
	}
	return results
}

// RecallByStage returns the most recent entries for one stage.
func (s *Store) RecallByStage(stage string, limit int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []Entry
	for i := len(s.longTerm) - 1; i >= 0 && len(results) < limit; i-- {
		if s.longTerm[i].Stage == stage {
			results = append(results, s.longTerm[i])
		}
	}
	return results
}

// contextItem is the compact per-entry summary rendered by Context. Never
// the full payload, to bound prompt size.
type contextItem struct {
	Task      string    `json:"task"`
	Goal      string    `json:"goal"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
}

// Context renders a compact JSON summary of the most recent maxMemories
// entries of one stage, optionally excluding failed tasks.
func (s *Store) Context(stage string, maxMemories int, includeFailed bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stageEntries []Entry
	for _, e := range s.longTerm {
		if e.Stage != stage {
			continue
		}
		if !includeFailed && !e.Result.Success {
			continue
		}
		stageEntries = append(stageEntries, e)
	}

	if len(stageEntries) > maxMemories {
		stageEntries = stageEntries[len(stageEntries)-maxMemories:]
	}

	items := make([]contextItem, 0, len(stageEntries))
	for i := len(stageEntries) - 1; i >= 0; i-- { // most recent first
		e := stageEntries[i]
		items = append(items, contextItem{
			Task:      e.Task.Name,
			Goal:      e.Goal,
			Timestamp: e.Timestamp,
			Success:   e.Result.Success,
		})
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// RecentActivities returns the latest limit activities, optionally filtered
// by stage (empty string means all stages).
func (s *Store) RecentActivities(limit int, stage string) []Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	var activities []Activity
	for i := len(s.longTerm) - 1; i >= 0 && len(activities) < limit; i-- {
		e := s.longTerm[i]
		if stage != "" && e.Stage != stage {
			continue
		}
		activities = append(activities, Activity{
			Task:      e.Task.Name,
			Goal:      e.Goal,
			Timestamp: e.Timestamp,
			Success:   e.Result.Success,
			Stage:     e.Stage,
		})
	}
	return activities
}

// Statistics returns usage statistics for the store.
func (s *Store) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Statistics{
		TotalMemories:     len(s.longTerm),
		ShortTermCount:    len(s.shortTerm),
		StageDistribution: map[string]int{},
		TaskDistribution:  map[string]int{},
		StoragePath:       s.dir,
	}
	for _, e := range s.longTerm {
		if e.Result.Success {
			stats.SuccessfulTasks++
		}
		stats.StageDistribution[e.Stage]++
		stats.TaskDistribution[e.Task.Name]++
	}
	stats.FailedTasks = stats.TotalMemories - stats.SuccessfulTasks
	if stats.TotalMemories > 0 {
		stats.SuccessRate = float64(stats.SuccessfulTasks) / float64(stats.TotalMemories)
	}
	return stats
}

// Len returns the number of long-term entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.longTerm)
}

// ClearShortTerm drops the short-term ring.
func (s *Store) ClearShortTerm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortTerm = nil
}

// ClearLongTerm drops the long-term ring and persists the empty state.
func (s *Store) ClearLongTerm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.longTerm = nil
	return s.saveLongTermLocked()
}

// Prune removes entries older than maxAge while always keeping the
// keepRecent most recent entries. Returns the number of pruned entries.
func (s *Store) Prune(maxAge time.Duration, keepRecent int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	cutoffIdx := len(s.longTerm) - keepRecent
	if cutoffIdx < 0 {
		cutoffIdx = 0
	}

	kept := s.longTerm[:0:0]
	pruned := 0
	for i, e := range s.longTerm {
		if i >= cutoffIdx || e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		} else {
			pruned++
		}
	}
	s.longTerm = kept

	if err := s.saveLongTermLocked(); err != nil {
		return pruned, err
	}
	return pruned, nil
}

// loadLongTerm reads the persisted long-term file if present.
func (s *Store) loadLongTerm() error {
	path := filepath.Join(s.dir, longTermFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.longTerm)
}

// saveLongTermLocked persists the long-term ring via write-to-temp-then-rename
// so a crash mid-write never leaves a corrupt store. Caller holds s.mu.
func (s *Store) saveLongTermLocked() error {
	entries := s.longTerm
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memories: %w", err)
	}

	path := filepath.Join(s.dir, longTermFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp memory file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename memory file: %w", err)
	}
	return nil
}
