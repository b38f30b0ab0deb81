package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/taskpilot/logging"
)

// InMemoryStore is a volatile ledger implementation storing records in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo setups. Each returned record is cloned to prevent
// external mutation of internal state.
type InMemoryStore struct {
	*Broadcaster
	mu      sync.Mutex
	records map[string]*Record
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory ledger.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		Broadcaster: NewBroadcaster(opts.Logger),
		records:     make(map[string]*Record),
	}
}

// InMemoryOptions configures an InMemoryStore.
type InMemoryOptions struct {
	Logger logging.Logger
}

// Create implements Store.
func (s *InMemoryStore) Create(taskID, title string) (*Record, error) {
	s.mu.Lock()
	if _, exists := s.records[taskID]; exists {
		s.mu.Unlock()
		return nil, &DuplicateError{TaskID: taskID}
	}
	now := time.Now()
	rec := &Record{
		TaskID:    taskID,
		Status:    StatusPending,
		Title:     title,
		Logs:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.records[taskID] = rec
	snapshot := rec.Clone()
	s.mu.Unlock()

	s.Publish(snapshot)
	return snapshot, nil
}

// Update implements Store.
func (s *InMemoryStore) Update(taskID string, fields map[string]any) (*Record, error) {
	s.mu.Lock()
	rec, ok := s.records[taskID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if applyUpdates(rec, fields) {
		rec.UpdatedAt = time.Now()
	}
	snapshot := rec.Clone()
	s.mu.Unlock()

	s.Publish(snapshot)
	return snapshot, nil
}

// AppendLog implements Store.
func (s *InMemoryStore) AppendLog(taskID, line string) error {
	s.mu.Lock()
	rec, ok := s.records[taskID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	rec.Logs = append(rec.Logs, line)
	rec.UpdatedAt = time.Now()
	snapshot := rec.Clone()
	s.mu.Unlock()

	s.Publish(snapshot)
	return nil
}

// Get implements Store.
func (s *InMemoryStore) Get(taskID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// List implements Store.
func (s *InMemoryStore) List(limit int) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[taskID]; !ok {
		return ErrNotFound
	}
	delete(s.records, taskID)
	return nil
}

// Cleanup implements Store.
func (s *InMemoryStore) Cleanup(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	deleted := 0
	for id, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}
