// Package ledger implements the durable task ledger: the externally
// observable record of goal lifecycle, progress and log lines. It is
// independent of the memory store — the ledger is the resumability record,
// memory is the recall record. All mutations are serialized per store
// instance, stamp UpdatedAt and broadcast a snapshot to subscribers.
package ledger

import (
	"fmt"
	"time"
)

// ErrNotFound is returned when no ledger record exists for the given task id.
var ErrNotFound = fmt.Errorf("ledger task not found")

// DuplicateError is returned when Create is called with an existing task id.
// Identity is immutable, so a duplicate create is always a caller bug.
type DuplicateError struct {
	TaskID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("ledger task %q already exists", e.TaskID)
}

// Status is the lifecycle state of a ledger record.
type Status string

const (
	// StatusPending marks a freshly created record.
	StatusPending Status = "pending"
	// StatusRunning marks a record whose goal is executing.
	StatusRunning Status = "running"
	// StatusCompleted marks a record whose goal finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed marks a record whose goal finished with failures.
	StatusFailed Status = "failed"
)

// Record is one ledger row. TaskID is immutable identity; CreatedAt is
// immutable after Create; every other mutation stamps UpdatedAt. Logs are
// ordered by append time under the store's lock.
type Record struct {
	TaskID    string    `json:"task_id"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"` // 0..100
	Title     string    `json:"title"`
	Logs      []string  `json:"logs"`
	Result    any       `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to subscribers and callers. Result
// values are deep-copied for the JSON-shaped types the orchestrator writes
// (maps, slices, scalars); other types are aliased and must be treated as
// read-only.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Logs = make([]string, len(r.Logs))
	copy(cp.Logs, r.Logs)
	cp.Result = cloneValue(r.Result)
	return &cp
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k, val := range t {
			cp[k] = cloneValue(val)
		}
		return cp
	case []any:
		cp := make([]any, len(t))
		for i, val := range t {
			cp[i] = cloneValue(val)
		}
		return cp
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// allowedUpdateFields is the fixed allow-list for Update. Unknown fields are
// silently dropped (defense against unconstrained writes).
var allowedUpdateFields = map[string]struct{}{
	"status":   {},
	"progress": {},
	"title":    {},
	"result":   {},
	"logs":     {},
}

// applyUpdates merges the allow-listed fields into rec. Returns true when at
// least one field was applied. Progress is clamped to [0,100].
func applyUpdates(rec *Record, fields map[string]any) bool {
	applied := false
	for key, value := range fields {
		if _, ok := allowedUpdateFields[key]; !ok {
			continue
		}
		switch key {
		case "status":
			switch v := value.(type) {
			case Status:
				rec.Status = v
			case string:
				rec.Status = Status(v)
			default:
				continue
			}
		case "progress":
			p, ok := toInt(value)
			if !ok {
				continue
			}
			if p < 0 {
				p = 0
			}
			if p > 100 {
				p = 100
			}
			rec.Progress = p
		case "title":
			v, ok := value.(string)
			if !ok {
				continue
			}
			rec.Title = v
		case "result":
			rec.Result = cloneValue(value)
		case "logs":
			v, ok := value.([]string)
			if !ok {
				continue
			}
			rec.Logs = append([]string(nil), v...)
		}
		applied = true
	}
	return applied
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Store defines the durable ledger contract. Implementations must make every
// mutation transactional per call and must publish a snapshot of the updated
// record to subscribers after each successful mutation.
type Store interface {
	// Create inserts a pending record. Creating an existing id is an error.
	Create(taskID, title string) (*Record, error)

	// Update merges allow-listed fields into the record and stamps UpdatedAt.
	Update(taskID string, fields map[string]any) (*Record, error)

	// AppendLog appends one line to the record's log (read-modify-write under
	// the store's lock so concurrent appends never lose lines).
	AppendLog(taskID, line string) error

	// Get returns a copy of the record.
	Get(taskID string) (*Record, error)

	// List returns up to limit records, most recent first.
	List(limit int) ([]*Record, error)

	// Delete removes a record.
	Delete(taskID string) error

	// Cleanup deletes records created before the retention window. Returns
	// the number of deleted records.
	Cleanup(olderThan time.Duration) (int, error)

	// Subscribe registers a subscriber for record snapshots. The returned
	// function cancels the subscription.
	Subscribe(sub Subscriber) (cancel func())
}
