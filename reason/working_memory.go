package reason

import (
	"fmt"
	"strings"
	"sync"
)

const (
	promptThoughts  = 5
	summaryThoughts = 10
)

// WorkingMemory is the transient per-session scratchpad of the reasoning
// loop: recent thoughts, keyed facts and a free-form scratchpad. It is not
// persisted and not shared with the long-term memory store.
type WorkingMemory struct {
	mu         sync.Mutex
	thoughts   []string
	facts      map[string]string
	scratchpad string
}

// NewWorkingMemory constructs an empty working memory.
func NewWorkingMemory() *WorkingMemory {
	return &WorkingMemory{facts: make(map[string]string)}
}

// AddThought appends one thought to the session trace.
func (w *WorkingMemory) AddThought(thought string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.thoughts = append(w.thoughts, thought)
}

// SetFact stores a keyed fact, overwriting any previous value.
func (w *WorkingMemory) SetFact(key, value string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.facts[key] = value
}

// Fact returns the stored fact for key.
func (w *WorkingMemory) Fact(key string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.facts[key]
	return v, ok
}

// SetScratchpad replaces the scratchpad contents.
func (w *WorkingMemory) SetScratchpad(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scratchpad = text
}

// Scratchpad returns the scratchpad contents.
func (w *WorkingMemory) Scratchpad() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scratchpad
}

// FormatForPrompt renders facts, the last few thoughts and the scratchpad as
// a compact prompt section. Returns "" when the memory is empty.
func (w *WorkingMemory) FormatForPrompt() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder
	if len(w.facts) > 0 {
		b.WriteString("Known facts:\n")
		for k, v := range w.facts {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	if n := len(w.thoughts); n > 0 {
		b.WriteString("Recent thoughts:\n")
		start := n - promptThoughts
		if start < 0 {
			start = 0
		}
		for _, t := range w.thoughts[start:] {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	if w.scratchpad != "" {
		b.WriteString("Scratchpad:\n")
		b.WriteString(w.scratchpad)
		b.WriteString("\n")
	}
	return b.String()
}

// Summary returns the last few thoughts joined for human inspection.
func (w *WorkingMemory) Summary() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.thoughts)
	if n == 0 {
		return "no thoughts recorded"
	}
	start := n - summaryThoughts
	if start < 0 {
		start = 0
	}
	return strings.Join(w.thoughts[start:], "\n")
}

// ThoughtCount returns the number of recorded thoughts.
func (w *WorkingMemory) ThoughtCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.thoughts)
}

// Clear resets thoughts, facts and the scratchpad.
func (w *WorkingMemory) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.thoughts = nil
	w.facts = make(map[string]string)
	w.scratchpad = ""
}
