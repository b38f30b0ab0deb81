package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newBufferedLogger(level LogLevel) (*PilotLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{
		Level:  level,
		Format: "text",
		Output: &buf,
	})
	return l, &buf
}

func TestPilotLogger_KeyValueArgs(t *testing.T) {
	l, buf := newBufferedLogger(LogLevelDebug)

	l.Warn("orchestrator.memory_write_failed", "task", "fetch", "error", "disk full")

	out := buf.String()
	assert.Contains(t, out, "msg=orchestrator.memory_write_failed")
	assert.Contains(t, out, "task=fetch")
	assert.Contains(t, out, `error="disk full"`)
	assert.NotContains(t, out, "EXTRA")
}

func TestPilotLogger_ContextAndComponent(t *testing.T) {
	l, buf := newBufferedLogger(LogLevelInfo)

	l.WithComponent("executor").WithContext("goal", "research").
		Info("attempt.done", "attempt", 2)

	out := buf.String()
	assert.Contains(t, out, "component=executor")
	assert.Contains(t, out, "goal=research")
	assert.Contains(t, out, "attempt=2")
}

func TestPilotLogger_LevelFilter(t *testing.T) {
	l, buf := newBufferedLogger(LogLevelWarn)

	l.Debug("hidden", "k", "v")
	l.Info("hidden too")
	assert.Empty(t, buf.String())

	l.Error("visible", "k", "v")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestPilotLogger_DanglingArg(t *testing.T) {
	l, buf := newBufferedLogger(LogLevelDebug)

	l.Info("odd args", "key")

	assert.Contains(t, buf.String(), "!BADKEY=key")
}

func TestPilotLogger_DomainHelpers(t *testing.T) {
	l, buf := newBufferedLogger(LogLevelDebug)

	l.LogToolCall("search", 2, 50*time.Millisecond, false, errors.New("boom"))
	out := buf.String()
	assert.Contains(t, out, "tool_name=search")
	assert.Contains(t, out, "attempt=2")
	assert.Contains(t, out, "error=boom")

	buf.Reset()
	l.LogGoalExecution("research it", 3, time.Second, true)
	assert.Contains(t, buf.String(), "task_count=3")
}
