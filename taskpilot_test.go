package taskpilot

import (
	"context"
	"testing"

	"github.com/hupe1980/taskpilot/config"
	"github.com/hupe1980/taskpilot/ledger"
	"github.com/hupe1980/taskpilot/memory"
	"github.com/hupe1980/taskpilot/provider"
	"github.com/hupe1980/taskpilot/tool"
	"github.com/stretchr/testify/assert"
)

func newTestPilot(t *testing.T, p provider.Provider) *TaskPilot {
	t.Helper()
	mem, err := memory.NewStore(func(o *memory.Options) {
		o.Dir = t.TempDir()
	})
	assert.NoError(t, err)

	pilot, err := New(p, func(o *Options) {
		o.Memory = mem
	})
	assert.NoError(t, err)
	return pilot
}

func TestTaskPilot_EndToEnd(t *testing.T) {
	p := provider.NewMockProvider()
	p.AddResponse("Decompose this goal", `[{"task": "greet", "params": {"name": "world"}}]`)
	p.AddResponse("Validate if this result", "VALID")

	pilot := newTestPilot(t, p)
	pilot.RegisterTool(tool.NewFunctionTool("greet", "Say hello",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
			},
			"required": []string{"name"},
		},
		func(_ context.Context, params map[string]any) (any, error) {
			return "hello " + params["name"].(string), nil
		}))

	result := pilot.ExecuteGoal(context.Background(), "greet the world", "demo", nil)

	assert.True(t, result.Success)
	assert.Equal(t, "hello world", result.Results[0].Data)
	assert.Equal(t, 1, pilot.Memory().Len())
	assert.NotEmpty(t, pilot.Thinking())
	assert.False(t, pilot.Breaker().Open())

	records, err := pilot.Ledger().List(1)
	assert.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, records[0].Status)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.Name = "mock"
	cfg.Memory.Dir = t.TempDir()

	pilot, err := NewFromConfig(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, pilot.Memory())
	assert.NotNil(t, pilot.Ledger())
	assert.Equal(t, 0, pilot.Tools().Len())
}

func TestNewFromConfig_UnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.Name = "carrier-pigeon"
	cfg.Memory.Dir = t.TempDir()

	_, err := NewFromConfig(cfg)
	assert.ErrorContains(t, err, "unknown provider")
}
