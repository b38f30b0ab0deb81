package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/taskpilot/core"
	"github.com/hupe1980/taskpilot/internal/util"
	"github.com/stretchr/testify/assert"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields.
	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// []any mirrors a schema decoded from JSON.
		"required": []any{"x"},
	}

	err := util.ValidateParameters(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	err = util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)
	var vErr *ValidationError
	if assert.ErrorAs(t, err, &vErr) {
		assert.Equal(t, "x", vErr.Field)
	}

	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
	if assert.ErrorAs(t, err, &vErr) {
		assert.Contains(t, vErr.Message, "expected type integer")
	}
}

// -------------------- FunctionTool Tests --------------------

func sumSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

func TestFunctionTool_Success(t *testing.T) {
	sumTool := NewFunctionTool("sum", "Add numbers", sumSchema(),
		func(_ context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		})

	result, err := sumTool.Execute(context.Background(), map[string]any{"a": 1.5, "b": 2.5})
	assert.NoError(t, err)
	assert.Equal(t, 4.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	sumTool := NewFunctionTool("sum", "Add numbers", sumSchema(),
		func(_ context.Context, args map[string]any) (any, error) {
			return nil, nil
		})

	_, err := sumTool.Execute(context.Background(), map[string]any{"a": 1.0})
	var toolErr *ToolError
	if assert.ErrorAs(t, err, &toolErr) {
		assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
		assert.Equal(t, "sum", toolErr.Tool)
	}
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	boom := NewFunctionTool("boom", "Always fails", map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, errors.New("kaput")
		})

	_, err := boom.Execute(context.Background(), map[string]any{})
	var toolErr *ToolError
	if assert.ErrorAs(t, err, &toolErr) {
		assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
		assert.Equal(t, "kaput", toolErr.Message)
	}
}

func TestFunctionTool_ToolErrorPassthrough(t *testing.T) {
	custom := NewToolError("custom", "quota exceeded", "QUOTA")
	ft := NewFunctionTool("custom", "Custom error", map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, custom
		})

	_, err := ft.Execute(context.Background(), map[string]any{})
	var toolErr *ToolError
	if assert.ErrorAs(t, err, &toolErr) {
		assert.Equal(t, "QUOTA", toolErr.Code)
	}
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	ft := NewFunctionToolFromStruct("typed", "Struct schema", sampleSchema{},
		func(_ context.Context, _ map[string]any) (any, error) {
			return "ok", nil
		})

	props := ft.Parameters()["properties"].(map[string]any)
	assert.Contains(t, props, "a")

	_, err := ft.Execute(context.Background(), map[string]any{})
	assert.Error(t, err) // "a" is required
}

// -------------------- Registry Tests --------------------

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())

	ft := NewFunctionTool("alpha", "First tool", map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) { return nil, nil })
	r.Register(ft)

	got, err := r.Get("alpha")
	assert.NoError(t, err)
	assert.Equal(t, "alpha", got.Name())

	_, err = r.Get("missing")
	var nfErr *core.ToolNotFoundError
	if assert.ErrorAs(t, err, &nfErr) {
		assert.Equal(t, "missing", nfErr.Name)
	}
}

func TestRegistry_Catalog(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, "No tools registered", r.Catalog())

	noop := func(_ context.Context, _ map[string]any) (any, error) { return nil, nil }
	r.Register(NewFunctionTool("beta", "Second tool", map[string]any{"type": "object"}, noop))
	r.Register(NewFunctionTool("alpha", "First tool", map[string]any{"type": "object"}, noop))

	catalog := r.Catalog()
	assert.Contains(t, catalog, "- alpha: First tool")
	assert.Contains(t, catalog, "- beta: Second tool")
	assert.Equal(t, []string{"alpha", "beta"}, r.Names())
}
