package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockProvider_ResolutionOrder(t *testing.T) {
	m := NewMockProvider()
	m.AddResponse("weather", "sunny")
	m.Enqueue("queued first", "queued second")

	ctx := context.Background()

	// Queue wins over substring matching.
	out, err := m.Generate(ctx, "what is the weather?")
	assert.NoError(t, err)
	assert.Equal(t, "queued first", out)

	out, _ = m.Generate(ctx, "anything")
	assert.Equal(t, "queued second", out)

	// Queue drained: substring match applies.
	out, _ = m.Generate(ctx, "what is the weather?")
	assert.Equal(t, "sunny", out)

	// No match: generic fallback.
	out, _ = m.Generate(ctx, "unrelated")
	assert.Contains(t, out, "Mock response to:")

	assert.Equal(t, 4, m.CallCount())
	assert.Len(t, m.Prompts(), 4)
}

func TestMockProvider_Err(t *testing.T) {
	m := NewMockProvider()
	m.Err = errors.New("provider down")

	_, err := m.Generate(context.Background(), "prompt")
	assert.EqualError(t, err, "provider down")
}

func TestMockProvider_Fn(t *testing.T) {
	m := NewMockProvider()
	m.Fn = func(prompt string) (string, error) {
		return "fn:" + prompt, nil
	}

	out, err := m.Generate(context.Background(), "x")
	assert.NoError(t, err)
	assert.Equal(t, "fn:x", out)
}

func TestMockProvider_DelayRespectsContext(t *testing.T) {
	m := NewMockProvider()
	m.Delay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Generate(ctx, "prompt")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateOptions(t *testing.T) {
	opts := NewGenerateOptions(WithMaxTokens(100), WithTemperature(0.2))
	assert.Equal(t, 100, opts.MaxTokens)
	assert.Equal(t, 0.2, opts.Temperature)

	// Temperature default is -1 so providers can tell "unset" from 0.
	opts = NewGenerateOptions()
	assert.Equal(t, -1.0, opts.Temperature)
}
