package openai

import (
	"testing"

	"github.com/hupe1980/taskpilot/provider"
	"github.com/stretchr/testify/assert"
)

func TestNew_OptionsApplied(t *testing.T) {
	p := New(func(o *Options) {
		o.Model = "gpt-4o"
		o.Temperature = 0.2
		o.MaxCompletionTokens = 512
		o.APIKey = "test-key"
	})

	assert.Equal(t, provider.Info{Name: "gpt-4o", Provider: "openai"}, p.Info())
	assert.Equal(t, "test-key", p.opts.APIKey)
	assert.Equal(t, int64(512), p.opts.MaxCompletionTokens)
}

func TestNew_Defaults(t *testing.T) {
	p := New()
	assert.Equal(t, "openai", p.Info().Provider)
	assert.NotEmpty(t, p.Info().Name)
	assert.Empty(t, p.opts.APIKey)
}
