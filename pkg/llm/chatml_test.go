package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/run-bigpig/clemm/pkg/interfaces"
)

func TestFormatChatML(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "You are Raven."},
		{Role: "user", Content: "Status?"},
		{Role: "raven", Content: "Nominal."},
	}

	want := "<|im_start|>system\nYou are Raven.<|im_end|>\n" +
		"<|im_start|>user\nStatus?<|im_end|>\n" +
		"<|im_start|>assistant\nNominal.<|im_end|>\n" +
		"<|im_start|>assistant\n"
	assert.Equal(t, want, FormatChatML(messages, true))

	assert.Equal(t, "<|im_start|>user\nhi<|im_end|>\n",
		FormatChatML([]interfaces.Message{{Role: "user", Content: "hi"}}, false))
}

func TestStopSequences(t *testing.T) {
	assert.Equal(t, []string{"<|im_end|>"}, StopSequences(nil))
	assert.Equal(t, []string{"User:", "<|im_end|>"}, StopSequences(&interfaces.GenerateParams{StopSequences: []string{"User:"}}))
	assert.Equal(t, []string{"<|im_end|>"}, StopSequences(&interfaces.GenerateParams{StopSequences: []string{"<|im_end|>"}}))
}

func TestDefaultGenerateParams(t *testing.T) {
	p := DefaultGenerateParams()
	assert.Equal(t, 512, p.MaxTokens)
	assert.Equal(t, 50, p.TopK)
	assert.Equal(t, 0.95, p.TopP)
	assert.Equal(t, 1.15, p.RepeatPenalty)
}
