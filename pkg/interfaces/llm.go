package interfaces

import "context"

// Conversation roles understood by every backend
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LLM represents a language model backend shared by the crew
type LLM interface {
	// Chat requests one non-streaming completion for the conversation so far
	Chat(ctx context.Context, messages []Message, params *GenerateParams) (string, error)

	// Name returns the name of the LLM provider
	Name() string
}

// GenerateParams contains the sampling parameters for a completion
type GenerateParams struct {
	MaxTokens     int      // Upper bound on generated tokens
	Temperature   float64  // Controls randomness
	TopK          int      // Limit vocabulary to top K tokens
	TopP          float64  // Nucleus sampling
	RepeatPenalty float64  // Penalize token repetition
	StopSequences []string // Stop generation at these sequences
}
