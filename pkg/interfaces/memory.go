package interfaces

import (
	"context"
)

// Message represents a single entry in a conversation history
type Message struct {
	// Role is the role of the message sender ("system", "user" or "assistant")
	Role string

	// Content is the content of the message
	Content string

	// Metadata contains additional information about the message
	Metadata map[string]interface{}
}

// Memory is a transcript store that mirrors crew conversations.
// Implementations find the conversation through the context.
type Memory interface {
	// AddMessage appends a message to the conversation transcript
	AddMessage(ctx context.Context, message Message) error

	// GetMessages retrieves messages from the conversation transcript
	GetMessages(ctx context.Context, options ...GetMessagesOption) ([]Message, error)

	// Clear removes the conversation transcript
	Clear(ctx context.Context) error
}

// GetMessagesOptions contains options for retrieving messages
type GetMessagesOptions struct {
	// Limit is the maximum number of most recent messages to retrieve
	Limit int

	// Roles filters messages by role
	Roles []string
}

// GetMessagesOption represents an option for retrieving messages
type GetMessagesOption func(*GetMessagesOptions)

// WithLimit sets the maximum number of messages to retrieve
func WithLimit(limit int) GetMessagesOption {
	return func(o *GetMessagesOptions) {
		o.Limit = limit
	}
}

// WithRoles filters messages by role
func WithRoles(roles ...string) GetMessagesOption {
	return func(o *GetMessagesOptions) {
		o.Roles = roles
	}
}

// ApplyGetMessagesOptions collects the options into a single value
func ApplyGetMessagesOptions(options ...GetMessagesOption) *GetMessagesOptions {
	opts := &GetMessagesOptions{}
	for _, option := range options {
		option(opts)
	}
	return opts
}
