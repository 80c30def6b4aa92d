package memory

import (
	"context"
	"sync"

	"github.com/run-bigpig/clemm/pkg/interfaces"
)

// ConversationBuffer keeps transcripts in process memory, one per conversation
type ConversationBuffer struct {
	messages map[string][]interfaces.Message
	maxSize  int
	mu       sync.RWMutex
}

// Option represents an option for configuring the conversation buffer
type Option func(*ConversationBuffer)

// WithMaxSize sets the maximum number of messages kept per conversation
func WithMaxSize(size int) Option {
	return func(c *ConversationBuffer) {
		c.maxSize = size
	}
}

// NewConversationBuffer creates a new conversation buffer
func NewConversationBuffer(options ...Option) *ConversationBuffer {
	buffer := &ConversationBuffer{
		messages: make(map[string][]interfaces.Message),
		maxSize:  500,
	}

	for _, option := range options {
		option(buffer)
	}

	return buffer
}

// AddMessage adds a message to the buffer
func (c *ConversationBuffer) AddMessage(ctx context.Context, message interfaces.Message) error {
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages[id] = append(c.messages[id], message)
	if c.maxSize > 0 && len(c.messages[id]) > c.maxSize {
		c.messages[id] = c.messages[id][len(c.messages[id])-c.maxSize:]
	}

	return nil
}

// GetMessages retrieves messages from the buffer
func (c *ConversationBuffer) GetMessages(ctx context.Context, options ...interfaces.GetMessagesOption) ([]interfaces.Message, error) {
	id, err := conversationID(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	stored := c.messages[id]
	messages := make([]interfaces.Message, len(stored))
	copy(messages, stored)
	c.mu.RUnlock()

	return applyOptions(messages, interfaces.ApplyGetMessagesOptions(options...)), nil
}

// Clear clears the buffer for a conversation
func (c *ConversationBuffer) Clear(ctx context.Context) error {
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.messages, id)

	return nil
}

// Conversations returns the IDs that currently hold messages
func (c *ConversationBuffer) Conversations() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.messages))
	for id := range c.messages {
		ids = append(ids, id)
	}
	return ids
}
