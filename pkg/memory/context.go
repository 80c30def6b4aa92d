package memory

import (
	"context"
	"errors"
)

// Key type for context values
type contextKey string

// ConversationIDKey is the key used to store conversation ID in context
const ConversationIDKey contextKey = "conversation_id"

// ErrNoConversation is returned when a transcript call has no conversation ID in its context
var ErrNoConversation = errors.New("conversation ID not found in context")

// WithConversationID adds a conversation ID to the context
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, ConversationIDKey, conversationID)
}

// GetConversationID retrieves the conversation ID from the context
func GetConversationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ConversationIDKey).(string)
	return id, ok && id != ""
}

func conversationID(ctx context.Context) (string, error) {
	id, ok := GetConversationID(ctx)
	if !ok {
		return "", ErrNoConversation
	}
	return id, nil
}
