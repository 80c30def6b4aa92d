package memory

import "github.com/run-bigpig/clemm/pkg/interfaces"

// applyOptions filters by role and then keeps the most recent Limit messages
func applyOptions(messages []interfaces.Message, opts *interfaces.GetMessagesOptions) []interfaces.Message {
	if len(opts.Roles) > 0 {
		filtered := make([]interfaces.Message, 0, len(messages))
		for _, msg := range messages {
			for _, role := range opts.Roles {
				if msg.Role == role {
					filtered = append(filtered, msg)
					break
				}
			}
		}
		messages = filtered
	}

	if opts.Limit > 0 && opts.Limit < len(messages) {
		messages = messages[len(messages)-opts.Limit:]
	}

	return messages
}
