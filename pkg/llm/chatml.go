package llm

import (
	"strings"

	"github.com/run-bigpig/clemm/pkg/interfaces"
)

// ChatML markers
const (
	StartOfTurn = "<|im_start|>"
	EndOfTurn   = "<|im_end|>"
)

// FormatChatML renders messages as a ChatML prompt:
//
//	<|im_start|>role\ncontent<|im_end|>\n ... <|im_start|>assistant\n
//
// The persona role "raven" is sent as "assistant".
func FormatChatML(messages []interfaces.Message, addGenerationPrompt bool) string {
	var b strings.Builder
	for _, msg := range messages {
		role := msg.Role
		if role == "raven" {
			role = interfaces.RoleAssistant
		}
		b.WriteString(StartOfTurn)
		b.WriteString(role)
		b.WriteByte('\n')
		b.WriteString(msg.Content)
		b.WriteString(EndOfTurn)
		b.WriteByte('\n')
	}
	if addGenerationPrompt {
		b.WriteString(StartOfTurn)
		b.WriteString(interfaces.RoleAssistant)
		b.WriteByte('\n')
	}
	return b.String()
}
