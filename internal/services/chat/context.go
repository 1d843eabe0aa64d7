package chat

import (
	"chatstream/internal/domain"
	"chatstream/internal/services/ai"
)

// buildContext maps a history window onto the {role, content} pairs the
// provider accepts. Anything that is not a user or assistant turn is
// skipped; no system role is ever sent.
func buildContext(history []domain.Message) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			continue
		}
		messages = append(messages, ai.ChatMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return messages
}
