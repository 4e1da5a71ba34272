package models

// Role tags who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one role-tagged entry of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage builds a message; content is kept verbatim.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// Clone returns a copy of the conversation so callers can mutate freely.
func Clone(conv []Message) []Message {
	if conv == nil {
		return nil
	}
	out := make([]Message, len(conv))
	copy(out, conv)
	return out
}
