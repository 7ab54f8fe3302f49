package model

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn in a report Q&A session.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
