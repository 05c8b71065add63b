package chat

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessageLen caps one inbound chat message.
const MaxMessageLen = 2000

// Conversation is one chat thread. The title is derived from the first
// message and never edited afterwards.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one persisted transcript entry, role "user" or
// "assistant".
type ChatMessage struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// TitleFromMessage derives a conversation title from its opening
// message: the first 50 characters plus an ellipsis when truncated.
func TitleFromMessage(message string) string {
	runes := []rune(message)
	if len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return message
}
