package chat

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderError     Sender = "error"
)

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	switch s {
	case SenderUser, SenderAssistant, SenderError:
		return true
	default:
		return false
	}
}

// FileRef points at a document the assistant produced, e.g. a filled OSHA form.
type FileRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Message is one turn of a conversation. Messages are never edited after creation.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId,omitempty"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	FormURL   string    `json:"formUrl,omitempty"`
	FileRefs  []FileRef `json:"fileRefs,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage stamps a fresh id and creation time.
func NewMessage(sender Sender, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Speakable reports whether the message may be handed to speech synthesis.
func (m Message) Speakable() bool {
	return m.Sender == SenderAssistant
}
