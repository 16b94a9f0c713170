package chat

import "time"

// Session captures a server-side conversation that clients resume by id.
type Session struct {
	ID        string            `json:"id"`
	UserToken string            `json:"-"`
	FormType  string            `json:"formType,omitempty"`
	FormData  map[string]string `json:"formData,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Conversation is a point-in-time copy of the client conversation state.
type Conversation struct {
	Messages  []Message `json:"messages"`
	SessionID string    `json:"sessionId,omitempty"`
	Pending   bool      `json:"pending"`
}

// Request is the payload sent to the chat endpoint. SessionID is nil until the
// server has assigned one.
type Request struct {
	Content   string  `json:"content"`
	SessionID *string `json:"sessionId"`
}

// Reply is a validated chat endpoint response.
type Reply struct {
	Message   string    `json:"message"`
	SessionID string    `json:"sessionId,omitempty"`
	FormURL   string    `json:"formUrl,omitempty"`
	FileRefs  []FileRef `json:"fileRefs,omitempty"`
}
