package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/complymate/internal/model/chat"
)

// FallbackReply is shown in place of an answer whenever the chat call fails.
const FallbackReply = "Sorry, I couldn't connect to the server. Please try again later."

const defaultRequestTimeout = 60 * time.Second

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrRequestPending = errors.New("a request is already pending")
)

// Draft is the text source a send drains, normally the speech Composer.
type Draft interface {
	Take() (string, bool)
}

// TextDraft adapts a plain string to Draft.
type TextDraft string

func (d TextDraft) Take() (string, bool) {
	text := strings.TrimSpace(string(d))
	return text, text != ""
}

// StoreOptions 配置客户端会话
type StoreOptions struct {
	Greeting       string
	RequestTimeout time.Duration
}

// Store owns the client side of a conversation: the message list, the
// session id handed out by the server and the single in-flight request flag.
type Store struct {
	gateway Gateway
	timeout time.Duration

	mu        sync.RWMutex
	messages  []chat.Message
	sessionID string
	pending   bool
}

// NewStore creates a Store that talks to the backend through gateway.
func NewStore(gateway Gateway, opts StoreOptions) *Store {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	s := &Store{
		gateway:  gateway,
		timeout:  timeout,
		messages: make([]chat.Message, 0, 16),
	}
	if greeting := strings.TrimSpace(opts.Greeting); greeting != "" {
		s.messages = append(s.messages, chat.NewMessage(chat.SenderAssistant, greeting))
	}
	return s
}

// Begin drains the draft, appends the user message and marks the store pending.
// The returned request must be passed to Complete.
func (s *Store) Begin(draft Draft) (chat.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		return chat.Request{}, ErrRequestPending
	}

	text, ok := draft.Take()
	if !ok {
		return chat.Request{}, ErrEmptyMessage
	}

	s.messages = append(s.messages, chat.NewMessage(chat.SenderUser, text))
	s.pending = true

	req := chat.Request{Content: text}
	if s.sessionID != "" {
		id := s.sessionID
		req.SessionID = &id
	}
	return req, nil
}

// Complete performs the network call for a request produced by Begin and
// records its outcome. It always leaves the store ready for the next send.
func (s *Store) Complete(ctx context.Context, req chat.Request) chat.Message {
	defer s.release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.gateway.Send(ctx, req)
	if err != nil {
		log.Printf("[chat] request failed: %v", err)
		return s.append(chat.NewMessage(chat.SenderError, FallbackReply), "")
	}

	msg := chat.NewMessage(chat.SenderAssistant, reply.Message)
	msg.FormURL = reply.FormURL
	msg.FileRefs = reply.FileRefs
	return s.append(msg, reply.SessionID)
}

// Send runs Begin and Complete back to back.
func (s *Store) Send(ctx context.Context, draft Draft) (chat.Message, error) {
	req, err := s.Begin(draft)
	if err != nil {
		return chat.Message{}, err
	}
	return s.Complete(ctx, req), nil
}

// Pending reports whether a request is in flight.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// SessionID returns the last id the server handed out.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// Message looks a message up by id.
func (s *Store) Message(id string) (chat.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return chat.Message{}, false
}

// Snapshot returns a copy of the conversation.
func (s *Store) Snapshot() chat.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return chat.Conversation{
		Messages:  copied,
		SessionID: s.sessionID,
		Pending:   s.pending,
	}
}

func (s *Store) append(msg chat.Message, sessionID string) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID != "" {
		s.sessionID = sessionID
	}
	s.messages = append(s.messages, msg)
	return msg
}

func (s *Store) release() {
	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()
}
