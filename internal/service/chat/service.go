package chat

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/complymate/internal/model/chat"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDocumentNotFound = errors.New("document not found")
)

// Document is a generated file offered for download to the session owner.
type Document struct {
	Name        string
	SessionID   string
	UserToken   string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Service encapsulates server-side conversation state management.
type Service struct {
	mu        sync.RWMutex
	sessions  map[string]chat.Session
	messages  map[string][]chat.Message
	documents map[string]Document
}

// NewService bootstraps the in-memory chat service suitable for early iterations.
func NewService() *Service {
	return &Service{
		sessions:  make(map[string]chat.Session),
		messages:  make(map[string][]chat.Message),
		documents: make(map[string]Document),
	}
}

// CreateSession provisions a session owned by the caller's token.
func (s *Service) CreateSession(_ context.Context, userToken string) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		UserToken: userToken,
		FormData:  make(map[string]string),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = make([]chat.Message, 0, 16)
	s.mu.Unlock()

	return session, nil
}

// ResolveSession resumes sessionID when it exists and belongs to userToken,
// and otherwise starts a fresh session. Clients must adopt the returned id.
func (s *Service) ResolveSession(ctx context.Context, sessionID *string, userToken string) (chat.Session, error) {
	if sessionID != nil && *sessionID != "" {
		session, err := s.GetSession(ctx, *sessionID)
		if err == nil && session.UserToken == userToken {
			return session, nil
		}
	}
	return s.CreateSession(ctx, userToken)
}

// SetFormType records which form the session is filling. The first form wins.
func (s *Service) SetFormType(_ context.Context, sessionID, formType string) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	if session.FormType == "" {
		session.FormType = formType
		s.sessions[sessionID] = session
	}
	return copySession(session), nil
}

// MergeFormData adds extracted field values to the session.
func (s *Service) MergeFormData(_ context.Context, sessionID string, data map[string]string) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	if session.FormData == nil {
		session.FormData = make(map[string]string)
	}
	maps.Copy(session.FormData, data)
	s.sessions[sessionID] = session
	return copySession(session), nil
}

// SaveMessage appends a message to the session history.
func (s *Service) SaveMessage(_ context.Context, message chat.Message) error {
	if message.SessionID == "" {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return ErrSessionNotFound
	}

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	return nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return copySession(session), nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// SaveDocument stores a generated file under its name.
func (s *Service) SaveDocument(_ context.Context, doc Document) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.documents[doc.Name] = doc
	s.mu.Unlock()
}

// GetDocument looks up a generated file.
func (s *Service) GetDocument(_ context.Context, name string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[name]
	if !ok {
		return Document{}, ErrDocumentNotFound
	}
	return doc, nil
}

func copySession(session chat.Session) chat.Session {
	session.FormData = maps.Clone(session.FormData)
	return session
}
