package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/zhouzirui/complymate/internal/model/chat"
	chatservice "github.com/zhouzirui/complymate/internal/service/chat"
)

func TestServiceGetSession(t *testing.T) {
	svc := chatservice.NewService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "token-a")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
	if got.UserToken != "token-a" {
		t.Fatalf("unexpected owner: got %s", got.UserToken)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chatservice.NewService()
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, chatservice.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceResolveSession(t *testing.T) {
	svc := chatservice.NewService()
	ctx := context.Background()

	first, err := svc.ResolveSession(ctx, nil, "token-a")
	if err != nil {
		t.Fatalf("ResolveSession err: %v", err)
	}

	again, _ := svc.ResolveSession(ctx, &first.ID, "token-a")
	if again.ID != first.ID {
		t.Fatalf("expected session to be resumed, got %s", again.ID)
	}

	other, _ := svc.ResolveSession(ctx, &first.ID, "token-b")
	if other.ID == first.ID {
		t.Fatal("a different owner must not resume the session")
	}

	unknown := "gone"
	fresh, _ := svc.ResolveSession(ctx, &unknown, "token-a")
	if fresh.ID == unknown || fresh.ID == first.ID {
		t.Fatalf("expected a new session, got %s", fresh.ID)
	}
}

func TestServiceFormState(t *testing.T) {
	svc := chatservice.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, "t")

	if _, err := svc.SetFormType(ctx, session.ID, "300"); err != nil {
		t.Fatalf("SetFormType err: %v", err)
	}
	got, _ := svc.SetFormType(ctx, session.ID, "301")
	if got.FormType != "300" {
		t.Fatalf("form type changed to %s", got.FormType)
	}

	got, err := svc.MergeFormData(ctx, session.ID, map[string]string{"city": "Austin"})
	if err != nil {
		t.Fatalf("MergeFormData err: %v", err)
	}
	got.FormData["city"] = "mutated"

	stored, _ := svc.GetSession(ctx, session.ID)
	if stored.FormData["city"] != "Austin" {
		t.Fatalf("stored form data leaked: %v", stored.FormData)
	}
}

func TestServiceTranscriptAndDocuments(t *testing.T) {
	svc := chatservice.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, "t")

	msg := chat.NewMessage(chat.SenderUser, "hello")
	msg.SessionID = session.ID
	if err := svc.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("SaveMessage err: %v", err)
	}
	if err := svc.SaveMessage(ctx, chat.NewMessage(chat.SenderUser, "orphan")); !errors.Is(err, chatservice.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	if err != nil || len(transcript) != 1 || transcript[0].ID != msg.ID {
		t.Fatalf("unexpected transcript: %v, %v", transcript, err)
	}

	svc.SaveDocument(ctx, chatservice.Document{Name: "osha_300.csv", Data: []byte("a,b")})
	doc, err := svc.GetDocument(ctx, "osha_300.csv")
	if err != nil || string(doc.Data) != "a,b" || doc.CreatedAt.IsZero() {
		t.Fatalf("unexpected document: %+v, %v", doc, err)
	}
	if _, err := svc.GetDocument(ctx, "missing.csv"); !errors.Is(err, chatservice.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
