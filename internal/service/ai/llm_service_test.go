package ai

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/zhouzirui/complymate/internal/config"
	"github.com/zhouzirui/complymate/internal/model/chat"
)

type fakeChatModel struct {
	reply  string
	inputs [][]*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, input)
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func TestGenerateReplyBuildsPrompt(t *testing.T) {
	fake := &fakeChatModel{reply: "  Which form do you need?  "}
	svc, err := newService(context.Background(), fake, config.AIConfig{HistoryLimit: 10})
	if err != nil {
		t.Fatalf("newService err: %v", err)
	}

	history := []chat.Message{
		chat.NewMessage(chat.SenderUser, "hi"),
		chat.NewMessage(chat.SenderError, "Sorry, I couldn't connect"),
		chat.NewMessage(chat.SenderAssistant, "hello"),
	}
	got, err := svc.GenerateReply(context.Background(), Turn{SessionID: "s1", History: history, Message: "I need help"})
	if err != nil {
		t.Fatalf("GenerateReply err: %v", err)
	}
	if got != "Which form do you need?" {
		t.Fatalf("reply = %q", got)
	}

	input := fake.inputs[0]
	if len(input) != 4 {
		t.Fatalf("expected system + 2 history + query, got %d messages", len(input))
	}
	if input[0].Role != schema.System || input[0].Content != DefaultSystemPrompt {
		t.Fatalf("system message = %+v", input[0])
	}
	if input[3].Role != schema.User || input[3].Content != "I need help" {
		t.Fatalf("query message = %+v", input[3])
	}
}

func TestBuildHistoryMessagesKeepsTail(t *testing.T) {
	svc := &Service{cfg: config.AIConfig{HistoryLimit: 3}}

	var messages []chat.Message
	for i := 0; i < 6; i++ {
		messages = append(messages, chat.NewMessage(chat.SenderUser, fmt.Sprintf("m%d", i)))
	}

	history := svc.buildHistoryMessages(messages)
	if len(history) != 3 || history[0].Content != "m3" || history[2].Content != "m5" {
		t.Fatalf("unexpected history: %v", history)
	}
}

func TestExtractFormData(t *testing.T) {
	fake := &fakeChatModel{reply: `{"employee_name": "Dana Ruiz"}`}
	svc, err := newService(context.Background(), fake, config.AIConfig{})
	if err != nil {
		t.Fatalf("newService err: %v", err)
	}

	got, err := svc.ExtractFormData(context.Background(), "300", "The employee is Dana Ruiz")
	if err != nil {
		t.Fatalf("ExtractFormData err: %v", err)
	}
	if got["employee_name"] != "Dana Ruiz" {
		t.Fatalf("unexpected data: %v", got)
	}

	if got, err := svc.ExtractFormData(context.Background(), "", "hello"); err != nil || got != nil {
		t.Fatalf("expected no extraction without a form, got %v, %v", got, err)
	}
}
