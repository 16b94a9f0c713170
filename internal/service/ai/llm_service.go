package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/zhouzirui/complymate/internal/config"
	"github.com/zhouzirui/complymate/internal/model/chat"
)

// Turn describes the server-side state a reply is generated for.
type Turn struct {
	SessionID string
	FormType  string
	Collected map[string]string
	History   []chat.Message
	Message   string
}

// Service encapsulates AI-powered chat functionality
type Service struct {
	chatModel model.BaseChatModel
	prompts   *PromptManager
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates a new AI service instance
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newService(ctx, chatModel, cfg)
}

func newService(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		prompts:   NewPromptManager(),
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// GenerateReply produces the assistant's next message for a turn.
func (s *Service) GenerateReply(ctx context.Context, turn Turn) (string, error) {
	input := map[string]any{
		"system":  s.prompts.BuildSystemPrompt(turn.FormType, turn.Collected),
		"history": s.buildHistoryMessages(turn.History),
		"query":   turn.Message,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	content := strings.TrimSpace(response.Content)
	log.Printf("[ai] generated response for session=%s, form=%s, length=%d", turn.SessionID, turn.FormType, len(content))
	return content, nil
}

// ExtractFormData asks the model for any form values contained in message.
// It returns nil when formType has no known fields.
func (s *Service) ExtractFormData(ctx context.Context, formType, message string) (map[string]string, error) {
	if len(FormFields(formType)) == 0 {
		return nil, nil
	}

	input := []*schema.Message{
		schema.SystemMessage(s.prompts.BuildExtractionPrompt(formType, message)),
	}
	response, err := s.chatModel.Generate(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to extract form data: %w", err)
	}
	return parseExtraction(formType, response.Content)
}

func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	historyLimit := s.cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 10
	}

	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.SenderAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}
