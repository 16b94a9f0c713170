package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/complymate/internal/metrics"
	"github.com/zhouzirui/complymate/internal/middleware"
	"github.com/zhouzirui/complymate/internal/model/chat"
	"github.com/zhouzirui/complymate/internal/service/ai"
	chatService "github.com/zhouzirui/complymate/internal/service/chat"
	"github.com/zhouzirui/complymate/pkg/utils"
)

const downloadPrefix = "/api/v1/files/download/"

// Replier 生成助手回复并抽取表单字段，由 ai.Service 实现
type Replier interface {
	GenerateReply(ctx context.Context, turn ai.Turn) (string, error)
	ExtractFormData(ctx context.Context, formType, message string) (map[string]string, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	replier Replier
	metrics *metrics.Metrics
	now     func() time.Time
}

// New 创建聊天处理器；replier 为 nil 时聊天接口返回 503
func New(chatSvc *chatService.Service, replier Replier, m *metrics.Metrics) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		replier: replier,
		metrics: m,
		now:     time.Now,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/chat", h.handleChat)
	r.Get("/chat/sessions/{sessionID}/messages", h.handleTranscript)
	r.Get("/files/download/{name}", h.handleDownload)
}

type chatPayload struct {
	Content      string  `json:"content"`
	Message      string  `json:"message"`
	SessionID    *string `json:"sessionId"`
	SessionIDAlt *string `json:"session_id"`
}

type chatResponse struct {
	Message   string         `json:"message"`
	SessionID string         `json:"sessionId"`
	FormURL   string         `json:"formUrl,omitempty"`
	FileRefs  []chat.FileRef `json:"fileRefs,omitempty"`
}

// handleChat 处理一轮对话
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if h.replier == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "chat model unavailable")
		return
	}

	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	content := strings.TrimSpace(payload.Content)
	if content == "" {
		content = strings.TrimSpace(payload.Message)
	}
	if content == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}

	sessionID := payload.SessionID
	if sessionID == nil {
		sessionID = payload.SessionIDAlt
	}

	ctx := r.Context()
	session, err := h.chatSvc.ResolveSession(ctx, sessionID, middleware.TokenFromContext(ctx))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessionID == nil || *sessionID != session.ID {
		h.metrics.RecordSession()
	}

	resp, err := h.reply(ctx, session, content)
	if err != nil {
		log.Printf("[chat] reply failed for session=%s: %v", session.ID, err)
		h.metrics.RecordReply("error")
		utils.RespondError(w, http.StatusBadGateway, "failed to generate reply")
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) reply(ctx context.Context, session chat.Session, content string) (chatResponse, error) {
	if session.FormType == "" {
		if formType := ai.DetectFormType(content); formType != "" {
			updated, err := h.chatSvc.SetFormType(ctx, session.ID, formType)
			if err != nil {
				return chatResponse{}, err
			}
			session = updated
		}
	}

	if session.FormType != "" {
		extracted, err := h.replier.ExtractFormData(ctx, session.FormType, content)
		if err != nil {
			// 抽取失败不影响对话本身
			log.Printf("[chat] extraction failed for session=%s: %v", session.ID, err)
		} else if len(extracted) > 0 {
			updated, err := h.chatSvc.MergeFormData(ctx, session.ID, extracted)
			if err != nil {
				return chatResponse{}, err
			}
			session = updated
		}
	}

	history, err := h.chatSvc.LoadTranscript(ctx, session.ID)
	if err != nil {
		return chatResponse{}, err
	}

	if err := h.save(ctx, session.ID, chat.NewMessage(chat.SenderUser, content)); err != nil {
		return chatResponse{}, err
	}

	text, err := h.replier.GenerateReply(ctx, ai.Turn{
		SessionID: session.ID,
		FormType:  session.FormType,
		Collected: session.FormData,
		History:   history,
		Message:   content,
	})
	if err != nil {
		return chatResponse{}, err
	}

	resp := chatResponse{Message: text, SessionID: session.ID}
	outcome := "reply"
	if ai.IsGenerateFormAction(text) {
		resp = h.generateForm(ctx, session)
		outcome = "form"
	}

	assistant := chat.NewMessage(chat.SenderAssistant, resp.Message)
	assistant.FormURL = resp.FormURL
	assistant.FileRefs = resp.FileRefs
	if err := h.save(ctx, session.ID, assistant); err != nil {
		return chatResponse{}, err
	}

	h.metrics.RecordReply(outcome)
	return resp, nil
}

func (h *Handler) generateForm(ctx context.Context, session chat.Session) chatResponse {
	formType := session.FormType
	if formType == "" {
		formType = "300"
	}

	doc, err := ai.RenderForm(formType, session.FormData, h.now().UTC())
	if err != nil {
		log.Printf("[chat] form generation failed for session=%s: %v", session.ID, err)
		return chatResponse{
			Message:   "I'm sorry, I encountered an error while generating the form. Please try again.",
			SessionID: session.ID,
		}
	}

	h.chatSvc.SaveDocument(ctx, chatService.Document{
		Name:        doc.Name,
		SessionID:   session.ID,
		UserToken:   session.UserToken,
		ContentType: doc.ContentType,
		Data:        doc.Data,
	})
	h.metrics.RecordForm(formType)

	url := downloadPrefix + doc.Name
	return chatResponse{
		Message:   fmt.Sprintf("I've generated the OSHA %s form for you. You can download it here: [%s](%s)", strings.ToUpper(formType), doc.Name, url),
		SessionID: session.ID,
		FormURL:   url,
		FileRefs:  []chat.FileRef{{Name: "OSHA " + strings.ToUpper(formType), URL: url}},
	}
}

func (h *Handler) save(ctx context.Context, sessionID string, msg chat.Message) error {
	msg.SessionID = sessionID
	return h.chatSvc.SaveMessage(ctx, msg)
}

// handleTranscript 返回会话的服务端记录
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil || session.UserToken != middleware.TokenFromContext(r.Context()) {
		utils.RespondError(w, http.StatusNotFound, chatService.ErrSessionNotFound.Error())
		return
	}

	messages, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.Conversation{Messages: messages, SessionID: sessionID})
}

// handleDownload 下载生成的表单草稿
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	doc, err := h.chatSvc.GetDocument(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, chatService.ErrDocumentNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// 只有生成该草稿的令牌可以下载
	if doc.UserToken != middleware.TokenFromContext(r.Context()) {
		utils.RespondError(w, http.StatusNotFound, chatService.ErrDocumentNotFound.Error())
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}
