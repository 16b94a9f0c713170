package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/zhouzirui/complymate/internal/model/chat"
)

const maxReplyBytes = 1 << 20

var (
	ErrRequestFailed  = errors.New("chat request failed")
	ErrMalformedReply = errors.New("malformed chat reply")
	ErrMissingToken   = errors.New("access token unavailable")
)

// Gateway sends one chat request to the conversational backend.
type Gateway interface {
	Send(ctx context.Context, req chat.Request) (chat.Reply, error)
}

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// FileToken re-reads the token file on every request so a refreshed login is
// picked up without restarting the client.
type FileToken struct {
	Path string
}

func (t FileToken) Token(context.Context) (string, error) {
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// HTTPGateway posts requests to the chat endpoint as JSON.
type HTTPGateway struct {
	url    string
	tokens TokenSource
	client *http.Client
}

// NewHTTPGateway creates a gateway for url. A nil client uses http.DefaultClient;
// deadlines come from the request context.
func NewHTTPGateway(url string, tokens TokenSource, client *http.Client) *HTTPGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGateway{url: url, tokens: tokens, client: client}
}

func (g *HTTPGateway) Send(ctx context.Context, req chat.Request) (chat.Reply, error) {
	token, err := g.token(ctx)
	if err != nil {
		return chat.Reply{}, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return chat.Reply{}, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return chat.Reply{}, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return chat.Reply{}, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxReplyBytes))
		return chat.Reply{}, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return chat.Reply{}, fmt.Errorf("%w: read body: %w", ErrRequestFailed, err)
	}
	return decodeReply(data)
}

func (g *HTTPGateway) token(ctx context.Context) (string, error) {
	if g.tokens == nil {
		return "", ErrMissingToken
	}
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMissingToken, err)
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

type wireFileRef struct {
	Name     string `json:"name"`
	FormName string `json:"form_name"`
	URL      string `json:"url"`
}

// wireReply accepts both the camelCase fields and the snake_case ones the
// Python backend emits.
type wireReply struct {
	Message      *string       `json:"message"`
	SessionID    string        `json:"sessionId"`
	SessionIDAlt string        `json:"session_id"`
	FormURL      string        `json:"formUrl"`
	FormURLAlt   string        `json:"form_url"`
	FileURL      string        `json:"file_url"`
	FileRefs     []wireFileRef `json:"fileRefs"`
	FileRefsAlt  []wireFileRef `json:"file_urls"`
}

func decodeReply(data []byte) (chat.Reply, error) {
	var w wireReply
	if err := json.Unmarshal(data, &w); err != nil {
		return chat.Reply{}, fmt.Errorf("%w: %w", ErrMalformedReply, err)
	}
	if w.Message == nil {
		return chat.Reply{}, fmt.Errorf("%w: missing message", ErrMalformedReply)
	}
	if strings.TrimSpace(*w.Message) == "" {
		return chat.Reply{}, fmt.Errorf("%w: empty message", ErrMalformedReply)
	}

	reply := chat.Reply{
		Message:   *w.Message,
		SessionID: firstNonEmpty(w.SessionID, w.SessionIDAlt),
		FormURL:   firstNonEmpty(w.FormURL, w.FormURLAlt, w.FileURL),
	}

	refs := w.FileRefs
	if len(refs) == 0 {
		refs = w.FileRefsAlt
	}
	for _, ref := range refs {
		if ref.URL == "" {
			continue
		}
		reply.FileRefs = append(reply.FileRefs, chat.FileRef{
			Name: firstNonEmpty(ref.Name, ref.FormName, ref.URL),
			URL:  ref.URL,
		})
	}
	return reply, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
