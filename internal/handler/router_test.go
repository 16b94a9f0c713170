package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zhouzirui/complymate/internal/metrics"
	chatService "github.com/zhouzirui/complymate/internal/service/chat"
)

func TestRouterWithoutModel(t *testing.T) {
	r := NewRouter(chatService.NewService(), nil, metrics.New("test"), []string{"secret"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/chat", strings.NewReader(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat/chat", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without model, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "test_http_requests_total") {
		t.Fatalf("metrics endpoint missing request counters")
	}
}
