package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequest(t *testing.T) {
	m := New("")
	m.RecordRequest("/api/v1/chat/chat", http.MethodPost, http.StatusOK, 150*time.Millisecond)
	m.RecordRequest("/api/v1/chat/chat", http.MethodPost, http.StatusOK, 10*time.Millisecond)

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/v1/chat/chat", http.MethodPost, "200"))
	if got != 2 {
		t.Fatalf("requests_total = %v, want 2", got)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New("complymate")
	m.RecordReply("form")
	m.RecordForm("300")
	m.RecordSession()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`complymate_chat_replies_total{outcome="form"} 1`,
		`complymate_forms_generated_total{form_type="300"} 1`,
		`complymate_chat_sessions_created_total 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
