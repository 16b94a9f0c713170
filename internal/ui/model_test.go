package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhouzirui/complymate/internal/model/chat"
	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
	chatservice "github.com/zhouzirui/complymate/internal/service/chat"
	"github.com/zhouzirui/complymate/internal/service/speech"
)

type stubGateway struct {
	mu       sync.Mutex
	requests []chat.Request
	reply    chat.Reply
	err      error
}

func (g *stubGateway) Send(_ context.Context, req chat.Request) (chat.Reply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.reply, g.err
}

type stubRecognizer struct {
	mu       sync.Mutex
	cb       speechmodel.RecognizerCallbacks
	starts   int
	startErr error
}

func (r *stubRecognizer) Start(_ context.Context, cb speechmodel.RecognizerCallbacks) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.startErr != nil {
		return r.startErr
	}
	r.cb = cb
	return nil
}

func (r *stubRecognizer) Stop() error { return nil }

func (r *stubRecognizer) results(results ...speechmodel.RecognitionResult) {
	r.mu.Lock()
	cb := r.cb
	r.mu.Unlock()
	cb.OnResult(speechmodel.ResultBatch{Results: results})
}

type stubSynth struct {
	mu     sync.Mutex
	spoken []speechmodel.Utterance
}

func (s *stubSynth) Voices() []speechmodel.Voice { return speech.DefaultVoiceCatalog }

func (s *stubSynth) Speak(u speechmodel.Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, u)
	return nil
}

func (s *stubSynth) Cancel() {}

func newTestModel(t *testing.T, gw *stubGateway, rec speechmodel.Recognizer, synth speechmodel.Synthesizer) Model {
	t.Helper()
	store := chatservice.NewStore(gw, chatservice.StoreOptions{Greeting: "Hi, which OSHA form do you need?"})
	m := NewModel(context.Background(), Deps{
		Store:       store,
		Recognizer:  rec,
		Synthesizer: synth,
		Voices:      speech.NewVoiceSelector("en-US"),
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

// drain feeds every queued engine event through Update.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	for {
		msg, ok := m.events.poll()
		if !ok {
			return m
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
}

// startDictation presses ctrl+r and delivers the asynchronous start result.
func startDictation(t *testing.T, m Model) Model {
	t.Helper()
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	if cmd == nil {
		t.Fatal("ctrl+r should return a start command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestSendAppendsReply(t *testing.T) {
	gw := &stubGateway{reply: chat.Reply{Message: "Let's start the **OSHA 300** log.", SessionID: "sess-1"}}
	m := newTestModel(t, gw, nil, nil)

	m = typeText(t, m, "I need form 300")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a request command")
	}
	if got := m.input.Value(); got != "" {
		t.Fatalf("input should be cleared after send, got %q", got)
	}
	if !m.store.Pending() {
		t.Fatal("store should be pending until the reply arrives")
	}

	msg := cmd()
	reply, ok := msg.(replyMsg)
	if !ok {
		t.Fatalf("cmd returned %T", msg)
	}
	if reply.msg.Sender != chat.SenderAssistant {
		t.Fatalf("reply sender = %s", reply.msg.Sender)
	}

	next, _ := m.Update(reply)
	m = next.(Model)
	if m.store.SessionID() != "sess-1" {
		t.Fatalf("session id = %q", m.store.SessionID())
	}
	if len(gw.requests) != 1 || gw.requests[0].Content != "I need form 300" || gw.requests[0].SessionID != nil {
		t.Fatalf("unexpected requests: %+v", gw.requests)
	}
	if !strings.Contains(m.View(), "sess-1") {
		t.Fatal("status line should show the session id")
	}
}

func TestSendIgnoresBlankInput(t *testing.T) {
	gw := &stubGateway{}
	m := newTestModel(t, gw, nil, nil)

	m = typeText(t, m, "   ")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("blank input must not start a request")
	}
	if m.store.Pending() {
		t.Fatal("blank input must not mark the store pending")
	}
}

func TestSecondSendWhilePendingKeepsDraft(t *testing.T) {
	gw := &stubGateway{reply: chat.Reply{Message: "ok"}}
	m := newTestModel(t, gw, nil, nil)

	m = typeText(t, m, "first")
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = typeText(t, m, "second")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("a second send must be refused while pending")
	}
	if got := m.input.Value(); got != "second" {
		t.Fatalf("draft should survive the refused send, got %q", got)
	}
	if !strings.Contains(m.status, "waiting") {
		t.Fatalf("status = %q", m.status)
	}
}

func TestDictationFillsInput(t *testing.T) {
	rec := &stubRecognizer{}
	m := newTestModel(t, &stubGateway{}, rec, nil)

	m = typeText(t, m, "Note: ")
	m = startDictation(t, m)
	if !m.capture.Listening() || !m.composer.State().Capturing {
		t.Fatal("ctrl+r should start dictation")
	}

	rec.results(speechmodel.RecognitionResult{Text: "the worker"})
	m = drain(t, m)
	if got := m.input.Value(); got != "Note: the worker" {
		t.Fatalf("interim value = %q", got)
	}

	rec.results(speechmodel.RecognitionResult{Text: "the worker slipped", Final: true})
	m = drain(t, m)
	if got := m.input.Value(); got != "Note: the worker slipped " {
		t.Fatalf("committed value = %q", got)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	m = drain(t, m)
	if m.capture.Listening() {
		t.Fatal("second ctrl+r should stop dictation")
	}
	if m.composer.State().Capturing {
		t.Fatal("composer should leave capturing once the session ends")
	}
}

func TestTypingDropsInterim(t *testing.T) {
	rec := &stubRecognizer{}
	m := newTestModel(t, &stubGateway{}, rec, nil)

	m = startDictation(t, m)
	rec.results(speechmodel.RecognitionResult{Text: "fell off", Final: true})
	rec.results(speechmodel.RecognitionResult{Text: "a lad"})
	m = drain(t, m)

	m = typeText(t, m, "!")
	if got := m.input.Value(); got != "fell off !" {
		t.Fatalf("value after typing = %q", got)
	}
	if m.composer.Interim() != "" {
		t.Fatalf("interim should be cleared, got %q", m.composer.Interim())
	}
}

func TestSendDuringDictationSkipsInterim(t *testing.T) {
	rec := &stubRecognizer{}
	gw := &stubGateway{reply: chat.Reply{Message: "noted"}}
	m := newTestModel(t, gw, rec, nil)

	m = startDictation(t, m)
	rec.results(speechmodel.RecognitionResult{Text: "case five", Final: true})
	rec.results(speechmodel.RecognitionResult{Text: "and six"})
	m = drain(t, m)

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a request command")
	}
	cmd()
	if gw.requests[0].Content != "case five" {
		t.Fatalf("sent %q", gw.requests[0].Content)
	}
	if !m.capture.Listening() {
		t.Fatal("dictation should keep running across a send")
	}
}

func TestDictationUnavailable(t *testing.T) {
	m := newTestModel(t, &stubGateway{}, nil, nil)

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	if cmd != nil {
		t.Fatal("no start command without an engine")
	}
	if m.status != "dictation unavailable" {
		t.Fatalf("status = %q", m.status)
	}
	if !strings.Contains(m.View(), "[mic off]") {
		t.Fatal("view should flag the missing microphone")
	}
}

func TestPlaybackToggleLatestReply(t *testing.T) {
	synth := &stubSynth{}
	m := newTestModel(t, &stubGateway{}, nil, synth)

	greeting, ok := m.selectedMessage()
	if !ok {
		t.Fatal("greeting should be playable")
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	m = drain(t, m)
	if m.speakingID != greeting.ID {
		t.Fatalf("speaking id = %q, want %q", m.speakingID, greeting.ID)
	}
	if len(synth.spoken) != 1 || synth.spoken[0].Voice.ID == "" {
		t.Fatalf("unexpected utterances: %+v", synth.spoken)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	m = drain(t, m)
	if m.speakingID != "" {
		t.Fatalf("second ctrl+p should stop, speaking id = %q", m.speakingID)
	}
}

func TestEscStopsPlayback(t *testing.T) {
	synth := &stubSynth{}
	m := newTestModel(t, &stubGateway{}, nil, synth)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	m = drain(t, m)
	if m.speakingID != "" {
		t.Fatalf("esc should stop playback, speaking id = %q", m.speakingID)
	}
}

func TestPlaybackUnavailable(t *testing.T) {
	m := newTestModel(t, &stubGateway{}, nil, nil)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	if m.status != "playback unavailable" {
		t.Fatalf("status = %q", m.status)
	}
}

func TestFailedReplyShowsFallback(t *testing.T) {
	gw := &stubGateway{err: errors.New("boom")}
	m := newTestModel(t, gw, nil, nil)

	m = typeText(t, m, "hello")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	next, _ := m.Update(cmd())
	m = next.(Model)

	if m.store.Pending() {
		t.Fatal("store should be ready again after a failure")
	}
	conv := m.store.Snapshot()
	last := conv.Messages[len(conv.Messages)-1]
	if last.Sender != chat.SenderError || last.Content != chatservice.FallbackReply {
		t.Fatalf("last message = %+v", last)
	}
}

func TestSelectionMovesAcrossReplies(t *testing.T) {
	gw := &stubGateway{reply: chat.Reply{Message: "second reply"}}
	m := newTestModel(t, gw, nil, nil)

	m = typeText(t, m, "q")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	next, _ := m.Update(cmd())
	m = next.(Model)

	replies := m.replies()
	if len(replies) != 2 {
		t.Fatalf("replies = %d", len(replies))
	}

	m.moveSelection(-1)
	if m.selectedID != replies[1].ID {
		t.Fatalf("first move should select the latest reply")
	}
	m.moveSelection(-1)
	if m.selectedID != replies[0].ID {
		t.Fatalf("selection = %q, want greeting", m.selectedID)
	}
	m.moveSelection(-1)
	if m.selectedID != replies[0].ID {
		t.Fatal("selection should clamp at the first reply")
	}
}

func TestVoiceCycle(t *testing.T) {
	m := newTestModel(t, &stubGateway{}, nil, &stubSynth{})

	before := m.voices.Selected()
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	after := m.voices.Selected()
	if after.ID == before.ID && len(m.voices.Voices()) > 1 {
		t.Fatal("ctrl+v should switch voices")
	}
	if !strings.HasPrefix(m.status, "voice: ") {
		t.Fatalf("status = %q", m.status)
	}
}

func TestDictationStartRunsOffTheEventLoop(t *testing.T) {
	rec := &stubRecognizer{}
	m := newTestModel(t, &stubGateway{}, rec, nil)

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	if rec.starts != 0 {
		t.Fatal("Update must not start the engine itself")
	}
	if _, again := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlR}); again != nil {
		t.Fatal("a second ctrl+r while starting must not start twice")
	}

	next, _ := m.Update(cmd())
	m = next.(Model)
	if rec.starts != 1 || !m.capture.Listening() || m.starting {
		t.Fatalf("starts=%d listening=%v starting=%v", rec.starts, m.capture.Listening(), m.starting)
	}
}

func TestDictationStartFailureShowsStatus(t *testing.T) {
	rec := &stubRecognizer{startErr: errors.New("handshake refused")}
	m := newTestModel(t, &stubGateway{}, rec, nil)

	m = startDictation(t, m)
	if m.capture.Listening() || m.composer.State().Capturing {
		t.Fatal("failed start must leave dictation idle")
	}
	if !strings.Contains(m.status, "handshake refused") {
		t.Fatalf("status = %q", m.status)
	}
}

func TestRepeatedInterimReappearsAfterTyping(t *testing.T) {
	rec := &stubRecognizer{}
	m := newTestModel(t, &stubGateway{}, rec, nil)

	m = startDictation(t, m)
	rec.results(speechmodel.RecognitionResult{Text: "a ladder"})
	m = drain(t, m)

	m = typeText(t, m, "x")
	if got := m.input.Value(); got != "x" {
		t.Fatalf("value after typing = %q", got)
	}

	rec.results(speechmodel.RecognitionResult{Text: "a ladder"})
	m = drain(t, m)
	if got := m.input.Value(); got != "xa ladder" {
		t.Fatalf("repeated interim hidden, value = %q", got)
	}
}

func TestHelpKeys(t *testing.T) {
	m := newTestModel(t, &stubGateway{}, nil, nil)

	m = typeText(t, m, "ab")
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlH})
	if got := m.input.Value(); got != "a" || m.help.ShowAll {
		t.Fatalf("ctrl+h should delete a character, value=%q help=%v", got, m.help.ShowAll)
	}

	m = typeText(t, m, "?")
	if got := m.input.Value(); got != "a?" || m.help.ShowAll {
		t.Fatalf("? inside text should be typed, value=%q", got)
	}

	m.input.SetValue("")
	m.composer.SetTyped("")
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	if !m.help.ShowAll {
		t.Fatal("? on an empty input should toggle help")
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlUnderscore})
	if m.help.ShowAll {
		t.Fatal("ctrl+_ should toggle help back")
	}
}

func TestShortenKeepsRunesWhole(t *testing.T) {
	got := shorten("语音识别失败：连接被拒绝", 9)
	if !utf8.ValidString(got) {
		t.Fatalf("shorten split a rune: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("shorten = %q", got)
	}
	if shorten("  short ", 10) != "short" {
		t.Fatal("short strings are only trimmed")
	}
}
