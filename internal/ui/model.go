package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zhouzirui/complymate/internal/model/chat"
	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
	chatservice "github.com/zhouzirui/complymate/internal/service/chat"
	"github.com/zhouzirui/complymate/internal/service/speech"
)

// Deps are the collaborators of the chat screen. Nil engines disable the
// matching controls.
type Deps struct {
	Store       *chatservice.Store
	Recognizer  speechmodel.Recognizer
	Synthesizer speechmodel.Synthesizer
	Voices      *speech.VoiceSelector
}

type Model struct {
	ctx      context.Context
	store    *chatservice.Store
	composer *speech.Composer
	capture  *speech.CaptureSession
	playback *speech.PlaybackController
	voices   *speech.VoiceSelector
	events   *eventQueue
	md       *markdownRenderer

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap

	width  int
	height int

	selectedID string
	speakingID string
	starting   bool
	status     string
}

type replyMsg struct{ msg chat.Message }

func NewModel(ctx context.Context, deps Deps) Model {
	events := newEventQueue()

	voices := deps.Voices
	if voices == nil {
		voices = speech.NewVoiceSelector("")
	}
	if deps.Synthesizer != nil {
		voices.Update(deps.Synthesizer.Voices())
	}

	ti := textinput.New()
	ti.Placeholder = "Ask about OSHA recordkeeping..."
	ti.Prompt = "> "
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points

	h := help.New()
	h.ShowAll = false

	m := Model{
		ctx:      ctx,
		store:    deps.Store,
		composer: speech.NewComposer(),
		capture:  speech.NewCaptureSession(deps.Recognizer, events.capture),
		playback: speech.NewPlaybackController(deps.Synthesizer,
			speech.WithVoiceSelector(voices),
			speech.WithPlaybackObserver(events.playback),
		),
		voices:   voices,
		events:   events,
		md:       newMarkdownRenderer(),
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		help:     h,
		keys:     defaultKeys(),
	}
	m.refresh(true)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.events.wait(), textinput.Blink)
}

// Close releases the audio engines.
func (m Model) Close() {
	_ = m.capture.Close()
	m.playback.Stop()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refresh(true)
		return m, nil

	case captureMsg:
		m.composer.Apply(msg.ev)
		if failed, ok := msg.ev.(speechmodel.RecognitionFailed); ok {
			m.status = "dictation stopped: " + failed.Err.Error()
		}
		m.syncInput()
		return m, m.events.wait()

	case dictationStartedMsg:
		m.starting = false
		switch {
		case msg.err != nil:
			m.status = msg.err.Error()
		case m.capture.Listening():
			m.composer.SetCapturing(true)
			m.status = ""
		}
		return m, nil

	case playbackMsg:
		m.speakingID = msg.speakingID
		m.refresh(false)
		return m, m.events.wait()

	case replyMsg:
		m.refresh(true)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.store.Pending() {
			m.refresh(false)
		}
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Send):
		return m.send()
	case key.Matches(msg, m.keys.Dictate):
		return m, m.toggleDictation()
	case key.Matches(msg, m.keys.Play):
		m.togglePlayback()
		return m, nil
	case key.Matches(msg, m.keys.Stop):
		m.playback.Stop()
		return m, nil
	case key.Matches(msg, m.keys.Voice):
		if v, ok := m.voices.Next(); ok {
			m.status = fmt.Sprintf("voice: %s (%s)", v.Name, v.Locale)
		} else {
			m.status = "no voices available"
		}
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		m.moveSelection(-1)
		return m, nil
	case key.Matches(msg, m.keys.Next):
		m.moveSelection(1)
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	case key.Matches(msg, m.keys.Help) && (msg.String() != "?" || m.input.Value() == ""):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return m, nil
	}

	// typing over dictation drops the provisional text first
	if m.composer.Interim() != "" {
		m.input.SetValue(m.composer.Committed())
		m.input.CursorEnd()
		m.capture.ResetInterim()
	}
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before || m.composer.Interim() != "" {
		m.composer.SetTyped(after)
	}
	return m, cmd
}

func (m Model) send() (tea.Model, tea.Cmd) {
	req, err := m.store.Begin(m.composer)
	switch {
	case errors.Is(err, chatservice.ErrEmptyMessage):
		return m, nil
	case errors.Is(err, chatservice.ErrRequestPending):
		m.status = "waiting for the previous reply"
		return m, nil
	case err != nil:
		m.status = err.Error()
		return m, nil
	}

	m.status = ""
	m.capture.ResetInterim()
	m.syncInput()
	m.refresh(true)

	store, ctx := m.store, m.ctx
	return m, func() tea.Msg {
		return replyMsg{msg: store.Complete(ctx, req)}
	}
}

// toggleDictation stops a running capture, or returns a command that starts
// one off the event loop since the engine dials its backend on Start.
func (m *Model) toggleDictation() tea.Cmd {
	if m.capture.Listening() {
		_ = m.capture.Stop()
		return nil
	}
	if !m.capture.Supported() {
		m.status = "dictation unavailable"
		return nil
	}
	if m.starting {
		return nil
	}

	m.starting = true
	m.status = "starting microphone..."
	capture, ctx := m.capture, m.ctx
	return func() tea.Msg {
		return dictationStartedMsg{err: capture.Start(ctx)}
	}
}

func (m *Model) togglePlayback() {
	target, ok := m.selectedMessage()
	if !ok {
		m.status = "no reply to play"
		return
	}
	err := m.playback.ToggleMessage(target)
	switch {
	case err == nil:
		m.status = ""
	case errors.Is(err, speech.ErrCapabilityUnavailable):
		m.status = "playback unavailable"
	default:
		m.status = err.Error()
	}
}

// selectedMessage returns the highlighted reply, defaulting to the latest one.
func (m Model) selectedMessage() (chat.Message, bool) {
	if m.selectedID != "" {
		if msg, ok := m.store.Message(m.selectedID); ok {
			return msg, true
		}
	}
	replies := m.replies()
	if len(replies) == 0 {
		return chat.Message{}, false
	}
	return replies[len(replies)-1], true
}

func (m *Model) moveSelection(delta int) {
	replies := m.replies()
	if len(replies) == 0 {
		return
	}

	idx := len(replies) - 1
	for i, r := range replies {
		if r.ID == m.selectedID {
			idx = i
			break
		}
	}
	if m.selectedID != "" {
		idx += delta
	}
	idx = max(0, min(idx, len(replies)-1))
	m.selectedID = replies[idx].ID
	m.refresh(false)
}

func (m Model) replies() []chat.Message {
	var out []chat.Message
	for _, msg := range m.store.Snapshot().Messages {
		if msg.Speakable() {
			out = append(out, msg)
		}
	}
	return out
}

func (m *Model) syncInput() {
	m.input.SetValue(m.composer.ComposedValue())
	m.input.CursorEnd()
}

func (m *Model) refresh(bottom bool) {
	conv := m.store.Snapshot()
	m.viewport.SetContent(renderTranscript(m.md, transcriptView{
		messages:   conv.Messages,
		selectedID: m.selectedID,
		speakingID: m.speakingID,
		pending:    conv.Pending,
		spinner:    m.spinner.View(),
		width:      max(m.viewport.Width-2, 20),
	}))
	if bottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	helpHeight := lipgloss.Height(m.help.View(m.keys))
	// status line, input panel (3) and the transcript panel border (2)
	m.viewport.Width = m.width - 2
	m.viewport.Height = max(m.height-helpHeight-1-3-2, 3)
	m.input.Width = m.width - 4 - len(m.input.Prompt)
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}

	transcript := panelStyle(false).Width(m.width - 2).Render(m.viewport.View())
	input := panelStyle(true).Width(m.width - 2).Render(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusLine(),
		transcript,
		input,
		m.help.View(m.keys),
	)
}

func (m Model) statusLine() string {
	parts := []string{"ComplyMate"}
	if id := m.store.SessionID(); id != "" {
		parts = append(parts, "session="+shorten(id, 12))
	}

	switch {
	case !m.capture.Supported():
		parts = append(parts, "[mic off]")
	case m.capture.Listening():
		parts = append(parts, interimStyle.Render("[listening]"))
	}

	if !m.playback.Supported() {
		parts = append(parts, "[audio off]")
	} else if v := m.voices.Selected(); v.ID != "" {
		parts = append(parts, "voice="+v.Name)
	}

	if m.speakingID != "" {
		parts = append(parts, "[speaking]")
	}
	if s := strings.TrimSpace(m.status); s != "" {
		parts = append(parts, shorten(s, 80))
	}
	return statusStyle.Render(strings.Join(parts, "  "))
}

// shorten truncates to n display cells without splitting a rune.
func shorten(s string, n int) string {
	return ansi.Truncate(strings.TrimSpace(s), n, "...")
}
