package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/complymate/internal/model/chat"
)

const glamourStyle = "dark"

var (
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	botStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	markerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	linkStyle    = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("75"))
	interimStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("241"))
)

func panelStyle(active bool) lipgloss.Style {
	border := lipgloss.Color("238")
	if active {
		border = lipgloss.Color("63")
	}
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border)
}

// markdownRenderer caches glamour output per message and width.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]string
}

func newMarkdownRenderer() *markdownRenderer {
	return &markdownRenderer{cache: make(map[string]string)}
}

func (r *markdownRenderer) render(id, md string, width int) string {
	if width < 20 {
		width = 20
	}
	if r.renderer == nil || r.width != width {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(glamourStyle),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		r.renderer = tr
		r.width = width
		clear(r.cache)
	}

	if out, ok := r.cache[id]; ok {
		return out
	}
	out, err := r.renderer.Render(md)
	if err != nil {
		return md
	}
	out = strings.Trim(out, "\n")
	r.cache[id] = out
	return out
}

type transcriptView struct {
	messages   []chat.Message
	selectedID string
	speakingID string
	pending    bool
	spinner    string
	width      int
}

func renderTranscript(md *markdownRenderer, v transcriptView) string {
	var b strings.Builder
	for i, msg := range v.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(messageHeader(msg, msg.ID == v.selectedID, msg.ID == v.speakingID))
		b.WriteString("\n")

		switch msg.Sender {
		case chat.SenderAssistant:
			b.WriteString(md.render(msg.ID, msg.Content, v.width))
		default:
			b.WriteString(lipgloss.NewStyle().Width(v.width).Render(msg.Content))
		}

		if msg.FormURL != "" && len(msg.FileRefs) == 0 {
			b.WriteString("\n")
			b.WriteString(linkStyle.Render("📄 " + msg.FormURL))
		}
		for _, ref := range msg.FileRefs {
			b.WriteString("\n")
			b.WriteString(linkStyle.Render(fmt.Sprintf("📄 %s  %s", ref.Name, ref.URL)))
		}
	}
	if v.pending {
		b.WriteString("\n\n")
		b.WriteString(botStyle.Render("ComplyMate"))
		b.WriteString(" ")
		b.WriteString(v.spinner)
		b.WriteString(" typing...")
	}
	return b.String()
}

func messageHeader(msg chat.Message, selected, speaking bool) string {
	var label string
	switch msg.Sender {
	case chat.SenderUser:
		label = userStyle.Render("You")
	case chat.SenderAssistant:
		label = botStyle.Render("ComplyMate")
	default:
		label = errorStyle.Render("Error")
	}

	if selected {
		label = markerStyle.Render("▶ ") + label
	}
	if speaking {
		label += markerStyle.Render("  🔊 speaking")
	}
	return label
}
