package speech

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	chatmodel "github.com/zhouzirui/complymate/internal/model/chat"
	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
)

var (
	// ErrPlayback wraps synthesis failures. They never reach the conversation.
	ErrPlayback = errors.New("speech playback failed")
	// ErrEmptyUtterance is returned when nothing speakable is left after cleanup.
	ErrEmptyUtterance = errors.New("nothing to speak")
	// ErrNotSpeakable is returned for messages that did not come from the assistant.
	ErrNotSpeakable = errors.New("only assistant messages can be spoken")
)

// PlaybackController is the only caller of the synthesis engine. It keeps at
// most one utterance alive and always cancels before speaking again.
type PlaybackController struct {
	// opMu serializes Toggle/Stop so cancel and speak are never interleaved.
	opMu sync.Mutex

	mu       sync.Mutex
	engine   speechmodel.Synthesizer
	voices   *VoiceSelector
	speaking string
	onChange func(speakingID string)
}

// PlaybackOption 播放控制器可选项
type PlaybackOption func(*PlaybackController)

// WithVoiceSelector makes the controller read the active voice from sel.
func WithVoiceSelector(sel *VoiceSelector) PlaybackOption {
	return func(p *PlaybackController) { p.voices = sel }
}

// WithPlaybackObserver registers fn to be told whenever the speaking id changes.
// fn runs outside the controller lock.
func WithPlaybackObserver(fn func(speakingID string)) PlaybackOption {
	return func(p *PlaybackController) { p.onChange = fn }
}

// NewPlaybackController wraps engine. A nil engine disables playback.
func NewPlaybackController(engine speechmodel.Synthesizer, opts ...PlaybackOption) *PlaybackController {
	p := &PlaybackController{engine: engine}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Supported reports whether a synthesis engine is present.
func (p *PlaybackController) Supported() bool {
	return p.engine != nil
}

// SpeakingID returns the id of the message being spoken, or "".
func (p *PlaybackController) SpeakingID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

// ToggleMessage plays or stops an assistant message.
func (p *PlaybackController) ToggleMessage(msg chatmodel.Message) error {
	if !msg.Speakable() {
		return ErrNotSpeakable
	}
	return p.Toggle(msg.ID, msg.Content)
}

// Toggle stops messageID if it is the one speaking, otherwise cancels whatever
// is active and speaks text under messageID.
func (p *PlaybackController) Toggle(messageID, text string) error {
	if p.engine == nil {
		return ErrCapabilityUnavailable
	}

	p.opMu.Lock()
	defer p.opMu.Unlock()

	current := p.SpeakingID()
	if current != "" && current == messageID {
		p.stop()
		return nil
	}

	spoken := strings.TrimSpace(SpeakableText(text))
	if spoken == "" {
		return ErrEmptyUtterance
	}

	if current != "" {
		p.engine.Cancel()
		p.setSpeaking("")
	}

	p.setSpeaking(messageID)

	utterance := speechmodel.Utterance{
		Text:  spoken,
		Rate:  1,
		Pitch: 1,
		OnStart: func() {
			log.Printf("[playback] speaking %s", messageID)
		},
		OnEnd: func() {
			p.setSpeaking("")
		},
		OnError: func(err error) {
			log.Printf("[playback] %v: %v", ErrPlayback, err)
			p.setSpeaking("")
		},
	}
	if p.voices != nil {
		utterance.Voice = p.voices.Selected()
	}

	if err := p.engine.Speak(utterance); err != nil {
		p.setSpeaking("")
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}
	return nil
}

// Stop silences the engine and clears the speaking id. Safe when idle.
func (p *PlaybackController) Stop() {
	if p.engine == nil {
		return
	}
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.stop()
}

func (p *PlaybackController) stop() {
	p.engine.Cancel()
	p.setSpeaking("")
}

func (p *PlaybackController) setSpeaking(id string) {
	p.mu.Lock()
	changed := p.speaking != id
	p.speaking = id
	notify := p.onChange
	p.mu.Unlock()

	if changed && notify != nil {
		notify(id)
	}
}
