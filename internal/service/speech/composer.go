package speech

import (
	"strings"
	"sync"

	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
)

// TranscriptState is a snapshot of the input buffer.
type TranscriptState struct {
	Committed string
	Interim   string
	Capturing bool
}

// Composer merges typed text, committed dictation and the live interim
// transcript into the single value shown in the input box.
//
// Only Committed ever leaves the composer through Take.
type Composer struct {
	mu        sync.Mutex
	committed string
	interim   string
	capturing bool
}

func NewComposer() *Composer {
	return &Composer{}
}

// SetTyped replaces the committed text with a user edit and drops the interim suffix.
func (c *Composer) SetTyped(text string) {
	c.Edit(func(string) string { return text })
}

// Edit applies fn to the current committed text.
func (c *Composer) Edit(fn func(prev string) string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = fn(c.committed)
	c.interim = ""
}

// OnInterim replaces the provisional suffix.
func (c *Composer) OnInterim(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interim = text
}

// OnFinalCommit appends a dictated segment followed by a single space.
func (c *Composer) OnFinalCommit(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed += text + " "
	c.interim = ""
}

// SetCapturing records whether dictation is running.
func (c *Composer) SetCapturing(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capturing = on
	if !on {
		c.interim = ""
	}
}

// Apply reduces a capture event into the buffer.
func (c *Composer) Apply(ev speechmodel.Event) {
	switch e := ev.(type) {
	case speechmodel.InterimUpdated:
		c.OnInterim(e.Text)
	case speechmodel.FinalCommitted:
		c.OnFinalCommit(e.Text)
	case speechmodel.RecognitionFailed:
		// provisional text from a failed session is not trustworthy
		c.SetCapturing(false)
	case speechmodel.CaptureEnded:
		c.SetCapturing(false)
	}
}

// ComposedValue is Committed followed by Interim.
func (c *Composer) ComposedValue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed + c.interim
}

func (c *Composer) Committed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed
}

func (c *Composer) Interim() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interim
}

// State returns a copy of the buffer state.
func (c *Composer) State() TranscriptState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return TranscriptState{Committed: c.committed, Interim: c.interim, Capturing: c.capturing}
}

// Reset clears committed and interim text.
func (c *Composer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = ""
	c.interim = ""
}

// Take hands the committed text to a sender and clears the buffer in one step.
// It refuses, leaving the buffer untouched, when there is nothing to send.
func (c *Composer) Take() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text := strings.TrimSpace(c.committed)
	if text == "" {
		return "", false
	}
	c.committed = ""
	c.interim = ""
	return text, true
}
