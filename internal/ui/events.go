package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
)

type captureMsg struct{ ev speechmodel.Event }

type playbackMsg struct{ speakingID string }

// dictationStartedMsg reports the outcome of an asynchronous capture start.
type dictationStartedMsg struct{ err error }

// eventQueue carries engine callbacks into the Update loop. Pushes never
// block, so engines may call them while holding their own locks. The backlog
// is unbounded; only consecutive interim updates are coalesced, since each
// replaces the previous one.
type eventQueue struct {
	mu      sync.Mutex
	pending []tea.Msg
	ready   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(msg tea.Msg) {
	q.mu.Lock()
	if n := len(q.pending); n > 0 && isInterim(msg) && isInterim(q.pending[n-1]) {
		q.pending[n-1] = msg
	} else {
		q.pending = append(q.pending, msg)
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) capture(ev speechmodel.Event) {
	q.push(captureMsg{ev: ev})
}

func (q *eventQueue) playback(id string) {
	q.push(playbackMsg{speakingID: id})
}

// poll pops the oldest queued event without blocking.
func (q *eventQueue) poll() (tea.Msg, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, false
	}
	msg := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return msg, true
}

// wait returns a command that delivers the next queued event.
func (q *eventQueue) wait() tea.Cmd {
	return func() tea.Msg {
		for {
			if msg, ok := q.poll(); ok {
				return msg
			}
			<-q.ready
		}
	}
}

func isInterim(msg tea.Msg) bool {
	c, ok := msg.(captureMsg)
	if !ok {
		return false
	}
	_, ok = c.ev.(speechmodel.InterimUpdated)
	return ok
}
