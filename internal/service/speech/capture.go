package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
)

var (
	// ErrCapabilityUnavailable means the host has no dictation or synthesis engine.
	ErrCapabilityUnavailable = errors.New("speech capability unavailable")
	// ErrRecognition wraps engine-reported dictation failures.
	ErrRecognition = errors.New("speech recognition failed")
	// ErrSessionClosed is returned by Start after Close.
	ErrSessionClosed = errors.New("capture session closed")
)

// CaptureState 语音采集状态
type CaptureState int

const (
	CaptureIdle CaptureState = iota
	CaptureListening
	CaptureError
)

func (s CaptureState) String() string {
	switch s {
	case CaptureListening:
		return "listening"
	case CaptureError:
		return "error"
	default:
		return "idle"
	}
}

// CaptureSession turns a dictation engine's callbacks into transcript events.
//
// The session owns the engine. Events are delivered to emit in arrival order
// while the session lock is held, so emit must not call back into the session.
// Callbacks from an earlier Start are ignored once the session has stopped.
type CaptureSession struct {
	mu         sync.Mutex
	engine     speechmodel.Recognizer
	emit       func(speechmodel.Event)
	state      CaptureState
	generation uint64
	interim    string
	lastErr    error
	closed     bool
	closeOnce  sync.Once
}

// NewCaptureSession wires a session to engine. A nil engine yields a session
// whose Start always fails with ErrCapabilityUnavailable.
func NewCaptureSession(engine speechmodel.Recognizer, emit func(speechmodel.Event)) *CaptureSession {
	if emit == nil {
		emit = func(speechmodel.Event) {}
	}
	return &CaptureSession{engine: engine, emit: emit}
}

// Supported reports whether dictation can be started at all.
func (s *CaptureSession) Supported() bool {
	return s.engine != nil
}

// State returns the current capture state.
func (s *CaptureSession) State() CaptureState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Listening reports whether the session is capturing.
func (s *CaptureSession) Listening() bool {
	return s.State() == CaptureListening
}

// LastError returns the most recent engine error, if any.
func (s *CaptureSession) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Start begins listening. Calling it while already listening does nothing.
func (s *CaptureSession) Start(ctx context.Context) error {
	if s.engine == nil {
		return ErrCapabilityUnavailable
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state == CaptureListening {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	gen := s.generation
	s.state = CaptureListening
	s.interim = ""
	s.lastErr = nil
	s.mu.Unlock()

	err := s.engine.Start(ctx, speechmodel.RecognizerCallbacks{
		OnResult: func(batch speechmodel.ResultBatch) { s.handleResult(gen, batch) },
		OnError:  func(err error) { s.handleError(gen, err) },
		OnEnd:    func() { s.handleEnd(gen) },
	})
	if err != nil {
		s.mu.Lock()
		if s.generation == gen {
			s.generation++
			s.state = CaptureIdle
		}
		s.mu.Unlock()
		return fmt.Errorf("start dictation: %w", err)
	}

	log.Printf("[capture] listening (generation %d)", gen)
	return nil
}

// Stop ends listening and clears any provisional text. It is safe in any state
// and emits nothing when the session is already idle.
func (s *CaptureSession) Stop() error {
	s.mu.Lock()
	if s.state != CaptureListening {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	s.state = CaptureIdle
	s.interim = ""
	s.emit(speechmodel.InterimUpdated{Text: ""})
	s.emit(speechmodel.CaptureEnded{})
	s.mu.Unlock()

	// The engine may fire OnEnd synchronously; the generation bump above makes
	// that callback a no-op.
	if err := s.engine.Stop(); err != nil {
		log.Printf("[capture] engine stop failed: %v", err)
		return fmt.Errorf("stop dictation: %w", err)
	}
	log.Printf("[capture] stopped")
	return nil
}

// ResetInterim forgets the last reported interim text so the next engine
// update is delivered even when it repeats it. Consumers call it after
// dropping the provisional suffix on their own, on an edit or a send.
func (s *CaptureSession) ResetInterim() {
	s.mu.Lock()
	s.interim = ""
	s.mu.Unlock()
}

// Close releases the engine. Only the first call has any effect.
func (s *CaptureSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.Stop()
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	return err
}

func (s *CaptureSession) handleResult(gen uint64, batch speechmodel.ResultBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state != CaptureListening {
		return
	}

	start := batch.ResultIndex
	if start < 0 {
		start = 0
	}
	if start > len(batch.Results) {
		start = len(batch.Results)
	}

	var interim, final strings.Builder
	for _, result := range batch.Results[start:] {
		if result.Final {
			final.WriteString(result.Text)
		} else {
			interim.WriteString(result.Text)
		}
	}

	if committed := strings.TrimSpace(final.String()); committed != "" {
		// A commit clears the interim suffix on the consumer side.
		s.interim = ""
		s.emit(speechmodel.FinalCommitted{Text: committed})
	}
	if next := interim.String(); next != s.interim {
		s.interim = next
		s.emit(speechmodel.InterimUpdated{Text: next})
	}
}

func (s *CaptureSession) handleError(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state != CaptureListening {
		return
	}

	s.state = CaptureError
	s.generation++
	s.interim = ""
	s.lastErr = fmt.Errorf("%w: %w", ErrRecognition, err)
	log.Printf("[capture] engine error: %v", err)

	s.state = CaptureIdle
	s.emit(speechmodel.RecognitionFailed{Err: s.lastErr})
	s.emit(speechmodel.CaptureEnded{})
}

func (s *CaptureSession) handleEnd(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state != CaptureListening {
		return
	}

	s.generation++
	s.state = CaptureIdle
	s.interim = ""
	s.emit(speechmodel.InterimUpdated{Text: ""})
	s.emit(speechmodel.CaptureEnded{})
	log.Printf("[capture] engine ended the session")
}
