package speech

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
)

// ttsBackend produces a complete audio clip for a request.
type ttsBackend interface {
	Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error)
}

// VolcengineSynthesizer 合成整段音频后交给本地播放器
//
// Cancel stops the current clip and suppresses every callback of the
// cancelled utterance.
type VolcengineSynthesizer struct {
	tts    ttsBackend
	player audioPlayer
	voices []speechmodel.Voice

	mu     sync.Mutex
	token  uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewVolcengineSynthesizer 创建合成引擎，voices 为空时使用内置目录
func NewVolcengineSynthesizer(client *VolcengineTTSClient, voices []speechmodel.Voice) *VolcengineSynthesizer {
	return newSynthesizer(client, ffplayPlayer{}, voices)
}

func newSynthesizer(tts ttsBackend, player audioPlayer, voices []speechmodel.Voice) *VolcengineSynthesizer {
	if len(voices) == 0 {
		voices = DefaultVoiceCatalog
	}
	return &VolcengineSynthesizer{
		tts:    tts,
		player: player,
		voices: append([]speechmodel.Voice(nil), voices...),
	}
}

func (s *VolcengineSynthesizer) Voices() []speechmodel.Voice {
	return append([]speechmodel.Voice(nil), s.voices...)
}

// Speak starts u in the background. A previous utterance that was not
// cancelled is cancelled here so two clips never overlap.
func (s *VolcengineSynthesizer) Speak(u speechmodel.Utterance) error {
	if u.Text == "" {
		return ErrEmptyUtterance
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.token++
	tok := s.token
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	req := &speechmodel.TTSRequest{
		UtteranceID: uuid.NewString(),
		Text:        u.Text,
		Voice:       u.Voice.ID,
		Speed:       u.Rate,
		Language:    u.Voice.Locale,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		resp, err := s.tts.Synthesize(ctx, req)
		if err != nil {
			s.deliver(tok, func() { callError(u, err) })
			return
		}
		s.deliver(tok, func() {
			if u.OnStart != nil {
				u.OnStart()
			}
		})

		err = s.player.Play(ctx, resp.AudioData, resp.Format)
		switch {
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			s.deliver(tok, func() { callError(u, err) })
		default:
			s.deliver(tok, func() {
				if u.OnEnd != nil {
					u.OnEnd()
				}
			})
		}
	}()
	return nil
}

// Cancel silences the active utterance. Safe when idle.
func (s *VolcengineSynthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.token++
}

// Wait blocks until every background utterance has returned.
func (s *VolcengineSynthesizer) Wait() {
	s.wg.Wait()
}

// deliver runs fn only if tok is still the live utterance.
func (s *VolcengineSynthesizer) deliver(tok uint64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok != s.token {
		return
	}
	fn()
}

func callError(u speechmodel.Utterance, err error) {
	if u.OnError != nil {
		u.OnError(err)
	}
}
