package speech

import (
	"fmt"
	"log"
	"strings"

	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
)

// Service 语音能力入口：检测本机与凭证后提供识别、合成引擎
type Service struct {
	config *speechmodel.SpeechConfig
	voices []speechmodel.Voice
}

// NewService 创建语音服务实例
func NewService(config *speechmodel.SpeechConfig) *Service {
	voices := DefaultVoiceCatalog
	if config != nil && len(config.TTSVoices) > 0 {
		if parsed := ParseVoiceCatalog(strings.Join(config.TTSVoices, ",")); len(parsed) > 0 {
			voices = parsed
		}
	}
	return &Service{config: config, voices: voices}
}

// Recognizer returns the dictation engine or ErrCapabilityUnavailable when
// credentials or ffmpeg are missing.
func (s *Service) Recognizer() (speechmodel.Recognizer, error) {
	if _, _, err := resolveCredentials(s.config); err != nil {
		return nil, err
	}
	if !MicAvailable() {
		return nil, fmt.Errorf("%w: ffmpeg microphone capture not available", ErrCapabilityUnavailable)
	}
	return NewVolcengineRecognizer(s.config), nil
}

// Synthesizer returns the synthesis engine or ErrCapabilityUnavailable when
// credentials or ffplay are missing.
func (s *Service) Synthesizer() (speechmodel.Synthesizer, error) {
	if _, _, err := resolveCredentials(s.config); err != nil {
		return nil, err
	}
	if !PlayerAvailable() {
		return nil, fmt.Errorf("%w: ffplay not found in PATH", ErrCapabilityUnavailable)
	}
	return NewVolcengineSynthesizer(NewVolcengineTTSClient(s.config), s.voices), nil
}

// Voices 返回声音目录
func (s *Service) Voices() []speechmodel.Voice {
	return append([]speechmodel.Voice(nil), s.voices...)
}

// Engines resolves both engines once and logs what is unavailable. Nil
// engines disable the matching controls.
func (s *Service) Engines() (speechmodel.Recognizer, speechmodel.Synthesizer) {
	rec, err := s.Recognizer()
	if err != nil {
		log.Printf("[speech] dictation disabled: %v", err)
		rec = nil
	}
	syn, err := s.Synthesizer()
	if err != nil {
		log.Printf("[speech] playback disabled: %v", err)
		syn = nil
	}
	return rec, syn
}
