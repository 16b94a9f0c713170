package speech

import (
	"strings"
	"sync"

	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
)

// DefaultVoiceCatalog 内置火山引擎声音目录
var DefaultVoiceCatalog = []speechmodel.Voice{
	{ID: "en_female_amy_jupiter_bigtts", Name: "Amy Natural (US)", Locale: "en-US"},
	{ID: "en_female_candice_emo_v2_mars_bigtts", Name: "Candice Expressive (US)", Locale: "en-US"},
	{ID: "en_male_glen_emo_v2_mars_bigtts", Name: "Glen Expressive (US)", Locale: "en-US"},
	{ID: "en_female_skye_emo_v2_mars_bigtts", Name: "Skye Expressive (US)", Locale: "en-US"},
	{ID: "zh_female_vv_uranus_bigtts", Name: "Vivi 2.0", Locale: "zh-CN"},
	{ID: "zh_male_M392_conversation_wvae_bigtts", Name: "M392 Conversation", Locale: "zh-CN"},
}

// ParseVoiceCatalog reads entries of the form "id|name|locale" separated by
// commas. Name and locale are optional.
func ParseVoiceCatalog(raw string) []speechmodel.Voice {
	var voices []speechmodel.Voice
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		voice := speechmodel.Voice{ID: strings.TrimSpace(parts[0])}
		if voice.ID == "" {
			continue
		}
		voice.Name = voice.ID
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
			voice.Name = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			voice.Locale = strings.TrimSpace(parts[2])
		}
		voices = append(voices, voice)
	}
	return voices
}

// PreferredVoice applies the default-voice heuristic: an English Google US
// voice, then an English "Natural" voice, then any en-US voice, then the first
// voice whose locale starts with fallbackLocale.
func PreferredVoice(voices []speechmodel.Voice, fallbackLocale string) (speechmodel.Voice, bool) {
	checks := []func(speechmodel.Voice) bool{
		func(v speechmodel.Voice) bool {
			return strings.HasPrefix(v.Locale, "en") && strings.Contains(v.Name, "Google") && strings.Contains(v.Name, "US")
		},
		func(v speechmodel.Voice) bool {
			return strings.HasPrefix(v.Locale, "en") && strings.Contains(v.Name, "Natural")
		},
		func(v speechmodel.Voice) bool {
			return strings.HasPrefix(v.Locale, "en-US")
		},
	}
	if fallbackLocale = strings.TrimSpace(fallbackLocale); fallbackLocale != "" {
		checks = append(checks, func(v speechmodel.Voice) bool {
			return strings.HasPrefix(strings.ToLower(v.Locale), strings.ToLower(fallbackLocale))
		})
	}

	for _, check := range checks {
		for _, v := range voices {
			if check(v) {
				return v, true
			}
		}
	}
	return speechmodel.Voice{}, false
}

// VoiceSelector remembers the voice used for playback. The heuristic default
// is picked once; an explicit Select wins for the rest of the session.
type VoiceSelector struct {
	mu             sync.RWMutex
	voices         []speechmodel.Voice
	selected       speechmodel.Voice
	explicit       bool
	fallbackLocale string
}

func NewVoiceSelector(fallbackLocale string) *VoiceSelector {
	return &VoiceSelector{fallbackLocale: fallbackLocale}
}

// Update replaces the catalog. A default is chosen only when none is set yet.
func (s *VoiceSelector) Update(voices []speechmodel.Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.voices = append([]speechmodel.Voice(nil), voices...)
	if s.explicit || s.selected.ID != "" {
		return
	}
	if v, ok := PreferredVoice(s.voices, s.fallbackLocale); ok {
		s.selected = v
	}
}

// Select makes id the session voice. Unknown ids are rejected.
func (s *VoiceSelector) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.voices {
		if v.ID == id {
			s.selected = v
			s.explicit = true
			return true
		}
	}
	return false
}

// Next selects the voice after the current one, wrapping around.
func (s *VoiceSelector) Next() (speechmodel.Voice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.voices) == 0 {
		return speechmodel.Voice{}, false
	}
	idx := 0
	for i, v := range s.voices {
		if v.ID == s.selected.ID {
			idx = (i + 1) % len(s.voices)
			break
		}
	}
	s.selected = s.voices[idx]
	s.explicit = true
	return s.selected, true
}

// Selected returns the active voice; the zero Voice means engine default.
func (s *VoiceSelector) Selected() speechmodel.Voice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Explicit reports whether the user picked the voice.
func (s *VoiceSelector) Explicit() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.explicit
}

func (s *VoiceSelector) Voices() []speechmodel.Voice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]speechmodel.Voice(nil), s.voices...)
}
