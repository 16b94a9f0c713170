package speech

// SpeechConfig 语音服务配置
type SpeechConfig struct {
	// Volcengine 配置
	AppID          string `json:"appId"`            // 火山引擎 APP ID
	AccessToken    string `json:"accessToken"`      // 火山引擎 Access Token
	APIKey         string `json:"apiKey,omitempty"` // 兼容旧配置的 API Key
	Region         string `json:"region"`           // 服务区域
	ConcurrentMode bool   `json:"concurrentMode"`   // ASR并发模式（false为小时版）

	// ASR 配置
	ASRModel      string `json:"asrModel"`
	ASRLanguage   string `json:"asrLanguage"`
	ASRSampleRate int    `json:"asrSampleRate"`

	// TTS 配置
	TTSVoice    string   `json:"ttsVoice"`
	TTSVoices   []string `json:"ttsVoices,omitempty"` // 可选声音目录，留空使用内置目录
	TTSSpeed    float32  `json:"ttsSpeed"`
	TTSVolume   float32  `json:"ttsVolume"`
	TTSLanguage string   `json:"ttsLanguage"`

	// 通用配置
	Timeout int `json:"timeout"` // seconds
}
