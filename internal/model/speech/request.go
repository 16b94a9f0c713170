package speech

// TTSRequest 语音合成请求
type TTSRequest struct {
	UtteranceID string  `json:"utteranceId"`
	Text        string  `json:"text"`
	Voice       string  `json:"voice"`  // 声音ID，对应 Voice.ID
	Speed       float32 `json:"speed"`  // 语速倍率 0.5-2.0
	Volume      float32 `json:"volume"` // 音量倍率
	Format      string  `json:"format"` // mp3, pcm
	Language    string  `json:"language"`
}
