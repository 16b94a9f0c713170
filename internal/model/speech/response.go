package speech

import "time"

// TTSResponse 语音合成响应
type TTSResponse struct {
	UtteranceID string    `json:"utteranceId"`
	AudioData   []byte    `json:"-"`
	Duration    int64     `json:"duration"` // milliseconds
	Format      string    `json:"format"`
	RequestID   string    `json:"requestId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
