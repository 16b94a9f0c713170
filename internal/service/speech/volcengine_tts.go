package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
)

const (
	ttsStreamURL = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"
	// 未配置声音时的兜底
	fallbackSpeaker = "en_female_amy_jupiter_bigtts"
)

var errResourceMismatch = errors.New("resource ID is mismatched with speaker related resource")

// VolcengineTTSClient 火山引擎TTS WebSocket客户端
type VolcengineTTSClient struct {
	config *speechmodel.SpeechConfig
	dialer *websocket.Dialer
	url    string
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
}

type ttsRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format      string  `json:"format"`
	SampleRate  int     `json:"sample_rate"`
	SpeedRatio  float32 `json:"speed_ratio,omitempty"`
	VolumeRatio float32 `json:"volume_ratio,omitempty"`
}

// NewVolcengineTTSClient 创建火山引擎TTS客户端
func NewVolcengineTTSClient(config *speechmodel.SpeechConfig) *VolcengineTTSClient {
	return &VolcengineTTSClient{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		url:    ttsStreamURL,
	}
}

// Synthesize 合成整段音频，按声音候选与资源候选依次尝试
func (c *VolcengineTTSClient) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyUtterance
	}

	appID, token, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	speakers := ttsSpeakerCandidates(req.Voice, c.config.TTSVoice)
	var lastErr error
	for _, speaker := range speakers {
		for _, resourceID := range ttsResourceCandidates(speaker) {
			resp, err := c.synthesizeOnce(ctx, req, appID, token, speaker, resourceID)
			if err == nil {
				return resp, nil
			}
			if !errors.Is(err, errResourceMismatch) {
				return nil, err
			}
			log.Printf("[TTS] voice %s resource %s mismatch", speaker, resourceID)
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no speaker candidates for %q", req.Voice)
	}
	return nil, fmt.Errorf("TTS synthesis failed: %w", lastErr)
}

func (c *VolcengineTTSClient) synthesizeOnce(
	ctx context.Context,
	req *speechmodel.TTSRequest,
	appID, token, speaker, resourceID string,
) (*speechmodel.TTSResponse, error) {
	connectID := uuid.NewString()

	conn, resp, err := c.dialer.DialContext(ctx, c.url, authHeader(appID, token, resourceID, connectID))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS WebSocket: %w", err)
	}
	defer conn.Close()
	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			log.Printf("[TTS] connected with logid: %s", logid)
		}
	}

	// ReadMessage does not observe ctx; closing the conn unblocks it.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	payload, err := json.Marshal(c.buildRequest(req, speaker))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, newRequestFrame(payload, compressionNone).marshal()); err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %w", err)
	}

	var (
		audio bytes.Buffer
		reqID string
	)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}

		f, err := parseFrame(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TTS message: %w", err)
		}
		body, err := f.body()
		if err != nil {
			return nil, fmt.Errorf("failed to decompress TTS payload: %w", err)
		}

		switch f.kind {
		case kindServerError:
			if strings.Contains(string(body), errResourceMismatch.Error()) {
				return nil, fmt.Errorf("%w: %s", errResourceMismatch, string(body))
			}
			return nil, fmt.Errorf("TTS error %d: %s", f.errorCode, string(body))

		case kindServerAudio:
			audio.Write(body)

		case kindServerResponse:
			if f.hasEvent() && f.event == eventSessionFailed {
				return nil, fmt.Errorf("TTS session failed: %s", string(body))
			}

			var msg ttsServerMessage
			if len(body) > 0 {
				if err := json.Unmarshal(body, &msg); err != nil {
					log.Printf("[TTS] failed to unmarshal response payload: %v", err)
				} else {
					if msg.Code != 0 && msg.Code != 3000 && msg.Code != 20000000 {
						return nil, fmt.Errorf("TTS API error %d: %s", msg.Code, msg.Message)
					}
					if msg.ReqID != "" {
						reqID = msg.ReqID
					}
					if msg.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(msg.Data)
						if err != nil {
							return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
						}
						audio.Write(chunk)
					}
				}
			}

			finished := (f.hasEvent() && f.event == eventSessionFinished) || f.isLast() || msg.Sequence < 0
			if !finished {
				continue
			}
			if audio.Len() == 0 {
				return nil, errors.New("TTS audio is empty")
			}
			if reqID == "" {
				reqID = connectID
			}
			return &speechmodel.TTSResponse{
				UtteranceID: req.UtteranceID,
				AudioData:   audio.Bytes(),
				Format:      ttsFormat(req.Format),
				RequestID:   reqID,
				CreatedAt:   time.Now(),
			}, nil

		default:
			log.Printf("[TTS] unexpected message type: %d", f.kind)
		}
	}
}

// buildRequest 构建符合火山引擎API格式的TTS请求
func (c *VolcengineTTSClient) buildRequest(req *speechmodel.TTSRequest, speaker string) *ttsRequest {
	out := &ttsRequest{}
	out.User.UID = req.UtteranceID
	if out.User.UID == "" {
		out.User.UID = uuid.NewString()
	}
	out.ReqParams.Speaker = speaker
	out.ReqParams.Text = req.Text
	out.ReqParams.AudioParams.Format = ttsFormat(req.Format)
	out.ReqParams.AudioParams.SampleRate = 24000

	speed := req.Speed
	if speed <= 0 {
		speed = c.config.TTSSpeed
	}
	if speed > 0 && speed != 1.0 {
		out.ReqParams.AudioParams.SpeedRatio = speed
	}
	volume := req.Volume
	if volume <= 0 {
		volume = c.config.TTSVolume
	}
	if volume > 0 && volume != 1.0 {
		out.ReqParams.AudioParams.VolumeRatio = volume
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = strings.TrimSpace(c.config.TTSLanguage)
	}
	out.ReqParams.Language = language
	return out
}

func ttsFormat(format string) string {
	switch f := strings.TrimSpace(format); f {
	case "", "wav":
		return "mp3"
	default:
		return f
	}
}

// ttsResourceCandidates 根据声音ID推断可用的资源ID
func ttsResourceCandidates(voice string) []string {
	const (
		defaultResource = "volc.service_type.10029"
		megaResource    = "volc.megatts.default"
		seedResource    = "seed-tts-2.0"
	)

	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{megaResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "saturn", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}
	return []string{defaultResource, seedResource}
}

// ttsSpeakerCandidates 请求的声音优先，其次是配置默认值与兜底声音
func ttsSpeakerCandidates(requested, configured string) []string {
	var candidates []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		for _, existing := range candidates {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		candidates = append(candidates, s)
	}
	add(requested)
	add(configured)
	add(fallbackSpeaker)
	return candidates
}
