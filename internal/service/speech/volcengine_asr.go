package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
)

const (
	// 双向流式（优化版本），边说边出结果
	asrStreamURL = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_async"
	// 停止后等待服务端最后一包的时间
	asrDrainTimeout = 3 * time.Second
)

var errRecognizerBusy = errors.New("recognizer already running")

// VolcengineRecognizer 火山引擎流式语音识别引擎，麦克风音频经 ffmpeg 采集
type VolcengineRecognizer struct {
	config  *speechmodel.SpeechConfig
	dialer  *websocket.Dialer
	url     string
	openMic openMicFunc

	mu     sync.Mutex
	active *asrStream
}

type asrServerMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result,omitempty"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info,omitempty"`
}

type asrUtterance struct {
	Text      string `json:"text"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Definite  bool   `json:"definite"`
}

// asrRequest 火山引擎ASR请求结构（按文档格式）
type asrRequest struct {
	User struct {
		UID      string `json:"uid,omitempty"`
		Platform string `json:"platform,omitempty"`
	} `json:"user,omitempty"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

// NewVolcengineRecognizer 创建火山引擎流式识别引擎
func NewVolcengineRecognizer(config *speechmodel.SpeechConfig) *VolcengineRecognizer {
	return &VolcengineRecognizer{
		config:  config,
		dialer:  &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		url:     asrStreamURL,
		openMic: openFFmpegMic,
	}
}

// Start dials the streaming endpoint and begins pumping microphone audio.
func (r *VolcengineRecognizer) Start(ctx context.Context, cb speechmodel.RecognizerCallbacks) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return errRecognizerBusy
	}

	appID, token, err := resolveCredentials(r.config)
	if err != nil {
		return err
	}

	resourceID := "volc.bigasr.sauc.duration" // 小时版
	if r.config.ConcurrentMode {
		resourceID = "volc.bigasr.sauc.concurrent" // 并发版
	}
	connectID := uuid.NewString()

	conn, resp, err := r.dialer.DialContext(ctx, r.url, authHeader(appID, token, resourceID, connectID))
	if err != nil {
		return fmt.Errorf("failed to connect to ASR WebSocket: %w", err)
	}
	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			log.Printf("[ASR] connected with logid: %s", logid)
		}
	}

	if err := r.sendRequest(conn, connectID); err != nil {
		conn.Close()
		return err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	mic, err := r.openMic(streamCtx, r.sampleRate())
	if err != nil {
		cancel()
		conn.Close()
		return fmt.Errorf("open microphone: %w", err)
	}

	st := &asrStream{
		conn:   conn,
		mic:    mic,
		cancel: cancel,
		cb:     cb,
	}
	st.release = func() {
		r.mu.Lock()
		if r.active == st {
			r.active = nil
		}
		r.mu.Unlock()
	}
	r.active = st

	go st.pump()
	go st.receive(streamCtx)
	return nil
}

// Stop closes the microphone; the stream finishes once the server sends its
// last packet or the drain timeout elapses.
func (r *VolcengineRecognizer) Stop() error {
	r.mu.Lock()
	st := r.active
	r.mu.Unlock()
	if st == nil {
		return nil
	}

	if st.stopping.CompareAndSwap(false, true) {
		_ = st.mic.Close()
		time.AfterFunc(asrDrainTimeout, func() { st.finish(nil) })
	}
	return nil
}

func (r *VolcengineRecognizer) sampleRate() int {
	if r.config.ASRSampleRate > 0 {
		return r.config.ASRSampleRate
	}
	return micSampleRateHz
}

func (r *VolcengineRecognizer) sendRequest(conn *websocket.Conn, uid string) error {
	req := &asrRequest{}
	req.User.UID = uid
	req.User.Platform = "complymate-cli"
	req.Audio.Format = "pcm"
	req.Audio.Codec = "raw"
	req.Audio.Rate = r.sampleRate()
	req.Audio.Bits = 16
	req.Audio.Channel = 1
	req.Audio.Language = strings.TrimSpace(r.config.ASRLanguage)

	req.Request.ModelName = "bigmodel"
	if m := strings.TrimSpace(r.config.ASRModel); m != "" {
		req.Request.ModelName = m
	}
	req.Request.EnableITN = true
	req.Request.EnablePunc = true
	req.Request.ShowUtterances = true
	req.Request.ResultType = "full" // 全量返回，按 definite 区分终稿
	req.Request.EndWindowSize = 800

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal ASR request: %w", err)
	}
	payload, err = compress(payload, compressionGzip)
	if err != nil {
		return fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, newRequestFrame(payload, compressionGzip).marshal()); err != nil {
		return fmt.Errorf("failed to send ASR request: %w", err)
	}
	return nil
}

// asrStream 一次识别会话
type asrStream struct {
	conn    *websocket.Conn
	mic     io.ReadCloser
	cancel  context.CancelFunc
	cb      speechmodel.RecognizerCallbacks
	release func()

	stopping  atomic.Bool
	once      sync.Once
	delivered int
}

// pump 读取麦克风并按200ms分包发送，麦克风关闭后发送结束包
func (st *asrStream) pump() {
	// 服务端FullClientRequest占用序号1，音频从2开始
	seq := int32(2)
	buf := make([]byte, micChunkBytes)
	for {
		n, readErr := io.ReadFull(st.mic, buf)
		if n > 0 {
			if err := st.sendAudio(buf[:n], seq, false); err != nil {
				if !st.stopping.Load() {
					st.finish(fmt.Errorf("failed to send audio chunk: %w", err))
				}
				return
			}
			seq++
		}
		if readErr != nil {
			if err := st.sendAudio(nil, seq, true); err != nil && !st.stopping.Load() {
				st.finish(fmt.Errorf("failed to send last audio packet: %w", err))
			}
			return
		}
	}
}

func (st *asrStream) sendAudio(pcm []byte, seq int32, last bool) error {
	chunk, err := compress(pcm, compressionGzip)
	if err != nil {
		return err
	}
	return st.conn.WriteMessage(websocket.BinaryMessage, newAudioFrame(chunk, seq, last, compressionGzip).marshal())
}

func (st *asrStream) receive(ctx context.Context) {
	for {
		_, data, err := st.conn.ReadMessage()
		if err != nil {
			if st.stopping.Load() || ctx.Err() != nil {
				st.finish(nil)
			} else {
				st.finish(fmt.Errorf("failed to read ASR response: %w", err))
			}
			return
		}

		f, err := parseFrame(data)
		if err != nil {
			st.finish(fmt.Errorf("failed to decode ASR message: %w", err))
			return
		}

		switch f.kind {
		case kindServerError:
			body, _ := f.body()
			st.finish(fmt.Errorf("ASR error %d: %s", f.errorCode, string(body)))
			return

		case kindServerResponse:
			body, err := f.body()
			if err != nil {
				st.finish(fmt.Errorf("failed to decompress ASR payload: %w", err))
				return
			}
			var msg asrServerMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				log.Printf("[ASR] failed to unmarshal response: %v", err)
				continue
			}
			if msg.Code != 0 && msg.Code != 20000000 {
				st.finish(fmt.Errorf("ASR API error %d: %s", msg.Code, msg.Message))
				return
			}

			if len(msg.Result.Utterances) > 0 && st.cb.OnResult != nil {
				var batch speechmodel.ResultBatch
				batch, st.delivered = utteranceBatch(msg.Result.Utterances, st.delivered)
				st.cb.OnResult(batch)
			}

			if f.isLast() {
				st.finish(nil)
				return
			}
		}
	}
}

// finish tears the stream down once and reports err (if any) before OnEnd.
func (st *asrStream) finish(err error) {
	st.once.Do(func() {
		st.cancel()
		_ = st.mic.Close()
		_ = st.conn.Close()
		st.release()

		if err != nil && st.cb.OnError != nil {
			st.cb.OnError(err)
		}
		if st.cb.OnEnd != nil {
			st.cb.OnEnd()
		}
	})
}

// utteranceBatch converts a full-result snapshot into a result batch. Leading
// definite utterances are settled; the batch starts at the first one not yet
// delivered.
func utteranceBatch(utterances []asrUtterance, delivered int) (speechmodel.ResultBatch, int) {
	batch := speechmodel.ResultBatch{
		ResultIndex: delivered,
		Results:     make([]speechmodel.RecognitionResult, 0, len(utterances)),
	}
	settled := 0
	for i, u := range utterances {
		batch.Results = append(batch.Results, speechmodel.RecognitionResult{Text: u.Text, Final: u.Definite})
		if u.Definite && settled == i {
			settled = i + 1
		}
	}
	if settled < delivered {
		settled = delivered
	}
	return batch, settled
}
