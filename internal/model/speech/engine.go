package speech

import "context"

// RecognitionResult is one entry of a dictation result batch.
type RecognitionResult struct {
	Text  string
	Final bool
}

// ResultBatch is what a dictation engine reports on every update. Entries before
// ResultIndex were already delivered in an earlier batch.
type ResultBatch struct {
	ResultIndex int
	Results     []RecognitionResult
}

// RecognizerCallbacks receives the raw engine stream.
type RecognizerCallbacks struct {
	OnResult func(ResultBatch)
	OnError  func(error)
	OnEnd    func()
}

// Recognizer 连续语音识别引擎
//
// Start begins a dictation session and returns once audio is flowing.
// Callbacks may run on any goroutine. After OnError the engine has stopped and
// OnEnd follows; after Stop, OnEnd fires once.
type Recognizer interface {
	Start(ctx context.Context, cb RecognizerCallbacks) error
	Stop() error
}

// Voice 语音合成声音
type Voice struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Locale string `json:"locale"`
}

// Utterance 一次语音合成请求
type Utterance struct {
	Text  string
	Voice Voice
	Rate  float32
	Pitch float32

	OnStart func()
	OnEnd   func()
	OnError func(error)
}

// Synthesizer 语音合成引擎
//
// Speak must not queue: callers cancel first. Cancel silences the active
// utterance immediately and suppresses its remaining callbacks.
type Synthesizer interface {
	Voices() []Voice
	Speak(u Utterance) error
	Cancel()
}
