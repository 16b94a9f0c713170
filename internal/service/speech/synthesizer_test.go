package speech

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
)

type stubTTS struct {
	err error
}

func (s stubTTS) Synthesize(_ context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &speechmodel.TTSResponse{UtteranceID: req.UtteranceID, AudioData: []byte(req.Text), Format: "mp3"}, nil
}

// gatedPlayer blocks every clip until release is closed or ctx ends.
type gatedPlayer struct {
	started chan string
	release chan struct{}
}

func newGatedPlayer() *gatedPlayer {
	return &gatedPlayer{started: make(chan string, 4), release: make(chan struct{})}
}

func (p *gatedPlayer) Play(ctx context.Context, audio []byte, _ string) error {
	p.started <- string(audio)
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type utteranceProbe struct {
	started chan struct{}
	ended   chan struct{}
	failed  chan error
}

func newProbe() *utteranceProbe {
	return &utteranceProbe{
		started: make(chan struct{}, 1),
		ended:   make(chan struct{}, 1),
		failed:  make(chan error, 1),
	}
}

func (p *utteranceProbe) utterance(text string) speechmodel.Utterance {
	return speechmodel.Utterance{
		Text:    text,
		OnStart: func() { p.started <- struct{}{} },
		OnEnd:   func() { p.ended <- struct{}{} },
		OnError: func(err error) { p.failed <- err },
	}
}

func TestSynthesizerPlaysToCompletion(t *testing.T) {
	player := newGatedPlayer()
	synth := newSynthesizer(stubTTS{}, player, nil)
	probe := newProbe()

	require.NoError(t, synth.Speak(probe.utterance("hello")))
	assert.Equal(t, "hello", <-player.started)
	<-probe.started
	close(player.release)
	synth.Wait()

	select {
	case <-probe.ended:
	default:
		t.Fatal("OnEnd was not called")
	}
	assert.Len(t, probe.failed, 0)
}

func TestSynthesizerCancelSuppressesCallbacks(t *testing.T) {
	player := newGatedPlayer()
	synth := newSynthesizer(stubTTS{}, player, nil)
	probe := newProbe()

	require.NoError(t, synth.Speak(probe.utterance("long answer")))
	<-player.started

	synth.Cancel()
	synth.Wait()

	assert.Len(t, probe.ended, 0)
	assert.Len(t, probe.failed, 0)
	synth.Cancel()
}

func TestSynthesizerReportsSynthesisError(t *testing.T) {
	synth := newSynthesizer(stubTTS{err: errors.New("quota")}, newGatedPlayer(), nil)
	probe := newProbe()

	require.NoError(t, synth.Speak(probe.utterance("hi")))

	select {
	case err := <-probe.failed:
		assert.EqualError(t, err, "quota")
	case <-time.After(time.Second):
		t.Fatal("OnError was not called")
	}
	assert.Len(t, probe.started, 0)
}

func TestSynthesizerDefaultsCatalog(t *testing.T) {
	synth := newSynthesizer(stubTTS{}, newGatedPlayer(), nil)
	assert.Equal(t, DefaultVoiceCatalog, synth.Voices())
	assert.ErrorIs(t, synth.Speak(speechmodel.Utterance{}), ErrEmptyUtterance)
}
