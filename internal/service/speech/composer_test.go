package speech

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
)

func TestComposerInterimReplacesAndFinalAppends(t *testing.T) {
	c := NewComposer()
	c.SetTyped("Hi ")

	c.OnInterim("the")
	c.OnInterim("the forklift")
	assert.Equal(t, "Hi the forklift", c.ComposedValue())

	c.OnFinalCommit("the forklift broke")
	assert.Equal(t, "Hi the forklift broke ", c.ComposedValue())
	assert.Empty(t, c.Interim())

	c.OnFinalCommit("today")
	assert.Equal(t, "Hi the forklift broke today ", c.Committed())
}

func TestComposerUserEditDropsInterim(t *testing.T) {
	c := NewComposer()
	c.OnFinalCommit("report")
	c.OnInterim("an inj")

	c.Edit(func(prev string) string { return prev + "a hazard" })

	assert.Equal(t, "report a hazard", c.ComposedValue())
	assert.Empty(t, c.Interim())
}

func TestComposerApplyEvents(t *testing.T) {
	c := NewComposer()
	c.SetCapturing(true)

	c.Apply(speechmodel.InterimUpdated{Text: "wet"})
	c.Apply(speechmodel.FinalCommitted{Text: "wet floor"})
	c.Apply(speechmodel.InterimUpdated{Text: "in aisle"})
	assert.Equal(t, TranscriptState{Committed: "wet floor ", Interim: "in aisle", Capturing: true}, c.State())

	c.Apply(speechmodel.RecognitionFailed{Err: errors.New("boom")})
	assert.Equal(t, TranscriptState{Committed: "wet floor "}, c.State())

	c.SetCapturing(true)
	c.Apply(speechmodel.CaptureEnded{})
	assert.False(t, c.State().Capturing)
}

func TestComposerTake(t *testing.T) {
	c := NewComposer()

	_, ok := c.Take()
	assert.False(t, ok)

	c.SetTyped("   ")
	_, ok = c.Take()
	assert.False(t, ok)
	assert.Equal(t, "   ", c.ComposedValue(), "refused take leaves buffer alone")

	c.SetTyped("")
	c.OnInterim("only provisional")
	_, ok = c.Take()
	assert.False(t, ok, "interim text is never sent")
	assert.Equal(t, "only provisional", c.ComposedValue())

	c.OnFinalCommit("report an injury")
	c.OnInterim("at")
	text, ok := c.Take()
	assert.True(t, ok)
	assert.Equal(t, "report an injury", text)
	assert.Empty(t, c.ComposedValue())
}

func TestComposerReset(t *testing.T) {
	c := NewComposer()
	c.OnFinalCommit("a")
	c.OnInterim("b")

	c.Reset()

	assert.Empty(t, c.ComposedValue())
}
