package speech

// Event is the closed set of transcript events a capture session emits.
// The unexported marker method keeps the set sealed to this package.
type Event interface {
	isEvent()
}

// InterimUpdated replaces the provisional transcript. Empty Text clears it.
type InterimUpdated struct {
	Text string
}

// FinalCommitted carries a trimmed, non-empty final segment.
type FinalCommitted struct {
	Text string
}

// RecognitionFailed reports an engine error. Capture is already back to idle.
type RecognitionFailed struct {
	Err error
}

// CaptureEnded marks the end of a listening period.
type CaptureEnded struct{}

func (InterimUpdated) isEvent()    {}
func (FinalCommitted) isEvent()    {}
func (RecognitionFailed) isEvent() {}
func (CaptureEnded) isEvent()      {}
