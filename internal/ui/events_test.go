package ui

import (
	"testing"
	"time"

	speechmodel "github.com/zhouzirui/complymate/internal/model/speech"
)

func TestEventQueueKeepsCommitsUnderBacklog(t *testing.T) {
	q := newEventQueue()
	for i := 0; i < 500; i++ {
		q.capture(speechmodel.InterimUpdated{Text: "report an"})
		q.playback("m1")
	}
	q.capture(speechmodel.FinalCommitted{Text: "report an injury"})
	q.capture(speechmodel.CaptureEnded{})

	var commits, ends, playbacks int
	for {
		msg, ok := q.poll()
		if !ok {
			break
		}
		switch m := msg.(type) {
		case captureMsg:
			switch ev := m.ev.(type) {
			case speechmodel.FinalCommitted:
				if ev.Text != "report an injury" {
					t.Fatalf("commit text = %q", ev.Text)
				}
				commits++
			case speechmodel.CaptureEnded:
				ends++
			}
		case playbackMsg:
			playbacks++
		}
	}
	if commits != 1 || ends != 1 {
		t.Fatalf("commits=%d ends=%d, want 1 each", commits, ends)
	}
	if playbacks != 500 {
		t.Fatalf("playback changes = %d, want 500", playbacks)
	}
}

func TestEventQueueCoalescesInterim(t *testing.T) {
	q := newEventQueue()
	q.capture(speechmodel.InterimUpdated{Text: "a"})
	q.capture(speechmodel.InterimUpdated{Text: "ab"})
	q.capture(speechmodel.InterimUpdated{Text: "abc"})
	q.capture(speechmodel.FinalCommitted{Text: "abc"})
	q.capture(speechmodel.InterimUpdated{Text: "d"})

	var got []speechmodel.Event
	for {
		msg, ok := q.poll()
		if !ok {
			break
		}
		got = append(got, msg.(captureMsg).ev)
	}
	if len(got) != 3 {
		t.Fatalf("events = %#v", got)
	}
	if ev, ok := got[0].(speechmodel.InterimUpdated); !ok || ev.Text != "abc" {
		t.Fatalf("first event = %#v, want latest interim", got[0])
	}
	if _, ok := got[1].(speechmodel.FinalCommitted); !ok {
		t.Fatalf("second event = %#v", got[1])
	}
}

func TestEventQueueWaitBlocksUntilPush(t *testing.T) {
	q := newEventQueue()
	done := make(chan any, 1)
	go func() { done <- q.wait()() }()

	select {
	case msg := <-done:
		t.Fatalf("wait returned %T before any push", msg)
	case <-time.After(20 * time.Millisecond):
	}

	q.playback("m2")
	select {
	case msg := <-done:
		if pm, ok := msg.(playbackMsg); !ok || pm.speakingID != "m2" {
			t.Fatalf("got %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not deliver the pushed event")
	}
}
