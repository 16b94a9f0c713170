package speech

import (
	"testing"
)

func TestAudioFrameFlags(t *testing.T) {
	tests := []struct {
		name    string
		seq     int32
		last    bool
		flags   frameFlags
		wireSeq int32
	}{
		{name: "first chunk", seq: 2, flags: flagPositiveSequence, wireSeq: 2},
		{name: "last chunk", seq: 7, last: true, flags: flagNegativeSequence, wireSeq: -7},
		{name: "last without sequence", seq: 0, last: true, flags: flagLastNoSequence},
		{name: "unsequenced", seq: 0, flags: flagNoSequence},
	}
	for _, tt := range tests {
		f := newAudioFrame([]byte{1, 2}, tt.seq, tt.last, compressionNone)
		if f.flags != tt.flags || f.sequence != tt.wireSeq {
			t.Fatalf("%s: flags=%04b seq=%d, want %04b %d", tt.name, f.flags, f.sequence, tt.flags, tt.wireSeq)
		}
		if f.isLast() != tt.last {
			t.Fatalf("%s: isLast=%v", tt.name, f.isLast())
		}
	}
}

func TestParseServerFrames(t *testing.T) {
	payload, err := compress([]byte(`{"code":0}`), compressionGzip)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	in := &frame{
		kind:        kindServerResponse,
		flags:       flagWithEvent,
		codec:       serializationJSON,
		compression: compressionGzip,
		event:       eventSessionFinished,
		sessionID:   "sess-1",
		payload:     payload,
	}
	out, err := parseFrame(in.marshal())
	if err != nil {
		t.Fatalf("parseFrame err: %v", err)
	}
	if out.event != eventSessionFinished || out.sessionID != "sess-1" {
		t.Fatalf("unexpected event metadata: %+v", out)
	}
	body, err := out.body()
	if err != nil || string(body) != `{"code":0}` {
		t.Fatalf("body = %q, %v", body, err)
	}

	errFrame := &frame{kind: kindServerError, errorCode: 45000001, payload: []byte("bad request")}
	out, err = parseFrame(errFrame.marshal())
	if err != nil {
		t.Fatalf("parseFrame err: %v", err)
	}
	if out.errorCode != 45000001 || string(out.payload) != "bad request" {
		t.Fatalf("unexpected error frame: %+v", out)
	}

	started := &frame{kind: kindServerResponse, flags: flagWithEvent, event: eventConnectionStarted, connectID: "c-9"}
	out, err = parseFrame(started.marshal())
	if err != nil {
		t.Fatalf("parseFrame err: %v", err)
	}
	if out.connectID != "c-9" || out.sessionID != "" {
		t.Fatalf("connection event parsed wrong: %+v", out)
	}
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	if _, err := parseFrame([]byte{0x11}); err == nil {
		t.Fatal("expected error for short frame")
	}
	if _, err := parseFrame([]byte{0x21, 0x90, 0x00, 0x00, 0, 0, 0, 0}); err == nil {
		t.Fatal("expected error for unknown version")
	}
	truncated := (&frame{kind: kindServerAudio, payload: []byte("abcdef")}).marshal()
	if _, err := parseFrame(truncated[:len(truncated)-2]); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}
