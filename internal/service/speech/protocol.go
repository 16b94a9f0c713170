package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// 火山引擎 openspeech v3 二进制帧
//
//	byte0: version(4) | header size in words(4)
//	byte1: kind(4)    | flags(4)
//	byte2: codec(4)   | compression(4)
//	byte3: reserved
//
// followed by an optional sequence, optional event metadata, an optional error
// code, then a size-prefixed payload.

const protocolVersion = 0b0001

// frameKind 帧类型
type frameKind uint8

const (
	kindClientRequest  frameKind = 0b0001
	kindClientAudio    frameKind = 0b0010
	kindServerResponse frameKind = 0b1001
	kindServerAudio    frameKind = 0b1011
	kindServerError    frameKind = 0b1111
)

// frameFlags 帧标志位
type frameFlags uint8

const (
	flagNoSequence       frameFlags = 0b0000
	flagPositiveSequence frameFlags = 0b0001
	flagLastNoSequence   frameFlags = 0b0010
	flagNegativeSequence frameFlags = 0b0011
	flagWithEvent        frameFlags = 0b0100

	sequenceMask frameFlags = 0b0011
)

type serialization uint8

const (
	serializationNone serialization = 0b0000
	serializationJSON serialization = 0b0001
)

type compression uint8

const (
	compressionNone compression = 0b0000
	compressionGzip compression = 0b0001
)

// serverEvent 服务端事件编号
type serverEvent int32

const (
	eventStartConnection    serverEvent = 1
	eventFinishConnection   serverEvent = 2
	eventConnectionStarted  serverEvent = 50
	eventConnectionFailed   serverEvent = 51
	eventConnectionFinished serverEvent = 52
	eventSessionStarted     serverEvent = 150
	eventSessionFinished    serverEvent = 152
	eventSessionFailed      serverEvent = 153
)

var errShortFrame = errors.New("speech frame truncated")

// frame 一个完整的协议帧
type frame struct {
	kind        frameKind
	flags       frameFlags
	codec       serialization
	compression compression

	sequence  int32
	event     serverEvent
	sessionID string
	connectID string
	errorCode uint32
	payload   []byte
}

func (f *frame) hasSequence() bool {
	s := f.flags & sequenceMask
	return s == flagPositiveSequence || s == flagNegativeSequence
}

func (f *frame) hasEvent() bool {
	return f.flags&flagWithEvent == flagWithEvent
}

// isLast 判断是否为最后一包
func (f *frame) isLast() bool {
	s := f.flags & sequenceMask
	return s == flagLastNoSequence || s == flagNegativeSequence
}

// body returns the payload with compression removed.
func (f *frame) body() ([]byte, error) {
	return decompress(f.payload, f.compression)
}

func (f *frame) marshal() []byte {
	buf := make([]byte, 0, 16+len(f.payload))
	buf = append(buf,
		protocolVersion<<4|0b0001,
		uint8(f.kind)<<4|uint8(f.flags),
		uint8(f.codec)<<4|uint8(f.compression),
		0x00,
	)

	if f.hasSequence() {
		buf = binary.BigEndian.AppendUint32(buf, uint32(f.sequence))
	}
	if f.hasEvent() {
		buf = binary.BigEndian.AppendUint32(buf, uint32(f.event))
		if carriesSessionID(f.event) {
			buf = appendSized(buf, []byte(f.sessionID))
		}
		if carriesConnectID(f.event) {
			buf = appendSized(buf, []byte(f.connectID))
		}
	}
	if f.kind == kindServerError {
		buf = binary.BigEndian.AppendUint32(buf, f.errorCode)
	}
	return appendSized(buf, f.payload)
}

func appendSized(buf, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

// parseFrame 解析服务端返回的一帧
func parseFrame(data []byte) (*frame, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: header needs 4 bytes, got %d", errShortFrame, len(data))
	}
	if version := data[0] >> 4; version != protocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", version)
	}

	f := &frame{
		kind:        frameKind(data[1] >> 4),
		flags:       frameFlags(data[1] & 0x0F),
		codec:       serialization(data[2] >> 4),
		compression: compression(data[2] & 0x0F),
	}

	headerSize := int(data[0]&0x0F) * 4
	if headerSize < 4 || len(data) < headerSize {
		return nil, fmt.Errorf("%w: header size %d", errShortFrame, headerSize)
	}
	r := bytes.NewReader(data[headerSize:])

	if f.hasSequence() {
		var seq int32
		if err := binary.Read(r, binary.BigEndian, &seq); err != nil {
			return nil, fmt.Errorf("read sequence: %w", err)
		}
		f.sequence = seq
	}

	if f.hasEvent() {
		var ev int32
		if err := binary.Read(r, binary.BigEndian, &ev); err != nil {
			return nil, fmt.Errorf("read event: %w", err)
		}
		f.event = serverEvent(ev)
		if carriesSessionID(f.event) {
			id, err := readSized(r)
			if err != nil {
				return nil, fmt.Errorf("read session id: %w", err)
			}
			f.sessionID = string(id)
		}
		if carriesConnectID(f.event) {
			id, err := readSized(r)
			if err != nil {
				return nil, fmt.Errorf("read connect id: %w", err)
			}
			f.connectID = string(id)
		}
	}

	if f.kind == kindServerError {
		if err := binary.Read(r, binary.BigEndian, &f.errorCode); err != nil {
			return nil, fmt.Errorf("read error code: %w", err)
		}
	}

	payload, err := readSized(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	f.payload = payload
	return f, nil
}

func readSized(r io.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: want %d bytes: %v", errShortFrame, size, err)
	}
	return data, nil
}

func carriesSessionID(ev serverEvent) bool {
	switch ev {
	case eventStartConnection, eventFinishConnection,
		eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return false
	default:
		return true
	}
}

func carriesConnectID(ev serverEvent) bool {
	switch ev {
	case eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	default:
		return false
	}
}

// newRequestFrame 创建携带JSON参数的客户端请求
func newRequestFrame(payload []byte, c compression) *frame {
	return &frame{
		kind:        kindClientRequest,
		flags:       flagNoSequence,
		codec:       serializationJSON,
		compression: c,
		payload:     payload,
	}
}

// newAudioFrame 创建音频帧，最后一包使用负序号
func newAudioFrame(pcm []byte, sequence int32, last bool, c compression) *frame {
	f := &frame{
		kind:        kindClientAudio,
		codec:       serializationNone,
		compression: c,
		sequence:    sequence,
		payload:     pcm,
	}
	switch {
	case last && sequence != 0:
		f.flags = flagNegativeSequence
		f.sequence = -sequence
	case last:
		f.flags = flagLastNoSequence
	case sequence > 0:
		f.flags = flagPositiveSequence
	default:
		f.flags = flagNoSequence
	}
	return f
}
