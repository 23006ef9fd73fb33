// Package payload defines the records carried in each QR-coded frame and
// their text encoding.
//
// Two shapes exist and are distinguished only by which field is present:
//
//	{"total_frames": N}   sync record, always the first frame
//	{"frame_i": k}        frame record, claims playback position k
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	// KeyTotalFrames marks a sync record.
	KeyTotalFrames = "total_frames"
	// KeyFrameIndex marks a frame record.
	KeyFrameIndex = "frame_i"
)

// Payload is either a SyncRecord or a FrameRecord.
type Payload interface {
	isPayload()
	String() string
}

// SyncRecord declares how many frames, itself included, the sequence had when generated.
type SyncRecord struct {
	TotalFrames int
}

func (SyncRecord) isPayload() {}

func (s SyncRecord) String() string {
	return fmt.Sprintf("sync(total_frames=%d)", s.TotalFrames)
}

// FrameRecord declares the 1-based position the frame claims to occupy.
type FrameRecord struct {
	Index int
}

func (FrameRecord) isPayload() {}

func (f FrameRecord) String() string {
	return fmt.Sprintf("frame(%d)", f.Index)
}

// Reason classifies a decode failure.
type Reason string

const (
	// Malformed means the bytes are not a JSON object.
	Malformed Reason = "malformed"
	// UnknownShape means the object is neither a sync nor a frame record.
	UnknownShape Reason = "unknown_shape"
)

// DecodeError is returned by Decode.
type DecodeError struct {
	Reason Reason
	Detail string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payload %s: %s: %v", e.Reason, e.Detail, e.Err)
	}
	return fmt.Sprintf("payload %s: %s", e.Reason, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode renders p as UTF-8 JSON text. The layout matches what Python's
// json.dumps produces for a single-key object, so videos made by older
// generators scan identically.
func Encode(p Payload) []byte {
	switch v := p.(type) {
	case SyncRecord:
		return encodeField(KeyTotalFrames, v.TotalFrames)
	case *SyncRecord:
		return encodeField(KeyTotalFrames, v.TotalFrames)
	case FrameRecord:
		return encodeField(KeyFrameIndex, v.Index)
	case *FrameRecord:
		return encodeField(KeyFrameIndex, v.Index)
	default:
		panic(fmt.Sprintf("payload: unsupported type %T", p))
	}
}

func encodeField(key string, value int) []byte {
	buf := make([]byte, 0, len(key)+16)
	buf = append(buf, `{"`...)
	buf = append(buf, key...)
	buf = append(buf, `": `...)
	buf = strconv.AppendInt(buf, int64(value), 10)
	buf = append(buf, '}')
	return buf
}

// Decode parses the bytes of one scanned QR code.
func Decode(data []byte) (Payload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &DecodeError{Reason: Malformed, Detail: "not a JSON object", Err: err}
	}
	if fields == nil {
		return nil, &DecodeError{Reason: Malformed, Detail: "null payload"}
	}

	total, hasTotal := fields[KeyTotalFrames]
	index, hasIndex := fields[KeyFrameIndex]

	switch {
	case hasTotal && hasIndex:
		return nil, &DecodeError{Reason: UnknownShape, Detail: "both total_frames and frame_i present"}
	case hasTotal:
		n, err := positiveInt(total)
		if err != nil {
			return nil, &DecodeError{Reason: UnknownShape, Detail: "total_frames", Err: err}
		}
		return SyncRecord{TotalFrames: n}, nil
	case hasIndex:
		n, err := positiveInt(index)
		if err != nil {
			return nil, &DecodeError{Reason: UnknownShape, Detail: "frame_i", Err: err}
		}
		return FrameRecord{Index: n}, nil
	default:
		return nil, &DecodeError{Reason: UnknownShape, Detail: "neither total_frames nor frame_i present"}
	}
}

func positiveInt(raw json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}

	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected integer, got %s", string(raw))
	}

	n, err := strconv.Atoi(num.String())
	if err != nil {
		return 0, fmt.Errorf("expected integer, got %s", num.String())
	}
	if n <= 0 {
		return 0, fmt.Errorf("expected positive integer, got %d", n)
	}
	return n, nil
}
