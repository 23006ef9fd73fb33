package payload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, `{"total_frames": 10}`, string(Encode(SyncRecord{TotalFrames: 10})))
	assert.Equal(t, `{"frame_i": 3}`, string(Encode(FrameRecord{Index: 3})))
	assert.Equal(t, `{"frame_i": 7}`, string(Encode(&FrameRecord{Index: 7})))
}

func TestEncodeIsDeterministic(t *testing.T) {
	p := SyncRecord{TotalFrames: 1200}
	assert.Equal(t, Encode(p), Encode(p))
}

func TestRoundTrip(t *testing.T) {
	payloads := []Payload{
		SyncRecord{TotalFrames: 1},
		SyncRecord{TotalFrames: 100000},
		FrameRecord{Index: 1},
		FrameRecord{Index: 59},
		FrameRecord{Index: 2147483647},
	}

	for _, p := range payloads {
		t.Run(p.String(), func(t *testing.T) {
			got, err := Decode(Encode(p))
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		want       Payload
		wantReason Reason
	}{
		{name: "sync compact", input: `{"total_frames":5}`, want: SyncRecord{TotalFrames: 5}},
		{name: "frame with spaces", input: ` { "frame_i" : 2 } `, want: FrameRecord{Index: 2}},
		{name: "extra keys ignored", input: `{"frame_i": 4, "note": "x"}`, want: FrameRecord{Index: 4}},
		{name: "integral exponent", input: `{"frame_i": 1e1}`, wantReason: UnknownShape},
		{name: "not json", input: `frame 3`, wantReason: Malformed},
		{name: "empty", input: ``, wantReason: Malformed},
		{name: "array", input: `[1, 2]`, wantReason: Malformed},
		{name: "null", input: `null`, wantReason: Malformed},
		{name: "empty object", input: `{}`, wantReason: UnknownShape},
		{name: "unrelated key", input: `{"frame": 3}`, wantReason: UnknownShape},
		{name: "both keys", input: `{"total_frames": 3, "frame_i": 1}`, wantReason: UnknownShape},
		{name: "string total", input: `{"total_frames": "10"}`, wantReason: UnknownShape},
		{name: "fractional index", input: `{"frame_i": 2.5}`, wantReason: UnknownShape},
		{name: "zero total", input: `{"total_frames": 0}`, wantReason: UnknownShape},
		{name: "negative index", input: `{"frame_i": -1}`, wantReason: UnknownShape},
		{name: "null index", input: `{"frame_i": null}`, wantReason: UnknownShape},
		{name: "bool total", input: `{"total_frames": true}`, wantReason: UnknownShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			if tt.wantReason != "" {
				require.Error(t, err)
				assert.Nil(t, got)

				var decodeErr *DecodeError
				require.True(t, errors.As(err, &decodeErr))
				assert.Equal(t, tt.wantReason, decodeErr.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	_, err := Decode([]byte(`{"frame_i": "x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown_shape")
	assert.Contains(t, err.Error(), "frame_i")
}

func TestEncodeUnsupportedTypePanics(t *testing.T) {
	assert.Panics(t, func() {
		Encode(nil)
	})
}
