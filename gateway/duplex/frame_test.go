package duplex

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryFrameRoundTrip(t *testing.T) {
	payload := []byte("Hello from client upload!")

	frame, err := EncodeBinaryFrame("upload-1", 3, payload)
	require.NoError(t, err)
	require.Len(t, frame, BinaryHeaderSize+len(payload))

	id, index, got, err := DecodeBinaryFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, "upload-1", id)
	assert.Equal(t, uint64(3), index)
	assert.Equal(t, payload, got)
}

func TestBinaryFrameLayout(t *testing.T) {
	frame, err := EncodeBinaryFrame("s1", 0x0102030405060708, []byte{0xFF})
	require.NoError(t, err)

	// Stream id occupies the first 16 bytes, zero padded
	assert.Equal(t, byte('s'), frame[0])
	assert.Equal(t, byte('1'), frame[1])
	for i := 2; i < MaxStreamIDLen; i++ {
		assert.Zero(t, frame[i])
	}

	// Chunk index is little-endian in bytes 16-23
	assert.Equal(t, uint64(0x0102030405060708), binary.LittleEndian.Uint64(frame[16:24]))
	assert.Equal(t, byte(0xFF), frame[24])
}

func TestBinaryFrameEmptyPayload(t *testing.T) {
	frame, err := EncodeBinaryFrame("upload-1", 0, nil)
	require.NoError(t, err)
	require.Len(t, frame, BinaryHeaderSize)

	_, _, payload, err := DecodeBinaryFrame(frame)
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestEncodeBinaryFrame_InvalidID(t *testing.T) {
	_, err := EncodeBinaryFrame("", 0, nil)
	assert.Error(t, err)

	_, err = EncodeBinaryFrame("this-id-is-longer-than-sixteen", 0, nil)
	assert.Error(t, err)
}

func TestDecodeBinaryFrame_Invalid(t *testing.T) {
	_, _, _, err := DecodeBinaryFrame(make([]byte, BinaryHeaderSize-1))
	assert.Error(t, err)

	// All-zero id is empty after padding is stripped
	_, _, _, err = DecodeBinaryFrame(make([]byte, BinaryHeaderSize))
	assert.Error(t, err)
}

func TestParseControlFrame(t *testing.T) {
	frame, err := ParseControlFrame([]byte(
		`{"type":"start","id":"upload-1","timestamp":1724400000000,"meta":{"binary":true,"name":"hello.bin"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeStart, frame.Type)
	assert.Equal(t, "upload-1", frame.ID)
	require.NotNil(t, frame.Meta)
	assert.True(t, frame.Meta.Binary)
}

func TestParseControlFrame_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{not json`},
		{"unknown type", `{"type":"resume","id":"s1"}`},
		{"missing id", `{"type":"start"}`},
		{"id too long", `{"type":"start","id":"this-id-is-longer-than-sixteen"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseControlFrame([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
