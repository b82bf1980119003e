package duplex

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/errors"
)

// Control frame types. Every control frame is a JSON text message.
const (
	TypeStart = "start"
	TypeChunk = "chunk"
	TypeDone  = "done"
	TypeError = "error"
)

// Binary frame layout: a fixed header followed by the chunk payload.
const (
	// BinaryHeaderSize is the fixed prefix of every binary frame:
	// 16 bytes of stream id followed by an 8-byte little-endian chunk index.
	BinaryHeaderSize = 24

	// MaxStreamIDLen is the longest stream id that fits the binary header.
	MaxStreamIDLen = 16
)

// Meta describes a stream at start time.
type Meta struct {
	Method   string `json:"method,omitempty"`
	Binary   bool   `json:"binary,omitempty"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// ErrorDetail carries a stream-scoped failure to the peer.
type ErrorDetail struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// ControlFrame is the JSON envelope for stream control messages. Chunk
// frames on text streams carry their payload inline; binary streams send
// chunk data as binary frames instead.
type ControlFrame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
	Meta      *Meta           `json:"meta,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Summary   map[string]any  `json:"summary,omitempty"`
	Error     *ErrorDetail    `json:"error,omitempty"`
}

// Validate checks the envelope fields common to every control frame.
func (f *ControlFrame) Validate() error {
	switch f.Type {
	case TypeStart, TypeChunk, TypeDone, TypeError:
	default:
		return errors.WrapInvalid(errors.ErrParse, "ControlFrame", "Validate",
			fmt.Sprintf("unknown frame type %q", f.Type))
	}
	if f.ID == "" {
		return errors.WrapInvalid(errors.ErrParse, "ControlFrame", "Validate",
			"frame id cannot be empty")
	}
	if len(f.ID) > MaxStreamIDLen {
		return errors.WrapInvalid(errors.ErrParse, "ControlFrame", "Validate",
			fmt.Sprintf("frame id exceeds %d bytes", MaxStreamIDLen))
	}
	return nil
}

// ParseControlFrame decodes and validates one control frame.
func ParseControlFrame(data []byte) (ControlFrame, error) {
	var frame ControlFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return ControlFrame{}, errors.WrapInvalid(errors.ErrParse, "duplex", "ParseControlFrame",
			fmt.Sprintf("malformed control frame: %v", err))
	}
	if err := frame.Validate(); err != nil {
		return ControlFrame{}, err
	}
	return frame, nil
}

// EncodeBinaryFrame prefixes payload with the binary header. The stream id
// is zero-padded to 16 bytes.
func EncodeBinaryFrame(streamID string, index uint64, payload []byte) ([]byte, error) {
	if streamID == "" || len(streamID) > MaxStreamIDLen {
		return nil, errors.WrapInvalid(errors.ErrInvalidParams, "duplex", "EncodeBinaryFrame",
			fmt.Sprintf("stream id must be 1-%d bytes", MaxStreamIDLen))
	}

	frame := make([]byte, BinaryHeaderSize+len(payload))
	copy(frame[:MaxStreamIDLen], streamID)
	binary.LittleEndian.PutUint64(frame[MaxStreamIDLen:BinaryHeaderSize], index)
	copy(frame[BinaryHeaderSize:], payload)
	return frame, nil
}

// DecodeBinaryFrame splits a binary frame into stream id, chunk index and
// payload. The payload slice aliases the input.
func DecodeBinaryFrame(frame []byte) (streamID string, index uint64, payload []byte, err error) {
	if len(frame) < BinaryHeaderSize {
		return "", 0, nil, errors.WrapInvalid(errors.ErrParse, "duplex", "DecodeBinaryFrame",
			fmt.Sprintf("binary frame shorter than %d-byte header", BinaryHeaderSize))
	}

	id := frame[:MaxStreamIDLen]
	end := len(id)
	for end > 0 && id[end-1] == 0 {
		end--
	}
	if end == 0 {
		return "", 0, nil, errors.WrapInvalid(errors.ErrParse, "duplex", "DecodeBinaryFrame",
			"binary frame carries an empty stream id")
	}

	index = binary.LittleEndian.Uint64(frame[MaxStreamIDLen:BinaryHeaderSize])
	return string(id[:end]), index, frame[BinaryHeaderSize:], nil
}
