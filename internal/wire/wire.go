// Package wire implements the fixed big-endian UDP datagram framing the
// core speaks to the visual simulator and peripheral hardware panels:
// 8-byte GET requests, 12-byte POST requests, the LiDAR variable-length
// array, and the outbound 0.2s tick.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	headerSize = 8  // timestamp:4 | command:4
	postSize   = 12 // header + value:4
	wordSize   = 4
)

// Inbound is a decoded inbound datagram.
type Inbound struct {
	Timestamp uint32
	Command   uint16
	IsPost    bool
	ValueBits uint32    // raw big-endian word; caller interprets per command's scalar kind
	LiDAR     []float32 // populated only for command 1130
}

// DecodeInbound parses a raw UDP datagram into its header and payload.
// Undersized packets (shorter than the 8-byte header) are rejected.
func DecodeInbound(data []byte) (*Inbound, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("wire: undersized packet (%d bytes)", len(data))
	}

	in := &Inbound{
		Timestamp: binary.BigEndian.Uint32(data[0:4]),
		Command:   uint16(binary.BigEndian.Uint32(data[4:8])),
	}

	rest := data[headerSize:]
	switch {
	case len(rest) == 0:
		// GET: no value payload.
	case isLiDAR(in.Command):
		if len(rest)%wordSize != 0 {
			return nil, fmt.Errorf("wire: malformed LiDAR payload (%d bytes)", len(rest))
		}
		in.LiDAR = make([]float32, len(rest)/wordSize)
		for i := range in.LiDAR {
			bits := binary.BigEndian.Uint32(rest[i*wordSize : i*wordSize+wordSize])
			in.LiDAR[i] = math.Float32frombits(bits)
		}
	case len(rest) >= wordSize:
		in.IsPost = true
		in.ValueBits = binary.BigEndian.Uint32(rest[0:wordSize])
	default:
		return nil, fmt.Errorf("wire: undersized POST packet (%d bytes)", len(data))
	}

	return in, nil
}

// isLiDAR reports whether command is the reserved LiDAR array code (1130).
func isLiDAR(command uint16) bool { return command == 1130 }

// EncodeGetResponse builds a GET response: timestamp | command |
// null-terminated JSON payload.
func EncodeGetResponse(timestamp uint32, command uint16, payload []byte) []byte {
	out := make([]byte, headerSize+len(payload)+1)
	binary.BigEndian.PutUint32(out[0:4], timestamp)
	binary.BigEndian.PutUint32(out[4:8], uint32(command))
	copy(out[8:], payload)
	// trailing byte is already zero (null terminator)
	return out
}

// EncodePostResponse builds the single 4-byte POST acknowledgement: 1 if
// applied, 0 if rejected.
func EncodePostResponse(applied bool) []byte {
	out := make([]byte, wordSize)
	if applied {
		binary.BigEndian.PutUint32(out, 1)
	}
	return out
}

// EncodeOutboundPost builds a 12-byte outbound POST datagram carrying a
// float32 bit-pattern value, used for the DUST visual-simulator tick.
func EncodeOutboundPost(timestamp uint32, command uint16, value float32) []byte {
	out := make([]byte, postSize)
	binary.BigEndian.PutUint32(out[0:4], timestamp)
	binary.BigEndian.PutUint32(out[4:8], uint32(command))
	binary.BigEndian.PutUint32(out[8:12], math.Float32bits(value))
	return out
}

// EncodeOutboundPostBool builds a 12-byte outbound POST datagram carrying
// a boolean value encoded as 1/0.
func EncodeOutboundPostBool(timestamp uint32, command uint16, value bool) []byte {
	out := make([]byte, postSize)
	binary.BigEndian.PutUint32(out[0:4], timestamp)
	binary.BigEndian.PutUint32(out[4:8], uint32(command))
	if value {
		binary.BigEndian.PutUint32(out[8:12], 1)
	}
	return out
}
