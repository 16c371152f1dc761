// Package wireproto implements the binary frame codec shared by the
// image server and its clients: a fixed 16-byte header (magic,
// message length, payload length) followed by an ASCII JSON control
// message and an opaque payload. It is the Go rendition of the
// teacher's pkg/wire.BaseFrame framing, narrowed from signed CBOR
// envelopes to the plain length-prefixed JSON+payload frame this
// protocol specifies.
package wireproto

import (
	"encoding/binary"
	"encoding/json"

	"github.com/snapdisk/snapdisk/pkg/snapdiskerr"
)

// Magic is the little-endian frame header magic number.
const Magic uint32 = 0xF9A16407

const headerSize = 16

// Stream is the minimal reliable byte-stream contract a Frame is sent
// and received over; pkg/endpoint's concrete types satisfy it.
type Stream interface {
	Send(data []byte) error
	Recv(n int) ([]byte, error)
}

// Frame is a decoded wire frame: a JSON control message plus its
// opaque payload.
type Frame struct {
	Message json.RawMessage
	Payload []byte
}

// StatusResponse is the minimal shape every server response message
// must satisfy.
type StatusResponse struct {
	Status string `json:"status"`
	Text   string `json:"text,omitempty"`
}

// Encode serializes msg (marshaled to compact JSON) and payload into
// the wire frame format.
func Encode(msg interface{}, payload []byte) ([]byte, error) {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return nil, snapdiskerr.MarshallingWrap(err, "encode control message")
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(msgBytes)))
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(payload)))

	out := make([]byte, 0, headerSize+len(msgBytes)+len(payload))
	out = append(out, header...)
	out = append(out, msgBytes...)
	out = append(out, payload...)
	return out, nil
}

// Send encodes msg/payload and transmits it over s as three writes
// (header, message, payload), per the specified emission order.
func Send(s Stream, msg interface{}, payload []byte) error {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return snapdiskerr.MarshallingWrap(err, "encode control message")
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(msgBytes)))
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(payload)))

	if err := s.Send(header); err != nil {
		return err
	}
	if err := s.Send(msgBytes); err != nil {
		return err
	}
	if len(payload) > 0 {
		if err := s.Send(payload); err != nil {
			return err
		}
	}
	return nil
}

// Recv reads exactly one frame from s: a 16-byte header, validated for
// magic, followed by exactly msg_len and payload_len bytes.
func Recv(s Stream) (*Frame, error) {
	header, err := s.Recv(headerSize)
	if err != nil {
		return nil, err
	}

	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != Magic {
		return nil, snapdiskerr.Marshalling(
			"bad frame magic: got 0x%08X, want 0x%08X", magic, Magic)
	}
	msgLen := binary.LittleEndian.Uint32(header[4:8])
	payloadLen := binary.LittleEndian.Uint64(header[8:16])

	msgBytes, err := s.Recv(int(msgLen))
	if err != nil {
		return nil, err
	}

	var payload []byte
	if payloadLen > 0 {
		payload, err = s.Recv(int(payloadLen))
		if err != nil {
			return nil, err
		}
	}

	return &Frame{Message: json.RawMessage(msgBytes), Payload: payload}, nil
}

// SendRecv is the client-side RPC primitive: send one frame, receive
// one frame, and require the response message to carry status "ok".
// Any other status raises Marshalling, including the server's text.
func SendRecv(s Stream, msg interface{}, payload []byte) (*Frame, error) {
	if err := Send(s, msg, payload); err != nil {
		return nil, err
	}

	frame, err := Recv(s)
	if err != nil {
		return nil, err
	}

	var status StatusResponse
	if err := json.Unmarshal(frame.Message, &status); err != nil {
		return nil, snapdiskerr.MarshallingWrap(err, "response missing status field")
	}
	if status.Status != "ok" {
		return nil, snapdiskerr.Marshalling("server error: %s", status.Text)
	}
	return frame, nil
}

// Decode unmarshals the frame's message into v.
func (f *Frame) Decode(v interface{}) error {
	if err := json.Unmarshal(f.Message, v); err != nil {
		return snapdiskerr.MarshallingWrap(err, "decode control message")
	}
	return nil
}
