package wireproto

import (
	"bytes"
	"testing"

	"github.com/snapdisk/snapdisk/pkg/snapdiskerr"
)

// bufStream is a Stream backed by an in-memory buffer, enough to
// exercise the codec without a real endpoint.
type bufStream struct {
	buf bytes.Buffer
}

func (s *bufStream) Send(data []byte) error {
	s.buf.Write(data)
	return nil
}

func (s *bufStream) Recv(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := s.buf.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

type statusMsg struct {
	Status string `json:"status"`
	Text   string `json:"text,omitempty"`
}

func TestSendRecvRoundTrip(t *testing.T) {
	s := &bufStream{}
	payload := []byte("chunk bytes")

	if err := Send(s, statusMsg{Status: "ok"}, payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	frame, err := Recv(s)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("payload = %q, want %q", frame.Payload, payload)
	}

	var got statusMsg
	if err := frame.Decode(&got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Status != "ok" {
		t.Fatalf("status = %q, want ok", got.Status)
	}
}

func TestSendRecvBadMagic(t *testing.T) {
	s := &bufStream{}
	s.buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})

	_, err := Recv(s)
	if !snapdiskerr.Is(err, snapdiskerr.CodeMarshalling) {
		t.Fatalf("expected Marshalling error, got %v", err)
	}
}

func TestClientSendRecvRejectsErrorStatus(t *testing.T) {
	s := &bufStream{}
	if err := Send(s, statusMsg{Status: "error", Text: "boom"}, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_, err := SendRecv(s, statusMsg{Status: "ok"}, nil)
	if !snapdiskerr.Is(err, snapdiskerr.CodeMarshalling) {
		t.Fatalf("expected Marshalling error for status=error, got %v", err)
	}
}
