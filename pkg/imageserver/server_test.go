package imageserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/snapdisk/snapdisk/pkg/diskimage"
	"github.com/snapdisk/snapdisk/pkg/endpoint"
	"github.com/snapdisk/snapdisk/pkg/wireproto"
)

// pairedStream is one end of an in-process pair of Stream endpoints
// backed by Go channels, letting a test drive a Server without a real
// network connection.
type pairedStream struct {
	out chan []byte
	in  chan []byte
}

func newPairedStreams() (a, b *pairedStream) {
	c1 := make(chan []byte, 64)
	c2 := make(chan []byte, 64)
	return &pairedStream{out: c1, in: c2}, &pairedStream{out: c2, in: c1}
}

func (s *pairedStream) Send(data []byte) error {
	s.out <- append([]byte{}, data...)
	return nil
}

func (s *pairedStream) Recv(n int) ([]byte, error) {
	buf := make([]byte, 0, n)
	for len(buf) < n {
		buf = append(buf, <-s.in...)
	}
	return buf[:n], nil
}

func (s *pairedStream) Close() error { return nil }

func writeTestDisk(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestServeMetadataAndChunkRoundTrip(t *testing.T) {
	diskPath := writeTestDisk(t, 2500)
	img, err := diskimage.Open(diskPath, 1000)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img.Close()

	serverSide, clientSide := newPairedStreams()
	serverEP := endpoint.Wrap(chanRWC{serverSide}, "test")
	clientEP := endpoint.Wrap(chanRWC{clientSide}, "test")

	srv := New(serverEP, img, 0, nil)
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	metaFrame, err := wireproto.SendRecv(clientEP, wireproto.Request{Cmd: wireproto.CmdGetImageMetadata}, nil)
	if err != nil {
		t.Fatalf("get_image_metadata: %v", err)
	}
	var meta wireproto.ImageMetadataResponse
	if err := metaFrame.Decode(&meta); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if meta.DiskSize != 2500 || meta.ChunkSize != 1000 {
		t.Fatalf("metadata = %+v, want disk_size=2500 chunk_size=1000", meta)
	}

	hashFrame, err := wireproto.SendRecv(clientEP,
		wireproto.Request{Cmd: wireproto.CmdGetChunkHash, Offset: 0, Length: 1000}, nil)
	if err != nil {
		t.Fatalf("get_chunk_hash: %v", err)
	}
	var hashResp wireproto.ChunkHashResponse
	if err := hashFrame.Decode(&hashResp); err != nil {
		t.Fatalf("decode hash: %v", err)
	}

	dataFrame, err := wireproto.SendRecv(clientEP,
		wireproto.Request{Cmd: wireproto.CmdGetChunkData, Offset: 0, Length: 1000}, nil)
	if err != nil {
		t.Fatalf("get_chunk_data: %v", err)
	}
	if len(dataFrame.Payload) != 1000 {
		t.Fatalf("payload length = %d, want 1000", len(dataFrame.Payload))
	}

	if _, err := wireproto.SendRecv(clientEP, wireproto.Request{Cmd: wireproto.CmdQuit}, nil); err != nil {
		t.Fatalf("quit: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}
}

// chanRWC adapts a pairedStream (which already implements the
// byte-exact Send/Recv contract) into an io.ReadWriteCloser so it can
// be wrapped by endpoint.Wrap like any real transport.
type chanRWC struct {
	s *pairedStream
}

func (c chanRWC) Read(p []byte) (int, error) {
	data, err := c.s.Recv(len(p))
	if err != nil {
		return 0, err
	}
	return copy(p, data), nil
}

func (c chanRWC) Write(p []byte) (int, error) {
	if err := c.s.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c chanRWC) Close() error { return c.s.Close() }
