package endpoint

import (
	"io"
	"os"
)

// stdioRWC joins os.Stdin and os.Stdout into a single
// io.ReadWriteCloser, closing neither on Close since the process host
// owns them.
type stdioRWC struct{}

func (stdioRWC) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioRWC) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioRWC) Close() error                { return nil }

var _ io.ReadWriteCloser = stdioRWC{}

// NewStdio returns the process's stdin/stdout as an Endpoint.
func NewStdio() Endpoint {
	return Wrap(stdioRWC{}, "stdio")
}
