//go:build linux

package conn

import (
	"io"

	"golang.org/x/sys/unix"
)

// FDStream drives a raw non-blocking socket fd. It is the Stream
// implementation the event loop registers with epoll.
type FDStream struct {
	fd int
}

// NewFDStream wraps an already-non-blocking fd.
func NewFDStream(fd int) *FDStream {
	return &FDStream{fd: fd}
}

func (s *FDStream) Fd() int {
	return s.fd
}

func (s *FDStream) ReadNonBlocking(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (s *FDStream) WriteNonBlocking(buf []byte) (int, error) {
	n, err := unix.Write(s.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return n, ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}

func (s *FDStream) Close() error {
	return unix.Close(s.fd)
}
