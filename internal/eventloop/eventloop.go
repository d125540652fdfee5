//go:build linux

// Package eventloop wraps epoll as the readiness-based demultiplexer the
// server drives: register the listening socket and every client socket,
// wait (with a bounded timeout so shutdown latency stays bounded), then
// hand back the ready file descriptors for the caller to step once each.
package eventloop

import "golang.org/x/sys/unix"

// EventLoop owns one epoll instance.
type EventLoop struct {
	epfd   int
	events []unix.EpollEvent
}

// New creates an epoll instance sized for up to maxEvents ready
// descriptors per Wait call.
func New(maxEvents int) (*EventLoop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &EventLoop{epfd: epfd, events: make([]unix.EpollEvent, maxEvents)}, nil
}

// Register arms both readability and writability for fd: the connection
// state machine, not the event loop, decides which direction matters at
// any given moment.
func (l *EventLoop) Register(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLOUT, Fd: int32(fd)}
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// Deregister removes fd from the interest set. Callers still close fd
// themselves.
func (l *EventLoop) Deregister(fd int) error {
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks up to timeoutMs and returns the fds that became ready.
// EINTR is treated as "nothing ready yet" rather than an error.
func (l *EventLoop) Wait(timeoutMs int) ([]int, error) {
	n, err := unix.EpollWait(l.epfd, l.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	ready := make([]int, n)
	for i := 0; i < n; i++ {
		ready[i] = int(l.events[i].Fd)
	}
	return ready, nil
}

func (l *EventLoop) Close() error {
	return unix.Close(l.epfd)
}
