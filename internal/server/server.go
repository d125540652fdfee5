//go:build linux

// Package server wires the accept loop, the connection table, and
// teardown around the event loop and per-connection state machine:
// §4.6/§4.7 of the core spec.
package server

import (
	"fmt"
	"net"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"gofast-kv/internal/conn"
	"gofast-kv/internal/eventloop"
	"gofast-kv/internal/logging"
	"gofast-kv/internal/stats"
	"gofast-kv/internal/store"
)

const maxEpollEvents = 1024

// Server owns the listening socket, the epoll loop, the live connection
// table, and the single process-wide Map every connection reads/writes.
type Server struct {
	log         *logging.Logger
	listenFd    int
	loop        *eventloop.EventLoop
	conns       map[int]*conn.State
	kv          *store.Map
	stats       *stats.Stats
	pollTimeout int
	closing     chan struct{}
}

// New binds host:port and creates the epoll instance. Both failures (if
// they both occur) are reported together via go.uber.org/multierr rather
// than masking one behind the other.
func New(host string, port int, pollTimeoutMs int, log *logging.Logger, st *stats.Stats) (*Server, error) {
	listenFd, lerr := bindListener(host, port)
	loop, eerr := eventloop.New(maxEpollEvents)

	if lerr != nil || eerr != nil {
		var combined error
		combined = multierr.Append(combined, lerr)
		combined = multierr.Append(combined, eerr)
		if listenFd >= 0 {
			unix.Close(listenFd)
		}
		if loop != nil {
			loop.Close()
		}
		return nil, combined
	}

	if err := loop.Register(listenFd); err != nil {
		unix.Close(listenFd)
		loop.Close()
		return nil, fmt.Errorf("register listener: %w", err)
	}

	return &Server{
		log:         log,
		listenFd:    listenFd,
		loop:        loop,
		conns:       make(map[int]*conn.State),
		kv:          store.New(),
		stats:       st,
		pollTimeout: pollTimeoutMs,
		closing:     make(chan struct{}),
	}, nil
}

// Run drives the event loop until Stop is called or a fatal wait error
// occurs. Each readiness pass steps every ready connection exactly once.
func (s *Server) Run() error {
	for {
		select {
		case <-s.closing:
			return nil
		default:
		}

		ready, err := s.loop.Wait(s.pollTimeout)
		if err != nil {
			return fmt.Errorf("epoll wait: %w", err)
		}

		for _, fd := range ready {
			if fd == s.listenFd {
				s.acceptAll()
				continue
			}
			c, ok := s.conns[fd]
			if !ok {
				continue
			}
			c.Step()
			if c.Mode() == conn.ModeEnd {
				s.closeConn(fd)
			}
		}
	}
}

// acceptAll drains the accept backlog: a ready listening socket may have
// more than one pending connection.
func (s *Server) acceptAll() {
	for {
		clientFd, _, err := unix.Accept4(s.listenFd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			s.log.Warnf("accept error: %v", err)
			return
		}
		if err := s.loop.Register(clientFd); err != nil {
			s.log.Errorf("register error: %v", err)
			unix.Close(clientFd)
			continue
		}
		s.conns[clientFd] = conn.New(conn.NewFDStream(clientFd), s.kv, s.stats)
		s.stats.IncConnections()
	}
}

func (s *Server) closeConn(fd int) {
	s.loop.Deregister(fd)
	if c, ok := s.conns[fd]; ok {
		c.Stream().Close()
		delete(s.conns, fd)
	}
}

// Stop requests the Run loop exit on its next pass.
func (s *Server) Stop() {
	close(s.closing)
}

// Shutdown tears down every live connection, then the listener and the
// epoll instance itself. Every successful allocation made in New has a
// matching release here.
func (s *Server) Shutdown() {
	for fd := range s.conns {
		s.closeConn(fd)
	}
	unix.Close(s.listenFd)
	s.loop.Close()
}

// Stats exposes the live counters for the periodic stats snapshot.
func (s *Server) Stats() *stats.Stats {
	return s.stats
}

func bindListener(host string, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("setsockopt reuseaddr: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("setsockopt reuseport: %w", err)
	}

	addr, err := resolveIPv4(host)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port, Addr: addr}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind: %w", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listen: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("set nonblocking: %w", err)
	}
	return fd, nil
}

func resolveIPv4(host string) ([4]byte, error) {
	if host == "" || host == "0.0.0.0" {
		return [4]byte{0, 0, 0, 0}, nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return [4]byte{}, fmt.Errorf("resolve host %q: %w", host, err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			var out [4]byte
			copy(out[:], v4)
			return out, nil
		}
	}
	return [4]byte{}, fmt.Errorf("no IPv4 address for host %q", host)
}
