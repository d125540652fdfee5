// Package conn implements the per-connection read/write buffers and the
// REQ/RES/END state machine that drives requests through the handlers and
// responses back out, over any Stream (real socket or in-process pipe).
package conn

import (
	"encoding/binary"
	"errors"

	"gofast-kv/internal/handlers"
	"gofast-kv/internal/stats"
	"gofast-kv/internal/store"
	"gofast-kv/internal/wire"
)

// Mode is the connection's place in the REQ/RES/END state machine.
type Mode int

const (
	ModeReq Mode = iota
	ModeRes
	ModeEnd
)

const (
	headerSize = wire.HeaderSize
	maxPayload = wire.MaxPayload
	bufCap     = headerSize + maxPayload
)

var errFrameTooLong = errors.New("conn: frame exceeds max payload")

// State is one connection's buffers and mode. Buffers are fixed-size
// arrays sized for exactly one maximum message, mirroring the per-
// connection allocation discipline the spec calls for.
type State struct {
	stream Stream
	m      *store.Map
	st     *stats.Stats
	mode   Mode

	readBuf    [bufCap]byte
	readLen    int
	readCursor int

	writeBuf  [bufCap]byte
	writeLen  int
	writeSent int
}

// New creates a connection in the initial REQ state. st may be nil, in
// which case no stats are recorded (used by tests that only care about
// protocol behavior).
func New(stream Stream, m *store.Map, st *stats.Stats) *State {
	return &State{stream: stream, m: m, st: st, mode: ModeReq}
}

func (c *State) Mode() Mode {
	return c.mode
}

func (c *State) Stream() Stream {
	return c.stream
}

// Step drives the state machine once: REQ reads and drains as many
// complete messages as are buffered, RES attempts one write. The event
// loop calls this once per readiness notification regardless of which
// direction became ready — Step dispatches on the connection's own mode.
func (c *State) Step() {
	switch c.mode {
	case ModeReq:
		c.fillBuffer()
	case ModeRes:
		c.flushBuffer()
	}
}

// fillBuffer implements the REQ step: compact, attempt one non-blocking
// read, then drain every complete framed message the buffer now holds.
func (c *State) fillBuffer() {
	if c.readCursor > 0 {
		copy(c.readBuf[:], c.readBuf[c.readCursor:c.readLen])
		c.readLen -= c.readCursor
		c.readCursor = 0
	}

	n, err := c.stream.ReadNonBlocking(c.readBuf[c.readLen:])
	if err != nil {
		if err == ErrWouldBlock {
			return
		}
		c.mode = ModeEnd
		return
	}
	c.readLen += n

	for c.mode == ModeReq {
		ok, perr := c.processOneRequest()
		if perr != nil {
			c.mode = ModeEnd
			return
		}
		if !ok {
			return
		}
	}
}

// processOneRequest parses one framed message if a complete one is
// buffered, dispatches it, and synchronously attempts the response flush.
// It returns ok=false when no complete message is available yet.
func (c *State) processOneRequest() (ok bool, err error) {
	avail := c.readLen - c.readCursor
	if avail < headerSize {
		return false, nil
	}

	length := binary.LittleEndian.Uint32(c.readBuf[c.readCursor : c.readCursor+headerSize])
	if length > maxPayload {
		return false, errFrameTooLong
	}
	if avail < headerSize+int(length) {
		return false, nil
	}

	payloadStart := c.readCursor + headerSize
	payload := c.readBuf[payloadStart : payloadStart+int(length)]

	req, derr := wire.DecodeRequest(payload)
	var resp wire.Response
	if derr != nil {
		resp = wire.Response{Command: wire.CmdUnknown, Raw: append([]byte(nil), payload...)}
	} else {
		c.recordStat(req.Command)
		resp = handlers.Handle(req, c.m)
	}

	// The next request is only decoded after this call returns, so the
	// response below is fully encoded before anything else can mutate the
	// Map — see SPEC_FULL.md Q3.
	c.readCursor = payloadStart + int(length)

	n, eerr := wire.EncodeResponse(c.writeBuf[headerSize:], resp)
	if eerr != nil {
		resp = wire.Response{Command: wire.CmdUnknown, Raw: []byte("Invalid request")}
		n, _ = wire.EncodeResponse(c.writeBuf[headerSize:], resp)
	}
	binary.LittleEndian.PutUint32(c.writeBuf[0:headerSize], uint32(n))
	c.writeLen = headerSize + n
	c.writeSent = 0
	c.mode = ModeRes
	c.flushBuffer()
	return true, nil
}

func (c *State) recordStat(cmd wire.Command) {
	if c.st == nil {
		return
	}
	c.st.IncTotalOps()
	switch cmd {
	case wire.CmdGet:
		c.st.IncGetOps()
	case wire.CmdSet:
		c.st.IncSetOps()
	case wire.CmdDelete:
		c.st.IncDelOps()
	}
}

// flushBuffer implements the RES step: attempt one non-blocking write of
// the pending region. On a full write it resets the buffer and returns to
// REQ; on WouldBlock it stays in RES for the next readiness notification.
func (c *State) flushBuffer() {
	n, err := c.stream.WriteNonBlocking(c.writeBuf[c.writeSent:c.writeLen])
	if err != nil {
		if err == ErrWouldBlock {
			return
		}
		c.mode = ModeEnd
		return
	}
	c.writeSent += n
	if c.writeSent >= c.writeLen {
		c.writeLen = 0
		c.writeSent = 0
		c.mode = ModeReq
	}
}
