// Package client is a small synchronous client over the wire protocol,
// used by the interactive CLI.
package client

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"gofast-kv/internal/wire"
)

// Conn is one blocking TCP connection speaking the framed wire protocol.
type Conn struct {
	nc net.Conn
}

// Dial connects to addr (host:port).
func Dial(addr string) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Conn{nc: nc}, nil
}

func (c *Conn) Close() error {
	return c.nc.Close()
}

// Call sends req and blocks for the matching response, one request at a
// time; Pipeline below sends several requests before reading any response.
func (c *Conn) Call(req wire.Request) (wire.Response, error) {
	payload := make([]byte, wire.MaxPayload)
	n, err := wire.EncodeRequest(payload, req)
	if err != nil {
		return wire.Response{}, err
	}

	frame := make([]byte, wire.HeaderSize+n)
	binary.LittleEndian.PutUint32(frame, uint32(n))
	copy(frame[wire.HeaderSize:], payload[:n])

	if _, err := c.nc.Write(frame); err != nil {
		return wire.Response{}, err
	}

	hdr := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(c.nc, hdr); err != nil {
		return wire.Response{}, err
	}
	length, err := wire.DecodeFrameHeader(hdr)
	if err != nil {
		return wire.Response{}, err
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(c.nc, body); err != nil {
		return wire.Response{}, err
	}
	resp, err := wire.DecodeResponse(body)
	if err != nil {
		return wire.Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Get, Set, Delete, and List are thin convenience wrappers over Call.

func (c *Conn) Get(key string) (value string, ok bool, err error) {
	resp, err := c.Call(wire.Request{Command: wire.CmdGet, Key: []byte(key)})
	if err != nil {
		return "", false, err
	}
	return string(resp.Value), resp.HasValue, nil
}

func (c *Conn) Set(key, value string) error {
	_, err := c.Call(wire.Request{Command: wire.CmdSet, Key: []byte(key), Value: []byte(value)})
	return err
}

func (c *Conn) Delete(key string) error {
	_, err := c.Call(wire.Request{Command: wire.CmdDelete, Key: []byte(key)})
	return err
}

func (c *Conn) List() ([]wire.KV, error) {
	resp, err := c.Call(wire.Request{Command: wire.CmdList})
	if err != nil {
		return nil, err
	}
	if resp.Command == wire.CmdUnknown {
		return nil, fmt.Errorf("server rejected list: response too large")
	}
	return resp.Pairs, nil
}

// Pipeline sends every request in reqs back to back before reading any
// response, then reads exactly len(reqs) responses in order. This exercises
// the server's request pipelining from the client side, the supplemented
// "pipeline" REPL command described in SPEC_FULL.md.
func (c *Conn) Pipeline(reqs []wire.Request) ([]wire.Response, error) {
	var buf []byte
	for _, req := range reqs {
		payload := make([]byte, wire.MaxPayload)
		n, err := wire.EncodeRequest(payload, req)
		if err != nil {
			return nil, err
		}
		frame := make([]byte, wire.HeaderSize+n)
		binary.LittleEndian.PutUint32(frame, uint32(n))
		copy(frame[wire.HeaderSize:], payload[:n])
		buf = append(buf, frame...)
	}
	if _, err := c.nc.Write(buf); err != nil {
		return nil, err
	}

	resps := make([]wire.Response, 0, len(reqs))
	for range reqs {
		hdr := make([]byte, wire.HeaderSize)
		if _, err := io.ReadFull(c.nc, hdr); err != nil {
			return nil, err
		}
		length, err := wire.DecodeFrameHeader(hdr)
		if err != nil {
			return nil, err
		}
		body := make([]byte, length)
		if _, err := io.ReadFull(c.nc, body); err != nil {
			return nil, err
		}
		resp, err := wire.DecodeResponse(body)
		if err != nil {
			return nil, err
		}
		resps = append(resps, resp)
	}
	return resps, nil
}
