package conn

import (
	"bytes"
	"encoding/binary"
	"testing"

	"gofast-kv/internal/store"
	"gofast-kv/internal/wire"
)

func frame(payload []byte) []byte {
	out := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(out, uint32(len(payload)))
	copy(out[headerSize:], payload)
	return out
}

func TestConnSingleRequestRoundTrip(t *testing.T) {
	m := store.New()
	p := NewPipeStream()
	c := New(p, m, nil)

	setBody := []byte{0x02, 0x01, 0x00, 'a', 0x01, 0x00, '1'}
	p.Feed(frame(setBody))

	c.Step()

	if c.Mode() != ModeReq {
		t.Fatalf("expected connection to return to REQ, got mode=%v", c.Mode())
	}
	out := p.Outbound.Bytes()
	length, err := wire.DecodeFrameHeader(out)
	if err != nil {
		t.Fatalf("DecodeFrameHeader: %v", err)
	}
	resp, err := wire.DecodeResponse(out[headerSize : headerSize+int(length)])
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.Command != wire.CmdSet || string(resp.Key) != "a" || string(resp.Value) != "1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

// Property 7: two pipelined requests in one read yield two responses in order.
func TestConnPipeliningPreservesOrder(t *testing.T) {
	m := store.New()
	p := NewPipeStream()
	c := New(p, m, nil)

	setA := frame([]byte{0x02, 0x01, 0x00, 'a', 0x01, 0x00, '1'})
	setB := frame([]byte{0x02, 0x01, 0x00, 'b', 0x01, 0x00, '2'})
	p.Feed(append(append([]byte{}, setA...), setB...))

	c.Step()

	out := p.Outbound.Bytes()
	offset := 0
	var keys []string
	for offset < len(out) {
		length, err := wire.DecodeFrameHeader(out[offset:])
		if err != nil {
			t.Fatalf("DecodeFrameHeader: %v", err)
		}
		offset += headerSize
		resp, err := wire.DecodeResponse(out[offset : offset+int(length)])
		if err != nil {
			t.Fatalf("DecodeResponse: %v", err)
		}
		keys = append(keys, string(resp.Key))
		offset += int(length)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("expected responses in order [a b], got %v", keys)
	}
}

func TestConnPartialMessageWaitsForMoreData(t *testing.T) {
	m := store.New()
	p := NewPipeStream()
	c := New(p, m, nil)

	full := frame([]byte{0x02, 0x01, 0x00, 'a', 0x01, 0x00, '1'})
	p.Feed(full[:len(full)-2]) // withhold the last two bytes

	c.Step()
	if c.Mode() != ModeReq {
		t.Fatalf("expected to stay in REQ waiting for more data, got %v", c.Mode())
	}
	if p.Outbound.Len() != 0 {
		t.Fatal("expected no response to have been written yet")
	}

	p.Feed(full[len(full)-2:])
	c.Step()
	if p.Outbound.Len() == 0 {
		t.Fatal("expected a response once the message completed")
	}
}

func TestConnEOFTransitionsToEnd(t *testing.T) {
	m := store.New()
	p := NewPipeStream()
	c := New(p, m, nil)
	p.Close()

	c.Step()
	if c.Mode() != ModeEnd {
		t.Fatalf("expected END after EOF, got %v", c.Mode())
	}
}

func TestConnOversizedFrameTransitionsToEnd(t *testing.T) {
	m := store.New()
	p := NewPipeStream()
	c := New(p, m, nil)

	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr, wire.MaxPayload+1)
	p.Feed(hdr)

	c.Step()
	if c.Mode() != ModeEnd {
		t.Fatalf("expected END after oversized frame header, got %v", c.Mode())
	}
}

func TestConnUnknownCommandEchoes(t *testing.T) {
	m := store.New()
	p := NewPipeStream()
	c := New(p, m, nil)

	payload := []byte{0xFF, 0x01, 0x02, 0x03}
	p.Feed(frame(payload))
	c.Step()

	out := p.Outbound.Bytes()
	length, _ := wire.DecodeFrameHeader(out)
	if !bytes.Equal(out[headerSize:headerSize+int(length)], payload) {
		t.Fatalf("expected echoed payload, got %x", out[headerSize:headerSize+int(length)])
	}
}

func TestConnWouldBlockOnWriteStaysInRes(t *testing.T) {
	m := store.New()
	p := newBlockingWriteStream()
	c := New(p, m, nil)

	setBody := []byte{0x02, 0x01, 0x00, 'a', 0x01, 0x00, '1'}
	p.Feed(frame(setBody))

	c.Step()
	if c.Mode() != ModeRes {
		t.Fatalf("expected to remain in RES after a blocked write, got %v", c.Mode())
	}

	p.blocked = false
	c.Step()
	if c.Mode() != ModeReq {
		t.Fatalf("expected to return to REQ once the write succeeded, got %v", c.Mode())
	}
}

// blockingWriteStream forces WriteNonBlocking to return ErrWouldBlock while
// blocked is set, exercising the RES state staying put across an event-loop pass.
type blockingWriteStream struct {
	*PipeStream
	blocked bool
}

func newBlockingWriteStream() *blockingWriteStream {
	return &blockingWriteStream{PipeStream: NewPipeStream(), blocked: true}
}

func (s *blockingWriteStream) WriteNonBlocking(buf []byte) (int, error) {
	if s.blocked {
		return 0, ErrWouldBlock
	}
	return s.PipeStream.WriteNonBlocking(buf)
}
