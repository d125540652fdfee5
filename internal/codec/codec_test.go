package codec

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestIntRoundTrip(t *testing.T) {
	buf := make([]byte, 16)

	if n, err := EncodeU8(buf, 0xAB); err != nil || n != 1 {
		t.Fatalf("EncodeU8: n=%d err=%v", n, err)
	}
	if v, n, err := DecodeU8(buf); err != nil || n != 1 || v != 0xAB {
		t.Fatalf("DecodeU8: v=%x n=%d err=%v", v, n, err)
	}

	if n, err := EncodeU16(buf, 0xBEEF); err != nil || n != 2 {
		t.Fatalf("EncodeU16: n=%d err=%v", n, err)
	}
	if v, n, err := DecodeU16(buf); err != nil || n != 2 || v != 0xBEEF {
		t.Fatalf("DecodeU16: v=%x n=%d err=%v", v, n, err)
	}

	if n, err := EncodeU32(buf, 0xDEADBEEF); err != nil || n != 4 {
		t.Fatalf("EncodeU32: n=%d err=%v", n, err)
	}
	if v, n, err := DecodeU32(buf); err != nil || n != 4 || v != 0xDEADBEEF {
		t.Fatalf("DecodeU32: v=%x n=%d err=%v", v, n, err)
	}

	if n, err := EncodeU64(buf, 0x0102030405060708); err != nil || n != 8 {
		t.Fatalf("EncodeU64: n=%d err=%v", n, err)
	}
	if v, n, err := DecodeU64(buf); err != nil || n != 8 || v != 0x0102030405060708 {
		t.Fatalf("DecodeU64: v=%x n=%d err=%v", v, n, err)
	}
}

func TestU32LittleEndianOnWire(t *testing.T) {
	buf := make([]byte, 4)
	EncodeU32(buf, 1)
	if !bytes.Equal(buf, []byte{1, 0, 0, 0}) {
		t.Fatalf("expected little-endian bytes, got %x", buf)
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		[]byte("a"),
		[]byte("a_key"),
		bytes.Repeat([]byte("x"), 65535),
	}
	for _, s := range cases {
		buf := make([]byte, 2+len(s))
		n, err := EncodeString(buf, s)
		if err != nil {
			t.Fatalf("EncodeString(%d bytes): %v", len(s), err)
		}
		if n != len(buf) {
			t.Fatalf("EncodeString wrote %d, expected %d", n, len(buf))
		}
		got, dn, err := DecodeString(buf)
		if err != nil {
			t.Fatalf("DecodeString: %v", err)
		}
		if dn != n {
			t.Fatalf("DecodeString consumed %d, encode wrote %d", dn, n)
		}
		if !bytes.Equal(got, s) && !(len(got) == 0 && len(s) == 0) {
			t.Fatalf("round trip mismatch: got %v want %v", got, s)
		}
	}
}

func TestStringTooLong(t *testing.T) {
	s := bytes.Repeat([]byte("x"), MaxStringLen+1)
	buf := make([]byte, len(s)+2)
	if _, err := EncodeString(buf, s); err != ErrStringTooLong {
		t.Fatalf("expected ErrStringTooLong, got %v", err)
	}
}

func TestStringTruncatedBuffer(t *testing.T) {
	buf := []byte{5, 0, 'h', 'e'} // declares length 5 but only 2 bytes follow
	if _, _, err := DecodeString(buf); err != ErrBufferTooSmall {
		t.Fatalf("expected ErrBufferTooSmall, got %v", err)
	}
	if _, _, err := DecodeString(buf[:1]); err != ErrBufferTooSmall {
		t.Fatalf("expected ErrBufferTooSmall on truncated header, got %v", err)
	}
}

func TestObjectRoundTrip(t *testing.T) {
	objs := []Object{
		{Tag: TagNil},
		{Tag: TagInteger, Integer: -42},
		{Tag: TagInteger, Integer: 1 << 40},
		{Tag: TagDouble, Double: 3.141592653589793},
		{Tag: TagDouble, Double: -0.0},
		{Tag: TagString, Str: []byte("hello world")},
		{Tag: TagArray, Array: []Object{
			{Tag: TagInteger, Integer: 1},
			{Tag: TagString, Str: []byte("two")},
			{Tag: TagNil},
		}},
	}

	for _, o := range objs {
		buf := make([]byte, 4096)
		n, err := EncodeObject(buf, o)
		if err != nil {
			t.Fatalf("EncodeObject(%+v): %v", o, err)
		}
		got, dn, err := DecodeObject(buf)
		if err != nil {
			t.Fatalf("DecodeObject: %v", err)
		}
		if dn != n {
			t.Fatalf("decode consumed %d, encode wrote %d", dn, n)
		}
		assertObjectEqual(t, o, got)
	}
}

func assertObjectEqual(t *testing.T, want, got Object) {
	t.Helper()
	if want.Tag != got.Tag {
		t.Fatalf("tag mismatch: want %d got %d", want.Tag, got.Tag)
	}
	switch want.Tag {
	case TagInteger:
		if want.Integer != got.Integer {
			t.Fatalf("integer mismatch: want %d got %d", want.Integer, got.Integer)
		}
	case TagDouble:
		if doubleBits(want.Double) != doubleBits(got.Double) {
			t.Fatalf("double mismatch: want %v got %v", want.Double, got.Double)
		}
	case TagString:
		if !bytes.Equal(want.Str, got.Str) {
			t.Fatalf("string mismatch: want %q got %q", want.Str, got.Str)
		}
	case TagArray:
		if len(want.Array) != len(got.Array) {
			t.Fatalf("array length mismatch: want %d got %d", len(want.Array), len(got.Array))
		}
		for i := range want.Array {
			assertObjectEqual(t, want.Array[i], got.Array[i])
		}
	}
}

func TestDecodeObjectInvalidTag(t *testing.T) {
	buf := []byte{0xFA}
	if _, _, err := DecodeObject(buf); err != ErrInvalidType {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestCommandTagRoundTrip(t *testing.T) {
	for _, c := range []Command{CmdGet, CmdSet, CmdDelete, CmdList} {
		buf := make([]byte, 1)
		EncodeCommandTag(buf, c)
		got, n, err := DecodeCommandTag(buf)
		if err != nil || n != 1 || got != c {
			t.Fatalf("command round trip failed for %d: got=%d n=%d err=%v", c, got, n, err)
		}
	}
}

func TestCommandTagUnknownByte(t *testing.T) {
	buf := []byte{0xFF}
	if _, _, err := DecodeCommandTag(buf); err != ErrInvalidType {
		t.Fatalf("expected ErrInvalidType for unknown command byte, got %v", err)
	}
}

func TestStringRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := rng.Intn(300)
		s := make([]byte, n)
		rng.Read(s)
		buf := make([]byte, n+2)
		EncodeString(buf, s)
		got, _, err := DecodeString(buf)
		if err != nil {
			t.Fatalf("DecodeString: %v", err)
		}
		if !bytes.Equal(got, s) {
			t.Fatalf("round trip mismatch on random string of length %d", n)
		}
	}
}
