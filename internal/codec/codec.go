// Package codec translates between typed wire values and caller-owned byte
// ranges. Encoders fail with ErrBufferTooSmall rather than growing a
// destination buffer that is too small; decode operations borrow slices of
// the input buffer rather than copying. The only allocation is the element
// slice DecodeObject builds for an Array.
package codec

import (
	"encoding/binary"
	"errors"
)

var (
	ErrBufferTooSmall = errors.New("codec: buffer too small")
	ErrStringTooLong  = errors.New("codec: string too long")
	ErrInvalidType    = errors.New("codec: invalid type")
)

// MaxStringLen is the largest string representable on the wire (2^16 - 1).
const MaxStringLen = 1<<16 - 1

// Tag identifies an Object variant. Values are fixed on the wire.
type Tag uint8

const (
	TagNil     Tag = 0
	TagInteger Tag = 1
	TagDouble  Tag = 2
	TagString  Tag = 3
	TagArray   Tag = 4
)

// Command identifies a request/response variant. Values are fixed on the wire.
type Command uint8

const (
	CmdGet     Command = 1
	CmdSet     Command = 2
	CmdDelete  Command = 3
	CmdList    Command = 4
	CmdUnknown Command = 5
)

// Object is a tagged union over Nil, Integer, Double, String, and Array.
type Object struct {
	Tag     Tag
	Integer int64
	Double  float64
	Str     []byte
	Array   []Object
}

func EncodeU8(buf []byte, v uint8) (int, error) {
	if len(buf) < 1 {
		return 0, ErrBufferTooSmall
	}
	buf[0] = v
	return 1, nil
}

func DecodeU8(buf []byte) (uint8, int, error) {
	if len(buf) < 1 {
		return 0, 0, ErrBufferTooSmall
	}
	return buf[0], 1, nil
}

func EncodeU16(buf []byte, v uint16) (int, error) {
	if len(buf) < 2 {
		return 0, ErrBufferTooSmall
	}
	binary.LittleEndian.PutUint16(buf, v)
	return 2, nil
}

func DecodeU16(buf []byte) (uint16, int, error) {
	if len(buf) < 2 {
		return 0, 0, ErrBufferTooSmall
	}
	return binary.LittleEndian.Uint16(buf), 2, nil
}

func EncodeU32(buf []byte, v uint32) (int, error) {
	if len(buf) < 4 {
		return 0, ErrBufferTooSmall
	}
	binary.LittleEndian.PutUint32(buf, v)
	return 4, nil
}

func DecodeU32(buf []byte) (uint32, int, error) {
	if len(buf) < 4 {
		return 0, 0, ErrBufferTooSmall
	}
	return binary.LittleEndian.Uint32(buf), 4, nil
}

func EncodeU64(buf []byte, v uint64) (int, error) {
	if len(buf) < 8 {
		return 0, ErrBufferTooSmall
	}
	binary.LittleEndian.PutUint64(buf, v)
	return 8, nil
}

func DecodeU64(buf []byte) (uint64, int, error) {
	if len(buf) < 8 {
		return 0, 0, ErrBufferTooSmall
	}
	return binary.LittleEndian.Uint64(buf), 8, nil
}

// EncodeString writes a 2-byte little-endian length followed by s.
func EncodeString(buf []byte, s []byte) (int, error) {
	if len(s) > MaxStringLen {
		return 0, ErrStringTooLong
	}
	if len(buf) < 2+len(s) {
		return 0, ErrBufferTooSmall
	}
	binary.LittleEndian.PutUint16(buf, uint16(len(s)))
	copy(buf[2:], s)
	return 2 + len(s), nil
}

// DecodeString reads a length-prefixed string, returning a slice that
// borrows from buf. The caller must not retain it past the next mutation
// of the buffer's owner.
func DecodeString(buf []byte) ([]byte, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrBufferTooSmall
	}
	length := int(binary.LittleEndian.Uint16(buf))
	if len(buf) < 2+length {
		return nil, 0, ErrBufferTooSmall
	}
	return buf[2 : 2+length], 2 + length, nil
}

// EncodeCommandTag writes a single command byte.
func EncodeCommandTag(buf []byte, c Command) (int, error) {
	return EncodeU8(buf, uint8(c))
}

// DecodeCommandTag reads a single command byte. An unrecognized value
// returns ErrInvalidType so the caller can fall back to treating the
// payload as Unknown.
func DecodeCommandTag(buf []byte) (Command, int, error) {
	b, n, err := DecodeU8(buf)
	if err != nil {
		return 0, 0, err
	}
	switch Command(b) {
	case CmdGet, CmdSet, CmdDelete, CmdList:
		return Command(b), n, nil
	default:
		return 0, 0, ErrInvalidType
	}
}

// EncodeObject writes a tag byte followed by the variant's body.
func EncodeObject(buf []byte, o Object) (int, error) {
	if len(buf) < 1 {
		return 0, ErrBufferTooSmall
	}
	buf[0] = byte(o.Tag)
	switch o.Tag {
	case TagNil:
		return 1, nil
	case TagInteger:
		n, err := EncodeU64(buf[1:], uint64(o.Integer))
		if err != nil {
			return 0, err
		}
		return 1 + n, nil
	case TagDouble:
		n, err := EncodeU64(buf[1:], doubleBits(o.Double))
		if err != nil {
			return 0, err
		}
		return 1 + n, nil
	case TagString:
		n, err := EncodeString(buf[1:], o.Str)
		if err != nil {
			return 0, err
		}
		return 1 + n, nil
	case TagArray:
		if len(o.Array) > 1<<16-1 {
			return 0, ErrStringTooLong
		}
		n, err := EncodeU16(buf[1:], uint16(len(o.Array)))
		if err != nil {
			return 0, err
		}
		total := 1 + n
		for _, elem := range o.Array {
			en, err := EncodeObject(buf[total:], elem)
			if err != nil {
				return 0, err
			}
			total += en
		}
		return total, nil
	default:
		return 0, ErrInvalidType
	}
}

// DecodeObject reads a tag byte and the matching variant body. String and
// Array variants borrow from buf.
func DecodeObject(buf []byte) (Object, int, error) {
	tagByte, n, err := DecodeU8(buf)
	if err != nil {
		return Object{}, 0, err
	}
	tag := Tag(tagByte)
	switch tag {
	case TagNil:
		return Object{Tag: TagNil}, n, nil
	case TagInteger:
		v, vn, err := DecodeU64(buf[n:])
		if err != nil {
			return Object{}, 0, err
		}
		return Object{Tag: TagInteger, Integer: int64(v)}, n + vn, nil
	case TagDouble:
		v, vn, err := DecodeU64(buf[n:])
		if err != nil {
			return Object{}, 0, err
		}
		return Object{Tag: TagDouble, Double: doubleFromBits(v)}, n + vn, nil
	case TagString:
		s, sn, err := DecodeString(buf[n:])
		if err != nil {
			return Object{}, 0, err
		}
		return Object{Tag: TagString, Str: s}, n + sn, nil
	case TagArray:
		count, cn, err := DecodeU16(buf[n:])
		if err != nil {
			return Object{}, 0, err
		}
		total := n + cn
		elems := make([]Object, count)
		for i := range elems {
			elem, en, err := DecodeObject(buf[total:])
			if err != nil {
				return Object{}, 0, err
			}
			elems[i] = elem
			total += en
		}
		return Object{Tag: TagArray, Array: elems}, total, nil
	default:
		return Object{}, 0, ErrInvalidType
	}
}
