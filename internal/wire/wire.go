// Package wire defines the frame format the agent deframes: a fixed
// 12-byte big-endian header followed by an opaque body of the declared
// length. The header layout is the agent's own; the deframing core stays
// generic over it.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Magic marks the start of every header ("SX").
	Magic uint16 = 0x5358

	// Version is the only wire version this agent speaks.
	Version uint8 = 0x01

	// HeaderSize is the encoded header length in bytes.
	HeaderSize = 12
)

// Frame types.
const (
	TypeData      uint8 = 0x01
	TypeControl   uint8 = 0x02
	TypeHeartbeat uint8 = 0x03
)

var (
	ErrBadMagic   = errors.New("wire: bad magic")
	ErrBadVersion = errors.New("wire: unsupported version")
	ErrBadType    = errors.New("wire: unknown frame type")
)

// Header is the fixed wire header. Field order matches the encoded layout;
// all multi-byte fields are big-endian on the wire.
type Header struct {
	Magic    uint16
	Version  uint8
	Type     uint8
	StreamID uint32
	Length   uint32
}

// BodyLength satisfies streamparser.Header.
func (h Header) BodyLength() uint32 { return h.Length }

// Validate checks the protocol-level header fields. Length bounds are the
// parser's concern, not validated here.
func (h Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: 0x%04X", ErrBadMagic, h.Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("%w: 0x%02X", ErrBadVersion, h.Version)
	}
	switch h.Type {
	case TypeData, TypeControl, TypeHeartbeat:
		return nil
	default:
		return fmt.Errorf("%w: 0x%02X", ErrBadType, h.Type)
	}
}

// Message is one complete deframed frame.
type Message struct {
	Header Header
	Body   []byte
}

// AppendHeader appends the encoded header to dst.
func AppendHeader(dst []byte, h Header) []byte {
	var buf [HeaderSize]byte
	binary.BigEndian.PutUint16(buf[0:2], h.Magic)
	buf[2] = h.Version
	buf[3] = h.Type
	binary.BigEndian.PutUint32(buf[4:8], h.StreamID)
	binary.BigEndian.PutUint32(buf[8:12], h.Length)
	return append(dst, buf[:]...)
}

// EncodeMessage renders a complete frame for body, filling in magic,
// version and length.
func EncodeMessage(typ uint8, streamID uint32, body []byte) []byte {
	h := Header{
		Magic:    Magic,
		Version:  Version,
		Type:     typ,
		StreamID: streamID,
		Length:   uint32(len(body)),
	}
	out := AppendHeader(make([]byte, 0, HeaderSize+len(body)), h)
	return append(out, body...)
}
