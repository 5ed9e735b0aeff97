// Package streamparser implements a finite-state-machine deframer for
// header-delimited binary streams. A fixed-size header declares the length
// of the body that follows; input arrives in arbitrarily fragmented chunks
// and the parser emits each complete header and body to its handlers
// exactly once, in strict alternation.
//
// The parser is generic over the header shape. The header type must be a
// fixed-layout struct decodable by encoding/binary; the whole header is
// decoded big-endian, which is the network-to-host normalization of the
// length field (and of every other multi-byte field in the header).
package streamparser

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"firestige.xyz/strix/pkg/ringbuffer"
)

// Sentinel errors.
var (
	ErrNilHandler       = errors.New("streamparser: nil handler")
	ErrBadHeaderType    = errors.New("streamparser: header type is not a fixed-size struct")
	ErrCapacityTooSmall = errors.New("streamparser: capacity cannot hold header plus max body")
	ErrBodyTooLarge     = errors.New("streamparser: declared body length exceeds limit")
)

// Header is implemented by wire header types. BodyLength reports how many
// body bytes follow the encoded header; headers with a 16-bit length field
// widen it to uint32 in the method.
type Header interface {
	BodyLength() uint32
}

// HeaderHandler receives each decoded header. Returning false refuses the
// header: it stays buffered and is re-delivered on the next HandleData or
// Resume call.
type HeaderHandler[H Header] func(h H) bool

// BodyHandler receives the complete body for the most recent header. The
// slice may be a direct view of internal storage and is valid only for the
// duration of the call. Returning false refuses the body; it stays
// buffered and is re-delivered later.
type BodyHandler func(body []byte) bool

// DefaultBufferCapacity is the receive buffer size used when no option
// overrides it.
const DefaultBufferCapacity = 64 * 1024

type recvState uint8

const (
	stateReadHeader recvState = iota
	stateReadBody
)

type options struct {
	capacity int
	maxBody  uint32
}

// Option configures a Parser at construction.
type Option func(*options)

// WithBufferCapacity sets the receive ring capacity in bytes. It must be a
// non-zero power of two and large enough for one header plus the maximum
// body.
func WithBufferCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithMaxBodyBytes caps the body length a header may declare. Exceeding it
// is fatal to the stream. Zero means the largest body that fits the ring.
func WithMaxBodyBytes(n uint32) Option {
	return func(o *options) { o.maxBody = n }
}

// Parser deframes one logical byte stream. It is not safe for concurrent
// use; the owned ring buffer carries its own lock, the parser state does
// not.
type Parser[H Header] struct {
	headerLen int
	maxBody   uint32

	onHeader HeaderHandler[H]
	onBody   BodyHandler

	recv    *ringbuffer.RingBuffer
	state   recvState
	pending H // valid only in stateReadBody
	failed  error
}

// New constructs a parser for header type H. The encoded header size is
// derived from the zero value of H; types that encoding/binary cannot size
// (pointers, slices, strings) are rejected with ErrBadHeaderType.
func New[H Header](onHeader HeaderHandler[H], onBody BodyHandler, opts ...Option) (*Parser[H], error) {
	if onHeader == nil || onBody == nil {
		return nil, ErrNilHandler
	}

	var zero H
	size := binary.Size(zero)
	if size <= 0 {
		return nil, fmt.Errorf("%w: %T", ErrBadHeaderType, zero)
	}

	o := options{capacity: DefaultBufferCapacity}
	for _, opt := range opts {
		opt(&o)
	}

	recv, err := ringbuffer.New(o.capacity)
	if err != nil {
		return nil, err
	}
	if o.capacity <= size {
		return nil, fmt.Errorf("%w: capacity %d, header %d", ErrCapacityTooSmall, o.capacity, size)
	}
	if o.maxBody == 0 {
		o.maxBody = uint32(o.capacity - size)
	}
	if uint64(o.maxBody) > uint64(o.capacity-size) {
		return nil, fmt.Errorf("%w: capacity %d, header %d, max body %d",
			ErrCapacityTooSmall, o.capacity, size, o.maxBody)
	}

	return &Parser[H]{
		headerLen: size,
		maxBody:   o.maxBody,
		onHeader:  onHeader,
		onBody:    onBody,
		recv:      recv,
	}, nil
}

// HandleData feeds one chunk of the stream into the parser and drives the
// state machine as far as the buffered bytes allow. One call drains any
// number of complete queued messages and suspends cleanly mid-message when
// the data is fragmented; any split of the stream across calls produces
// the same handler invocations as a single unfragmented call.
//
// A full receive buffer surfaces as ringbuffer.ErrBufferOverflow with
// nothing consumed: the caller decides between backpressure and dropping
// the stream. A poisoned parser (see ErrBodyTooLarge) keeps returning its
// fatal error until Reset.
//
// Empty input is accepted as a pure drive of the state machine, which is
// also the redelivery path after a handler refusal.
func (p *Parser[H]) HandleData(data []byte) error {
	if p.failed != nil {
		return p.failed
	}
	if len(data) > 0 {
		if err := p.recv.Write(data); err != nil {
			return fmt.Errorf("streamparser: %w", err)
		}
	}
	return p.drive()
}

// Resume retries delivery of a previously refused header or body without
// feeding new bytes.
func (p *Parser[H]) Resume() error {
	if p.failed != nil {
		return p.failed
	}
	return p.drive()
}

// Reset clears the receive buffer and returns the parser to the
// read-header state, recovering a poisoned parser. Partial or refused
// messages are discarded.
func (p *Parser[H]) Reset() {
	var zero H
	p.recv.Clear()
	p.state = stateReadHeader
	p.pending = zero
	p.failed = nil
}

// Buffered returns the number of staged bytes awaiting a complete message.
func (p *Parser[H]) Buffered() int {
	return p.recv.Buffered()
}

// HeaderSize returns the encoded size of H in bytes.
func (p *Parser[H]) HeaderSize() int {
	return p.headerLen
}

// MaxBodyBytes returns the enforced body length cap.
func (p *Parser[H]) MaxBodyBytes() uint32 {
	return p.maxBody
}

func (p *Parser[H]) drive() error {
	for {
		var progressed bool
		switch p.state {
		case stateReadHeader:
			if p.recv.Buffered() < p.headerLen {
				return nil
			}
			progressed = p.readHeader()
		case stateReadBody:
			if p.recv.Buffered() < int(p.pending.BodyLength()) {
				return nil
			}
			progressed = p.readBody()
		}
		if p.failed != nil {
			return p.failed
		}
		if !progressed {
			// handler refusal: leave the bytes staged for redelivery
			return nil
		}
	}
}

// readHeader extracts one header through the commit-gated read path, so the
// header bytes are consumed only when the handler accepts them.
func (p *Parser[H]) readHeader() bool {
	var progressed bool
	p.recv.ReadFunc(p.headerLen, func(view []byte) bool {
		var hdr H
		if err := binary.Read(bytes.NewReader(view), binary.BigEndian, &hdr); err != nil {
			p.failed = fmt.Errorf("streamparser: decode header: %w", err)
			return false
		}
		if hdr.BodyLength() > p.maxBody {
			p.failed = fmt.Errorf("%w: declared %d, limit %d",
				ErrBodyTooLarge, hdr.BodyLength(), p.maxBody)
			return false
		}
		if !p.onHeader(hdr) {
			return false
		}
		p.pending = hdr
		progressed = true
		return true
	})
	if progressed {
		p.state = stateReadBody
	}
	return progressed
}

func (p *Parser[H]) readBody() bool {
	length := int(p.pending.BodyLength())
	if length == 0 {
		// A zero-length body delivers immediately with an empty payload
		// instead of stalling on a threshold that can never be exceeded.
		if !p.onBody(nil) {
			return false
		}
		p.state = stateReadHeader
		return true
	}

	var progressed bool
	p.recv.ReadFunc(length, func(view []byte) bool {
		if !p.onBody(view) {
			return false
		}
		progressed = true
		return true
	})
	if progressed {
		p.state = stateReadHeader
	}
	return progressed
}
