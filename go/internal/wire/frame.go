package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the length of the big-endian frame length prefix.
const HeaderSize = 4

// DefaultMaxFrameSize bounds a single body so a corrupt header cannot make a
// reader allocate gigabytes.
const DefaultMaxFrameSize = 1 << 20

var (
	// ErrFormat marks every decode failure: truncated frames, bad bodies and
	// unknown message types. Callers treat it as "no message this cycle".
	ErrFormat = errors.New("wire: format error")

	ErrUnknownMessageType = errors.New("unknown message type")
	ErrFrameTooLarge      = errors.New("frame too large")
)

// Framer encodes and decodes length-prefixed messages with one body codec.
type Framer struct {
	codec    Codec
	maxFrame int
}

// NewFramer creates a framer for the given codec. A nil codec means JSON.
func NewFramer(codec Codec) *Framer {
	if codec == nil {
		codec = JSON()
	}
	return &Framer{codec: codec, maxFrame: DefaultMaxFrameSize}
}

// WithMaxFrameSize returns a copy of f with a different body size limit.
func (f *Framer) WithMaxFrameSize(n int) *Framer {
	cp := *f
	if n > 0 {
		cp.maxFrame = n
	}
	return &cp
}

// Codec returns the body codec.
func (f *Framer) Codec() Codec { return f.codec }

// MaxFrameSize returns the body size limit.
func (f *Framer) MaxFrameSize() int { return f.maxFrame }

var defaultFramer = NewFramer(JSON())

// Encode frames m with the JSON codec.
func Encode(m Message) ([]byte, error) { return defaultFramer.Encode(m) }

// Decode parses a JSON frame produced by Encode.
func Decode(frame []byte) (Message, error) { return defaultFramer.Decode(frame) }

// Encode serializes m and prepends the 4-byte big-endian body length.
func (f *Framer) Encode(m Message) ([]byte, error) {
	if !m.Type.Valid() {
		return nil, fmt.Errorf("encode: %w %q", ErrUnknownMessageType, m.Type)
	}
	if m.Payload == nil {
		m.Payload = map[string]any{}
	}
	body, err := f.codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", m.Type, err)
	}
	if len(body) > f.maxFrame {
		return nil, fmt.Errorf("encode: %w: %d > %d", ErrFrameTooLarge, len(body), f.maxFrame)
	}
	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[HeaderSize:], body)
	return frame, nil
}

// Decode parses exactly one frame. The header must match the body length.
func (f *Framer) Decode(frame []byte) (Message, error) {
	if len(frame) < HeaderSize {
		return Message{}, fmt.Errorf("%w: truncated header (%d bytes)", ErrFormat, len(frame))
	}
	n := binary.BigEndian.Uint32(frame)
	if int64(n) > int64(f.maxFrame) {
		return Message{}, fmt.Errorf("%w: %w: %d > %d", ErrFormat, ErrFrameTooLarge, n, f.maxFrame)
	}
	body := frame[HeaderSize:]
	switch {
	case len(body) < int(n):
		return Message{}, fmt.Errorf("%w: truncated body (%d of %d bytes)", ErrFormat, len(body), n)
	case len(body) > int(n):
		return Message{}, fmt.Errorf("%w: %d trailing bytes", ErrFormat, len(body)-int(n))
	}
	return f.DecodeBody(body)
}

// DecodeBody parses a body without its length prefix.
func (f *Framer) DecodeBody(body []byte) (Message, error) {
	var raw struct {
		Type     *string        `json:"msg_type"`
		Payload  map[string]any `json:"payload"`
		SenderID *string        `json:"sender_id"`
	}
	if err := f.codec.Unmarshal(body, &raw); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if raw.Type == nil {
		return Message{}, fmt.Errorf("%w: missing msg_type", ErrFormat)
	}
	t := MessageType(*raw.Type)
	if !t.Valid() {
		return Message{}, fmt.Errorf("%w: %w %q", ErrFormat, ErrUnknownMessageType, t)
	}
	if raw.Payload == nil {
		raw.Payload = map[string]any{}
	}
	normalizeNumbers(raw.Payload)
	return Message{Type: t, Payload: raw.Payload, SenderID: raw.SenderID}, nil
}

// normalizeNumbers rewrites whole numbers in a decoded payload as int64 in
// place. JSON and Struct bodies carry every number as a double and CBOR
// decodes non-negative integers as uint64; after this all three agree.
func normalizeNumbers(v any) any {
	switch n := v.(type) {
	case map[string]any:
		for k, e := range n {
			n[k] = normalizeNumbers(e)
		}
	case []any:
		for i, e := range n {
			n[i] = normalizeNumbers(e)
		}
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return int64(n)
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n)
		}
	}
	return v
}

// ReadFrame reads one complete frame (header and body) from r. A clean close
// before any header byte returns io.EOF unchanged so callers can tell a peer
// hang-up from a torn frame.
func (f *Framer) ReadFrame(r io.Reader) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if int64(n) > int64(f.maxFrame) {
		return nil, fmt.Errorf("%w: %w: %d > %d", ErrFormat, ErrFrameTooLarge, n, f.maxFrame)
	}
	frame := make([]byte, HeaderSize+int(n))
	copy(frame, header[:])
	if _, err := io.ReadFull(r, frame[HeaderSize:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

// WriteFrame writes an already encoded frame in full.
func WriteFrame(w io.Writer, frame []byte) error {
	for len(frame) > 0 {
		n, err := w.Write(frame)
		if err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}
