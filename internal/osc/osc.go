// Package osc decodes and encodes the subset of Open Sound Control 1.0 used by
// tracking feeds: messages and (nested) bundles carrying int32, int64,
// float32, float64, string, blob, and the argument-less T/F/N/I tags.
package osc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformed is the root of every decode failure.
var ErrMalformed = errors.New("malformed osc packet")

const bundleTag = "#bundle"

// maxBundleDepth bounds recursion on hostile nested bundles.
const maxBundleDepth = 8

// Message is one decoded OSC message.
type Message struct {
	Address string
	Args    []any
}

// Float64s converts every argument to float64. Non-numeric arguments fail.
func (m Message) Float64s() ([]float64, error) {
	out := make([]float64, len(m.Args))
	for i, arg := range m.Args {
		switch v := arg.(type) {
		case float32:
			out[i] = float64(v)
		case float64:
			out[i] = v
		case int32:
			out[i] = float64(v)
		case int64:
			out[i] = float64(v)
		default:
			return nil, fmt.Errorf("%w: argument %d of %s is %T, want number", ErrMalformed, i, m.Address, arg)
		}
	}
	return out, nil
}

// Parse decodes a UDP payload into its messages. Bundles are flattened in
// element order.
func Parse(packet []byte) ([]Message, error) {
	return parse(packet, 0)
}

func parse(packet []byte, depth int) ([]Message, error) {
	if len(packet) == 0 {
		return nil, fmt.Errorf("%w: empty packet", ErrMalformed)
	}
	switch packet[0] {
	case '/':
		msg, err := parseMessage(packet)
		if err != nil {
			return nil, err
		}
		return []Message{msg}, nil
	case '#':
		return parseBundle(packet, depth)
	default:
		return nil, fmt.Errorf("%w: unexpected leading byte 0x%02x", ErrMalformed, packet[0])
	}
}

func parseBundle(packet []byte, depth int) ([]Message, error) {
	if depth >= maxBundleDepth {
		return nil, fmt.Errorf("%w: bundles nested deeper than %d", ErrMalformed, maxBundleDepth)
	}
	r := reader{buf: packet}
	tag, err := r.str()
	if err != nil {
		return nil, err
	}
	if tag != bundleTag {
		return nil, fmt.Errorf("%w: unknown packet tag %q", ErrMalformed, tag)
	}
	if _, err := r.uint64(); err != nil {
		return nil, fmt.Errorf("%w: bundle timetag truncated", ErrMalformed)
	}
	var out []Message
	for r.remaining() > 0 {
		size, err := r.uint32()
		if err != nil {
			return nil, err
		}
		if size == 0 || size%4 != 0 || int(size) > r.remaining() {
			return nil, fmt.Errorf("%w: bundle element size %d", ErrMalformed, size)
		}
		element := r.next(int(size))
		msgs, err := parse(element, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	return out, nil
}

func parseMessage(packet []byte) (Message, error) {
	r := reader{buf: packet}
	address, err := r.str()
	if err != nil {
		return Message{}, err
	}
	msg := Message{Address: address}
	if r.remaining() == 0 {
		// Type tag strings are optional in OSC 1.0.
		return msg, nil
	}
	tags, err := r.str()
	if err != nil {
		return Message{}, err
	}
	if len(tags) == 0 || tags[0] != ',' {
		return Message{}, fmt.Errorf("%w: type tag string %q lacks leading comma", ErrMalformed, tags)
	}
	for _, tag := range tags[1:] {
		arg, err := r.arg(byte(tag))
		if err != nil {
			return Message{}, fmt.Errorf("%s: %w", address, err)
		}
		msg.Args = append(msg.Args, arg)
	}
	return msg, nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) next(n int) []byte {
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) str() (string, error) {
	end := bytes.IndexByte(r.buf[r.off:], 0)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated string", ErrMalformed)
	}
	s := string(r.buf[r.off : r.off+end])
	padded := pad4(end + 1)
	if padded > r.remaining() {
		return "", fmt.Errorf("%w: string padding truncated", ErrMalformed)
	}
	r.off += padded
	return s, nil
}

func (r *reader) uint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("%w: need 4 bytes, have %d", ErrMalformed, r.remaining())
	}
	return binary.BigEndian.Uint32(r.next(4)), nil
}

func (r *reader) uint64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, fmt.Errorf("%w: need 8 bytes, have %d", ErrMalformed, r.remaining())
	}
	return binary.BigEndian.Uint64(r.next(8)), nil
}

func (r *reader) arg(tag byte) (any, error) {
	switch tag {
	case 'i':
		v, err := r.uint32()
		return int32(v), err
	case 'f':
		v, err := r.uint32()
		return math.Float32frombits(v), err
	case 'h':
		v, err := r.uint64()
		return int64(v), err
	case 'd':
		v, err := r.uint64()
		return math.Float64frombits(v), err
	case 's', 'S':
		return r.str()
	case 'b':
		size, err := r.uint32()
		if err != nil {
			return nil, err
		}
		padded := pad4(int(size))
		if padded > r.remaining() {
			return nil, fmt.Errorf("%w: blob of %d bytes truncated", ErrMalformed, size)
		}
		blob := append([]byte(nil), r.buf[r.off:r.off+int(size)]...)
		r.off += padded
		return blob, nil
	case 'T':
		return true, nil
	case 'F':
		return false, nil
	case 'N', 'I':
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type tag %q", ErrMalformed, tag)
	}
}

func pad4(n int) int {
	return (n + 3) &^ 3
}
