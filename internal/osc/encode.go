package osc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ImmediateTimetag is the OSC timetag meaning "process on receipt".
const ImmediateTimetag uint64 = 1

// AppendMessage appends the encoding of one message to dst. Supported
// argument types are int, int32, int64, float32, float64, string, []byte,
// bool, and nil.
func AppendMessage(dst []byte, address string, args ...any) ([]byte, error) {
	if address == "" || address[0] != '/' {
		return dst, fmt.Errorf("osc address %q must start with '/'", address)
	}
	tags := make([]byte, 1, len(args)+1)
	tags[0] = ','
	for i, arg := range args {
		tag, err := typeTag(arg)
		if err != nil {
			return dst, fmt.Errorf("argument %d: %w", i, err)
		}
		tags = append(tags, tag)
	}

	dst = appendString(dst, address)
	dst = appendString(dst, string(tags))
	for _, arg := range args {
		switch v := arg.(type) {
		case int:
			dst = binary.BigEndian.AppendUint32(dst, uint32(int32(v)))
		case int32:
			dst = binary.BigEndian.AppendUint32(dst, uint32(v))
		case int64:
			dst = binary.BigEndian.AppendUint64(dst, uint64(v))
		case float32:
			dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
		case float64:
			dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(v))
		case string:
			dst = appendString(dst, v)
		case []byte:
			dst = binary.BigEndian.AppendUint32(dst, uint32(len(v)))
			dst = append(dst, v...)
			dst = appendPadding(dst, len(v))
		}
	}
	return dst, nil
}

// AppendBundle wraps already-encoded elements in a bundle.
func AppendBundle(dst []byte, timetag uint64, elements ...[]byte) []byte {
	dst = appendString(dst, bundleTag)
	dst = binary.BigEndian.AppendUint64(dst, timetag)
	for _, element := range elements {
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(element)))
		dst = append(dst, element...)
	}
	return dst
}

func typeTag(arg any) (byte, error) {
	switch v := arg.(type) {
	case int:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return 'h', fmt.Errorf("int %d overflows int32, pass int64", v)
		}
		return 'i', nil
	case int32:
		return 'i', nil
	case int64:
		return 'h', nil
	case float32:
		return 'f', nil
	case float64:
		return 'd', nil
	case string:
		return 's', nil
	case []byte:
		return 'b', nil
	case bool:
		if v {
			return 'T', nil
		}
		return 'F', nil
	case nil:
		return 'N', nil
	default:
		return 0, fmt.Errorf("unsupported osc argument type %T", arg)
	}
}

func appendString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	dst = append(dst, 0)
	return appendPadding(dst, len(s)+1)
}

func appendPadding(dst []byte, n int) []byte {
	for i := n; i < pad4(n); i++ {
		dst = append(dst, 0)
	}
	return dst
}
