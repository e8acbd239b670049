package frame

import (
	"fmt"
	"strconv"
)

// Encode returns the wire representation of f.
//
// It panics with ErrNestedArray if an Array contains another Array, and
// on nil or foreign Frame implementations.
func Encode(f Frame) []byte {
	return AppendFrame(nil, f)
}

// AppendFrame appends the wire representation of f to dst.
func AppendFrame(dst []byte, f Frame) []byte {
	arr, ok := f.(Array)
	if !ok {
		return appendValue(dst, f)
	}

	dst = append(dst, '*')
	dst = strconv.AppendInt(dst, int64(len(arr)), 10)
	dst = append(dst, crlf...)
	for _, elem := range arr {
		dst = appendValue(dst, elem)
	}
	return dst
}

func appendValue(dst []byte, f Frame) []byte {
	switch v := f.(type) {
	case Simple:
		dst = append(dst, '+')
		dst = append(dst, v...)
		return append(dst, crlf...)
	case Error:
		dst = append(dst, '-')
		dst = append(dst, v...)
		return append(dst, crlf...)
	case Integer:
		dst = append(dst, ':')
		dst = strconv.AppendUint(dst, uint64(v), 10)
		return append(dst, crlf...)
	case Null:
		return append(dst, "$-1\r\n"...)
	case Bulk:
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(v)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, v...)
		return append(dst, crlf...)
	case Array:
		panic(ErrNestedArray)
	default:
		panic(fmt.Sprintf("frame: cannot encode %T", f))
	}
}
