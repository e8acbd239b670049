// Package frame implements the minikv wire codec.
//
// A frame is one protocol message. The encoding is RESP2 compatible:
//
//	+OK\r\n                 Simple
//	-ERR boom\r\n           Error
//	:42\r\n                 Integer
//	$3\r\nbar\r\n           Bulk
//	$-1\r\n                 Null
//	*2\r\n$3\r\nGET\r\n...  Array
//
// Decoding is split in two steps so a caller reading from a stream can
// retry cheaply on partial input:
//
//	n, err := frame.Check(buf)   // ErrIncomplete: read more and retry
//	f, err := frame.Parse(buf[:n])
//
// Check does not allocate unless it reports a protocol error. Parse copies
// every payload it returns, so frames never alias the caller's buffer.
// Arrays may nest at most MaxDepth levels deep when decoded.
//
// Only top-level arrays can be encoded. Encoding an array nested inside
// another array panics with ErrNestedArray.
package frame
