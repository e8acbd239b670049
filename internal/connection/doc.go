// Package connection reads and writes frames over a byte stream.
//
// A Connection owns one stream and one growable read buffer. ReadFrame
// keeps asking the codec whether the buffered bytes hold a complete frame
// and reads more from the stream only when they do not. Bytes belonging
// to a returned frame are evicted from the buffer before ReadFrame
// returns, so the buffer only ever holds unconsumed input.
//
// End of stream is reported in two ways:
//
//   - io.EOF: the peer closed cleanly between frames
//   - ErrConnectionReset: the peer closed in the middle of a frame
//
// WriteFrame always flushes, so the peer observes the frame before the
// call returns.
package connection
