// Package buffer provides a thread-safe growable FIFO buffer for streaming
// data between goroutines.
//
// [Buffer] grows as needed, blocks readers while it is empty and supports
// graceful shutdown: CloseWrite lets readers drain what is left and then
// observe the end of the stream, CloseWithError unblocks everybody at once.
//
// The walkie session uses a Buffer of events as its upward notification
// queue, and the capture helpers use a byte Buffer to assemble recordings.
//
// Example usage:
//
//	q := buffer.N[string](16)
//	q.Add("ready")
//	q.CloseWrite()
//
//	for {
//		v, err := q.Next()
//		if err == buffer.ErrIteratorDone {
//			break
//		}
//		fmt.Println(v)
//	}
package buffer
