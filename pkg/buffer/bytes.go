package buffer

// BytesBuffer is the byte-oriented view of a Buffer used by audio capture.
type BytesBuffer interface {
	Write(p []byte) (n int, err error)
	Read(p []byte) (n int, err error)
	Discard(n int) (err error)
	Close() error
	CloseWrite() error
	CloseWithError(err error) error
	Error() error
	Reset()
	Bytes() []byte
	Len() int
}

var _ BytesBuffer = (*Buffer[byte])(nil)

// Bytes creates a new growable Buffer with 4KB initial capacity.
func Bytes() *Buffer[byte] {
	return N[byte](1 << 12)
}
