package compression

import "io"

// byteCounter sits between a compressor and its destination and counts the
// encoded bytes that reach w.
type byteCounter struct {
	w io.Writer
	n int64
}

func (bc *byteCounter) Write(p []byte) (int, error) {
	n, err := bc.w.Write(p)
	bc.n += int64(n)
	return n, err
}
