package compression

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Content-Encoding names understood by the batch endpoint.
const (
	Identity = "identity"
	Gzip     = "gzip"
	Zstd     = "zstd"
	Snappy   = "snappy"
)

var ErrUnsupportedEncoding = errors.New("unsupported content encoding")

// NewReader wraps r with a decompressor for the given Content-Encoding.
// An empty encoding means identity.
func NewReader(encoding string, r io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", Identity:
		return io.NopCloser(r), nil
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gz, nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}
}

// NewWriter wraps w with a compressor for the given Content-Encoding. The
// returned writer must be closed to flush the stream.
func NewWriter(encoding string, w io.Writer) (io.WriteCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", Identity:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return enc, nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}
}

// Compress copies r into w through the named compressor and returns the
// number of compressed bytes written.
func Compress(encoding string, r io.Reader, w io.Writer) (int64, error) {
	counter := &byteCounter{w: w}
	enc, err := NewWriter(encoding, counter)
	if err != nil {
		return 0, err
	}

	if _, err := io.Copy(enc, r); err != nil {
		_ = enc.Close()
		return 0, err
	}

	if err := enc.Close(); err != nil {
		return 0, err
	}

	return counter.n, nil
}

// Decompress copies the decoded contents of r into w.
func Decompress(encoding string, r io.Reader, w io.Writer) (int64, error) {
	dec, err := NewReader(encoding, r)
	if err != nil {
		return 0, err
	}
	defer dec.Close()

	return io.Copy(w, dec)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
