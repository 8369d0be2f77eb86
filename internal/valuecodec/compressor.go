package valuecodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
)

// Compressor compresses and decompresses the payload half of a value after
// it has already been flag-tagged. level is the zlib-style quality knob
// (-1 default, 0 would have already short-circuited compression entirely,
// 1..9 matches compress/flate's scale); implementations that don't have a
// notion of level (Snappy) ignore it.
type Compressor interface {
	Compress(data []byte, level int) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// DeflateCompressor is the default Compressor, backed by
// github.com/klauspost/compress/zlib — a drop-in, faster implementation of
// the same deflate-based wire format as the standard library's
// compress/zlib, matching the spec's "deflate" default.
type DeflateCompressor struct{}

func (DeflateCompressor) Compress(data []byte, level int) ([]byte, error) {
	if level == 0 {
		level = zlib.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("valuecodec: new zlib writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("valuecodec: zlib write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("valuecodec: zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

func (DeflateCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("valuecodec: new zlib reader: %w", err)
	}
	defer func() { _ = r.Close() }()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("valuecodec: zlib read: %w", err)
	}
	return out, nil
}

// SnappyCompressor is an alternate Compressor, selected via
// WithCompressor(SnappyCompressor{}) on the client façade. It favors speed
// over ratio and ignores the level argument, since Snappy has none.
type SnappyCompressor struct{}

func (SnappyCompressor) Compress(data []byte, _ int) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (SnappyCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("valuecodec: snappy decode: %w", err)
	}
	return out, nil
}
