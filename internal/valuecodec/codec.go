// Package valuecodec implements the flag-tagged value encoding scheme: it
// turns application values into (flags, bytes) for the wire and back,
// applying optional compression above a size threshold.
package valuecodec

import (
	"fmt"
	"strconv"
)

// Flag bits live in the 32-bit extras word of storage/get responses.
const (
	FlagPickled    uint32 = 1 << 0
	FlagInteger    uint32 = 1 << 1
	FlagLong       uint32 = 1 << 2
	FlagCompressed uint32 = 1 << 3
)

// CompressionThreshold is the largest encoded length, in bytes, that is never
// compressed; only longer payloads are compressed.
const CompressionThreshold = 128

// Codec ties a Compressor and Serializer together into the Encode/Decode
// contract the engine calls for every stored or fetched value.
type Codec struct {
	Compressor Compressor
	Serializer Serializer
}

// New returns a Codec with the default compressor (deflate) and serializer
// (gob).
func New() *Codec {
	return &Codec{Compressor: DeflateCompressor{}, Serializer: GobSerializer{}}
}

// Encode tags and, where it pays off, compresses v. compressLevel follows
// the client façade's convention: -1 default, 0 disabled, 1..9 quality.
func (c *Codec) Encode(v any, compressLevel int) (flags uint32, data []byte, err error) {
	switch val := v.(type) {
	case []byte:
		data = val
	case string:
		data = []byte(val)
	case bool:
		// Booleans must never take the integer path: encode as PICKLED so
		// the type survives the round trip instead of becoming "0"/"1".
		data, err = c.Serializer.Encode(val)
		if err != nil {
			return 0, nil, err
		}
		flags |= FlagPickled
	case int, int8, int16, int32, uint, uint8, uint16, uint32:
		flags |= FlagInteger
		data = []byte(fmt.Sprintf("%d", val))
	case int64, uint64:
		flags |= FlagLong
		data = []byte(fmt.Sprintf("%d", val))
	default:
		data, err = c.Serializer.Encode(v)
		if err != nil {
			return 0, nil, err
		}
		flags |= FlagPickled
	}

	if len(data) > CompressionThreshold && compressLevel != 0 {
		compressed, cErr := c.Compressor.Compress(data, compressLevel)
		if cErr != nil {
			return 0, nil, fmt.Errorf("valuecodec: compress: %w", cErr)
		}
		data = compressed
		flags |= FlagCompressed
	}

	return flags, data, nil
}

// Decode is the inverse of Encode: decompress first, then apply whichever
// single tagging flag (if any) is set. An untagged payload comes back as a
// string, so a []byte value decodes as a string with the same content;
// INTEGER decodes as int and LONG as int64.
func (c *Codec) Decode(flags uint32, data []byte) (any, error) {
	if flags&FlagCompressed != 0 {
		decompressed, err := c.Compressor.Decompress(data)
		if err != nil {
			return nil, fmt.Errorf("valuecodec: decompress: %w", err)
		}
		data = decompressed
	}

	switch {
	case flags&FlagInteger != 0:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("valuecodec: decode integer: %w", err)
		}
		return int(n), nil
	case flags&FlagLong != 0:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("valuecodec: decode long: %w", err)
		}
		return n, nil
	case flags&FlagPickled != 0:
		v, err := c.Serializer.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("valuecodec: decode pickled: %w", err)
		}
		return v, nil
	default:
		return string(data), nil
	}
}
