package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	magicRequest  = 0x80
	magicResponse = 0x81

	// HeaderLen is the fixed size of a binary protocol header.
	HeaderLen = 24
)

// ErrBadMagic is returned by DecodeHeader when the leading byte of a
// header is not response magic (0x81); request magic is rejected too. It is
// fatal: the connection that produced it can no longer be trusted and must
// be discarded.
var ErrBadMagic = errors.New("protocol: bad magic byte")

// Header is the decoded form of a 24-byte frame header.
type Header struct {
	Opcode      Opcode
	KeyLen      uint16
	ExtrasLen   uint8
	DataType    uint8
	Status      Status
	BodyLen     uint32
	Opaque      uint32
	CAS         uint64
}

// Encode packs a request frame: a 24-byte header followed by
// extras ∥ key ∥ value. key_len, extras_len and body_len are derived from
// the slice lengths; magic is always 0x80 and data_type is always 0.
func Encode(opcode Opcode, key, extras, value []byte, cas uint64, opaque uint32) []byte {
	keyLen := len(key)
	extrasLen := len(extras)
	bodyLen := extrasLen + keyLen + len(value)

	buf := make([]byte, HeaderLen+bodyLen)
	buf[0] = magicRequest
	buf[1] = byte(opcode)
	binary.BigEndian.PutUint16(buf[2:4], uint16(keyLen))
	buf[4] = byte(extrasLen)
	buf[5] = 0 // data type: raw bytes
	binary.BigEndian.PutUint16(buf[6:8], 0)
	binary.BigEndian.PutUint32(buf[8:12], uint32(bodyLen))
	binary.BigEndian.PutUint32(buf[12:16], opaque)
	binary.BigEndian.PutUint64(buf[16:24], cas)

	pos := HeaderLen
	pos += copy(buf[pos:], extras)
	pos += copy(buf[pos:], key)
	copy(buf[pos:], value)

	return buf
}

// DecodeHeader parses a 24-byte response header. The caller is then
// responsible for reading exactly Header.BodyLen more bytes as the body.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderLen {
		return Header{}, fmt.Errorf("protocol: header must be %d bytes, got %d", HeaderLen, len(b))
	}
	if b[0] != magicResponse {
		return Header{}, fmt.Errorf("%w: got 0x%02x", ErrBadMagic, b[0])
	}

	return Header{
		Opcode:    Opcode(b[1]),
		KeyLen:    binary.BigEndian.Uint16(b[2:4]),
		ExtrasLen: b[4],
		DataType:  b[5],
		Status:    Status(binary.BigEndian.Uint16(b[6:8])),
		BodyLen:   binary.BigEndian.Uint32(b[8:12]),
		Opaque:    binary.BigEndian.Uint32(b[12:16]),
		CAS:       binary.BigEndian.Uint64(b[16:24]),
	}, nil
}
