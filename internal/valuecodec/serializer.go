package valuecodec

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Serializer turns an arbitrary value into self-describing bytes and back,
// for anything the codec can't express as bytes/string/int/long. It is the
// last resort in the encode chain (flagged PICKLED on the wire).
//
// This is the one component of the value codec built on the standard
// library rather than a third-party dependency — see DESIGN.md for why no
// library in the reference corpus fits a general "any value in, bytes out"
// contract the way encoding/gob already does.
type Serializer interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

// GobSerializer is the default Serializer. It wraps the value in an
// interface-typed envelope so Decode can hand back an `any` without the
// caller supplying a destination type up front; concrete types stored this
// way must be registered with encoding/gob via gob.Register, exactly as any
// other use of gob across an interface boundary requires.
type GobSerializer struct{}

type gobEnvelope struct {
	V any
}

func (GobSerializer) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobEnvelope{V: v}); err != nil {
		return nil, fmt.Errorf("valuecodec: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (GobSerializer) Decode(b []byte) (any, error) {
	var env gobEnvelope
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&env); err != nil {
		return nil, fmt.Errorf("valuecodec: gob decode: %w", err)
	}
	return env.V, nil
}
