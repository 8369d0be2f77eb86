package router

import (
	"encoding/binary"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaysonsantos/gobmemcached/internal/protocol"
)

// fakeMemcached is a minimal in-process binary-protocol server, the same
// shape internal/engine's tests use, reused here to back multiple
// independent endpoints for router-level fan-out and hash-ring tests.
type fakeMemcached struct {
	mu      sync.Mutex
	items   map[string]storedItem
	nextCas uint64
	ln      net.Listener
}

type storedItem struct {
	value []byte
	flags uint32
	cas   uint64
}

func newFakeMemcached(t *testing.T) *fakeMemcached {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	fm := &fakeMemcached{items: make(map[string]storedItem), ln: ln}
	go fm.acceptLoop()
	t.Cleanup(func() { ln.Close() })
	return fm
}

func (fm *fakeMemcached) addr() string { return fm.ln.Addr().String() }

func (fm *fakeMemcached) acceptLoop() {
	for {
		c, err := fm.ln.Accept()
		if err != nil {
			return
		}
		go fm.serve(c)
	}
}

func (fm *fakeMemcached) serve(c net.Conn) {
	defer c.Close()
	for {
		hdr := make([]byte, protocol.HeaderLen)
		if _, err := readFullConn(c, hdr); err != nil {
			return
		}
		h, err := decodeRequestHeader(hdr)
		if err != nil {
			return
		}
		body := make([]byte, h.BodyLen)
		if h.BodyLen > 0 {
			if _, err := readFullConn(c, body); err != nil {
				return
			}
		}

		extras := body[:h.ExtrasLen]
		key := string(body[h.ExtrasLen : int(h.ExtrasLen)+int(h.KeyLen)])
		value := body[int(h.ExtrasLen)+int(h.KeyLen):]

		resp, ok := fm.handle(h, key, extras, value)
		if ok && len(resp) > 0 {
			if _, err := c.Write(resp); err != nil {
				return
			}
		}
	}
}

func (fm *fakeMemcached) handle(h protocol.Header, key string, extras, value []byte) ([]byte, bool) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	switch h.Opcode {
	case protocol.OpGet, protocol.OpGetK, protocol.OpGetKQ:
		item, found := fm.items[key]
		if !found {
			if h.Opcode == protocol.OpGetKQ {
				return nil, true
			}
			return fm.resp(h, protocol.StatusKeyNotFound, nil, nil, nil, 0), true
		}
		flagsExtras := make([]byte, 4)
		binary.BigEndian.PutUint32(flagsExtras, item.flags)
		var keyOut []byte
		if h.Opcode == protocol.OpGetK || h.Opcode == protocol.OpGetKQ {
			keyOut = []byte(key)
		}
		return fm.resp(h, protocol.StatusSuccess, flagsExtras, keyOut, item.value, item.cas), true

	case protocol.OpSet, protocol.OpSetQ:
		flags := binary.BigEndian.Uint32(extras[:4])
		fm.items[key] = storedItem{value: append([]byte(nil), value...), flags: flags, cas: fm.nextCasLocked()}
		if h.Opcode == protocol.OpSetQ {
			return nil, true
		}
		return fm.resp(h, protocol.StatusSuccess, nil, nil, nil, fm.items[key].cas), true

	case protocol.OpAdd, protocol.OpAddQ:
		if _, found := fm.items[key]; found {
			return fm.resp(h, protocol.StatusKeyExists, nil, nil, nil, 0), true
		}
		flags := binary.BigEndian.Uint32(extras[:4])
		fm.items[key] = storedItem{value: append([]byte(nil), value...), flags: flags, cas: fm.nextCasLocked()}
		if h.Opcode == protocol.OpAddQ {
			return nil, true
		}
		return fm.resp(h, protocol.StatusSuccess, nil, nil, nil, fm.items[key].cas), true

	case protocol.OpIncr, protocol.OpDecr:
		delta, n := binary.BigEndian.Uint64(extras[:8]), binary.BigEndian.Uint64(extras[8:16])
		if item, found := fm.items[key]; found {
			n = binary.BigEndian.Uint64(item.value)
			if h.Opcode == protocol.OpIncr {
				n += delta
			} else if n < delta {
				n = 0
			} else {
				n -= delta
			}
		}
		buf := binary.BigEndian.AppendUint64(nil, n)
		fm.items[key] = storedItem{value: buf, cas: fm.nextCasLocked()}
		return fm.resp(h, protocol.StatusSuccess, nil, nil, buf, fm.items[key].cas), true

	case protocol.OpDelete:
		if _, found := fm.items[key]; !found {
			return fm.resp(h, protocol.StatusKeyNotFound, nil, nil, nil, 0), true
		}
		delete(fm.items, key)
		return fm.resp(h, protocol.StatusSuccess, nil, nil, nil, 0), true

	case protocol.OpFlush:
		fm.items = make(map[string]storedItem)
		return fm.resp(h, protocol.StatusSuccess, nil, nil, nil, 0), true

	case protocol.OpStat:
		return fm.statResponses(h), true

	case protocol.OpNoop:
		return fm.resp(h, protocol.StatusSuccess, nil, nil, nil, 0), true

	default:
		return fm.resp(h, protocol.StatusUnknownCommand, nil, nil, nil, 0), true
	}
}

func (fm *fakeMemcached) nextCasLocked() uint64 {
	fm.nextCas++
	return fm.nextCas
}

func (fm *fakeMemcached) statResponses(h protocol.Header) []byte {
	stats := map[string]string{"pid": "1"}
	var out []byte
	for k, v := range stats {
		out = append(out, fm.resp(h, protocol.StatusSuccess, nil, []byte(k), []byte(v), 0)...)
	}
	out = append(out, fm.resp(h, protocol.StatusSuccess, nil, nil, nil, 0)...)
	return out
}

func (fm *fakeMemcached) resp(h protocol.Header, status protocol.Status, extras, key, value []byte, cas uint64) []byte {
	frame := protocol.Encode(h.Opcode, key, extras, value, cas, h.Opaque)
	frame[0] = 0x81
	binary.BigEndian.PutUint16(frame[6:8], uint16(status))
	return frame
}

func decodeRequestHeader(b []byte) (protocol.Header, error) {
	flipped := make([]byte, len(b))
	copy(flipped, b)
	flipped[0] = 0x81
	return protocol.DecodeHeader(flipped)
}

func readFullConn(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
