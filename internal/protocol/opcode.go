// Package protocol implements the memcached binary protocol frame codec:
// the 24-byte header plus the opcode and status tables needed to build and
// parse requests and responses. It does not interpret bodies — that is left
// to the engine, which knows the per-opcode extras/body shape.
package protocol

// Opcode identifies a binary protocol command.
type Opcode uint8

const (
	OpGet      Opcode = 0x00
	OpSet      Opcode = 0x01
	OpAdd      Opcode = 0x02
	OpReplace  Opcode = 0x03
	OpDelete   Opcode = 0x04
	OpIncr     Opcode = 0x05
	OpDecr     Opcode = 0x06
	OpFlush    Opcode = 0x08
	OpNoop     Opcode = 0x0A
	OpGetK     Opcode = 0x0C
	OpGetKQ    Opcode = 0x0D
	OpStat     Opcode = 0x10
	OpSetQ     Opcode = 0x11
	OpAddQ     Opcode = 0x12
	OpSaslList Opcode = 0x20
	OpSaslAuth Opcode = 0x21
)

func (o Opcode) String() string {
	switch o {
	case OpGet:
		return "Get"
	case OpSet:
		return "Set"
	case OpAdd:
		return "Add"
	case OpReplace:
		return "Replace"
	case OpDelete:
		return "Delete"
	case OpIncr:
		return "Incr"
	case OpDecr:
		return "Decr"
	case OpFlush:
		return "Flush"
	case OpNoop:
		return "Noop"
	case OpGetK:
		return "GetK"
	case OpGetKQ:
		return "GetKQ"
	case OpStat:
		return "Stat"
	case OpSetQ:
		return "SetQ"
	case OpAddQ:
		return "AddQ"
	case OpSaslList:
		return "SaslList"
	case OpSaslAuth:
		return "SaslAuth"
	default:
		return "Unknown"
	}
}
