package isa

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fortiblox/torland/internal/types"
)

// Operand validation errors.
var (
	// ErrInvalidOpcode is returned for an opcode outside the instruction set.
	ErrInvalidOpcode = errors.New("invalid opcode")

	// ErrOperandRange is returned when an operand is outside its kind's range.
	ErrOperandRange = errors.New("operand out of range")
)

// MemSize is the number of RAM cells a bot owns. Mem operands must be below it.
const MemSize = 64

// Label is a resolved absolute instruction index.
type Label uint32

// Value is a signed immediate.
type Value int64

// Mem is a RAM address.
type Mem uint32

// Command is one decoded instruction. Operands are stored untyped in Args and
// interpreted according to Op's signature; unused slots are always zero so
// Commands compare with ==.
type Command struct {
	Op   Opcode
	Args [2]int64
}

// New builds a command from raw operands. Missing operands are zero.
func New(op Opcode, args ...int64) Command {
	c := Command{Op: op}
	copy(c.Args[:], args)
	return c
}

// Dir returns operand i as a direction.
func (c Command) Dir(i int) types.Direction { return types.Direction(c.Args[i]) }

// Label returns operand i as a jump target.
func (c Command) Label(i int) Label { return Label(c.Args[i]) }

// Reg returns operand i as a register.
func (c Command) Reg(i int) Register { return Register(c.Args[i]) }

// RwReg returns operand i as a writable register.
func (c Command) RwReg(i int) RwRegister { return RwRegister(c.Args[i]) }

// Val returns operand i as an immediate.
func (c Command) Val(i int) Value { return Value(c.Args[i]) }

// Mem returns operand i as a RAM address.
func (c Command) Mem(i int) Mem { return Mem(c.Args[i]) }

// Validate checks that the opcode is known and every operand is within range
// for a genome of genLen instructions and a RAM of memSize cells.
func (c Command) Validate(genLen, memSize int) error {
	if !c.Op.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidOpcode, c.Op)
	}
	spec := specs[c.Op]
	for i := range c.Args {
		if i >= len(spec.Args) {
			if c.Args[i] != 0 {
				return fmt.Errorf("%w: %s takes %d operands", ErrOperandRange, spec.Mnemonic, len(spec.Args))
			}
			continue
		}
		if !inRange(spec.Args[i], c.Args[i], genLen, memSize) {
			return fmt.Errorf("%w: %s operand %d (%s) = %d", ErrOperandRange, spec.Mnemonic, i, spec.Args[i], c.Args[i])
		}
	}
	return nil
}

func inRange(k Kind, v int64, genLen, memSize int) bool {
	switch k {
	case KindDir:
		return v >= 0 && v < types.NumDirections
	case KindLabel:
		return v >= 0 && v < int64(genLen)
	case KindReg:
		return v >= 0 && v < NumRegisters
	case KindRwReg:
		return v >= 0 && v < NumRwRegisters
	case KindMem:
		return v >= 0 && v < int64(memSize)
	case KindVal:
		return true
	}
	return false
}

// Format renders an operand in assembler syntax. Labels are rendered by the
// caller, since only it knows their names.
func Format(k Kind, v int64) string {
	switch k {
	case KindDir:
		return types.Direction(v).String()
	case KindReg:
		return Register(v).String()
	case KindRwReg:
		return RwRegister(v).String()
	case KindMem:
		return fmt.Sprintf("[%d]", v)
	default:
		return fmt.Sprintf("%d", v)
	}
}

func (c Command) String() string {
	if !c.Op.Valid() {
		return fmt.Sprintf("invalid(%d)", c.Op)
	}
	spec := specs[c.Op]
	parts := make([]string, 0, 1+len(spec.Args))
	parts = append(parts, spec.Mnemonic)
	for i, k := range spec.Args {
		parts = append(parts, Format(k, c.Args[i]))
	}
	return strings.Join(parts, " ")
}
