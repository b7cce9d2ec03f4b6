// Package isa defines the bot instruction set: opcodes, operand kinds,
// registers and the Command encoding shared by the VM, the assembler and
// the genome codec.
package isa

// Opcode identifies an instruction. The numeric order is part of the genome
// wire format and of random instruction generation; append only.
type Opcode uint8

const (
	OpNop Opcode = iota
	OpMov        // move toward facing+d
	OpRot        // rotate facing by d
	OpJmp        // unconditional jump
	OpCmp        // compare two registers
	OpJme        // ==
	OpJne        // !=
	OpJmg        // >
	OpJml        // <
	OpJle        // <=
	OpJge        // >=
	OpJmo        // overflow
	OpJno        // no overflow
	OpJmb        // blocked ahead
	OpJnb        // not blocked
	OpJmc        // same colony ahead
	OpJnc        // not same colony
	OpJmf        // free ahead
	OpJnf        // not free
	OpChk        // sense facing+d
	OpCmpv       // compare register with value
	OpSplit      // clone into facing+d, same colony
	OpFork       // clone into facing+d, new colony, may mutate
	OpBite       // kill occupant of facing+d
	OpEatsun     // photosynthesis
	OpAbsorb     // mineral uptake
	OpCall       // push pc, jump
	OpRet        // pop pc
	OpLd         // rw = reg
	OpLdv        // rw = value
	OpLdr        // ram[m] = reg
	OpLdm        // rw = ram[m]
	OpNeg        // rw = -rw
	OpAdd
	OpAddv
	OpSub
	OpSubv
	OpMul
	OpMulv
	OpDiv
	OpDivv
	OpMod
	OpModv
	OpPow
	OpPowv

	NumOpcodes = int(iota)
)

// Kind is the type of a single instruction operand.
type Kind uint8

const (
	KindNone Kind = iota
	KindDir
	KindLabel
	KindReg
	KindRwReg
	KindVal
	KindMem
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "direction"
	case KindLabel:
		return "label"
	case KindReg:
		return "register"
	case KindRwReg:
		return "writable register"
	case KindVal:
		return "value"
	case KindMem:
		return "memory"
	default:
		return "none"
	}
}

// Spec describes the static shape of an opcode.
type Spec struct {
	Mnemonic    string
	Args        []Kind
	Terminating bool
}

var (
	noArgs = []Kind{}
	dirArg = []Kind{KindDir}
	lblArg = []Kind{KindLabel}
	rwArg  = []Kind{KindRwReg}
	regReg = []Kind{KindReg, KindReg}
	regVal = []Kind{KindReg, KindVal}
	rwReg  = []Kind{KindRwReg, KindReg}
	rwVal  = []Kind{KindRwReg, KindVal}
	dirLbl = []Kind{KindDir, KindLabel}
	memReg = []Kind{KindMem, KindReg}
	rwMem  = []Kind{KindRwReg, KindMem}
)

var specs = [NumOpcodes]Spec{
	OpNop:    {"nop", noArgs, false},
	OpMov:    {"mov", dirArg, true},
	OpRot:    {"rot", dirArg, true},
	OpJmp:    {"jmp", lblArg, false},
	OpCmp:    {"cmp", regReg, false},
	OpJme:    {"jme", lblArg, false},
	OpJne:    {"jne", lblArg, false},
	OpJmg:    {"jmg", lblArg, false},
	OpJml:    {"jml", lblArg, false},
	OpJle:    {"jle", lblArg, false},
	OpJge:    {"jge", lblArg, false},
	OpJmo:    {"jmo", lblArg, false},
	OpJno:    {"jno", lblArg, false},
	OpJmb:    {"jmb", lblArg, false},
	OpJnb:    {"jnb", lblArg, false},
	OpJmc:    {"jmc", lblArg, false},
	OpJnc:    {"jnc", lblArg, false},
	OpJmf:    {"jmf", lblArg, false},
	OpJnf:    {"jnf", lblArg, false},
	OpChk:    {"chk", dirArg, false},
	OpCmpv:   {"cmpv", regVal, false},
	OpSplit:  {"split", dirLbl, true},
	OpFork:   {"fork", dirLbl, true},
	OpBite:   {"bite", dirArg, true},
	OpEatsun: {"eatsun", noArgs, true},
	OpAbsorb: {"absorb", noArgs, true},
	OpCall:   {"call", lblArg, false},
	OpRet:    {"ret", noArgs, false},
	OpLd:     {"ld", rwReg, false},
	OpLdv:    {"ldv", rwVal, false},
	OpLdr:    {"ldr", memReg, false},
	OpLdm:    {"ldm", rwMem, false},
	OpNeg:    {"neg", rwArg, false},
	OpAdd:    {"add", rwReg, false},
	OpAddv:   {"addv", rwVal, false},
	OpSub:    {"sub", rwReg, false},
	OpSubv:   {"subv", rwVal, false},
	OpMul:    {"mul", rwReg, false},
	OpMulv:   {"mulv", rwVal, false},
	OpDiv:    {"div", rwReg, false},
	OpDivv:   {"divv", rwVal, false},
	OpMod:    {"mod", rwReg, false},
	OpModv:   {"modv", rwVal, false},
	OpPow:    {"pow", rwReg, false},
	OpPowv:   {"powv", rwVal, false},
}

var byMnemonic = func() map[string]Opcode {
	m := make(map[string]Opcode, NumOpcodes)
	for i, s := range specs {
		m[s.Mnemonic] = Opcode(i)
	}
	return m
}()

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	return int(op) < NumOpcodes
}

// Spec returns the static description of op. It panics on invalid opcodes.
func (op Opcode) Spec() Spec {
	return specs[op]
}

// Terminating reports whether executing op ends the bot's turn.
func (op Opcode) Terminating() bool {
	return op.Valid() && specs[op].Terminating
}

func (op Opcode) String() string {
	if !op.Valid() {
		return "invalid"
	}
	return specs[op].Mnemonic
}

// Lookup returns the opcode for a lower-case mnemonic.
func Lookup(mnemonic string) (Opcode, bool) {
	op, ok := byMnemonic[mnemonic]
	return op, ok
}
