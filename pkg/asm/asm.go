// Package asm translates between bot assembly source and instruction lists.
//
// Source is a whitespace-separated stream of words. A word is a directive
// (#len N, #mem_size N), a label definition (name:) or a mnemonic followed
// by its operands. Text after // on a line is ignored and case does not
// matter anywhere.
package asm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/genome"
	"github.com/fortiblox/torland/pkg/isa"
)

// Compilation errors. Every error returned by Compile is an *Error wrapping
// one of these.
var (
	ErrUnexpectedToken    = errors.New("unexpected token")
	ErrUnexpectedEnd      = errors.New("unexpected end of source")
	ErrUnknownDirective   = errors.New("unknown directive")
	ErrDirectiveRedefined = errors.New("directive redefined")
	ErrBadNumber          = errors.New("malformed number")
	ErrBadOperand         = errors.New("malformed operand")
	ErrDuplicateLabel     = errors.New("duplicate label")
	ErrUndefinedLabel     = errors.New("undefined label")
	ErrCodeTooLong        = errors.New("code longer than #len")
	ErrMemRange           = errors.New("memory address out of range")
	ErrEmpty              = errors.New("no instructions")
)

// Error locates a compilation failure. Line and Word are 1-based; both are
// zero for errors that concern the program as a whole.
type Error struct {
	Line  int
	Word  int
	Token string
	Err   error
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%d:%d %q: %v", e.Line, e.Word, e.Token, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type token struct {
	line, word int
	text string
}

func (t token) fail(err error, format string, args ...any) *Error {
	if format != "" {
		err = fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
	return &Error{Line: t.line, Word: t.word, Token: t.text, Err: err}
}

func tokenize(src string) []token {
	var toks []token
	for i, line := range strings.Split(src, "\n") {
		if j := strings.Index(line, "//"); j >= 0 {
			line = line[:j]
		}
		for w, word := range strings.Fields(line) {
			toks = append(toks, token{line: i + 1, word: w + 1, text: strings.ToLower(word)})
		}
	}
	return toks
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// operandRef points at one operand of an emitted instruction.
type operandRef struct {
	cmd, arg int
	tok      token
}

type compiler struct {
	toks []token
	pos  int

	code   []isa.Command
	labels map[string]int
	refs   []operandRef // label operands, resolved once all labels are known
	mems   []operandRef

	genLen  int
	memSize int
	lenTok  token
}

// Compile assembles src into instructions.
func Compile(src string) ([]isa.Command, error) {
	c := &compiler{
		toks:    tokenize(src),
		labels:  make(map[string]int),
		genLen:  -1,
		memSize: -1,
	}
	if err := c.run(); err != nil {
		return nil, err
	}
	return c.code, nil
}

func (c *compiler) next() (token, bool) {
	if c.pos >= len(c.toks) {
		return token{}, false
	}
	t := c.toks[c.pos]
	c.pos++
	return t, true
}

func (c *compiler) operand(after token) (token, error) {
	t, ok := c.next()
	if !ok {
		return token{}, after.fail(ErrUnexpectedEnd, "")
	}
	return t, nil
}

func (c *compiler) run() error {
	for c.pos < len(c.toks) {
		t, _ := c.next()
		var err error
		switch {
		case strings.HasPrefix(t.text, "#"):
			err = c.directive(t)
		case strings.HasSuffix(t.text, ":") && isIdent(strings.TrimSuffix(t.text, ":")):
			name := strings.TrimSuffix(t.text, ":")
			if _, dup := c.labels[name]; dup {
				return t.fail(ErrDuplicateLabel, "")
			}
			c.labels[name] = len(c.code)
		default:
			err = c.instruction(t)
		}
		if err != nil {
			return err
		}
	}

	if c.genLen < 0 {
		c.genLen = len(c.code)
	} else if len(c.code) > c.genLen {
		return c.lenTok.fail(ErrCodeTooLong, "%d instructions, #len %d", len(c.code), c.genLen)
	}
	for len(c.code) < c.genLen {
		c.code = append(c.code, isa.New(isa.OpNop))
	}
	if len(c.code) == 0 {
		return &Error{Err: ErrEmpty}
	}

	limit := isa.MemSize
	if c.memSize >= 0 {
		limit = c.memSize
	}
	for _, ref := range c.mems {
		if c.code[ref.cmd].Args[ref.arg] >= int64(limit) {
			return ref.tok.fail(ErrMemRange, "limit %d", limit)
		}
	}

	for _, ref := range c.refs {
		idx, ok := c.labels[ref.tok.text]
		if !ok {
			return ref.tok.fail(ErrUndefinedLabel, "")
		}
		c.code[ref.cmd].Args[ref.arg] = int64(idx % c.genLen)
	}
	return nil
}

func (c *compiler) directive(t token) error {
	var dst *int
	switch t.text {
	case "#len":
		dst = &c.genLen
	case "#mem_size":
		dst = &c.memSize
	default:
		return t.fail(ErrUnknownDirective, "")
	}
	if *dst >= 0 {
		return t.fail(ErrDirectiveRedefined, "")
	}

	arg, err := c.operand(t)
	if err != nil {
		return err
	}
	n, perr := strconv.Atoi(arg.text)
	if perr != nil || n < 0 {
		return arg.fail(ErrBadNumber, "")
	}
	if dst == &c.memSize && n > isa.MemSize {
		return arg.fail(ErrMemRange, "bots have %d memory cells", isa.MemSize)
	}
	if dst == &c.genLen {
		c.lenTok = t
	}
	*dst = n
	return nil
}

func (c *compiler) instruction(t token) error {
	op, ok := isa.Lookup(t.text)
	if !ok {
		return t.fail(ErrUnexpectedToken, "")
	}

	cmd := isa.Command{Op: op}
	idx := len(c.code)
	for i, kind := range op.Spec().Args {
		arg, err := c.operand(t)
		if err != nil {
			return err
		}
		v, err := c.parseOperand(kind, arg)
		if err != nil {
			return err
		}
		switch kind {
		case isa.KindLabel:
			c.refs = append(c.refs, operandRef{cmd: idx, arg: i, tok: arg})
		case isa.KindMem:
			c.mems = append(c.mems, operandRef{cmd: idx, arg: i, tok: arg})
		}
		cmd.Args[i] = v
	}
	c.code = append(c.code, cmd)
	return nil
}

func (c *compiler) parseOperand(kind isa.Kind, t token) (int64, error) {
	switch kind {
	case isa.KindDir:
		d, err := types.ParseDirection(t.text)
		if err != nil {
			return 0, t.fail(ErrBadOperand, "expected direction")
		}
		return int64(d), nil

	case isa.KindReg:
		r, err := isa.ParseRegister(t.text)
		if err != nil {
			return 0, t.fail(ErrBadOperand, "expected register")
		}
		return int64(r), nil

	case isa.KindRwReg:
		r, err := isa.ParseRwRegister(t.text)
		if err != nil {
			return 0, t.fail(ErrBadOperand, "expected writable register")
		}
		return int64(r), nil

	case isa.KindVal:
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return 0, t.fail(ErrBadNumber, "")
		}
		return v, nil

	case isa.KindMem:
		inner, ok := strings.CutPrefix(t.text, "[")
		if ok {
			inner, ok = strings.CutSuffix(inner, "]")
		}
		if !ok {
			return 0, t.fail(ErrBadOperand, "expected [address]")
		}
		v, err := strconv.ParseUint(inner, 10, 32)
		if err != nil {
			return 0, t.fail(ErrBadNumber, "")
		}
		return int64(v), nil

	case isa.KindLabel:
		if !isIdent(t.text) {
			return 0, t.fail(ErrBadOperand, "expected label name")
		}
		return 0, nil
	}
	return 0, t.fail(ErrBadOperand, "")
}

// CompileText assembles src and encodes the result as genome wire text.
func CompileText(src string) (string, error) {
	code, err := Compile(src)
	if err != nil {
		return "", err
	}
	return genome.EncodeCommands(code), nil
}

// DecompileText decodes genome wire text and disassembles it.
func DecompileText(text string) (string, error) {
	code, err := genome.DecodeCommands(text)
	if err != nil {
		return "", err
	}
	return Decompile(code), nil
}
