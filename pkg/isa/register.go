package isa

import (
	"errors"
	"strings"
)

// ErrInvalidRegister is returned when a register name cannot be parsed.
var ErrInvalidRegister = errors.New("invalid register")

// Register indexes the bot register file.
type Register uint8

// Writable registers come first so RwRegister values convert directly.
const (
	Ax Register = iota
	Bx
	Cx
	Dx
	En // energy
	Ag // age
	Sd // sun difference from last chk
	Md // mineral difference from last chk
)

const (
	NumRegisters   = 8
	NumRwRegisters = 4
)

var registerNames = [NumRegisters]string{"ax", "bx", "cx", "dx", "en", "ag", "sd", "md"}

// RwRegister is a register genome code may write to.
type RwRegister uint8

const (
	RwAx RwRegister = iota
	RwBx
	RwCx
	RwDx
)

// Register widens r to a general register index.
func (r RwRegister) Register() Register {
	return Register(r)
}

func (r RwRegister) String() string {
	return r.Register().String()
}

// Writable reports whether r belongs to the read-write subset.
func (r Register) Writable() bool {
	return r < NumRwRegisters
}

func (r Register) String() string {
	if r >= NumRegisters {
		return "invalid"
	}
	return registerNames[r]
}

// ParseRegister parses any register name, ignoring case.
func ParseRegister(s string) (Register, error) {
	s = strings.ToLower(s)
	for i, name := range registerNames {
		if name == s {
			return Register(i), nil
		}
	}
	return 0, ErrInvalidRegister
}

// ParseRwRegister parses a writable register name.
func ParseRwRegister(s string) (RwRegister, error) {
	r, err := ParseRegister(s)
	if err != nil {
		return 0, err
	}
	if !r.Writable() {
		return 0, ErrInvalidRegister
	}
	return RwRegister(r), nil
}
