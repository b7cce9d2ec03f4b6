// Package types defines the small value types shared across Torland:
// grid positions, facing directions and genome fingerprints.
//
// Fingerprints are rendered as base58 so they stay short in logs and RPC
// responses.
package types

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

// HashSize is the size of a genome fingerprint in bytes.
const HashSize = 32

// ErrInvalidHash is returned when a hash has invalid length.
var ErrInvalidHash = errors.New("invalid hash: must be 32 bytes")

// Hash is a 32-byte blake3 digest identifying genome content.
type Hash [HashSize]byte

// ComputeHash computes the blake3 digest of data.
func ComputeHash(data []byte) Hash {
	return blake3.Sum256(data)
}

// HashFromBase58 parses a base58-encoded hash.
func HashFromBase58(s string) (Hash, error) {
	var h Hash
	data, err := base58.Decode(s)
	if err != nil {
		return h, fmt.Errorf("base58 decode: %w", err)
	}
	if len(data) != HashSize {
		return h, ErrInvalidHash
	}
	copy(h[:], data)
	return h, nil
}

// HashFromBytes creates a Hash from a byte slice.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, ErrInvalidHash
	}
	copy(h[:], b)
	return h, nil
}

// String returns the base58-encoded representation.
func (h Hash) String() string {
	return base58.Encode(h[:])
}

// Hex returns the hex-encoded representation.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := HashFromBase58(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Pos is a cell coordinate. X grows to the right, Y grows downward.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Wrap reduces v into [0, n).
func Wrap(v, n int) int {
	return (v%n + n) % n
}

// Step returns the position one cell away in direction d on a w×h torus.
func (p Pos) Step(d Direction, w, h int) Pos {
	dx, dy := d.Offset()
	return Pos{X: Wrap(p.X+dx, w), Y: Wrap(p.Y+dy, h)}
}

// In reports whether p lies inside a w×h grid.
func (p Pos) In(w, h int) bool {
	return p.X >= 0 && p.X < w && p.Y >= 0 && p.Y < h
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}
