package genome

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/isa"
)

func sample() []isa.Command {
	return []isa.Command{
		isa.New(isa.OpChk, int64(types.Front)),
		isa.New(isa.OpJmf, 4),
		isa.New(isa.OpBite, int64(types.Front)),
		isa.New(isa.OpJmp, 0),
		isa.New(isa.OpCmpv, int64(isa.En), 900),
		isa.New(isa.OpJml, 7),
		isa.New(isa.OpSplit, int64(types.Back), 0),
		isa.New(isa.OpLdr, 12, int64(isa.Ag)),
		isa.New(isa.OpSubv, int64(isa.RwDx), -123456789),
		isa.New(isa.OpEatsun),
		isa.New(isa.OpJmp, 0),
	}
}

func TestEncodeDecode(t *testing.T) {
	g := MustNew(1, sample())

	text := Encode(g)
	require.NotEmpty(t, text)
	assert.NotContains(t, text, "=", "text must be unpadded")

	decoded, err := Decode(9, text)
	require.NoError(t, err)
	assert.True(t, g.Equal(decoded))
	assert.Equal(t, uint64(9), decoded.ID())
	assert.Equal(t, g.Fingerprint(), decoded.Fingerprint())
}

func TestDecodeRandomGenomes(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		n := 1 + rng.Intn(64)
		code := make([]isa.Command, n)
		for j := range code {
			code[j] = isa.Random(rng, n, 10000, isa.MemSize)
		}
		g := MustNew(0, code)

		decoded, err := Decode(0, Encode(g))
		require.NoError(t, err)
		require.Equal(t, code, decoded.Commands())
	}
}

func TestDecodeLowerCase(t *testing.T) {
	g := MustNew(1, sample())
	text := Encode(g)

	lower := make([]byte, len(text))
	for i := range text {
		c := text[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}

	decoded, err := Decode(1, string(lower))
	require.NoError(t, err)
	assert.True(t, g.Equal(decoded))
}

func TestDecodeErrors(t *testing.T) {
	// valid base32, but not a deflate stream
	notDeflate := "7777777777777777"

	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"bad alphabet", "not base32!", ErrMalformedText},
		{"not deflate", notDeflate, ErrDecompress},
		{"empty program", EncodeCommands(nil), ErrEmpty},
		{"bad label", EncodeCommands([]isa.Command{isa.New(isa.OpJmp, 5)}), ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(0, tt.text)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"count too large", []byte{10, 0}},
		{"unknown opcode", []byte{1, 250}},
		{"truncated operand", []byte{1, byte(isa.OpMov)}},
		{"trailing bytes", []byte{1, byte(isa.OpNop), 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := unmarshal(tt.data)
			assert.ErrorIs(t, err, ErrDeserialize)
		})
	}
}

func TestNewCopiesCode(t *testing.T) {
	code := sample()
	g := MustNew(1, code)
	code[0] = isa.New(isa.OpNop)
	assert.Equal(t, isa.OpChk, g.At(0).Op)

	cmds := g.Commands()
	cmds[1] = isa.New(isa.OpNop)
	assert.Equal(t, isa.OpJmf, g.At(1).Op)
}

func TestMutateChangesExactlyOneInstruction(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	parent := MustNew(1, sample())

	for i := 0; i < 200; i++ {
		child := parent.Mutate(rng, uint64(100+i), 10000, isa.MemSize)
		require.Equal(t, parent.Len(), child.Len())
		assert.NotEqual(t, parent.ID(), child.ID())

		diff := 0
		for j := 0; j < parent.Len(); j++ {
			if parent.At(j) != child.At(j) {
				diff++
			}
		}
		require.Equal(t, 1, diff)
		require.NoError(t, validate(child))
	}

	// the parent is never touched
	assert.Equal(t, sample(), parent.Commands())
}

func TestFingerprintDistinguishesContent(t *testing.T) {
	a := MustNew(1, sample())
	b := MustNew(2, sample())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := a.Mutate(rand.New(rand.NewSource(1)), 3, 100, isa.MemSize)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func validate(g *Genome) error {
	_, err := New(g.ID(), g.Commands(), isa.MemSize)
	return err
}
