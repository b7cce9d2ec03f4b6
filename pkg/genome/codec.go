package genome

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/multiformats/go-base32"

	"github.com/fortiblox/torland/pkg/isa"
)

// Decode errors. Each marks a different stage of the text pipeline.
var (
	// ErrMalformedText is returned when the text is not valid base32.
	ErrMalformedText = errors.New("malformed genome text")

	// ErrDecompress is returned when the deflate stream is corrupt.
	ErrDecompress = errors.New("genome decompression failed")

	// ErrDeserialize is returned when the decompressed bytes are not a
	// well-formed instruction sequence.
	ErrDeserialize = errors.New("genome deserialization failed")
)

// maxDecodedSize bounds the decompressed payload accepted from untrusted text.
const maxDecodedSize = 1 << 20

// Encode returns the portable text form of g.
func Encode(g *Genome) string {
	return EncodeCommands(g.code)
}

// EncodeCommands serializes code, compresses it with raw deflate at maximum
// ratio and renders it as unpadded RFC 4648 base32.
func EncodeCommands(code []isa.Command) string {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		// only returned for an invalid level
		panic(err)
	}
	w.Write(marshal(code))
	w.Close()
	return base32.RawStdEncoding.EncodeToString(buf.Bytes())
}

// Decode parses genome text and validates it for execution. The returned
// genome carries id.
func Decode(id uint64, text string) (*Genome, error) {
	code, err := DecodeCommands(text)
	if err != nil {
		return nil, err
	}
	return New(id, code, isa.MemSize)
}

// DecodeCommands reverses EncodeCommands without validating operand ranges.
func DecodeCommands(text string) ([]isa.Command, error) {
	text = strings.ToUpper(strings.TrimSpace(text))
	raw, err := base32.RawStdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedText, err)
	}

	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	data, err := io.ReadAll(io.LimitReader(r, maxDecodedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	if len(data) > maxDecodedSize {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrDecompress, maxDecodedSize)
	}

	return unmarshal(data)
}

// Binary layout: uvarint count, then per command the opcode byte followed by
// its operands in signature order. Directions and registers are single bytes,
// labels and memory addresses uvarints, values zig-zag varints.
func marshal(code []isa.Command) []byte {
	buf := make([]byte, 0, 1+len(code)*4)
	buf = binary.AppendUvarint(buf, uint64(len(code)))
	for _, c := range code {
		buf = append(buf, byte(c.Op))
		for i, k := range c.Op.Spec().Args {
			switch k {
			case isa.KindDir, isa.KindReg, isa.KindRwReg:
				buf = append(buf, byte(c.Args[i]))
			case isa.KindLabel, isa.KindMem:
				buf = binary.AppendUvarint(buf, uint64(c.Args[i]))
			case isa.KindVal:
				buf = binary.AppendVarint(buf, c.Args[i])
			}
		}
	}
	return buf
}

func unmarshal(data []byte) ([]isa.Command, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad length prefix", ErrDeserialize)
	}
	data = data[n:]
	// every command takes at least one byte
	if count > uint64(len(data)) {
		return nil, fmt.Errorf("%w: length %d exceeds payload", ErrDeserialize, count)
	}

	code := make([]isa.Command, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: truncated at instruction %d", ErrDeserialize, i)
		}
		op := isa.Opcode(data[0])
		data = data[1:]
		if !op.Valid() {
			return nil, fmt.Errorf("%w: unknown opcode %d at instruction %d", ErrDeserialize, op, i)
		}

		c := isa.Command{Op: op}
		for j, k := range op.Spec().Args {
			switch k {
			case isa.KindDir, isa.KindReg, isa.KindRwReg:
				if len(data) == 0 {
					return nil, fmt.Errorf("%w: truncated operand at instruction %d", ErrDeserialize, i)
				}
				c.Args[j] = int64(data[0])
				data = data[1:]
			case isa.KindLabel, isa.KindMem:
				v, n := binary.Uvarint(data)
				if n <= 0 || v > 1<<32-1 {
					return nil, fmt.Errorf("%w: bad operand at instruction %d", ErrDeserialize, i)
				}
				c.Args[j] = int64(v)
				data = data[n:]
			case isa.KindVal:
				v, n := binary.Varint(data)
				if n <= 0 {
					return nil, fmt.Errorf("%w: bad value at instruction %d", ErrDeserialize, i)
				}
				c.Args[j] = v
				data = data[n:]
			}
		}
		code = append(code, c)
	}

	if len(data) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrDeserialize, len(data))
	}
	return code, nil
}
