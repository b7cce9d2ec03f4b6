package asm

import (
	"fmt"
	"strings"

	"github.com/fortiblox/torland/pkg/isa"
)

// Decompile renders code as assembly source, one instruction per line. Every
// jump target gets a label_N: definition, N being its index.
func Decompile(code []isa.Command) string {
	targets := make(map[int64]bool)
	for _, cmd := range code {
		if !cmd.Op.Valid() {
			continue
		}
		for i, k := range cmd.Op.Spec().Args {
			if k == isa.KindLabel {
				targets[cmd.Args[i]] = true
			}
		}
	}

	var b strings.Builder
	for idx, cmd := range code {
		if targets[int64(idx)] {
			fmt.Fprintf(&b, "label_%d:\n", idx)
		}
		if !cmd.Op.Valid() {
			fmt.Fprintf(&b, "// invalid opcode %d\n", cmd.Op)
			continue
		}
		b.WriteString(cmd.Op.String())
		for i, k := range cmd.Op.Spec().Args {
			b.WriteByte(' ')
			if k == isa.KindLabel {
				fmt.Fprintf(&b, "label_%d", cmd.Args[i])
				continue
			}
			b.WriteString(isa.Format(k, cmd.Args[i]))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
