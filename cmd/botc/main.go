// botc assembles bot programs into genome wire text and back.
//
//	botc compile prog.asm       print the genome text of prog.asm
//	botc decompile <text>       print the source of a genome
//	botc hash <text>            print the length and fingerprint of a genome
//	botc -o out compile prog.asm
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fortiblox/torland/pkg/asm"
	"github.com/fortiblox/torland/pkg/genome"
	"github.com/fortiblox/torland/pkg/isa"
)

var output = flag.String("o", "", "Write the result to this file instead of stdout")

func usage() {
	fmt.Fprintf(os.Stderr, "usage: botc [-o file] compile <file|->\n")
	fmt.Fprintf(os.Stderr, "       botc [-o file] decompile <text|->\n")
	fmt.Fprintf(os.Stderr, "       botc hash <text|->\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}

	out, err := run(flag.Arg(0), flag.Arg(1), os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "botc: %v\n", err)
		os.Exit(1)
	}

	if *output == "" {
		fmt.Print(out)
		return
	}
	if err := os.WriteFile(*output, []byte(out), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "botc: %v\n", err)
		os.Exit(1)
	}
}

// run executes one command. An argument of "-" reads stdin.
func run(cmd, arg string, stdin io.Reader) (string, error) {
	switch cmd {
	case "compile":
		src, err := readArg(arg, stdin, true)
		if err != nil {
			return "", err
		}
		code, err := asm.Compile(src)
		if err != nil {
			var aerr *asm.Error
			if errors.As(err, &aerr) && aerr.Line > 0 {
				return "", fmt.Errorf("%s:%w", arg, err)
			}
			return "", err
		}
		g, err := genome.New(0, code, isa.MemSize)
		if err != nil {
			return "", err
		}
		return genome.Encode(g) + "\n", nil

	case "decompile":
		text, err := readArg(arg, stdin, false)
		if err != nil {
			return "", err
		}
		return asm.DecompileText(strings.TrimSpace(text))

	case "hash":
		text, err := readArg(arg, stdin, false)
		if err != nil {
			return "", err
		}
		g, err := genome.Decode(0, strings.TrimSpace(text))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %s\n", g.Len(), g.Fingerprint()), nil

	default:
		return "", fmt.Errorf("unknown command %q", cmd)
	}
}

// readArg returns stdin for "-", the named file when file is set, or arg
// itself.
func readArg(arg string, stdin io.Reader, file bool) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	if !file {
		return arg, nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
