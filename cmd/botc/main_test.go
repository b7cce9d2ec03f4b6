package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fortiblox/torland/pkg/genome"
	"github.com/fortiblox/torland/pkg/isa"
)

func TestRun(t *testing.T) {
	loop := []isa.Command{isa.New(isa.OpEatsun), isa.New(isa.OpJmp, 0)}
	text := genome.EncodeCommands(loop)
	source := "label_0:\neatsun\njmp label_0\n"

	dir := t.TempDir()
	src := filepath.Join(dir, "loop.asm")
	if err := os.WriteFile(src, []byte(source), 0644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	got, err := run("compile", src, nil)
	if err != nil {
		t.Fatalf("run(compile) error = %v", err)
	}
	if got != text+"\n" {
		t.Errorf("run(compile) = %q, want %q", got, text+"\n")
	}

	got, err = run("compile", "-", strings.NewReader(source))
	if err != nil {
		t.Fatalf("run(compile, stdin) error = %v", err)
	}
	if got != text+"\n" {
		t.Errorf("run(compile, stdin) = %q, want %q", got, text+"\n")
	}

	got, err = run("decompile", text, nil)
	if err != nil {
		t.Fatalf("run(decompile) error = %v", err)
	}
	if got != source {
		t.Errorf("run(decompile) = %q, want %q", got, source)
	}

	got, err = run("hash", text+"\n", nil)
	if err != nil {
		t.Fatalf("run(hash) error = %v", err)
	}
	if !strings.HasPrefix(got, "2 ") {
		t.Errorf("run(hash) = %q, want length 2", got)
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.asm")
	if err := os.WriteFile(bad, []byte("eatsun\njmp nowhere\n"), 0644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	tests := []struct {
		cmd, arg string
	}{
		{"compile", bad},
		{"compile", filepath.Join(dir, "missing.asm")},
		{"decompile", "!!"},
		{"hash", "!!"},
		{"frobnicate", "x"},
	}
	for _, tt := range tests {
		if _, err := run(tt.cmd, tt.arg, nil); err == nil {
			t.Errorf("run(%q, %q) error = nil, want error", tt.cmd, tt.arg)
		}
	}
}
