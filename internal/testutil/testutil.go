// Package testutil provides testing utilities for Iridium tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/akhildatla/iridium/pkg/vm"
)

// TempFile creates a temporary file with the given content and extension.
// The file is automatically cleaned up when the test finishes.
func TempFile(t *testing.T, content []byte, ext string) string {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test"+ext)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// TempHex writes a hex listing of the program to a temporary .hex file.
func TempHex(t *testing.T, program []byte) string {
	t.Helper()
	return TempFile(t, []byte(vm.FormatHex(program)+"\n"), ".hex")
}

// Builder assembles byte programs for tests.
type Builder struct {
	program []byte
}

// NewBuilder creates an empty program builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Load appends LOAD reg #imm.
func (b *Builder) Load(reg uint8, imm uint16) *Builder {
	b.program = append(b.program, vm.EncodeLoad(reg, imm)...)
	return b
}

// Op appends any instruction with raw operand bytes.
func (b *Builder) Op(op vm.Opcode, operands ...uint8) *Builder {
	b.program = append(b.program, vm.Encode(op, operands...)...)
	return b
}

// Halt appends HLT.
func (b *Builder) Halt() *Builder {
	return b.Op(vm.OpHLT)
}

// Raw appends bytes unchanged.
func (b *Builder) Raw(bs ...byte) *Builder {
	b.program = append(b.program, bs...)
	return b
}

// Len returns the current program length, useful as a jump target.
func (b *Builder) Len() int {
	return len(b.program)
}

// Bytes returns the assembled program.
func (b *Builder) Bytes() []byte {
	out := make([]byte, len(b.program))
	copy(out, b.program)
	return out
}

// Hex returns the program as a hex line.
func (b *Builder) Hex() string {
	return vm.FormatHex(b.program)
}

// SumProgram computes $2 = 10 + 32 and halts.
func SumProgram() []byte {
	return NewBuilder().
		Load(0, 10).
		Load(1, 32).
		Op(vm.OpADD, 0, 1, 2).
		Halt().
		Bytes()
}

// CountdownProgram counts $0 down from n to zero and halts. n must be at
// least 1.
//
//	0:  LOAD $0 #n
//	4:  LOAD $1 #1
//	8:  LOAD $2 #0
//	12: LOAD $3 #16
//	16: SUB  $0 $1 $0    loop
//	20: NEQ  $0 $2 $4
//	24: JEQ  $3 $4
//	28: HLT
func CountdownProgram(n uint16) []byte {
	return NewBuilder().
		Load(0, n).
		Load(1, 1).
		Load(2, 0).
		Load(3, 16).
		Op(vm.OpSUB, 0, 1, 0).
		Op(vm.OpNEQ, 0, 2, 4).
		Op(vm.OpJEQ, 3, 4).
		Halt().
		Bytes()
}

// InfiniteLoop returns a program that jumps to itself forever.
func InfiniteLoop() []byte {
	return NewBuilder().Op(vm.OpJMP, 0).Bytes()
}

// AssertRegister checks the value of a register in a snapshot.
func AssertRegister(t *testing.T, snap *vm.Snapshot, idx int, expected int32) {
	t.Helper()
	if got := snap.Registers[idx]; got != expected {
		t.Errorf("expected $%d = %d, got %d", idx, expected, got)
	}
}
