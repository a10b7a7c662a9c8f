package vm

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Bytecode format:
//
// A program is a plain byte sequence with no header, magic number or length
// prefix. Decoding starts at offset 0. All multi-byte operands are
// big-endian. The textual form used by the shell and the CLI is a
// whitespace separated list of two character hex tokens, e.g. "01 00 01 F4".

// ParseHex parses a line of two character hex tokens. Either every token
// parses and all bytes are returned, or an error is returned and no bytes.
func ParseHex(line string) ([]byte, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidHex)
	}

	result := make([]byte, 0, len(fields))
	for i, field := range fields {
		if len(field) != 2 {
			return nil, fmt.Errorf("%w: token %d %q must be two hex digits", ErrInvalidHex, i+1, field)
		}
		b, err := strconv.ParseUint(field, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: token %d %q", ErrInvalidHex, i+1, field)
		}
		result = append(result, byte(b))
	}
	return result, nil
}

// FormatHex formats bytes as space separated upper case hex tokens, the
// inverse of ParseHex.
func FormatHex(data []byte) string {
	var buf strings.Builder
	for i, b := range data {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%02X", b)
	}
	return buf.String()
}

// Disassemble converts a program back to assembly source code.
func Disassemble(program []byte) string {
	var buf bytes.Buffer

	instructions := Decode(program)
	buf.WriteString("; Disassembled from Iridium bytecode\n")
	buf.WriteString(fmt.Sprintf("; %d bytes, %d instructions\n\n", len(program), len(instructions)))

	for _, inst := range instructions {
		text := disassembleInstruction(inst)
		comment := FormatHex(inst.Bytes())
		if !inst.Complete() {
			comment += " (incomplete)"
		}
		buf.WriteString(fmt.Sprintf("%04d: %-22s ; %s\n", inst.Offset, text, comment))
	}

	return buf.String()
}

func disassembleInstruction(inst Instruction) string {
	op := inst.Opcode
	opName := op.String()
	ops := inst.Operands

	if !inst.Complete() {
		return opName
	}

	switch op {
	case OpHLT:
		return opName

	case OpLOAD:
		return fmt.Sprintf("%-5s $%d, #%d", opName, ops[0], inst.Imm16())

	case OpADD, OpSUB, OpMUL, OpDIV,
		OpEQ, OpNEQ, OpGT, OpLT, OpGTQ, OpLTQ:
		return fmt.Sprintf("%-5s $%d, $%d, $%d", opName, ops[0], ops[1], ops[2])

	case OpJMP, OpJMPF, OpJMPB:
		return fmt.Sprintf("%-5s $%d", opName, ops[0])

	case OpJEQ:
		return fmt.Sprintf("%-5s $%d, $%d", opName, ops[0], ops[1])

	case OpLW, OpSW:
		return fmt.Sprintf("%-5s $%d, %d($%d)", opName, ops[0], ops[2], ops[1])

	default:
		return fmt.Sprintf("%-5s 0x%02X", opName, inst.Raw)
	}
}
