package vm

import "strings"

// Opcode represents a VM instruction opcode.
type Opcode uint8

const (
	OpHLT  Opcode = 0  // halt
	OpLOAD Opcode = 1  // R[a] = imm16
	OpADD  Opcode = 2  // R[c] = R[a] + R[b]
	OpSUB  Opcode = 3  // R[c] = R[a] - R[b]
	OpMUL  Opcode = 4  // R[c] = R[a] * R[b]
	OpDIV  Opcode = 5  // R[c] = R[a] + R[b] (compat), remainder = R[a] % R[b]
	OpJMP  Opcode = 6  // pc = R[a]
	OpJMPF Opcode = 7  // pc += R[a]
	OpJMPB Opcode = 8  // pc -= R[a]
	OpEQ   Opcode = 9  // R[c] = R[a] == R[b]
	OpNEQ  Opcode = 10 // R[c] = R[a] != R[b]
	OpGT   Opcode = 11 // R[c] = R[a] > R[b]
	OpLT   Opcode = 12 // R[c] = R[a] < R[b]
	OpGTQ  Opcode = 13 // R[c] = R[a] >= R[b]
	OpLTQ  Opcode = 14 // R[c] = R[a] <= R[b]
	OpJEQ  Opcode = 15 // if R[b] == 1 { pc = R[a] } else { skip one byte }
	OpLW   Opcode = 16 // R[a] = heap[R[b]+imm8]
	OpSW   Opcode = 17 // heap[R[b]+imm8] = R[a]

	// OpIllegal is the decode result for every byte outside the table above.
	OpIllegal Opcode = 0xFF
)

// opcodeInfo describes the static encoding of an opcode.
type opcodeInfo struct {
	name     string
	operands int // operand bytes following the opcode byte
}

var opcodeTable = [...]opcodeInfo{
	OpHLT:  {"HLT", 0},
	OpLOAD: {"LOAD", 3},
	OpADD:  {"ADD", 3},
	OpSUB:  {"SUB", 3},
	OpMUL:  {"MUL", 3},
	OpDIV:  {"DIV", 3},
	OpJMP:  {"JMP", 1},
	OpJMPF: {"JMPF", 1},
	OpJMPB: {"JMPB", 1},
	OpEQ:   {"EQ", 3},
	OpNEQ:  {"NEQ", 3},
	OpGT:   {"GT", 3},
	OpLT:   {"LT", 3},
	OpGTQ:  {"GTQ", 3},
	OpLTQ:  {"LTQ", 3},
	OpJEQ:  {"JEQ", 3},
	OpLW:   {"LW", 3},
	OpSW:   {"SW", 3},
}

// OpcodeFromByte decodes a raw program byte. Unmapped values decode to
// OpIllegal rather than failing.
func OpcodeFromByte(b byte) Opcode {
	if int(b) < len(opcodeTable) {
		return Opcode(b)
	}
	return OpIllegal
}

// OpcodeFromMnemonic maps a case-insensitive mnemonic to its opcode.
// Unknown mnemonics map to OpIllegal.
func OpcodeFromMnemonic(s string) Opcode {
	upper := strings.ToUpper(s)
	for i, info := range opcodeTable {
		if info.name == upper {
			return Opcode(i)
		}
	}
	return OpIllegal
}

// Valid reports whether the opcode is part of the instruction set.
func (o Opcode) Valid() bool {
	return int(o) < len(opcodeTable)
}

// OperandCount returns the number of operand bytes that follow the opcode
// byte in the encoded form. JEQ is counted at its full width; at runtime a
// taken JEQ stops reading after two operand bytes.
func (o Opcode) OperandCount() int {
	if !o.Valid() {
		return 0
	}
	return opcodeTable[o].operands
}

// Width returns the total encoded size of the instruction in bytes.
func (o Opcode) Width() int {
	return 1 + o.OperandCount()
}

// String returns the mnemonic of the opcode.
func (o Opcode) String() string {
	if !o.Valid() {
		return "IGL"
	}
	return opcodeTable[o].name
}
